package cmd

import (
	"context"
	"fmt"

	"github.com/go-drift/formctl/cmd/formctl/internal/report"
	"github.com/go-drift/formctl/cmd/formctl/internal/session"
)

func init() {
	RegisterCommand(&Command{
		Name:  "diff",
		Short: "Show how a session moved the values from the defaults",
		Long: `Replay a form session and print a line diff between the default values
and the values the session ended with.

Flags:
  --color MODE       auto, always or never`,
		Usage: "formctl diff <definition.yaml> [--color MODE]",
		Run:   runDiff,
	})
}

func runDiff(ctx context.Context, env *Env, args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return fmt.Errorf("%w\n\nUsage: formctl diff <definition.yaml>", err)
	}
	l, err := load(env, opts)
	if err != nil {
		return err
	}
	res, err := session.Run(ctx, l.def, session.Options{Logger: l.logger})
	if err != nil {
		return err
	}

	p := report.NewPrinter(env.Stdout, l.cfg.Output.Color)
	changed, err := p.Diff(res.Defaults, res.Values)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(env.Stdout, "no changes")
	}
	return nil
}
