package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/go-drift/formctl/cmd/formctl/internal/config"
	"github.com/go-drift/formctl/cmd/formctl/internal/report"
	"github.com/go-drift/formctl/cmd/formctl/internal/session"
)

func init() {
	RegisterCommand(&Command{
		Name:  "run",
		Short: "Replay a form session and print the result",
		Long: `Load a form definition, replay its session and print the final form state.

Flags:
  --json             Print the result as JSON
  --dump             Print a deep dump of the result
  --metrics          Print the engine metrics gathered during the replay
  --color MODE       auto, always or never (default from formctl.yaml)

Settings are read from formctl.yaml next to the definition when present.`,
		Usage: "formctl run <definition.yaml> [--json] [--dump] [--metrics] [--color MODE]",
		Run:   runRun,
	})
}

type runOptions struct {
	path    string
	json    bool
	dump    bool
	metrics bool
	color   string
}

func parseRunArgs(args []string) (runOptions, error) {
	var opts runOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--json":
			opts.json = true
		case arg == "--dump":
			opts.dump = true
		case arg == "--metrics":
			opts.metrics = true
		case arg == "--no-color":
			opts.color = "never"
		case arg == "--color":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--color requires a mode")
			}
			opts.color = args[i+1]
			i++
		case strings.HasPrefix(arg, "--color="):
			opts.color = strings.TrimPrefix(arg, "--color=")
		case strings.HasPrefix(arg, "-"):
			return opts, fmt.Errorf("unknown flag %q", arg)
		case opts.path == "":
			opts.path = arg
		default:
			return opts, fmt.Errorf("unexpected argument %q", arg)
		}
	}
	if opts.path == "" {
		return opts, fmt.Errorf("definition file is required")
	}
	switch opts.color {
	case "", "auto", "always", "never":
	default:
		return opts, fmt.Errorf("--color must be auto, always or never (got %q)", opts.color)
	}
	return opts, nil
}

// loaded is a definition with the settings and logger used to replay it.
type loaded struct {
	cfg    *config.Config
	def    *config.Definition
	logger zerolog.Logger
}

func load(env *Env, opts runOptions) (*loaded, error) {
	cfg, err := config.LoadOptional(filepath.Dir(opts.path))
	if err != nil {
		return nil, err
	}
	if opts.color != "" {
		cfg.Output.Color = opts.color
	}
	if opts.json {
		cfg.Output.Format = config.FormatJSON
	}
	logger := newLogger(cfg.Log, env.Stderr)

	def, err := config.LoadDefinition(opts.path)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("definition", opts.path).Int("fields", len(def.Fields)).Int("steps", len(def.Session)).Msg("definition loaded")
	return &loaded{cfg: cfg, def: def, logger: logger}, nil
}

func runRun(ctx context.Context, env *Env, args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return fmt.Errorf("%w\n\nUsage: formctl run <definition.yaml>", err)
	}
	l, err := load(env, opts)
	if err != nil {
		return err
	}
	return replay(ctx, env, l, opts)
}

func replay(ctx context.Context, env *Env, l *loaded, opts runOptions) error {
	res, err := session.Run(ctx, l.def, session.Options{Logger: l.logger})
	if err != nil {
		return err
	}

	if l.cfg.Output.Format == config.FormatJSON {
		if err := report.JSON(env.Stdout, res); err != nil {
			return err
		}
	} else {
		p := report.NewPrinter(env.Stdout, l.cfg.Output.Color)
		if err := p.Text(res); err != nil {
			return err
		}
		if opts.metrics {
			fmt.Fprintln(env.Stdout)
			p.Metrics(res)
		}
	}
	if opts.dump {
		report.Dump(env.Stdout, res)
	}
	return nil
}
