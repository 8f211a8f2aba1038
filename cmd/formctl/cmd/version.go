package cmd

import (
	"context"
	"fmt"
)

func init() {
	RegisterCommand(&Command{
		Name:  "version",
		Short: "Print version information",
		Long:  "Print the formctl version and build time.",
		Usage: "formctl version",
		Run: func(_ context.Context, env *Env, _ []string) error {
			fmt.Fprintf(env.Stdout, "formctl version %s (built %s)\n", Version, BuildTime)
			return nil
		},
	})
}
