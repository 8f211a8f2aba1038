// Package cmd implements the formctl commands.
//
// A root command dispatches to subcommands (run, watch, diff, version),
// each replaying a form definition through the form engine.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Env carries the streams a command writes to.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Command represents a CLI command.
type Command struct {
	Name  string
	Short string
	Long  string
	Usage string
	Run   func(ctx context.Context, env *Env, args []string) error
}

var rootCmd = &Command{
	Name:  "formctl",
	Short: "formctl - replay and inspect form sessions",
	Long: `formctl loads a form definition, replays its session of input events
against the form engine and reports the resulting form state.

Use "formctl <command> --help" for more information about a command.`,
	Usage: "formctl <command> [flags]",
}

// Commands registered with the CLI.
var commands = make(map[string]*Command)

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *Command) {
	commands[cmd.Name] = cmd
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return ExecuteArgs(ctx, os.Args[1:], &Env{Stdout: os.Stdout, Stderr: os.Stderr})
}

// ExecuteArgs runs the CLI with args, writing to env.
func ExecuteArgs(ctx context.Context, args []string, env *Env) error {
	if len(args) == 0 {
		printHelp(env.Stdout)
		return nil
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp(env.Stdout)
		return nil
	case "-v", "--version":
		args = append([]string{"version"}, args[1:]...)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(env.Stderr, "Error: unknown command %q\n\n", args[0])
		printHelp(env.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}

	cmdArgs := args[1:]
	for _, arg := range cmdArgs {
		if arg == "-h" || arg == "--help" {
			printCommandHelp(env.Stdout, cmd)
			return nil
		}
	}
	return cmd.Run(ctx, env, cmdArgs)
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, rootCmd.Long)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", rootCmd.Usage)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-14s %s\n", n, commands[n].Short)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -h, --help           Show help for a command")
	fmt.Fprintln(w, "  -v, --version        Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  FORMCTL_LOG_LEVEL    Log level (overrides log.level in formctl.yaml)")
	fmt.Fprintln(w, "  FORMCTL_LOG_FORMAT   Log format, json or console")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  formctl run signup.yaml          Replay a session and print the state")
	fmt.Fprintln(w, "  formctl watch signup.yaml        Replay again whenever the file changes")
	fmt.Fprintln(w, "  formctl diff signup.yaml         Show how the values moved from the defaults")
}

func printCommandHelp(w io.Writer, cmd *Command) {
	fmt.Fprintln(w, cmd.Long)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", cmd.Usage)
}
