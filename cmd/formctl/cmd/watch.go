package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

func init() {
	RegisterCommand(&Command{
		Name:  "watch",
		Short: "Replay a form session whenever its files change",
		Long: `Replay a form session, then watch the definition and its schema file and
replay again after every save. Stop with Ctrl+C.

Accepts the same flags as "formctl run".`,
		Usage: "formctl watch <definition.yaml> [--json] [--metrics] [--color MODE]",
		Run:   runWatch,
	})
}

func runWatch(ctx context.Context, env *Env, args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return fmt.Errorf("%w\n\nUsage: formctl watch <definition.yaml>", err)
	}
	l, err := load(env, opts)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched rather than files so editors that save by
	// renaming a temporary file are still picked up.
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range l.def.Files() {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
		dirs[dir] = true
	}

	if err := replay(ctx, env, l, opts); err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
	}
	l.logger.Info().Str("path", opts.path).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !files[name] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("definition changed")

			next, err := load(env, opts)
			if err != nil {
				fmt.Fprintf(env.Stderr, "Error: %v\n", err)
				continue
			}
			l = next
			fmt.Fprintln(env.Stdout)
			fmt.Fprintf(env.Stdout, "--- %s changed, replaying\n", filepath.Base(event.Name))
			if err := replay(ctx, env, l, opts); err != nil {
				fmt.Fprintf(env.Stderr, "Error: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error().Err(err).Msg("watch error")
		}
	}
}
