package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/hatch/pkg/observability"
	"github.com/spf13/cobra"
)

const defaultWatchDelay = 500 * time.Millisecond

func newPluginsWatchCommand(app *App) *cobra.Command {
	var all bool
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the catalog again whenever the plugin root changes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchPlugins(cmd.Context(), app, all, delay)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include plugins without an entrypoint")
	cmd.Flags().DurationVar(&delay, "delay", defaultWatchDelay, "Quiet period before the catalog is re-read")
	return cmd
}

func watchPlugins(ctx context.Context, app *App, all bool, delay time.Duration) error {
	defer observability.RecoverPanic(app.log, "plugins watch")

	root := app.cfg.PluginRoot
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := setupWatcher(watcher, root); err != nil {
		return err
	}

	refresh := func() error {
		records, err := app.catalog().Discover(ctx, all)
		if err != nil {
			return err
		}
		app.observeCatalog(records)
		fmt.Fprintf(app.Stdout, "%s %s\n", app.styles.Muted.Render(time.Now().Format(time.TimeOnly)), root)
		printPluginTable(app, records)
		return nil
	}
	if err := refresh(); err != nil {
		return err
	}

	app.log.Infof("Watching %s for plugin changes", root)

	// A burst of events from one edit collapses into a single refresh
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			app.log.Debugf("Plugin root event: %s", event)
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == root {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						app.log.Warnf("Failed to watch %s: %v", event.Name, err)
					}
				}
			}
			timer.Reset(delay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.log.WithError(err).Warn("Watcher error")

		case <-timer.C:
			if err := refresh(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				app.log.WithError(err).Warn("Failed to refresh plugin catalog")
			}
		}
	}
}

// setupWatcher watches the plugin root and each plugin directory in it
func setupWatcher(watcher *fsnotify.Watcher, root string) error {
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}
