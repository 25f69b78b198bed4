package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
)

// watchCmd creates the watch command
func watchCmd(env *Env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Upload changes whenever the addon file is written and on a schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "schedule", Usage: "Cron spec for periodic runs (default from config)"},
		},
		Action: func(c *cli.Context) error {
			files, err := env.accounts()
			if err != nil {
				return outputError(err)
			}
			paths := make([]string, 0, len(files))
			for _, f := range files {
				paths = append(paths, f.Path)
			}

			wc := env.config.GetWatchConfig()
			schedule := wc.Schedule
			if c.IsSet("schedule") {
				schedule = c.String("schedule")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := newWatcher(env.commandLogger("watch"), func(ctx context.Context) error {
				report, err := env.sync(ctx, "watch", nil, "", nil)
				if err != nil {
					return err
				}
				if len(report.Conflicts) > 0 || len(report.CloudNewer) > 0 {
					fmt.Fprintf(env.Err, "%d conflict(s), %d newer in the cloud; run upload --resolve to settle\n",
						len(report.Conflicts), len(report.CloudNewer))
				}
				return nil
			})
			if err := w.run(ctx, paths, schedule, wc.Debounce); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// watcher reruns a sync when any SavedVariables file changes and on a cron
// schedule. Runs never overlap; a trigger during a run is dropped
type watcher struct {
	logger  logging.Logger
	sync    func(ctx context.Context) error
	running atomic.Bool
}

func newWatcher(logger logging.Logger, sync func(ctx context.Context) error) *watcher {
	return &watcher{logger: logger, sync: sync}
}

func (w *watcher) run(ctx context.Context, paths []string, schedule string, debounce time.Duration) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() { w.trigger(ctx, "schedule") }); err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", schedule, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	// the game rewrites the file by replacing it, so watch the directory
	targets := make(map[string]bool, len(paths))
	for _, path := range paths {
		targets[filepath.Clean(path)] = true
		if err := fw.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
		}
	}

	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	w.logger.Info("Watching for profile changes", map[string]interface{}{
		"paths":    paths,
		"schedule": schedule,
		"debounce": debounce.String(),
	})
	w.trigger(ctx, "startup")

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watch stopped", nil)
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(ev.Name)] || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			w.trigger(ctx, "file")
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (w *watcher) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("Sync already running, trigger dropped", map[string]interface{}{
			"reason": reason,
		})
		return
	}
	defer w.running.Store(false)

	if err := w.sync(ctx); err != nil {
		w.logger.Error("Watch sync failed", err, map[string]interface{}{
			"reason": reason,
		})
	}
}
