package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"news_offline/internal/scheduler"
	"news_offline/internal/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync agent until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.close()

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			select {
			case sig := <-sigCh:
				a.logger.Info("received shutdown signal", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		return a.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var jobs []scheduler.Job
	if !a.remoteOnly {
		a.monitor.OnOnline(func(ctx context.Context) {
			if _, err := a.drain(ctx); err != nil {
				a.logger.Debug("reconnect drain did not complete", "error", err)
			}
		})
		jobs = append(jobs,
			scheduler.Job{
				Name:     "drain",
				Interval: a.cfg.Sync.Interval,
				Run: func(ctx context.Context) error {
					if !a.monitor.Online() {
						return nil
					}
					_, err := a.drain(ctx)
					return err
				},
			},
			scheduler.Job{
				Name:     "maintenance",
				Interval: a.cfg.Cache.SweepInterval,
				Run:      a.maintainer.Run,
			},
		)
	}

	a.logger.Info("starting offline agent",
		"store", a.cfg.Store.Driver,
		"remote_only", a.remoteOnly,
		"sync_interval", a.cfg.Sync.Interval,
		"remote", a.cfg.Remote.BaseURL,
	)

	var wg sync.WaitGroup
	errCh := make(chan error, 3)
	spawn := func(fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				cancel()
			}
			errCh <- err
		}()
	}

	spawn(a.monitor.Run)
	spawn(scheduler.NewScheduler(a.logger, jobs...).Start)
	if a.cfg.Status.Addr != "" {
		spawn(status.New(a.cfg.Status.Addr, status.DrainFunc(a.drain), a.queue, a.monitor, a.logger).Run)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("agent stopped with error", "error", err)
			return err
		}
	}
	a.logger.Info("offline agent stopped")
	return nil
}
