package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/syncclient"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSyncCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Keep the local copy in sync with the server",
		Long: `Keep the local copy in sync with the server until interrupted.

The server is polled periodically. SIGUSR1 or SIGCONT (resuming a stopped
process) triggers an immediate pull.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Interval
			}
			w := cmd.OutOrStdout()
			s, _, err := a.syncer(syncclient.WithOnChange(func(c notes.Collection) {
				_, _ = fmt.Fprintf(w, "%s notes updated: %d days, %d notes\n", time.Now().Format(time.TimeOnly), len(c), c.Len())
			}))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			src := s.InitialLoad(ctx)
			slog.InfoContext(ctx, "Syncing", "server", a.cfg.Server, "source", src, "interval", interval)

			wake := make(chan struct{}, 1)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGUSR1, syscall.SIGCONT)
			defer signal.Stop(sig)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return s.Run(ctx, interval, wake)
			})
			g.Go(func() error {
				return forwardSignals(ctx, sig, wake)
			})
			err = g.Wait()
			s.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", syncclient.DefaultInterval, "Time between pulls")
	return cmd
}

// forwardSignals turns each received signal into a non-blocking wake-up.
func forwardSignals(ctx context.Context, sig <-chan os.Signal, wake chan<- struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			slog.DebugContext(ctx, "Wake-up", "signal", s)
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
