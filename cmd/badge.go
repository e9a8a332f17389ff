package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"bikemetro/internal/reservation"
	"bikemetro/monitoring"

	"github.com/spf13/cobra"
)

func newBadgeCmd() *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Keep the active reservation count up to date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if interval <= 0 {
				interval = e.cfg.ActivePollInterval
			}
			poller := reservation.NewActivePoller(e.client, interval, func(n int) {
				fmt.Fprintf(out, "%s active: %d\n", time.Now().Format(time.TimeOnly), n)
			})

			if once {
				poller.Poll(ctx)
				_, err := poller.Count()
				return err
			}

			// Start metrics server
			if e.cfg.EnableMetrics {
				go func() {
					if err := monitoring.Serve(ctx, ":"+e.cfg.MetricsPort); err != nil {
						slog.Error("metrics server", "error", err)
					}
				}()
			}

			if err := poller.Start(ctx); err != nil {
				return err
			}
			defer poller.Stop()

			slog.Info("polling active reservations", "schedule", poller.Schedule())
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "poll a single time and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (defaults to ACTIVE_POLL_INTERVAL)")
	return cmd
}
