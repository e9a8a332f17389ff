package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bikemetro/internal/notify"
	"bikemetro/internal/reservation"
	"bikemetro/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid reservation id %q", arg)
	}
	return id, nil
}

// loadTracker fetches the reservation named by args[0].
func loadTracker(cmd *cobra.Command, e *env, args []string) (*reservation.Tracker, error) {
	if err := requireUser(e); err != nil {
		return nil, err
	}
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	r, err := e.client.GetReservation(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	return reservation.NewTracker(e.client, nil, r), nil
}

func (e *env) printView(w io.Writer, v reservation.View) {
	renderView(w, v, time.Now(), e.cfg.FreeHours, decimal.NewFromInt(e.cfg.ExtraHourRate))
}

func newReserveCmd() *cobra.Command {
	var stationID, spaceID int

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve a space at a station",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}

			r, err := e.client.CreateReservation(cmd.Context(), stationID, spaceID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorSuccess.Fprintln(out, "Reservation created.")
			e.printView(out, reservation.NewTracker(e.client, nil, r).View())
			if r.ExpiresAt == nil {
				colorMuted.Fprintf(out, "Confirm your arrival within %s.\n", e.cfg.ReservationTTL)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&stationID, "station", 0, "station id")
	cmd.Flags().IntVar(&spaceID, "space", 0, "space id")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("space")
	return cmd
}

func newActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List active reservations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}

			reservations, err := e.client.ActiveReservations(cmd.Context())
			if err != nil {
				return err
			}
			renderReservations(cmd.OutOrStdout(), reservations, time.Now())
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past reservations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}

			reservations, err := e.client.ReservationHistory(cmd.Context())
			if err != nil {
				return err
			}
			renderReservations(cmd.OutOrStdout(), reservations, time.Now())
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "show <reservation-id>",
		Short: "Show a reservation, optionally with a live countdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			tracker, err := loadTracker(cmd, e, args)
			if err != nil {
				return err
			}
			if !watch {
				e.printView(cmd.OutOrStdout(), tracker.View())
				return nil
			}
			return e.watch(cmd.Context(), cmd.OutOrStdout(), tracker)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep the countdown running until the reservation settles")
	return cmd
}

// viewPrinter prints full views on state changes and countdown ticks in place.
type viewPrinter struct {
	e *env
	w io.Writer

	mu   sync.Mutex
	last reservation.DisplayState
	seen bool
}

func (p *viewPrinter) print(v reservation.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen && v.Descriptor.State == p.last && v.HasCountdown {
		fmt.Fprintf(p.w, "\rTime left    %s   ", hexColor(v.Descriptor.BannerColor).Sprint(v.Countdown))
		return
	}
	if p.seen {
		fmt.Fprintln(p.w)
	}
	p.e.printView(p.w, v)
	p.last, p.seen = v.Descriptor.State, true
}

// watch ticks the countdown and, when push is configured, re-fetches on
// status pushes. It returns once the reservation is terminal, the
// countdown has ended with nothing left to wait for, or ctx is done.
func (e *env) watch(ctx context.Context, w io.Writer, tracker *reservation.Tracker) error {
	printer := &viewPrinter{e: e, w: w}

	settled := make(chan struct{})
	var once sync.Once
	onView := func(v reservation.View) {
		printer.print(v)
		if v.Descriptor.Terminal {
			once.Do(func() { close(settled) })
		}
	}

	var sub *notify.Subscriber
	if user, ok := e.state.User(); ok && e.cfg.PubNubSubscribeKey != "" {
		s, err := notify.New(notify.Config{SubscribeKey: e.cfg.PubNubSubscribeKey, UUID: e.cfg.PubNubUUID}, user.ID, notify.RefreshTracker(tracker, onView))
		if err != nil {
			slog.Warn("status push disabled", "error", err)
		} else {
			sub = s
			sub.Start(ctx)
			defer sub.Stop()
		}
	}

	task := tracker.Watch(ctx, reservation.CountdownInterval, onView)
	defer tracker.Stop()

	select {
	case <-task.Done():
	case <-settled:
		return nil
	case <-ctx.Done():
		return nil
	}

	// The local deadline passed; ask the server where the reservation stands.
	if v := tracker.View(); v.Countdown == reservation.ExpiredText {
		if v, err := tracker.Refresh(ctx); err == nil {
			onView(v)
		} else {
			slog.Warn("could not refresh expired reservation", "error", err)
		}
	}

	if sub == nil {
		return nil
	}
	select {
	case <-settled:
	case <-ctx.Done():
	}
	return nil
}

func newCancelCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel a pending or confirmed reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			tracker, err := loadTracker(cmd, e, args)
			if err != nil {
				return err
			}

			flow := reservation.NewCancelFlow(tracker, e.client)
			if err := flow.Begin(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes {
				r := tracker.Snapshot()
				prompt := fmt.Sprintf("Cancel the reservation for space %s at %s? [y/N] ", r.SpaceCode, r.StationName)
				answer, err := readLine(bufio.NewReader(cmd.InOrStdin()), out, prompt)
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					flow.Decline()
					fmt.Fprintln(out, "Kept the reservation.")
					return nil
				}
			}

			v, err := flow.Confirm(cmd.Context())
			if err != nil {
				return err
			}
			colorSuccess.Fprintln(out, "Reservation cancelled.")
			e.printView(out, v)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// qrCommand builds confirm and finish, which differ in the gate, the default
// QR code and the endpoint.
func qrCommand(use, short string, action reservation.Action, defaultQR func(models.Reservation) string,
	send func(ctx context.Context, e *env, id uuid.UUID, qr string) (models.Reservation, string, error)) *cobra.Command {
	var qr string

	cmd := &cobra.Command{
		Use:   use + " <reservation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			tracker, err := loadTracker(cmd, e, args)
			if err != nil {
				return err
			}

			v := tracker.View()
			if !v.Descriptor.Allows(action) {
				return fmt.Errorf("%s is not available while the reservation is %s", action, strings.ToLower(v.Descriptor.BannerText))
			}
			if qr == "" {
				qr = defaultQR(v.Reservation)
			}

			r, msg, err := send(cmd.Context(), e, v.Reservation.ID, qr)
			if err != nil {
				return err
			}
			tracker.Apply(r)

			out := cmd.OutOrStdout()
			if msg != "" {
				colorSuccess.Fprintln(out, msg)
			}
			e.printView(out, tracker.View())
			return nil
		},
	}
	cmd.Flags().StringVar(&qr, "qr", "", "scanned QR payload (defaults to the reservation's own code)")
	return cmd
}

func newConfirmCmd() *cobra.Command {
	return qrCommand("confirm", "Confirm arrival with the entry QR", reservation.ActionConfirm,
		func(r models.Reservation) string { return r.EntryQR },
		func(ctx context.Context, e *env, id uuid.UUID, qr string) (models.Reservation, string, error) {
			r, err := e.client.ConfirmReservation(ctx, id, qr)
			return r, "Arrival confirmed.", err
		})
}

func newFinishCmd() *cobra.Command {
	return qrCommand("finish", "Finish the reservation with the exit QR", reservation.ActionFinish,
		func(r models.Reservation) string { return r.ExitQR },
		func(ctx context.Context, e *env, id uuid.UUID, qr string) (models.Reservation, string, error) {
			res, err := e.client.FinishReservation(ctx, id, qr)
			return res.Reservation, res.Message, err
		})
}
