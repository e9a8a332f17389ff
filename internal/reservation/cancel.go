package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"bikemetro/internal/status"
	"bikemetro/models"
	"bikemetro/monitoring"

	"github.com/google/uuid"
)

// Canceller sends the cancellation request. A nil reservation means the
// server acknowledged without returning the updated record.
type Canceller interface {
	CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

// FlowState is the cancellation flow position.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowConfirming
	FlowRequesting
	FlowSucceeded
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowConfirming:
		return "confirming"
	case FlowRequesting:
		return "requesting"
	case FlowSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// CancelFlow drives Idle -> Confirming -> Requesting -> Succeeded, returning
// to Idle on failure. At most one request is outstanding at a time.
type CancelFlow struct {
	tracker   *Tracker
	canceller Canceller

	mu    sync.Mutex
	state FlowState
}

func NewCancelFlow(tracker *Tracker, canceller Canceller) *CancelFlow {
	return &CancelFlow{tracker: tracker, canceller: canceller}
}

func (f *CancelFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Begin moves Idle to Confirming when the snapshot is cancelable.
func (f *CancelFlow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case FlowRequesting:
		return status.ErrCancelInFlight
	case FlowConfirming:
		return nil
	case FlowSucceeded:
		return status.ErrNotCancelable
	}

	if !CanCancel(f.tracker.Status()) {
		return status.ErrNotCancelable
	}
	f.state = FlowConfirming
	return nil
}

// Decline returns Confirming to Idle. It is a no-op in any other state.
func (f *CancelFlow) Decline() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FlowConfirming {
		f.state = FlowIdle
	}
}

// Confirm sends the cancellation. A call made while another is in flight
// returns ErrCancelInFlight without touching the network. On failure the
// flow returns to Idle and the snapshot is re-fetched, since the server may
// have moved the reservation on its own.
func (f *CancelFlow) Confirm(ctx context.Context) (View, error) {
	f.mu.Lock()
	switch f.state {
	case FlowRequesting:
		f.mu.Unlock()
		return f.tracker.View(), status.ErrCancelInFlight
	case FlowSucceeded:
		f.mu.Unlock()
		return f.tracker.View(), status.ErrNotCancelable
	case FlowIdle:
		f.mu.Unlock()
		return f.tracker.View(), fmt.Errorf("Confirm: cancellation was not started")
	}

	snapshot := f.tracker.Snapshot()
	if s, _ := ParseStatus(snapshot.Status); !CanCancel(s) {
		f.state = FlowIdle
		f.mu.Unlock()
		return f.tracker.View(), status.ErrNotCancelable
	}
	f.state = FlowRequesting
	f.mu.Unlock()

	updated, err := f.canceller.CancelReservation(ctx, snapshot.ID)
	if err != nil {
		monitoring.TrackCancellation("failure")
		slog.Warn("reservation cancel failed", "reservation_id", snapshot.ID.String(), "error", err)

		v, rerr := f.tracker.Refresh(ctx)
		if rerr != nil {
			slog.Warn("reservation refresh after failed cancel", "reservation_id", snapshot.ID.String(), "error", rerr)
		}

		f.setState(FlowIdle)
		return v, err
	}

	monitoring.TrackCancellation("success")
	f.tracker.Stop()

	v := f.tracker.View()
	if updated != nil {
		f.tracker.Apply(*updated)
		v = f.tracker.View()
	} else if v, err = f.tracker.Refresh(ctx); err != nil {
		// The cancellation itself succeeded; only the follow-up read failed.
		// Show it as cancelled until the next fetch reconciles.
		slog.Warn("reservation refresh after cancel", "reservation_id", snapshot.ID.String(), "error", err)
		f.tracker.Apply(cancelledCopy(f.tracker.Snapshot()))
		v = f.tracker.View()
	}

	f.setState(FlowSucceeded)
	return v, nil
}

func cancelledCopy(r models.Reservation) models.Reservation {
	r.Status = string(StatusCancelled)
	r.StatusDisplay = ""
	return r
}

func (f *CancelFlow) setState(s FlowState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}
