package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bikemetro/models"

	"github.com/google/uuid"
)

// Fetcher loads the authoritative copy of a reservation.
type Fetcher interface {
	GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error)
}

// View is the derived presentation of a reservation at one instant.
type View struct {
	Reservation models.Reservation
	Status      Status
	Descriptor  Descriptor

	// Countdown is set only while the reservation carries a confirmation deadline.
	Countdown    string
	HasCountdown bool
}

// Tracker owns a reservation snapshot and derives views from it. The snapshot
// only changes through Apply or Refresh; Apply takes a server-provided record,
// or a locally settled copy after an acknowledged cancel.
type Tracker struct {
	fetcher Fetcher
	clock   Clock

	mu       sync.RWMutex
	snapshot models.Reservation

	// watchMu serializes Watch and Stop so at most one task is live.
	watchMu sync.Mutex
	watch   *Task
}

func NewTracker(fetcher Fetcher, clock Clock, snapshot models.Reservation) *Tracker {
	if clock == nil {
		clock = RealClock{}
	}
	return &Tracker{
		fetcher:  fetcher,
		clock:    clock,
		snapshot: snapshot,
	}
}

// Snapshot returns the last known server copy.
func (t *Tracker) Snapshot() models.Reservation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Status parses the snapshot status.
func (t *Tracker) Status() Status {
	s, _ := ParseStatus(t.Snapshot().Status)
	return s
}

// Apply replaces the snapshot with a record returned by the server.
func (t *Tracker) Apply(r models.Reservation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = r
}

// Refresh re-fetches the reservation. On error the snapshot is left as is.
func (t *Tracker) Refresh(ctx context.Context) (View, error) {
	id := t.Snapshot().ID
	r, err := t.fetcher.GetReservation(ctx, id)
	if err != nil {
		return t.View(), fmt.Errorf("Refresh: %w", err)
	}
	t.Apply(r)
	return t.View(), nil
}

// View derives the presentation for the current instant.
func (t *Tracker) View() View {
	r := t.Snapshot()
	now := t.clock.Now()
	s, _ := ParseStatus(r.Status)

	v := View{
		Reservation: r,
		Status:      s,
		Descriptor:  Describe(r, now),
	}
	if s == StatusPending && r.ExpiresAt != nil {
		v.Countdown = FormatRemaining(Remaining(*r.ExpiresAt, now))
		v.HasCountdown = true
	}
	return v
}

// Watch publishes a view every interval while the countdown is meaningful
// and stops once it is not: the deadline passed, or the snapshot left
// PENDIENTE. Otherwise a single view is published. A previous watch is
// stopped first.
func (t *Tracker) Watch(ctx context.Context, interval time.Duration, onView func(View)) *Task {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()

	t.watch.Stop()
	if interval <= 0 {
		interval = CountdownInterval
	}

	task := StartTask(ctx, interval, func(context.Context) bool {
		v := t.View()
		onView(v)
		return v.HasCountdown && v.Countdown != ExpiredText
	})

	t.watch = task
	return task
}

// Stop ends the current watch, if any. It must not be called from onView.
func (t *Tracker) Stop() {
	t.watchMu.Lock()
	defer t.watchMu.Unlock()

	t.watch.Stop()
	t.watch = nil
}
