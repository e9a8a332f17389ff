package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bikemetro/models"
	"bikemetro/monitoring"

	"github.com/robfig/cron/v3"
)

// ActiveLister lists the reservations still in PENDIENTE, CONFIRMADA or EN_CURSO.
type ActiveLister interface {
	ActiveReservations(ctx context.Context) ([]models.Reservation, error)
}

// ActivePoller keeps an eventually consistent count of active reservations,
// the number shown on the reservations badge.
type ActivePoller struct {
	lister   ActiveLister
	interval time.Duration
	onCount  func(int)

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	count   int
	lastErr error
}

func NewActivePoller(lister ActiveLister, interval time.Duration, onCount func(int)) *ActivePoller {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	return &ActivePoller{
		lister:   lister,
		interval: interval,
		onCount:  onCount,
	}
}

// Schedule is the cron spec used for the poll.
func (p *ActivePoller) Schedule() string {
	return "@every " + p.interval.String()
}

// Start polls once and then on every interval until Stop or ctx is done.
func (p *ActivePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cron != nil {
		p.mu.Unlock()
		return fmt.Errorf("ActivePoller.Start: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(logger)), cron.WithLogger(logger))

	if _, err := c.AddFunc(p.Schedule(), func() { p.Poll(ctx) }); err != nil {
		p.mu.Unlock()
		cancel()
		return fmt.Errorf("ActivePoller.Start: AddFunc: %w", err)
	}
	p.cron = c
	p.cancel = cancel
	p.mu.Unlock()

	p.Poll(ctx)
	c.Start()

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop cancels the schedule and waits for a running poll. Safe to call twice.
func (p *ActivePoller) Stop() {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// Poll fetches the active list once. A failed poll keeps the previous count.
func (p *ActivePoller) Poll(ctx context.Context) {
	reservations, err := p.lister.ActiveReservations(ctx)

	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.count = len(reservations)
	}
	count := p.count
	p.mu.Unlock()

	if err != nil {
		slog.Debug("active reservations poll failed", "error", err)
		return
	}

	monitoring.SetActiveReservations(count)
	if p.onCount != nil {
		p.onCount(count)
	}
}

// Count returns the last successfully polled count and the last poll error.
func (p *ActivePoller) Count() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count, p.lastErr
}
