package utils

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bikemetro/internal/status"
)

// CircuitBreaker trips after a run of consecutive failures and lets a single
// probe through once the open timeout elapses.
type CircuitBreaker struct {
	name        string
	maxFailures uint32
	timeout     time.Duration
	now         func() time.Time

	// OnStateChange, when set, is called after the lock is released.
	OnStateChange func(name string, from, to State)

	mutex  sync.Mutex
	state  State
	counts Counts
	expiry time.Time
	probe  bool
}

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: uint32(maxFailures),
		timeout:     timeout,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs req unless the breaker is open. An error returned by req
// counts as a failure; a panic is counted and re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	defer func() {
		e := recover()
		if e != nil {
			cb.afterRequest(false)
			panic(e)
		}
	}()

	err := req(ctx)
	cb.afterRequest(err == nil)
	return err
}

// State reports the current state, moving open to half-open once the timeout passed.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.currentState()
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return status.ErrCircuitOpen
	case StateHalfOpen:
		if cb.probe {
			return status.ErrCircuitOpen
		}
		cb.probe = true
	}

	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	from := cb.state

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}

	to := cb.state
	hook := cb.OnStateChange
	cb.mutex.Unlock()

	if from != to {
		slog.Info("circuit breaker state changed", "name", cb.name, "from", from.String(), "to", to.String())
		if hook != nil {
			hook(cb.name, from, to)
		}
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if cb.state == StateHalfOpen || cb.readyToTrip() {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	return cb.counts.ConsecutiveFailures >= cb.maxFailures
}

func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.expiry.After(cb.now()) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.probe = false

	switch state {
	case StateOpen:
		cb.expiry = cb.now().Add(cb.timeout)
	case StateClosed:
		cb.counts = Counts{}
		cb.expiry = time.Time{}
	default:
		cb.expiry = time.Time{}
	}
}
