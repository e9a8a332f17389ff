package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bikemetro/internal/status"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Circuit Breaker Tests

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", maxFailures, time.Minute)
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) error    { return errors.New("failure") }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_NewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("api", 0, 0)

	assert.Equal(t, "api", cb.name)
	assert.Equal(t, uint32(5), cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.timeout)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb, _ := setupBreaker(3)

	err := cb.Execute(context.Background(), succeed)

	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	cb, _ := setupBreaker(3)
	ctx := context.Background()

	// A success resets the run.
	assert.Error(t, cb.Execute(ctx, fail))
	assert.Error(t, cb.Execute(ctx, fail))
	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateClosed, cb.State())

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func(context.Context) error {
		t.Fatal("This should not be executed when circuit is open")
		return nil
	})
	assert.ErrorIs(t, err, status.ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := setupBreaker(1)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenToOpen(t *testing.T) {
	cb, clock := setupBreaker(1)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	clock.Advance(2 * time.Minute)

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	cb, clock := setupBreaker(1)
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	clock.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, status.ErrCircuitOpen)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, _ := setupBreaker(1)

	var transitions []State
	cb.OnStateChange = func(name string, from, to State) {
		assert.Equal(t, "test", name)
		transitions = append(transitions, to)
	}

	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb, _ := setupBreaker(2)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = cb.Execute(ctx, func(context.Context) error {
			panic("test panic")
		})
	})

	// Circuit breaker should still function after panic
	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("concurrent-test", 1000, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(ctx, succeed)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}

// Redis Client Tests

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	err := RedisHealthCheck(context.Background(), db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	expectedError := errors.New("connection failed")
	mock.ExpectPing().SetErr(expectedError)

	err := RedisHealthCheck(context.Background(), db)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.Contains(t, err.Error(), "connection failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestID(t *testing.T) {
	a := RequestID()
	b := RequestID()

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

// Benchmark Tests

func BenchmarkCircuitBreaker_Execute_Success(b *testing.B) {
	cb := NewCircuitBreaker("benchmark", 5, time.Minute)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, succeed)
	}
}
