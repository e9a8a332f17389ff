package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		expected  string
	}{
		{125 * time.Second, "2:05"},
		{10 * time.Minute, "10:00"},
		{59*time.Second + 999*time.Millisecond, "0:59"},
		{1500 * time.Millisecond, "0:01"},
		{999 * time.Millisecond, "0:00"},
		{0, ExpiredText},
		{-time.Second, ExpiredText},
		{-90 * time.Minute, ExpiredText},
	}

	for _, tt := range tests {
		t.Run(tt.remaining.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatRemaining(tt.remaining))
		})
	}
}

func TestCountdown_Read(t *testing.T) {
	clock := newFakeClock()

	exp := testNow.Add(125 * time.Second)
	value, ok := NewCountdown(&exp, clock).Read()
	assert.True(t, ok)
	assert.Equal(t, "2:05", value)

	past := testNow.Add(-time.Second)
	c := NewCountdown(&past, clock)
	value, ok = c.Read()
	assert.True(t, ok)
	assert.Equal(t, ExpiredText, value)
	assert.True(t, c.Expired())
}

func TestCountdown_NoDeadline(t *testing.T) {
	c := NewCountdown(nil, newFakeClock())

	value, ok := c.Read()

	assert.False(t, ok)
	assert.Empty(t, value)
	assert.False(t, c.Expired())
}

func TestCountdown_NeverNegative(t *testing.T) {
	clock := newFakeClock()
	exp := testNow.Add(3 * time.Second)
	c := NewCountdown(&exp, clock)

	for i := 0; i < 10; i++ {
		value, _ := c.Read()
		assert.NotContains(t, value, "-")
		clock.Advance(700 * time.Millisecond)
	}
}

func TestStartTimer_StopsAtExpired(t *testing.T) {
	clock := newFakeClock()
	exp := testNow.Add(2 * time.Second)
	c := NewCountdown(&exp, clock)

	var mu sync.Mutex
	var ticks []string
	task := StartTimer(context.Background(), c, time.Millisecond, func(v string) {
		mu.Lock()
		ticks = append(ticks, v)
		mu.Unlock()
		clock.Advance(time.Second)
	})

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not stop after expiring")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0:02", "0:01", ExpiredText}, ticks)
}

func TestStartTimer_NoDeadline(t *testing.T) {
	task := StartTimer(context.Background(), NewCountdown(nil, nil), time.Millisecond, func(string) {
		t.Fatal("timer must not tick without a deadline")
	})

	select {
	case <-task.Done():
	default:
		t.Fatal("task should already be done")
	}
	task.Stop()
}

func TestTask_StopIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	task := StartTask(context.Background(), time.Millisecond, func(context.Context) bool {
		mu.Lock()
		calls++
		mu.Unlock()
		return true
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, time.Second, time.Millisecond)

	task.Stop()
	task.Stop()

	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, calls)
}

func TestTask_ParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := StartTask(ctx, time.Millisecond, func(context.Context) bool { return true })

	cancel()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task ignored parent cancellation")
	}
	require.NotPanics(t, task.Stop)
}
