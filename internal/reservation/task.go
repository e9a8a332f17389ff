package reservation

import (
	"context"
	"sync"
	"time"
)

// Task is a cancellable periodic job. The function runs once immediately and
// then on every tick until it returns false, Stop is called, or the parent
// context is done.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartTask launches fn on its own goroutine.
func StartTask(ctx context.Context, interval time.Duration, fn func(context.Context) bool) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()

		if !fn(ctx) {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil || !fn(ctx) {
					return
				}
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for the running tick to return. It is
// safe to call more than once and from several goroutines, but not from
// inside the task function.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed when the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// stoppedTask is returned where nothing needs scheduling.
func stoppedTask() *Task {
	t := &Task{cancel: func() {}, done: make(chan struct{})}
	close(t.done)
	return t
}

// CountdownInterval is the countdown refresh cadence.
const CountdownInterval = time.Second

// StartTimer publishes the countdown value every interval and stops by
// itself after publishing ExpiredText. Without a deadline nothing runs and
// the returned task is already done.
func StartTimer(ctx context.Context, c *Countdown, interval time.Duration, onTick func(string)) *Task {
	if _, ok := c.Read(); !ok {
		return stoppedTask()
	}
	if interval <= 0 {
		interval = CountdownInterval
	}

	return StartTask(ctx, interval, func(context.Context) bool {
		value, _ := c.Read()
		onTick(value)
		return value != ExpiredText
	})
}
