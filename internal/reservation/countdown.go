package reservation

import (
	"fmt"
	"time"
)

// ExpiredText is the terminal countdown display.
const ExpiredText = "EXPIRED"

// Clock abstracts the time source so countdowns can be driven in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Remaining is the time left until expiresAt, truncated to milliseconds.
func Remaining(expiresAt, now time.Time) time.Duration {
	return expiresAt.Sub(now).Truncate(time.Millisecond)
}

// FormatRemaining renders d as minutes:seconds with zero-padded seconds,
// or ExpiredText once d is zero or negative. Partial seconds are dropped.
func FormatRemaining(d time.Duration) string {
	ms := d.Milliseconds()
	if ms <= 0 {
		return ExpiredText
	}
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Countdown reads the remaining time to a fixed deadline.
type Countdown struct {
	expiresAt *time.Time
	clock     Clock
}

// NewCountdown builds a countdown; a nil expiresAt yields one that never has a value.
func NewCountdown(expiresAt *time.Time, clock Clock) *Countdown {
	if clock == nil {
		clock = RealClock{}
	}
	return &Countdown{expiresAt: expiresAt, clock: clock}
}

// Read returns the current display value and false when no deadline exists.
func (c *Countdown) Read() (string, bool) {
	if c.expiresAt == nil {
		return "", false
	}
	return FormatRemaining(Remaining(*c.expiresAt, c.clock.Now())), true
}

// Expired reports whether the deadline has passed. It is false without a deadline.
func (c *Countdown) Expired() bool {
	v, ok := c.Read()
	return ok && v == ExpiredText
}
