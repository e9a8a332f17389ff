// Package notify listens for reservation status pushes. A push is only a
// hint to re-fetch; the REST API stays authoritative.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"bikemetro/internal/reservation"

	"github.com/google/uuid"
	pubnub "github.com/pubnub/go/v7"
)

// TypeReservationStatus is the only message type acted upon.
const TypeReservationStatus = "reservation_status"

var ErrNotConfigured = errors.New("notify: subscribe key not configured")

type (
	Config struct {
		SubscribeKey string
		UUID         string
	}

	// Event is one decoded push.
	Event struct {
		Type          string    `json:"type"`
		ReservationID uuid.UUID `json:"reserva_id"`
		Status        string    `json:"estado,omitempty"`
	}

	Subscriber struct {
		pn      *pubnub.PubNub
		lis     *pubnub.Listener
		channel string
		onEvent func(context.Context, Event)

		mu      sync.Mutex
		started bool
		stopped bool
		quit    chan struct{}
		done    chan struct{}
	}
)

// Channel is the per-user channel name.
func Channel(userID int) string {
	return fmt.Sprintf("user-%d", userID)
}

// New prepares a subscriber for the user's channel. Nothing is sent until Start.
func New(cfg Config, userID int, onEvent func(context.Context, Event)) (*Subscriber, error) {
	if cfg.SubscribeKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.UUID == "" {
		cfg.UUID = uuid.NewString()
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UUID))
	pnCfg.SubscribeKey = cfg.SubscribeKey

	return newSubscriber(pubnub.NewPubNub(pnCfg), Channel(userID), onEvent), nil
}

func newSubscriber(pn *pubnub.PubNub, channel string, onEvent func(context.Context, Event)) *Subscriber {
	return &Subscriber{
		pn:      pn,
		lis:     pubnub.NewListener(),
		channel: channel,
		onEvent: onEvent,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes and processes messages until ctx is done or Stop is called.
func (s *Subscriber) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	s.pn.AddListener(s.lis)
	s.pn.Subscribe().Channels([]string{s.channel}).Execute()

	go func() {
		defer close(s.done)
		s.listen(ctx)
	}()
}

// Stop unsubscribes and waits for the listener loop to return.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.quit)
	s.mu.Unlock()

	if !started {
		return
	}
	s.pn.Unsubscribe().Channels([]string{s.channel}).Execute()
	s.pn.RemoveListener(s.lis)
	<-s.done
}

func (s *Subscriber) listen(ctx context.Context) {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				slog.Info("connected to pubnub", "channel", s.channel)

			case pubnub.PNReconnectedCategory:
				slog.Info("reconnected to pubnub", "channel", s.channel)

			case pubnub.PNDisconnectedCategory:
				slog.Warn("disconnected from pubnub", "channel", s.channel)

			case pubnub.PNAccessDeniedCategory:
				slog.Warn("pubnub access denied", "channel", s.channel)

			case pubnub.PNReconnectionAttemptsExhausted:
				slog.Warn("pubnub reconnection attempts exhausted", "channel", s.channel)

			default:
				slog.Debug("pubnub status", "category", st.Category)
			}

		case msg := <-listener.Message:
			ev, err := Decode(msg.Message)
			if err != nil {
				slog.Warn("notify: dropping message", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.Type != TypeReservationStatus || ev.ReservationID == uuid.Nil {
				continue
			}
			s.onEvent(ctx, ev)

		case <-s.quit:
			slog.Info("close subscribe", "channel", s.channel)
			return

		case <-ctx.Done():
			slog.Info("close subscribe", "channel", s.channel)
			return
		}
	}
}

// Decode accepts a payload already decoded by the SDK or a raw JSON string.
func Decode(payload any) (Event, error) {
	var raw []byte
	switch p := payload.(type) {
	case string:
		raw = []byte(p)
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return Event{}, fmt.Errorf("Decode: %w", err)
		}
		raw = b
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("Decode: %w", err)
	}
	return ev, nil
}

// RefreshTracker returns a handler that re-fetches t when a push names its
// reservation. onView receives the refreshed view.
func RefreshTracker(t *reservation.Tracker, onView func(reservation.View)) func(context.Context, Event) {
	return func(ctx context.Context, ev Event) {
		if ev.ReservationID != t.Snapshot().ID {
			return
		}
		v, err := t.Refresh(ctx)
		if err != nil {
			slog.Warn("notify: refresh failed", "reservation_id", ev.ReservationID, "error", err)
			return
		}
		if onView != nil {
			onView(v)
		}
	}
}
