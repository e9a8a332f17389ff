package notify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"bikemetro/internal/api"
	"bikemetro/internal/api/apitest"
	"bikemetro/internal/reservation"
	"bikemetro/internal/session"

	"github.com/google/uuid"
	pubnub "github.com/pubnub/go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNew(t *testing.T) {
	_, err := New(Config{}, 7, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := New(Config{SubscribeKey: "sub-c-test"}, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-7", s.channel)

	// Stop before Start is a no-op.
	s.Stop()
	s.Stop()
}

func TestDecode(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		payload any
		wantErr bool
	}{
		{"json string", `{"type":"reservation_status","reserva_id":"` + id.String() + `","estado":"CANCELADA"}`, false},
		{"decoded map", map[string]interface{}{"type": "reservation_status", "reserva_id": id.String(), "estado": "CANCELADA"}, false},
		{"not json", "hello", true},
		{"bad id", map[string]interface{}{"type": "reservation_status", "reserva_id": "nope"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TypeReservationStatus, ev.Type)
			assert.Equal(t, id, ev.ReservationID)
			assert.Equal(t, "CANCELADA", ev.Status)
		})
	}
}

func TestListen_DispatchesReservationStatus(t *testing.T) {
	rec := &recorder{}
	s := newSubscriber(nil, "user-1", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.listen(ctx)
	}()

	id := uuid.New()
	s.lis.Status <- &pubnub.PNStatus{Category: pubnub.PNConnectedCategory}
	s.lis.Message <- &pubnub.PNMessage{Channel: "user-1", Message: "garbage"}
	s.lis.Message <- &pubnub.PNMessage{Channel: "user-1", Message: map[string]interface{}{"type": "chat", "reserva_id": id.String()}}
	s.lis.Message <- &pubnub.PNMessage{Channel: "user-1", Message: map[string]interface{}{"type": TypeReservationStatus}}
	s.lis.Message <- &pubnub.PNMessage{Channel: "user-1", Message: map[string]interface{}{"type": TypeReservationStatus, "reserva_id": id.String()}}

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, id, rec.events[0].ReservationID)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on context cancel")
	}
}

func TestRefreshTracker(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	store := session.NewMemoryStore()
	srv.AddUser("ciclista", "secreta123")
	tokens := srv.Tokens("ciclista")
	require.NoError(t, store.Save(context.Background(), session.Session{AccessToken: tokens.Access, RefreshToken: tokens.Refresh}))

	client := api.NewClient(srv.BaseURL(), time.Second, store)
	r, err := client.CreateReservation(context.Background(), 1, 1)
	require.NoError(t, err)

	tracker := reservation.NewTracker(client, nil, r)
	var got []reservation.View
	handle := RefreshTracker(tracker, func(v reservation.View) { got = append(got, v) })

	// Pushes for other reservations are ignored.
	handle(context.Background(), Event{Type: TypeReservationStatus, ReservationID: uuid.New()})
	assert.Equal(t, 0, srv.Hits(http.MethodGet, "/api/reservas/:id/"))

	srv.SetReservationStatus(r.ID, "EXPIRADA")
	handle(context.Background(), Event{Type: TypeReservationStatus, ReservationID: r.ID, Status: "EXPIRADA"})

	require.Len(t, got, 1)
	assert.Equal(t, reservation.StatusExpired, got[0].Status)
	assert.True(t, got[0].Descriptor.Terminal)
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/api/reservas/:id/"))
}
