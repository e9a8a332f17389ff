package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	base := pendingReservation(5 * time.Minute)

	tests := []struct {
		name         string
		status       Status
		state        DisplayState
		color        string
		instructions string
		actions      []Action
		terminal     bool
	}{
		{"pending", StatusPending, DisplayPending, "#F59E0B", "entry QR", []Action{ActionCancel, ActionConfirm}, false},
		{"confirmed", StatusConfirmed, DisplayConfirmed, "#3B82F6", "exit QR", []Action{ActionCancel, ActionFinish}, false},
		{"in progress", StatusInProgress, DisplayInProgress, "#10B981", "exit QR", []Action{ActionFinish}, false},
		{"finished", StatusFinished, DisplayFinished, "#6B7280", "finished", []Action{}, true},
		{"cancelled", StatusCancelled, DisplayCancelled, "#EF4444", "cancelled", []Action{}, true},
		{"expired", StatusExpired, DisplayExpired, "#9CA3AF", "expired", []Action{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Describe(withStatus(base, tt.status), testNow)

			assert.Equal(t, tt.state, d.State)
			assert.Equal(t, tt.color, d.BannerColor)
			assert.Contains(t, d.Instructions, tt.instructions)
			assert.Equal(t, tt.actions, d.AllowedActions)
			assert.Equal(t, tt.terminal, d.Terminal)
			assert.False(t, d.Unrecognized)
		})
	}
}

func TestDescribe_InProgressExcludesCancel(t *testing.T) {
	d := Describe(withStatus(pendingReservation(time.Minute), StatusInProgress), testNow)

	assert.False(t, d.Allows(ActionCancel))
	assert.True(t, d.Allows(ActionFinish))
}

func TestDescribe_ExpiredPending(t *testing.T) {
	r := pendingReservation(-time.Second)

	d := Describe(r, testNow)

	assert.Equal(t, DisplayExpiredPending, d.State)
	assert.False(t, d.Allows(ActionConfirm))
	assert.True(t, d.Allows(ActionCancel))
	assert.False(t, d.Terminal)
}

func TestDescribe_PendingWithoutDeadline(t *testing.T) {
	r := pendingReservation(time.Minute)
	r.ExpiresAt = nil

	assert.Equal(t, DisplayPending, Describe(r, testNow).State)
}

func TestDescribe_UnknownStatus(t *testing.T) {
	r := pendingReservation(time.Minute)
	r.Status = "EN_REVISION"

	d := Describe(r, testNow)
	pending := Describe(pendingReservation(time.Minute), testNow)

	assert.Equal(t, DisplayUnknown, d.State)
	assert.True(t, d.Unrecognized)
	assert.Equal(t, pending.BannerColor, d.BannerColor)
	assert.Equal(t, pending.Instructions, d.Instructions)
	assert.Empty(t, d.AllowedActions)
}

func TestDisplayStateString(t *testing.T) {
	assert.Equal(t, "expired_pending", DisplayExpiredPending.String())
	assert.Equal(t, "unknown", DisplayUnknown.String())
}
