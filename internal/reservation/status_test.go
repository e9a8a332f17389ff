package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		parsed, ok := ParseStatus(string(s))
		assert.True(t, ok, s)
		assert.Equal(t, s, parsed)
	}

	parsed, ok := ParseStatus("EN_REVISION")
	assert.False(t, ok)
	assert.Equal(t, StatusUnknown, parsed)
}

func TestCanCancel(t *testing.T) {
	expected := map[Status]bool{
		StatusPending:    true,
		StatusConfirmed:  true,
		StatusInProgress: false,
		StatusFinished:   false,
		StatusCancelled:  false,
		StatusExpired:    false,
		StatusUnknown:    false,
	}

	for s, want := range expected {
		assert.Equal(t, want, CanCancel(s), s)
		assert.Equal(t, want, Allows(s, ActionCancel), s)
	}
}

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		status   Status
		expected []Action
	}{
		{StatusPending, []Action{ActionCancel, ActionConfirm}},
		{StatusConfirmed, []Action{ActionCancel, ActionFinish}},
		{StatusInProgress, []Action{ActionFinish}},
		{StatusFinished, []Action{}},
		{StatusCancelled, []Action{}},
		{StatusExpired, []Action{}},
		{StatusUnknown, []Action{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, AllowedActions(tt.status))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusInProgress.Active())
	assert.False(t, StatusExpired.Active())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}
