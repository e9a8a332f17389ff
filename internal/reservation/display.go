package reservation

import (
	"log/slog"
	"time"

	"bikemetro/models"
)

// DisplayState is the closed set of presentation states. It extends the
// server statuses with ExpiredPending, shown when the confirmation deadline
// passed locally but the server still reports PENDIENTE.
type DisplayState int

const (
	DisplayUnknown DisplayState = iota
	DisplayPending
	DisplayConfirmed
	DisplayInProgress
	DisplayFinished
	DisplayCancelled
	DisplayExpired
	DisplayExpiredPending
)

func (d DisplayState) String() string {
	switch d {
	case DisplayPending:
		return "pending"
	case DisplayConfirmed:
		return "confirmed"
	case DisplayInProgress:
		return "in_progress"
	case DisplayFinished:
		return "finished"
	case DisplayCancelled:
		return "cancelled"
	case DisplayExpired:
		return "expired"
	case DisplayExpiredPending:
		return "expired_pending"
	default:
		return "unknown"
	}
}

// Descriptor is everything a view needs to render a reservation banner.
type Descriptor struct {
	State          DisplayState
	BannerColor    string
	BannerText     string
	Instructions   string
	AllowedActions []Action
	Terminal       bool

	// Unrecognized is set when the server sent a status this client does not know.
	Unrecognized bool
}

// Allows reports whether the descriptor enables a.
func (d Descriptor) Allows(a Action) bool {
	for _, allowed := range d.AllowedActions {
		if allowed == a {
			return true
		}
	}
	return false
}

// StateOf derives the display state from a status and the local deadline check.
func StateOf(s Status, expiresAt *time.Time, now time.Time) DisplayState {
	switch s {
	case StatusPending:
		if expiresAt != nil && Remaining(*expiresAt, now) <= 0 {
			return DisplayExpiredPending
		}
		return DisplayPending
	case StatusConfirmed:
		return DisplayConfirmed
	case StatusInProgress:
		return DisplayInProgress
	case StatusFinished:
		return DisplayFinished
	case StatusCancelled:
		return DisplayCancelled
	case StatusExpired:
		return DisplayExpired
	default:
		return DisplayUnknown
	}
}

// Describe maps a reservation snapshot onto its banner. It is a pure
// function of the snapshot and now, apart from a warning log for an
// unrecognized status.
func Describe(r models.Reservation, now time.Time) Descriptor {
	s, ok := ParseStatus(r.Status)
	if !ok {
		slog.Warn("unrecognized reservation status", "status", r.Status, "reservation_id", r.ID.String())
	}
	return describe(StateOf(s, r.ExpiresAt, now))
}

func describe(state DisplayState) Descriptor {
	switch state {
	case DisplayPending:
		return Descriptor{
			State:          state,
			BannerColor:    "#F59E0B",
			BannerText:     "Pending",
			Instructions:   "Confirm your arrival by scanning the entry QR code.",
			AllowedActions: AllowedActions(StatusPending),
		}

	case DisplayExpiredPending:
		// Confirmation is no longer possible; cancel stays available until
		// the server reconciles the reservation to EXPIRADA.
		return Descriptor{
			State:          state,
			BannerColor:    "#9CA3AF",
			BannerText:     "Expired",
			Instructions:   "The time to confirm your arrival has run out.",
			AllowedActions: []Action{ActionCancel},
		}

	case DisplayConfirmed:
		return Descriptor{
			State:          state,
			BannerColor:    "#3B82F6",
			BannerText:     "Confirmed",
			Instructions:   "Reservation confirmed. Scan the exit QR code when you leave.",
			AllowedActions: AllowedActions(StatusConfirmed),
		}

	case DisplayInProgress:
		return Descriptor{
			State:          state,
			BannerColor:    "#10B981",
			BannerText:     "In Progress",
			Instructions:   "Bicycle parked. Scan the exit QR code to finish.",
			AllowedActions: AllowedActions(StatusInProgress),
		}

	case DisplayFinished:
		return terminal(state, "#6B7280", "Finished", "This reservation has finished.")

	case DisplayCancelled:
		return terminal(state, "#EF4444", "Cancelled", "This reservation was cancelled.")

	case DisplayExpired:
		return terminal(state, "#9CA3AF", "Expired", "This reservation expired before arrival was confirmed.")

	default:
		// Unknown statuses keep the pending presentation but enable nothing.
		d := describe(DisplayPending)
		d.State = DisplayUnknown
		d.AllowedActions = []Action{}
		d.Unrecognized = true
		return d
	}
}

func terminal(state DisplayState, color, text, instructions string) Descriptor {
	return Descriptor{
		State:          state,
		BannerColor:    color,
		BannerText:     text,
		Instructions:   instructions,
		AllowedActions: []Action{},
		Terminal:       true,
	}
}
