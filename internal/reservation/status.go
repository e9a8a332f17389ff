package reservation

// Status is the server-reported reservation status as it appears on the wire.
type Status string

const (
	StatusPending    Status = "PENDIENTE"
	StatusConfirmed  Status = "CONFIRMADA"
	StatusInProgress Status = "EN_CURSO"
	StatusFinished   Status = "FINALIZADA"
	StatusCancelled  Status = "CANCELADA"
	StatusExpired    Status = "EXPIRADA"

	// StatusUnknown marks a value this client does not recognize.
	StatusUnknown Status = ""
)

// Statuses lists every recognized status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusFinished,
	StatusCancelled,
	StatusExpired,
}

// ParseStatus maps a wire value onto a Status. Unrecognized values yield
// StatusUnknown and false.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusConfirmed, StatusInProgress,
		StatusFinished, StatusCancelled, StatusExpired:
		return s, true
	default:
		return StatusUnknown, false
	}
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Active matches the statuses served by the active reservations endpoint.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress:
		return true
	default:
		return false
	}
}

// Action is a user operation on a reservation.
type Action string

const (
	ActionCancel  Action = "cancel"
	ActionConfirm Action = "confirm"
	ActionFinish  Action = "finish"
)

// CanCancel is true exactly for PENDIENTE and CONFIRMADA.
func CanCancel(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

// AllowedActions lists the actions the server accepts for a status.
func AllowedActions(s Status) []Action {
	switch s {
	case StatusPending:
		return []Action{ActionCancel, ActionConfirm}
	case StatusConfirmed:
		return []Action{ActionCancel, ActionFinish}
	case StatusInProgress:
		return []Action{ActionFinish}
	default:
		return []Action{}
	}
}

// Allows reports whether a is one of the allowed actions for s.
func Allows(s Status, a Action) bool {
	for _, allowed := range AllowedActions(s) {
		if allowed == a {
			return true
		}
	}
	return false
}
