package txtracker

import "github.com/flowfolio/flowfolio/internal/ledger"

// Status is one lifecycle state of a tracked operation. The success path
// is strictly ordered; Error and Expired are terminal and reachable from
// any non-terminal state.
type Status int

const (
	StatusUnknown Status = iota
	StatusAwaitingApproval
	StatusPending
	StatusFinalized
	StatusExecuted
	StatusSealed
	StatusError
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusPending:
		return "pending"
	case StatusFinalized:
		return "finalized"
	case StatusExecuted:
		return "executed"
	case StatusSealed:
		return "sealed"
	case StatusError:
		return "error"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further state can follow s.
func (s Status) Terminal() bool {
	return s == StatusSealed || s == StatusError || s == StatusExpired
}

// statusFromCode maps a gateway status code to a lifecycle state. An
// unrecognized code means "still processing" and maps to no state change.
func statusFromCode(code string) (Status, bool) {
	switch code {
	case ledger.StatusCodePending:
		return StatusPending, true
	case ledger.StatusCodeFinalized:
		return StatusFinalized, true
	case ledger.StatusCodeExecuted:
		return StatusExecuted, true
	case ledger.StatusCodeSealed:
		return StatusSealed, true
	case ledger.StatusCodeExpired:
		return StatusExpired, true
	default:
		return StatusUnknown, false
	}
}
