package types

import "fmt"

// DispatchStatus represents the assignment state of a dispatched
// vulnerability. Transitions are forward-only: a record never regresses
// to an earlier status.
type DispatchStatus string

const (
	// DispatchStatusDispatched means the admin channel has been notified
	// and no action has been taken yet
	DispatchStatusDispatched DispatchStatus = "dispatched"
	// DispatchStatusPromptOpen means the admin has requested the
	// assignment form
	DispatchStatusPromptOpen DispatchStatus = "prompt_open"
	// DispatchStatusAssigned means recipients have been notified and
	// confirmation is pending
	DispatchStatusAssigned DispatchStatus = "assigned"
	// DispatchStatusConfirmed is the terminal state: a recipient has
	// confirmed resolution
	DispatchStatusConfirmed DispatchStatus = "confirmed"
)

// AllDispatchStatuses returns all valid dispatch statuses
func AllDispatchStatuses() []DispatchStatus {
	return []DispatchStatus{
		DispatchStatusDispatched,
		DispatchStatusPromptOpen,
		DispatchStatusAssigned,
		DispatchStatusConfirmed,
	}
}

// IsValid checks if the dispatch status is valid
func (s DispatchStatus) IsValid() bool {
	switch s {
	case DispatchStatusDispatched,
		DispatchStatusPromptOpen,
		DispatchStatusAssigned,
		DispatchStatusConfirmed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for the terminal status
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusConfirmed
}

// CanAdvanceTo reports whether a transition from s to next is allowed.
// An assignment submission is accepted directly from "dispatched" because
// Slack delivers the form payload even when the prompt-open action was
// never observed by this process (state implicit in the payload).
func (s DispatchStatus) CanAdvanceTo(next DispatchStatus) bool {
	switch next {
	case DispatchStatusPromptOpen:
		return s == DispatchStatusDispatched
	case DispatchStatusAssigned:
		return s == DispatchStatusDispatched || s == DispatchStatusPromptOpen
	case DispatchStatusConfirmed:
		return s == DispatchStatusAssigned
	default:
		return false
	}
}

// String returns the string representation of the dispatch status
func (s DispatchStatus) String() string {
	return string(s)
}

// ParseDispatchStatus parses a string into a DispatchStatus
func ParseDispatchStatus(s string) (DispatchStatus, error) {
	status := DispatchStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid dispatch status: %s", s)
	}
	return status, nil
}
