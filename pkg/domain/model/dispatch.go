package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
)

// DispatchRecordID identifies a single dispatch record
type DispatchRecordID string

// NewDispatchRecordID generates a new dispatch record ID
func NewDispatchRecordID() DispatchRecordID {
	return DispatchRecordID(uuid.New().String())
}

// DispatchRecord tracks one vulnerability the admin channel has been
// notified about, from dispatch through assignment to confirmation.
// There is at most one record per VulnID; the dispatch repository is the
// single source of truth for "have we already told the admin about this".
type DispatchRecord struct {
	ID          DispatchRecordID     `json:"id"`
	VulnID      types.VulnID         `json:"vuln_id"`
	Description string               `json:"description"`
	Status      types.DispatchStatus `json:"status"`

	Assignees   []types.UserID `json:"assignees,omitempty"`
	Note        string         `json:"note,omitempty"`
	ConfirmedBy types.UserID   `json:"confirmed_by,omitempty"`

	DispatchedAt time.Time  `json:"dispatched_at"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}

// IsConfirmed reports whether the record reached its terminal state
func (r *DispatchRecord) IsConfirmed() bool {
	return r.Status.IsTerminal()
}
