package model

import (
	"time"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
)

// Vulnerability is a single record fetched from the vulnerability feed.
// Immutable once fetched.
type Vulnerability struct {
	ID          types.VulnID `json:"id"`
	Description string       `json:"description"`
	Published   time.Time    `json:"published"`
}

// Validate checks that the vulnerability carries a canonical identifier
func (v *Vulnerability) Validate() error {
	return v.ID.Validate()
}
