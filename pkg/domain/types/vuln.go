package types

import "github.com/m-mizutani/goerr/v2"

// VulnID is the canonical identifier of a vulnerability, i.e. the CVE ID
// assigned by the feed. All dedup and assignment tracking is keyed by this
// type; free-text descriptions are never used as identifiers.
type VulnID string

// String returns the string representation of the vulnerability ID
func (id VulnID) String() string {
	return string(id)
}

// Validate checks if the vulnerability ID is non-empty
func (id VulnID) Validate() error {
	if id == "" {
		return goerr.New("vulnerability ID cannot be empty")
	}
	return nil
}
