package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	ErrDispatchNotFound = goerr.New("dispatch record not found")
	ErrNoRecipients     = goerr.New("no recipients could be notified")
)

// Context keys for error values
const (
	VulnIDKey = "vuln_id"
	UserIDKey = "user_id"
)
