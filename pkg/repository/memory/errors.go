package memory

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for the memory repository
var (
	ErrNotFound          = goerr.New("record not found")
	ErrInvalidTransition = goerr.New("invalid dispatch status transition")
)
