package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrInvalidConfig = goerr.New("invalid configuration")
	ErrMissingToken  = goerr.New("bot token is required")
)

// Context keys for error values
const (
	ChannelKey  = "channel"
	ScheduleKey = "schedule"
)
