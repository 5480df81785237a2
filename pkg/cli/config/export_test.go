package config

import "time"

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, signingSecret, adminChannel string, maxRateLimitRetries int) *Slack {
	return &Slack{
		botToken:            botToken,
		signingSecret:       signingSecret,
		adminChannel:        adminChannel,
		maxRateLimitRetries: maxRateLimitRetries,
	}
}

// NewNVDForTest creates an NVD config for testing purposes
func NewNVDForTest(baseURL, apiKey, schedule string, pageSize int, pageDelay time.Duration) *NVD {
	return &NVD{
		baseURL:   baseURL,
		apiKey:    apiKey,
		schedule:  schedule,
		pageSize:  pageSize,
		pageDelay: pageDelay,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
