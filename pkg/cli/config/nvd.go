package config

import (
	"log/slog"
	"time"

	"github.com/jowin03/Slack-NVD-Integration/pkg/service/nvd"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
)

type NVD struct {
	baseURL   string
	apiKey    string
	schedule  string
	pageSize  int
	pageDelay time.Duration
}

func (x *NVD) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "nvd-base-url",
			Usage:       "NVD CVE API base URL",
			Category:    "NVD",
			Value:       nvd.DefaultBaseURL,
			Sources:     cli.EnvVars("SLACK_NVD_NVD_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "nvd-api-key",
			Usage:       "NVD API key for the raised request rate",
			Category:    "NVD",
			Sources:     cli.EnvVars("SLACK_NVD_NVD_API_KEY"),
			Destination: &x.apiKey,
		},
		&cli.StringFlag{
			Name:        "poll-schedule",
			Usage:       "Cron schedule for feed passes (e.g. '@every 1m', '0 * * * *')",
			Category:    "NVD",
			Value:       "@every 1m",
			Sources:     cli.EnvVars("SLACK_NVD_POLL_SCHEDULE"),
			Destination: &x.schedule,
		},
		&cli.IntFlag{
			Name:        "poll-page-size",
			Usage:       "Feed entries requested per page",
			Category:    "NVD",
			Value:       200,
			Sources:     cli.EnvVars("SLACK_NVD_POLL_PAGE_SIZE"),
			Destination: &x.pageSize,
		},
		&cli.DurationFlag{
			Name:        "poll-page-delay",
			Usage:       "Delay between page requests within one feed pass",
			Category:    "NVD",
			Value:       6 * time.Second,
			Sources:     cli.EnvVars("SLACK_NVD_POLL_PAGE_DELAY"),
			Destination: &x.pageDelay,
		},
	}
}

func (x NVD) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base-url", x.baseURL),
		slog.Int("api-key.len", len(x.apiKey)),
		slog.String("schedule", x.schedule),
		slog.Int("page-size", x.pageSize),
		slog.Duration("page-delay", x.pageDelay),
	)
}

// Configure builds the NVD feed client from the flags
func (x *NVD) Configure() (*nvd.Client, error) {
	if x.pageSize <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "poll page size must be positive",
			goerr.V("page_size", x.pageSize))
	}
	if _, err := cron.ParseStandard(x.schedule); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid poll schedule",
			goerr.V(ScheduleKey, x.schedule))
	}

	var opts []nvd.Option
	if x.apiKey != "" {
		opts = append(opts, nvd.WithAPIKey(x.apiKey))
	}
	return nvd.New(x.baseURL, opts...)
}

// Schedule returns the cron schedule for feed passes
func (x *NVD) Schedule() string {
	return x.schedule
}

// PageSize returns the feed page size
func (x *NVD) PageSize() int {
	return x.pageSize
}

// PageDelay returns the delay between page requests
func (x *NVD) PageDelay() time.Duration {
	return x.pageDelay
}
