package config

import (
	"log/slog"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/slack"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Slack struct {
	botToken            string
	signingSecret       string
	adminChannel        string
	maxRateLimitRetries int
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token",
			Category:    "Slack",
			Sources:     cli.EnvVars("SLACK_NVD_SLACK_BOT_TOKEN"),
			Destination: &x.botToken,
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Sources:     cli.EnvVars("SLACK_NVD_SLACK_SIGNING_SECRET"),
			Destination: &x.signingSecret,
		},
		&cli.StringFlag{
			Name:        "slack-admin-channel",
			Usage:       "Channel ID that receives new vulnerability notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("SLACK_NVD_SLACK_ADMIN_CHANNEL"),
			Destination: &x.adminChannel,
		},
		&cli.IntFlag{
			Name:        "slack-rate-limit-retries",
			Usage:       "Max retries when the Slack API reports rate limiting",
			Category:    "Slack",
			Value:       slack.DefaultMaxRateLimitRetries,
			Sources:     cli.EnvVars("SLACK_NVD_SLACK_RATE_LIMIT_RETRIES"),
			Destination: &x.maxRateLimitRetries,
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
		slog.String("admin-channel", x.adminChannel),
		slog.Int("rate-limit-retries", x.maxRateLimitRetries),
	)
}

// Configure builds the Slack service from the flags
func (x *Slack) Configure() (slack.Service, error) {
	if x.botToken == "" {
		return nil, goerr.Wrap(ErrMissingToken, "set --slack-bot-token")
	}
	if x.adminChannel == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "set --slack-admin-channel")
	}

	return slack.New(x.botToken,
		slack.WithMaxRateLimitRetries(x.maxRateLimitRetries),
	)
}

// AdminChannel returns the admin notification channel ID
func (x *Slack) AdminChannel() types.ChannelID {
	return types.ChannelID(x.adminChannel)
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// IsWebhookConfigured checks if signature verification can be enabled
func (x *Slack) IsWebhookConfigured() bool {
	return x.signingSecret != ""
}
