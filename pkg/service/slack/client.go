package slack

import (
	"context"
	"errors"
	"time"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const (
	// DefaultMaxRateLimitRetries caps consecutive rate-limit waits during
	// directory listing before the call fails
	DefaultMaxRateLimitRetries = 5
	// userPageLimit is the page size requested from users.list
	userPageLimit = 200
	// baseBackoff is the fallback wait when the platform does not signal
	// a retry delay; it doubles per consecutive retry
	baseBackoff = time.Second
)

// client implements Service interface
type client struct {
	api                 *slack.Client
	apiURL              string
	maxRateLimitRetries int
}

// Option is a functional option for client configuration
type Option func(*client)

// WithMaxRateLimitRetries overrides the rate-limit retry cap
func WithMaxRateLimitRetries(n int) Option {
	return func(c *client) {
		c.maxRateLimitRetries = n
	}
}

// WithAPIURL overrides the Slack API base URL (for testing). The bot
// token is kept regardless of option order.
func WithAPIURL(url string) Option {
	return func(c *client) {
		c.apiURL = url
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := &client{
		maxRateLimitRetries: DefaultMaxRateLimitRetries,
	}
	for _, opt := range opts {
		opt(c)
	}

	var apiOpts []slack.Option
	if c.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(c.apiURL))
	}
	c.api = slack.New(token, apiOpts...)

	return c, nil
}

// ListUsers retrieves all eligible recipients, resuming pagination from
// the same cursor after each rate-limit wait. Retries are bounded; on
// exhaustion or any other API error the partial result is discarded.
func (c *client) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	retries := 0

	p := c.api.GetUsersPaginated(slack.GetUsersOptionLimit(userPageLimit))
	for {
		var err error
		p, err = p.Next(ctx)
		if err == nil {
			for i := range p.Users {
				if u := toEligibleUser(&p.Users[i]); u != nil {
					users = append(users, u)
				}
			}
			retries = 0
			continue
		}

		if p.Done(err) {
			break
		}

		var rle *slack.RateLimitedError
		if errors.As(err, &rle) {
			retries++
			if retries > c.maxRateLimitRetries {
				return nil, goerr.Wrap(ErrDirectoryUnavailable, "rate limit retries exhausted",
					goerr.V("retries", retries-1))
			}

			wait := rle.RetryAfter
			if wait <= 0 {
				wait = baseBackoff << (retries - 1)
			}
			logging.From(ctx).Warn("rate limited while listing users",
				"wait", wait.String(), "attempt", retries)

			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "cancelled while waiting out rate limit")
			case <-time.After(wait):
			}
			continue
		}

		return nil, goerr.Wrap(ErrDirectoryUnavailable, "failed to list users",
			goerr.V("cause", err.Error()))
	}

	return users, nil
}

// toEligibleUser converts a platform user, returning nil for automated
// or deleted accounts
func toEligibleUser(u *slack.User) *User {
	if u.Deleted || u.IsBot || u.ID == "USLACKBOT" {
		return nil
	}
	return &User{
		ID:       types.UserID(u.ID),
		Name:     u.Name,
		RealName: u.RealName,
	}
}

// PostMessage posts a Block Kit message and returns its timestamp
func (c *client) PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post message", goerr.V("channel", channelID))
	}
	return ts, nil
}

// OpenView opens a modal for the given interaction trigger
func (c *client) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return goerr.Wrap(err, "failed to open view", goerr.V("trigger_id", triggerID))
	}
	return nil
}
