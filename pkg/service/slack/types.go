package slack

import (
	"context"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// ErrDirectoryUnavailable indicates the workspace member directory could
// not be listed: either a non-rate-limit API failure, or rate-limit
// retries were exhausted. Partial results are never returned.
var ErrDirectoryUnavailable = goerr.New("recipient directory unavailable")

// Service provides the messaging platform primitives used by the
// notifier and the interaction workflow
type Service interface {
	// ListUsers retrieves all eligible human recipients in the
	// workspace. Deleted accounts, bots, and the built-in slackbot are
	// filtered out. Rate-limit responses are retried with the signaled
	// wait, resuming from the same pagination cursor, up to a bounded
	// number of attempts.
	ListUsers(ctx context.Context) ([]*User, error)

	// PostMessage posts a Block Kit message to a channel or user and
	// returns the message timestamp. The text parameter is used as a
	// fallback for notifications.
	PostMessage(ctx context.Context, channelID string, blocks []slack.Block, text string) (string, error)

	// OpenView opens a modal view in response to an interaction trigger
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
}

// User represents an eligible Slack user
type User struct {
	ID       types.UserID
	Name     string
	RealName string
}

// DisplayName returns the best human-readable name for selection prompts
func (u *User) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}
