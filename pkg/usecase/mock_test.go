package usecase_test

import (
	"context"
	"sync"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/interfaces"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/slack"
	"github.com/jowin03/Slack-NVD-Integration/pkg/usecase"
	goslack "github.com/slack-go/slack"
)

func usecaseForTest(repo interfaces.Repository, mock *mockSlackService, n *notifier.Notifier) *usecase.UseCases {
	return usecase.New(repo, mock, n)
}

// mockSlackService is a mock implementation of slack.Service for testing
type mockSlackService struct {
	mu sync.Mutex

	users        []*slack.User
	listUsersErr error

	posted      []postedMessage
	postErr     map[string]error
	openedViews []goslack.ModalViewRequest
	openViewErr error
}

type postedMessage struct {
	channel  string
	blocks   []goslack.Block
	fallback string
}

func newMockSlackService() *mockSlackService {
	return &mockSlackService{postErr: map[string]error{}}
}

func (m *mockSlackService) ListUsers(ctx context.Context) ([]*slack.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listUsersErr != nil {
		return nil, m.listUsersErr
	}
	result := make([]*slack.User, len(m.users))
	for i, u := range m.users {
		userCopy := *u
		result[i] = &userCopy
	}
	return result, nil
}

func (m *mockSlackService) PostMessage(ctx context.Context, channelID string, blocks []goslack.Block, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.postErr[channelID]; ok {
		return "", err
	}
	m.posted = append(m.posted, postedMessage{channel: channelID, blocks: blocks, fallback: text})
	return "1700000000.000100", nil
}

func (m *mockSlackService) OpenView(ctx context.Context, triggerID string, view goslack.ModalViewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openViewErr != nil {
		return m.openViewErr
	}
	m.openedViews = append(m.openedViews, view)
	return nil
}

func (m *mockSlackService) postedTo(channel string) []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []postedMessage
	for _, p := range m.posted {
		if p.channel == channel {
			result = append(result, p)
		}
	}
	return result
}

// blockText flattens the section text of a message for assertions
func blockText(blocks []goslack.Block) string {
	var out string
	for _, b := range blocks {
		if s, ok := b.(*goslack.SectionBlock); ok && s.Text != nil {
			out += s.Text.Text + "\n"
		}
	}
	return out
}

func (m *mockSlackService) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}
