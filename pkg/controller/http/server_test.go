package http_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	httpctrl "github.com/jowin03/Slack-NVD-Integration/pkg/controller/http"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/repository/memory"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/slack"
	"github.com/jowin03/Slack-NVD-Integration/pkg/usecase"
	"github.com/m-mizutani/gt"
	goslack "github.com/slack-go/slack"
)

const testAdminChannel = "C0ADMIN"

// mockSlackService records outbound messages and opened views
type mockSlackService struct {
	mu          sync.Mutex
	users       []*slack.User
	posted      map[string]int
	openedViews []goslack.ModalViewRequest
}

func newMockSlackService() *mockSlackService {
	return &mockSlackService{
		users: []*slack.User{
			{ID: "U001", Name: "alice", RealName: "Alice Anderson"},
			{ID: "U002", Name: "bob", RealName: "Bob Brown"},
		},
		posted: map[string]int{},
	}
}

func (m *mockSlackService) ListUsers(ctx context.Context) ([]*slack.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*slack.User{}, m.users...), nil
}

func (m *mockSlackService) PostMessage(ctx context.Context, channelID string, blocks []goslack.Block, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted[channelID]++
	return "1700000000.000100", nil
}

func (m *mockSlackService) OpenView(ctx context.Context, triggerID string, view goslack.ModalViewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openedViews = append(m.openedViews, view)
	return nil
}

func (m *mockSlackService) viewCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.openedViews)
}

func (m *mockSlackService) postedTo(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[channel]
}

type fixture struct {
	repo   *memory.Memory
	mock   *mockSlackService
	uc     *usecase.UseCases
	server *httpctrl.Server
}

func newFixture(t *testing.T, opts ...httpctrl.Options) *fixture {
	t.Helper()
	repo := memory.New()
	mock := newMockSlackService()
	n := gt.R1(notifier.New(mock, testAdminChannel)).NoError(t)
	uc := usecase.New(repo, mock, n)
	handler := httpctrl.NewSlackInteractionHandler(uc.Interaction)
	server := gt.R1(httpctrl.New(handler, opts...)).NoError(t)
	return &fixture{repo: repo, mock: mock, uc: uc, server: server}
}

func (f *fixture) dispatch(t *testing.T, id string) types.VulnID {
	t.Helper()
	v := &model.Vulnerability{
		ID:          types.VulnID(id),
		Description: "remote code execution",
		Published:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	created := gt.R1(f.uc.Dispatch.HandleNewVulnerability(context.Background(), v)).NoError(t)
	gt.Bool(t, created).True()
	return v.ID
}

// waitFor polls until cond holds; interaction handlers ack before the
// workflow runs in the background
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func postForm(server *httpctrl.Server, payload string) *httptest.ResponseRecorder {
	form := url.Values{"payload": {payload}}
	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func signedRequest(secret, body string, ts time.Time) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	timestamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":" + body))

	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestSlackSignatureVerification(t *testing.T) {
	const secret = "test-signing-secret"
	body := url.Values{"payload": {`{"type":"block_actions"}`}}.Encode()

	t.Run("valid signature passes", func(t *testing.T) {
		f := newFixture(t, httpctrl.WithSigningSecret(secret))
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, signedRequest(secret, body, time.Now()))
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		f := newFixture(t, httpctrl.WithSigningSecret(secret))
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, signedRequest("other-secret", body, time.Now()))
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("stale timestamp is rejected", func(t *testing.T) {
		f := newFixture(t, httpctrl.WithSigningSecret(secret))
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, signedRequest(secret, body, time.Now().Add(-10*time.Minute)))
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("future timestamp is rejected", func(t *testing.T) {
		f := newFixture(t, httpctrl.WithSigningSecret(secret))
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, signedRequest(secret, body, time.Now().Add(10*time.Minute)))
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("missing headers are rejected", func(t *testing.T) {
		f := newFixture(t, httpctrl.WithSigningSecret(secret))
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains(`"status":"ok"`)
}

func TestSlackInteractionHandler(t *testing.T) {
	t.Run("assignment button opens the form", func(t *testing.T) {
		f := newFixture(t)
		id := f.dispatch(t, "CVE-2025-1001")

		callback := goslack.InteractionCallback{
			Type:      goslack.InteractionTypeBlockActions,
			TriggerID: "trigger-1",
			User:      goslack.User{ID: "UADMIN"},
			ActionCallback: goslack.ActionCallbacks{
				BlockActions: []*goslack.BlockAction{
					{ActionID: notifier.ActionIDOpenPrompt, Value: string(id)},
				},
			},
		}
		payload := gt.R1(json.Marshal(callback)).NoError(t)

		rec := postForm(f.server, string(payload))
		gt.Value(t, rec.Code).Equal(http.StatusOK)

		waitFor(t, func() bool { return f.mock.viewCount() == 1 })
		waitFor(t, func() bool {
			r, err := f.repo.Dispatch().Get(context.Background(), id)
			return err == nil && r.Status == types.DispatchStatusPromptOpen
		})
	})

	t.Run("form submission assigns and notifies recipients", func(t *testing.T) {
		f := newFixture(t)
		id := f.dispatch(t, "CVE-2025-1002")

		payload := `{
			"type": "view_submission",
			"user": {"id": "UADMIN"},
			"view": {
				"callback_id": "` + notifier.CallbackIDAssignmentModal + `",
				"private_metadata": "` + string(id) + `",
				"state": {
					"values": {
						"` + notifier.BlockIDAssignees + `": {
							"` + notifier.ActionIDSelectedAssignees + `": {
								"type": "multi_static_select",
								"selected_options": [{"value": "U001"}, {"value": "U002"}]
							}
						},
						"` + notifier.BlockIDNote + `": {
							"` + notifier.ActionIDNoteInput + `": {
								"type": "plain_text_input",
								"value": "patch now"
							}
						}
					}
				}
			}
		}`

		rec := postForm(f.server, payload)
		gt.Value(t, rec.Code).Equal(http.StatusOK)

		waitFor(t, func() bool {
			r, err := f.repo.Dispatch().Get(context.Background(), id)
			return err == nil && r.Status == types.DispatchStatusAssigned
		})

		rec2, err := f.repo.Dispatch().Get(context.Background(), id)
		gt.NoError(t, err).Required()
		gt.Number(t, len(rec2.Assignees)).Equal(2)
		gt.Value(t, rec2.Note).Equal("patch now")
		gt.Number(t, f.mock.postedTo("U001")).Equal(1)
		gt.Number(t, f.mock.postedTo("U002")).Equal(1)
	})

	t.Run("confirm button closes the record", func(t *testing.T) {
		f := newFixture(t)
		id := f.dispatch(t, "CVE-2025-1003")
		gt.NoError(t, f.uc.Interaction.SubmitAssignment(context.Background(), id, []types.UserID{"U001"}, ""))

		callback := goslack.InteractionCallback{
			Type: goslack.InteractionTypeBlockActions,
			User: goslack.User{ID: "U001"},
			ActionCallback: goslack.ActionCallbacks{
				BlockActions: []*goslack.BlockAction{
					{ActionID: notifier.ActionIDConfirmResolution, Value: string(id)},
				},
			},
		}
		payload := gt.R1(json.Marshal(callback)).NoError(t)

		rec := postForm(f.server, string(payload))
		gt.Value(t, rec.Code).Equal(http.StatusOK)

		waitFor(t, func() bool {
			r, err := f.repo.Dispatch().Get(context.Background(), id)
			return err == nil && r.Status == types.DispatchStatusConfirmed
		})

		r := gt.R1(f.repo.Dispatch().Get(context.Background(), id)).NoError(t)
		gt.Value(t, r.ConfirmedBy).Equal(types.UserID("U001"))
	})

	t.Run("unknown action is acknowledged and ignored", func(t *testing.T) {
		f := newFixture(t)

		callback := goslack.InteractionCallback{
			Type: goslack.InteractionTypeBlockActions,
			ActionCallback: goslack.ActionCallbacks{
				BlockActions: []*goslack.BlockAction{
					{ActionID: "something_else", Value: "whatever"},
				},
			},
		}
		payload := gt.R1(json.Marshal(callback)).NoError(t)

		rec := postForm(f.server, string(payload))
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})

	t.Run("url verification challenge is echoed", func(t *testing.T) {
		f := newFixture(t)

		body := `{"type":"url_verification","challenge":"c0ffee","token":"tok"}`
		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, rec.Body.String()).Equal("c0ffee")
	})

	t.Run("missing payload field", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader("other=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/interaction", strings.NewReader("<xml/>"))
		req.Header.Set("Content-Type", "text/xml")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusUnsupportedMediaType)
	})

	t.Run("malformed payload", func(t *testing.T) {
		f := newFixture(t)

		rec := postForm(f.server, "{not json")
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})
}
