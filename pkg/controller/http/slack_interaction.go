package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/usecase"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/async"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/errutil"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// SlackInteractionHandler handles Slack interactive component payloads:
// the admin's assignment button, the assignment form submission, and the
// recipient's resolution confirmation.
type SlackInteractionHandler struct {
	interactionUC *usecase.InteractionUseCase
}

// NewSlackInteractionHandler creates a new Slack interaction handler
func NewSlackInteractionHandler(interactionUC *usecase.InteractionUseCase) *SlackInteractionHandler {
	return &SlackInteractionHandler{
		interactionUC: interactionUC,
	}
}

// ServeHTTP handles Slack interaction webhook requests. The payload is
// acknowledged with 200 before the workflow runs; Slack requires the ack
// within 3 seconds.
func (h *SlackInteractionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := extractPayload(r)
	if err != nil {
		var httpErr *payloadError
		status := http.StatusBadRequest
		if errors.As(err, &httpErr) {
			status = httpErr.status
		}
		errutil.HandleHTTP(ctx, w, err, status)
		return
	}

	// Slack re-verifies the endpoint with a url_verification handshake
	if challenge := urlVerificationChallenge(payload); challenge != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, []byte(challenge))
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse interaction payload"), http.StatusBadRequest)
		return
	}

	// Ack first; the workflow continues in the background
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	safe.Write(ctx, w, []byte(`{"status":"ok"}`))

	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		h.handleBlockActions(ctx, &callback)

	case slack.InteractionTypeViewSubmission:
		h.handleViewSubmission(ctx, &callback)

	default:
		logging.From(ctx).Info("ignoring unsupported interaction type", "type", callback.Type)
	}
}

// handleBlockActions routes button clicks. The button value carries the
// vulnerability ID.
func (h *SlackInteractionHandler) handleBlockActions(ctx context.Context, callback *slack.InteractionCallback) {
	for _, action := range callback.ActionCallback.BlockActions {
		switch action.ActionID {
		case notifier.ActionIDOpenPrompt:
			vulnID := types.VulnID(action.Value)
			triggerID := callback.TriggerID
			async.Dispatch(ctx, func(ctx context.Context) error {
				if err := h.interactionUC.OpenAssignmentPrompt(ctx, vulnID, triggerID); err != nil {
					return goerr.Wrap(err, "failed to open assignment prompt",
						goerr.V("vuln_id", vulnID))
				}
				return nil
			})

		case notifier.ActionIDConfirmResolution:
			vulnID := types.VulnID(action.Value)
			userID := types.UserID(callback.User.ID)
			async.Dispatch(ctx, func(ctx context.Context) error {
				if err := h.interactionUC.ConfirmResolution(ctx, vulnID, userID); err != nil {
					return goerr.Wrap(err, "failed to confirm resolution",
						goerr.V("vuln_id", vulnID), goerr.V("user_id", userID))
				}
				return nil
			})

		default:
			logging.From(ctx).Info("ignoring unknown block action", "action_id", action.ActionID)
		}
	}
}

// handleViewSubmission processes the assignment form
func (h *SlackInteractionHandler) handleViewSubmission(ctx context.Context, callback *slack.InteractionCallback) {
	if callback.View.CallbackID != notifier.CallbackIDAssignmentModal {
		logging.From(ctx).Info("ignoring unknown view submission", "callback_id", callback.View.CallbackID)
		return
	}

	vulnID := types.VulnID(callback.View.PrivateMetadata)
	assignees, note := parseAssignmentForm(&callback.View)

	async.Dispatch(ctx, func(ctx context.Context) error {
		if err := h.interactionUC.SubmitAssignment(ctx, vulnID, assignees, note); err != nil {
			return goerr.Wrap(err, "failed to submit assignment", goerr.V("vuln_id", vulnID))
		}
		return nil
	})
}

// parseAssignmentForm pulls the selected recipients and the optional
// note out of the modal's view state
func parseAssignmentForm(view *slack.View) ([]types.UserID, string) {
	var assignees []types.UserID
	var note string

	if view.State == nil {
		return nil, ""
	}

	if block, ok := view.State.Values[notifier.BlockIDAssignees]; ok {
		if sel, ok := block[notifier.ActionIDSelectedAssignees]; ok {
			for _, opt := range sel.SelectedOptions {
				assignees = append(assignees, types.UserID(opt.Value))
			}
		}
	}

	if block, ok := view.State.Values[notifier.BlockIDNote]; ok {
		if input, ok := block[notifier.ActionIDNoteInput]; ok {
			note = input.Value
		}
	}

	return assignees, note
}

// payloadError carries the HTTP status an extraction failure maps to
type payloadError struct {
	status int
	msg    string
}

func (e *payloadError) Error() string { return e.msg }

// extractPayload returns the interaction JSON from the request. Slack
// sends interactions form-encoded with a "payload" field; a raw JSON
// body is accepted as well. Anything else is rejected.
func extractPayload(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		payload := r.FormValue("payload")
		if payload == "" {
			return nil, &payloadError{
				status: http.StatusBadRequest,
				msg:    "missing payload field in interaction request",
			}
		}
		return []byte(payload), nil

	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read request body")
		}
		if len(body) == 0 {
			return nil, &payloadError{
				status: http.StatusBadRequest,
				msg:    "empty interaction request body",
			}
		}
		return body, nil

	default:
		return nil, &payloadError{
			status: http.StatusUnsupportedMediaType,
			msg:    "unsupported content type: " + contentType,
		}
	}
}

// urlVerificationChallenge returns the challenge string when the payload
// is a url_verification handshake, empty otherwise
func urlVerificationChallenge(payload []byte) string {
	var probe struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	if probe.Type != "url_verification" {
		return ""
	}
	return probe.Challenge
}
