package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/slack"
	"github.com/m-mizutani/goerr/v2"
	goslack "github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"
)

// Slack interaction identifiers for the assignment workflow. The
// interaction router dispatches on these values.
const (
	// ActionIDOpenPrompt is the admin-channel button that requests the
	// assignment form
	ActionIDOpenPrompt = "vuln_assign_open"
	// ActionIDConfirmResolution is the recipient-side button that
	// confirms resolution
	ActionIDConfirmResolution = "vuln_confirm"
	// CallbackIDAssignmentModal identifies the assignment form submission
	CallbackIDAssignmentModal = "vuln_assignment_modal"

	// BlockIDAssignees / ActionIDSelectedAssignees locate the recipient
	// multi-select in the form state
	BlockIDAssignees          = "assignee_selection_block"
	ActionIDSelectedAssignees = "selected_assignees"
	// BlockIDNote / ActionIDNoteInput locate the free-text note
	BlockIDNote       = "note_block"
	ActionIDNoteInput = "note_input"

	adminActionBlockID   = "vuln_action_buttons"
	confirmActionBlockID = "vuln_confirm_buttons"
)

// ErrNotificationFailed indicates a message could not be delivered to
// the messaging platform. Callers must not advance workflow state when
// they receive it.
var ErrNotificationFailed = goerr.New("notification delivery failed")

// Notifier composes and sends the workflow's structured messages
type Notifier struct {
	slackSvc     slack.Service
	adminChannel types.ChannelID
}

// New creates a Notifier posting admin notifications to the given channel
func New(slackSvc slack.Service, adminChannel types.ChannelID) (*Notifier, error) {
	if slackSvc == nil {
		return nil, goerr.New("slack service is required")
	}
	if adminChannel == "" {
		return nil, goerr.New("admin channel is required")
	}

	return &Notifier{
		slackSvc:     slackSvc,
		adminChannel: adminChannel,
	}, nil
}

// NotifyAdminOfVulnerability posts a new-vulnerability message to the
// admin channel with a button that opens the assignment form
func (n *Notifier) NotifyAdminOfVulnerability(ctx context.Context, v *model.Vulnerability) error {
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType,
				fmt.Sprintf("*New vulnerability found: %s*\n\n%s", v.ID, v.Description), false, false),
			nil, nil,
		),
		goslack.NewActionBlock(adminActionBlockID,
			goslack.NewButtonBlockElement(ActionIDOpenPrompt, v.ID.String(),
				goslack.NewTextBlockObject(goslack.PlainTextType, "Select Assignees", false, false)),
		),
	}

	fallback := fmt.Sprintf("New vulnerability found: %s", v.ID)
	if _, err := n.slackSvc.PostMessage(ctx, n.adminChannel.String(), blocks, fallback); err != nil {
		return goerr.Wrap(ErrNotificationFailed, "failed to notify admin of vulnerability",
			goerr.V("vuln_id", v.ID), goerr.V("cause", err.Error()))
	}
	return nil
}

// PromptAssignment opens the assignment form scoped to the triggering
// interaction. The recipient selection only offers the given candidates.
func (n *Notifier) PromptAssignment(ctx context.Context, triggerID string, rec *model.DispatchRecord, candidates []*slack.User) error {
	options := make([]*goslack.OptionBlockObject, 0, len(candidates))
	for _, u := range candidates {
		options = append(options, goslack.NewOptionBlockObject(
			u.ID.String(),
			goslack.NewTextBlockObject(goslack.PlainTextType, u.DisplayName(), false, false),
			nil,
		))
	}

	selectElement := goslack.NewOptionsMultiSelectBlockElement(
		goslack.MultiOptTypeStatic,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Select recipients", false, false),
		ActionIDSelectedAssignees,
		options...,
	)

	noteElement := goslack.NewPlainTextInputBlockElement(
		goslack.NewTextBlockObject(goslack.PlainTextType, "Provide details about the vulnerability", false, false),
		ActionIDNoteInput,
	)
	noteElement.Multiline = true

	noteBlock := goslack.NewInputBlock(BlockIDNote,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Description", false, false),
		nil, noteElement)
	noteBlock.Optional = true

	view := goslack.ModalViewRequest{
		Type:            goslack.VTModal,
		CallbackID:      CallbackIDAssignmentModal,
		PrivateMetadata: rec.VulnID.String(),
		Title:           goslack.NewTextBlockObject(goslack.PlainTextType, "Assign Vulnerability", false, false),
		Submit:          goslack.NewTextBlockObject(goslack.PlainTextType, "Submit", false, false),
		Close:           goslack.NewTextBlockObject(goslack.PlainTextType, "Cancel", false, false),
		Blocks: goslack.Blocks{
			BlockSet: []goslack.Block{
				goslack.NewSectionBlock(
					goslack.NewTextBlockObject(goslack.MarkdownType,
						fmt.Sprintf("*%s*\n%s", rec.VulnID, rec.Description), false, false),
					nil, nil,
				),
				goslack.NewInputBlock(BlockIDAssignees,
					goslack.NewTextBlockObject(goslack.PlainTextType, "Who should take care of this?", false, false),
					nil, selectElement),
				noteBlock,
			},
		},
	}

	if err := n.slackSvc.OpenView(ctx, triggerID, view); err != nil {
		return goerr.Wrap(ErrNotificationFailed, "failed to open assignment form",
			goerr.V("vuln_id", rec.VulnID), goerr.V("cause", err.Error()))
	}
	return nil
}

// NotifyRecipients sends the assignment message to each selected
// recipient in parallel. It returns the recipients that were actually
// reached; the error reports any failed delivery.
func (n *Notifier) NotifyRecipients(ctx context.Context, rec *model.DispatchRecord, recipients []types.UserID, note string) ([]types.UserID, error) {
	detail := note
	if detail == "" {
		detail = rec.Description
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType,
				fmt.Sprintf("*You have been assigned a vulnerability: %s*\n\n%s", rec.VulnID, detail), false, false),
			nil, nil,
		),
		goslack.NewActionBlock(confirmActionBlockID,
			goslack.NewButtonBlockElement(ActionIDConfirmResolution, rec.VulnID.String(),
				goslack.NewTextBlockObject(goslack.PlainTextType, "Mark Resolved", false, false)),
		),
	}
	fallback := fmt.Sprintf("You have been assigned a vulnerability: %s", rec.VulnID)

	var mu sync.Mutex
	var delivered []types.UserID

	g, gctx := errgroup.WithContext(ctx)
	for _, recipient := range recipients {
		g.Go(func() error {
			if _, err := n.slackSvc.PostMessage(gctx, recipient.String(), blocks, fallback); err != nil {
				return goerr.Wrap(ErrNotificationFailed, "failed to notify recipient",
					goerr.V("vuln_id", rec.VulnID), goerr.V("recipient", recipient),
					goerr.V("cause", err.Error()))
			}
			mu.Lock()
			delivered = append(delivered, recipient)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return delivered, err
}

// NotifyAdminOfAssignment posts a confirmation to the admin channel
// naming the recipients a vulnerability was forwarded to
func (n *Notifier) NotifyAdminOfAssignment(ctx context.Context, vulnID types.VulnID, assignees []types.UserID) error {
	mentions := ""
	for i, a := range assignees {
		if i > 0 {
			mentions += ", "
		}
		mentions += fmt.Sprintf("<@%s>", a)
	}

	text := fmt.Sprintf("Vulnerability %s forwarded to %s.", vulnID, mentions)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}

	if _, err := n.slackSvc.PostMessage(ctx, n.adminChannel.String(), blocks, text); err != nil {
		return goerr.Wrap(ErrNotificationFailed, "failed to notify admin of assignment",
			goerr.V("vuln_id", vulnID), goerr.V("cause", err.Error()))
	}
	return nil
}

// NotifyCompletion thanks the recipient for resolving the issue
func (n *Notifier) NotifyCompletion(ctx context.Context, userID types.UserID) error {
	text := "Thank you for resolving the issue!"
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}

	if _, err := n.slackSvc.PostMessage(ctx, userID.String(), blocks, text); err != nil {
		return goerr.Wrap(ErrNotificationFailed, "failed to send completion message",
			goerr.V("user_id", userID), goerr.V("cause", err.Error()))
	}
	return nil
}

// NotifyAdminOfCompletion informs the admin channel that a recipient
// resolved the vulnerability
func (n *Notifier) NotifyAdminOfCompletion(ctx context.Context, userID types.UserID, vulnID types.VulnID) error {
	text := fmt.Sprintf("<@%s> has resolved %s.", userID, vulnID)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}

	if _, err := n.slackSvc.PostMessage(ctx, n.adminChannel.String(), blocks, text); err != nil {
		return goerr.Wrap(ErrNotificationFailed, "failed to notify admin of completion",
			goerr.V("user_id", userID), goerr.V("vuln_id", vulnID), goerr.V("cause", err.Error()))
	}
	return nil
}
