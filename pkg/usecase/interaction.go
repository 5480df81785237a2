package usecase

import (
	"context"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/interfaces"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/slack"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/errutil"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// InteractionUseCase drives the assignment state machine from inbound
// platform interactions. State only advances after the corresponding
// notification was confirmed delivered.
type InteractionUseCase struct {
	repo     interfaces.Repository
	slackSvc slack.Service
	notifier *notifier.Notifier
}

func NewInteractionUseCase(repo interfaces.Repository, slackSvc slack.Service, n *notifier.Notifier) *InteractionUseCase {
	return &InteractionUseCase{
		repo:     repo,
		slackSvc: slackSvc,
		notifier: n,
	}
}

// OpenAssignmentPrompt answers the admin's "Select Assignees" click by
// opening the assignment form populated with freshly listed eligible
// recipients.
func (uc *InteractionUseCase) OpenAssignmentPrompt(ctx context.Context, vulnID types.VulnID, triggerID string) error {
	rec, err := uc.repo.Dispatch().Get(ctx, vulnID)
	if err != nil {
		return goerr.Wrap(ErrDispatchNotFound, "no dispatch record for assignment prompt",
			goerr.V(VulnIDKey, vulnID), goerr.V("cause", err.Error()))
	}

	switch rec.Status {
	case types.DispatchStatusAssigned, types.DispatchStatusConfirmed:
		logging.From(ctx).Info("ignoring assignment prompt for settled vulnerability",
			"vuln_id", vulnID, "status", rec.Status)
		return nil
	}

	// The recipient list is fetched fresh for every prompt, never cached
	candidates, err := uc.slackSvc.ListUsers(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list eligible recipients", goerr.V(VulnIDKey, vulnID))
	}

	if err := uc.notifier.PromptAssignment(ctx, triggerID, rec, candidates); err != nil {
		return goerr.Wrap(err, "failed to open assignment prompt", goerr.V(VulnIDKey, vulnID))
	}

	if rec.Status == types.DispatchStatusDispatched {
		if _, err := uc.repo.Dispatch().MarkPromptOpen(ctx, vulnID); err != nil {
			return goerr.Wrap(err, "failed to record prompt open", goerr.V(VulnIDKey, vulnID))
		}
	}

	return nil
}

// SubmitAssignment handles the assignment form submission. An empty
// selection is a logged no-op; otherwise the selected recipients are
// notified and, for those actually reached, the record advances to
// assigned. A submission that arrives without an observed prompt-open is
// accepted as long as its payload is self-consistent.
func (uc *InteractionUseCase) SubmitAssignment(ctx context.Context, vulnID types.VulnID, assignees []types.UserID, note string) error {
	if len(assignees) == 0 {
		logging.From(ctx).Info("assignment submitted without recipients, ignoring", "vuln_id", vulnID)
		return nil
	}

	rec, err := uc.repo.Dispatch().Get(ctx, vulnID)
	if err != nil {
		return goerr.Wrap(ErrDispatchNotFound, "no dispatch record for assignment",
			goerr.V(VulnIDKey, vulnID), goerr.V("cause", err.Error()))
	}

	switch rec.Status {
	case types.DispatchStatusAssigned, types.DispatchStatusConfirmed:
		logging.From(ctx).Info("ignoring duplicate assignment submission",
			"vuln_id", vulnID, "status", rec.Status)
		return nil
	}

	delivered, err := uc.notifier.NotifyRecipients(ctx, rec, assignees, note)
	if len(delivered) == 0 {
		return goerr.Wrap(ErrNoRecipients, "assignment not recorded",
			goerr.V(VulnIDKey, vulnID), goerr.V("cause", err))
	}
	if err != nil {
		// Partial delivery: record only who actually got the message
		errutil.Log(ctx, err, "some recipients could not be notified")
	}

	if _, err := uc.repo.Dispatch().MarkAssigned(ctx, vulnID, delivered, note); err != nil {
		return goerr.Wrap(err, "failed to record assignment", goerr.V(VulnIDKey, vulnID))
	}

	// Best-effort admin feedback; the assignment itself already happened
	if err := uc.notifier.NotifyAdminOfAssignment(ctx, vulnID, delivered); err != nil {
		errutil.Log(ctx, err, "failed to post assignment summary to admin channel")
	}

	logging.From(ctx).Info("vulnerability assigned",
		"vuln_id", vulnID, "recipients", len(delivered))
	return nil
}

// ConfirmResolution handles a recipient's resolution confirmation:
// thank the recipient, inform the admin, then mark the record confirmed.
// The record stays assigned when either notification fails, so a second
// button press retries.
func (uc *InteractionUseCase) ConfirmResolution(ctx context.Context, vulnID types.VulnID, userID types.UserID) error {
	rec, err := uc.repo.Dispatch().Get(ctx, vulnID)
	if err != nil {
		return goerr.Wrap(ErrDispatchNotFound, "no dispatch record for confirmation",
			goerr.V(VulnIDKey, vulnID), goerr.V("cause", err.Error()))
	}

	if rec.Status != types.DispatchStatusAssigned {
		logging.From(ctx).Info("ignoring confirmation outside assigned state",
			"vuln_id", vulnID, "status", rec.Status, "user_id", userID)
		return nil
	}

	if err := uc.notifier.NotifyCompletion(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to acknowledge resolution",
			goerr.V(VulnIDKey, vulnID), goerr.V(UserIDKey, userID))
	}
	if err := uc.notifier.NotifyAdminOfCompletion(ctx, userID, vulnID); err != nil {
		return goerr.Wrap(err, "failed to inform admin of resolution",
			goerr.V(VulnIDKey, vulnID), goerr.V(UserIDKey, userID))
	}

	if _, err := uc.repo.Dispatch().MarkConfirmed(ctx, vulnID, userID); err != nil {
		return goerr.Wrap(err, "failed to record confirmation", goerr.V(VulnIDKey, vulnID))
	}

	logging.From(ctx).Info("vulnerability resolution confirmed",
		"vuln_id", vulnID, "user_id", userID)
	return nil
}
