package usecase

import (
	"context"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/interfaces"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DispatchUseCase turns newly fetched vulnerabilities into at-most-one
// admin notification each, using the dispatch repository as the dedup
// ledger.
type DispatchUseCase struct {
	repo     interfaces.Repository
	notifier *notifier.Notifier
}

func NewDispatchUseCase(repo interfaces.Repository, n *notifier.Notifier) *DispatchUseCase {
	return &DispatchUseCase{
		repo:     repo,
		notifier: n,
	}
}

// HandleNewVulnerability dispatches the vulnerability to the admin
// channel unless it was already dispatched. The ledger entry is reserved
// before sending and released again when delivery fails, so the record
// only survives when the admin actually got the message; the next poll
// pass retries a failed dispatch.
func (uc *DispatchUseCase) HandleNewVulnerability(ctx context.Context, v *model.Vulnerability) (bool, error) {
	if err := v.Validate(); err != nil {
		return false, goerr.Wrap(err, "refusing to dispatch vulnerability without canonical ID")
	}

	_, created, err := uc.repo.Dispatch().CheckAndRecord(ctx, v.ID, v.Description)
	if err != nil {
		return false, goerr.Wrap(err, "failed to consult dispatch ledger", goerr.V(VulnIDKey, v.ID))
	}
	if !created {
		return false, nil
	}

	if err := uc.notifier.NotifyAdminOfVulnerability(ctx, v); err != nil {
		if rerr := uc.repo.Dispatch().Release(ctx, v.ID); rerr != nil {
			logging.From(ctx).Error("failed to release undelivered dispatch",
				"vuln_id", v.ID, "error", rerr.Error())
		}
		return false, goerr.Wrap(err, "failed to dispatch vulnerability", goerr.V(VulnIDKey, v.ID))
	}

	logging.From(ctx).Info("dispatched vulnerability to admin channel", "vuln_id", v.ID)
	return true, nil
}
