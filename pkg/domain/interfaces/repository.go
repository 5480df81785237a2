package interfaces

import (
	"context"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
)

// Repository is the root accessor for all stored state
type Repository interface {
	Dispatch() DispatchRepository
	Close() error
}

// DispatchRepository is the dedup ledger and assignment state store.
// All methods are safe for concurrent use from the poll worker and the
// HTTP interaction handlers.
type DispatchRepository interface {
	// CheckAndRecord atomically creates a dispatch record for the given
	// vulnerability unless one already exists. It returns the record and
	// whether it was created by this call. Calling it twice for the same
	// ID returns the existing record with created=false.
	CheckAndRecord(ctx context.Context, id types.VulnID, description string) (*model.DispatchRecord, bool, error)

	// Release removes a record whose admin notification could not be
	// delivered, so a later poll pass can retry the dispatch. It is a
	// no-op for records that already advanced beyond "dispatched".
	Release(ctx context.Context, id types.VulnID) error

	// Get returns the record for the given vulnerability, or ErrNotFound
	Get(ctx context.Context, id types.VulnID) (*model.DispatchRecord, error)

	// List returns all records ordered by dispatch time (newest first)
	List(ctx context.Context) ([]*model.DispatchRecord, error)

	// MarkPromptOpen advances the record to prompt_open
	MarkPromptOpen(ctx context.Context, id types.VulnID) (*model.DispatchRecord, error)

	// MarkAssigned advances the record to assigned and stores the
	// selected recipients and the admin's note
	MarkAssigned(ctx context.Context, id types.VulnID, assignees []types.UserID, note string) (*model.DispatchRecord, error)

	// MarkConfirmed advances the record to its terminal confirmed state
	MarkConfirmed(ctx context.Context, id types.VulnID, by types.UserID) (*model.DispatchRecord, error)
}
