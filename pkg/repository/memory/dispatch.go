package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type dispatchRepository struct {
	mu      sync.Mutex
	records map[types.VulnID]*model.DispatchRecord
}

func newDispatchRepository() *dispatchRepository {
	return &dispatchRepository{
		records: make(map[types.VulnID]*model.DispatchRecord),
	}
}

func copyDispatchRecord(r *model.DispatchRecord) *model.DispatchRecord {
	copied := &model.DispatchRecord{
		ID:           r.ID,
		VulnID:       r.VulnID,
		Description:  r.Description,
		Status:       r.Status,
		Note:         r.Note,
		ConfirmedBy:  r.ConfirmedBy,
		DispatchedAt: r.DispatchedAt,
	}
	if r.Assignees != nil {
		copied.Assignees = make([]types.UserID, len(r.Assignees))
		copy(copied.Assignees, r.Assignees)
	}
	if r.AssignedAt != nil {
		t := *r.AssignedAt
		copied.AssignedAt = &t
	}
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		copied.ConfirmedAt = &t
	}
	return copied
}

func (r *dispatchRepository) CheckAndRecord(ctx context.Context, id types.VulnID, description string) (*model.DispatchRecord, bool, error) {
	if err := id.Validate(); err != nil {
		return nil, false, goerr.Wrap(err, "invalid vulnerability ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[id]; ok {
		return copyDispatchRecord(existing), false, nil
	}

	created := &model.DispatchRecord{
		ID:           model.NewDispatchRecordID(),
		VulnID:       id,
		Description:  description,
		Status:       types.DispatchStatusDispatched,
		DispatchedAt: time.Now().UTC(),
	}
	r.records[id] = created

	return copyDispatchRecord(created), true, nil
}

func (r *dispatchRepository) Release(ctx context.Context, id types.VulnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[id]
	if !ok {
		return nil
	}

	// A record that already advanced was seen by a human; keep it.
	if existing.Status != types.DispatchStatusDispatched {
		return nil
	}

	delete(r.records, id)
	return nil
}

func (r *dispatchRepository) Get(ctx context.Context, id types.VulnID) (*model.DispatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "dispatch record not found", goerr.V("vuln_id", id))
	}

	return copyDispatchRecord(existing), nil
}

func (r *dispatchRepository) List(ctx context.Context) ([]*model.DispatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*model.DispatchRecord, 0, len(r.records))
	for _, rec := range r.records {
		result = append(result, copyDispatchRecord(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DispatchedAt.After(result[j].DispatchedAt)
	})

	return result, nil
}

// advance mutates the record under the lock iff the transition is legal
func (r *dispatchRepository) advance(id types.VulnID, next types.DispatchStatus, mutate func(*model.DispatchRecord)) (*model.DispatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "dispatch record not found", goerr.V("vuln_id", id))
	}

	if !existing.Status.CanAdvanceTo(next) {
		return nil, goerr.Wrap(ErrInvalidTransition, "cannot advance dispatch status",
			goerr.V("vuln_id", id),
			goerr.V("from", existing.Status),
			goerr.V("to", next),
		)
	}

	existing.Status = next
	if mutate != nil {
		mutate(existing)
	}

	return copyDispatchRecord(existing), nil
}

func (r *dispatchRepository) MarkPromptOpen(ctx context.Context, id types.VulnID) (*model.DispatchRecord, error) {
	return r.advance(id, types.DispatchStatusPromptOpen, nil)
}

func (r *dispatchRepository) MarkAssigned(ctx context.Context, id types.VulnID, assignees []types.UserID, note string) (*model.DispatchRecord, error) {
	if len(assignees) == 0 {
		return nil, goerr.New("at least one assignee is required", goerr.V("vuln_id", id))
	}

	return r.advance(id, types.DispatchStatusAssigned, func(rec *model.DispatchRecord) {
		rec.Assignees = make([]types.UserID, len(assignees))
		copy(rec.Assignees, assignees)
		rec.Note = note
		now := time.Now().UTC()
		rec.AssignedAt = &now
	})
}

func (r *dispatchRepository) MarkConfirmed(ctx context.Context, id types.VulnID, by types.UserID) (*model.DispatchRecord, error) {
	return r.advance(id, types.DispatchStatusConfirmed, func(rec *model.DispatchRecord) {
		rec.ConfirmedBy = by
		now := time.Now().UTC()
		rec.ConfirmedAt = &now
	})
}
