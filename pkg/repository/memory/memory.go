package memory

import (
	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-memory repository. All state is lost on process
// restart; this is the only backend (fresh slate on every deploy).
type Memory struct {
	dispatch *dispatchRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		dispatch: newDispatchRepository(),
	}
}

func (m *Memory) Dispatch() interfaces.DispatchRepository {
	return m.dispatch
}

func (m *Memory) Close() error {
	return nil
}
