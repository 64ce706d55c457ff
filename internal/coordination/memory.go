package coordination

import (
	"context"
	"strconv"
	"sync"
)

// MemoryClient is an in-process Client for tests and single-node
// deployments. Revisions are a monotonic counter.
type MemoryClient struct {
	mu       sync.Mutex
	data     []byte
	revision uint64
	exists   bool
}

// NewMemoryClient creates an empty in-memory document store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// Read implements Client.
func (m *MemoryClient) Read(_ context.Context) ([]byte, Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, NoRevision, ErrNotFound
	}
	data := make([]byte, len(m.data))
	copy(data, m.data)
	return data, Revision(strconv.FormatUint(m.revision, 10)), nil
}

// Write implements Client.
func (m *MemoryClient) Write(_ context.Context, data []byte, expected Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := NoRevision
	if m.exists {
		current = Revision(strconv.FormatUint(m.revision, 10))
	}
	if expected != current {
		return ErrRevisionConflict
	}

	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.revision++
	m.exists = true
	return nil
}
