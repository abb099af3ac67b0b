package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/fairway/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued IDs are returned first; after that IDs are "id-1", "id-2", ...
type MockRandom struct {
	mu      sync.Mutex
	ids     []string
	idIndex int
	counter int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// ID returns the next queued ID, or a sequential fallback
func (r *MockRandom) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idIndex < len(r.ids) {
		id := r.ids[r.idIndex]
		r.idIndex++
		return id
	}
	r.counter++
	return fmt.Sprintf("id-%d", r.counter)
}

// QueueID adds values to the ID result queue
func (r *MockRandom) QueueID(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = nil
	r.idIndex = 0
	r.counter = 0
}
