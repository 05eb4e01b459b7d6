package repository

import (
	"context"
	"sync"
	"time"
)

// ProcessedEventRepository records provider event ids that have triggered fulfillment.
type ProcessedEventRepository interface {
	// MarkIfAbsent atomically marks eventID as processed. It returns true only for
	// the first caller for a given id.
	MarkIfAbsent(ctx context.Context, eventID string) (bool, error)
	Has(ctx context.Context, eventID string) (bool, error)
}

type memoryProcessedEventRepo struct {
	mu     sync.Mutex
	events map[string]time.Time
	now    func() time.Time
}

// NewMemoryProcessedEventRepo returns a process-local store. Entries are never pruned,
// so a restart forgets every id.
func NewMemoryProcessedEventRepo() ProcessedEventRepository {
	return &memoryProcessedEventRepo{
		events: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (r *memoryProcessedEventRepo) MarkIfAbsent(_ context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.events[eventID]; seen {
		return false, nil
	}
	r.events[eventID] = r.now()
	return true, nil
}

func (r *memoryProcessedEventRepo) Has(_ context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, seen := r.events[eventID]
	return seen, nil
}
