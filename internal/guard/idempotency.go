package guard

import (
	"context"
	"sync"
)

// IdempotencyGuard deduplicates keys such as event IDs. It remembers at most
// capacity keys and forgets the oldest first.
type IdempotencyGuard struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

// NewIdempotencyGuard creates a new in-memory idempotency guard.
func NewIdempotencyGuard(capacity int) *IdempotencyGuard {
	if capacity < 1 {
		capacity = 1
	}
	return &IdempotencyGuard{
		seen:     make(map[string]struct{}),
		capacity: capacity,
	}
}

// Check returns whether the given key has already been processed, marking it seen if not.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) Result {
	if key == "" {
		return Result{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if _, dup := ig.seen[key]; dup {
		return Result{
			Allowed: false,
			Reason:  "duplicate: key already processed",
			Guard:   "idempotency",
		}
	}

	if len(ig.order) >= ig.capacity {
		oldest := ig.order[0]
		ig.order = ig.order[1:]
		delete(ig.seen, oldest)
	}
	ig.seen[key] = struct{}{}
	ig.order = append(ig.order, key)
	return Result{Allowed: true}
}

// Remove deletes a key from the seen set so a later retry is processed.
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	if _, ok := ig.seen[key]; !ok {
		return
	}
	delete(ig.seen, key)
	for i, k := range ig.order {
		if k == key {
			ig.order = append(ig.order[:i], ig.order[i+1:]...)
			break
		}
	}
}
