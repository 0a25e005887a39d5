// Package alloc hands out globally unique ticket identifiers. This is
// the one place in the system with a hard correctness requirement under
// concurrency: overlapping runs must never allocate the same id.
package alloc

import (
	"fmt"

	"github.com/azmainm/standup-tickets/internal/task"
)

const counterKey = "ticket_seq"

// CounterStore is the atomic counter capability of the persistent
// store. AtomicIncrement must be a single increment-and-return
// operation, never read-then-write.
type CounterStore interface {
	AtomicIncrement(key string) (int, error)
	InitializeCounter(key string, seed int) error
	CounterValue(key string) (int, error)
}

// SeedSource supplies the highest ticket number already present in the
// task store, for first-time counter initialization.
type SeedSource interface {
	MaxTicketNumber(prefix string) (int, error)
}

// Allocator allocates PREFIX-<n> ticket identifiers.
type Allocator struct {
	counters CounterStore
	seeds    SeedSource
	prefix   string
}

// NewAllocator creates an allocator backed by the given counter store.
func NewAllocator(counters CounterStore, seeds SeedSource, prefix string) *Allocator {
	return &Allocator{counters: counters, seeds: seeds, prefix: prefix}
}

// Initialize seeds the counter from the current maximum observed ticket
// number. Idempotent: an existing counter is left untouched.
func (a *Allocator) Initialize() error {
	seed, err := a.seeds.MaxTicketNumber(a.prefix)
	if err != nil {
		return fmt.Errorf("seed ticket counter: %w", err)
	}
	return a.counters.InitializeCounter(counterKey, seed)
}

// AllocateNext returns the next unique ticket identifier.
func (a *Allocator) AllocateNext() (string, error) {
	n, err := a.counters.AtomicIncrement(counterKey)
	if err != nil {
		return "", fmt.Errorf("allocate ticket id: %w", err)
	}
	return task.FormatTicketID(a.prefix, n), nil
}

// CurrentCount returns the last allocated ticket number.
func (a *Allocator) CurrentCount() (int, error) {
	return a.counters.CounterValue(counterKey)
}
