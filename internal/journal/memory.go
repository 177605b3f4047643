package journal

import (
	"context"
	"sync"
)

// MemoryRepository keeps the most recent entries in a ring. It serves
// get_task_history when the database is disabled.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewMemoryRepository creates a ring holding up to capacity entries.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = maxLimit
	}
	return &MemoryRepository{entries: make([]Entry, capacity)}
}

// Record stores e, evicting the oldest entry when full.
func (m *MemoryRepository) Record(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = *e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// List returns matching entries, most recent first.
func (m *MemoryRepository) List(_ context.Context, filter Filter) (*ListResult, error) {
	filter.clamp()

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	matched := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (m.next - 1 - i + len(m.entries)) % len(m.entries)
		e := m.entries[idx]
		if filter.Method != "" && e.Method != filter.Method {
			continue
		}
		if filter.FailedOnly && e.Succeeded {
			continue
		}
		matched = append(matched, e)
	}

	page := []Entry{}
	if filter.Offset < len(matched) {
		end := min(filter.Offset+filter.Limit, len(matched))
		page = append(page, matched[filter.Offset:end]...)
	}
	return &ListResult{Entries: page, Total: len(matched), Limit: filter.Limit, Offset: filter.Offset}, nil
}
