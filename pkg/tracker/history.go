package tracker

import (
	"sync"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
)

const DefaultHistoryCapacity = 100

// History is a rolling event log, newest first. Once full, each append
// evicts the oldest entry.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []entities.HistoryEntry
}

// NewHistory caps capacity at DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 || capacity > DefaultHistoryCapacity {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity, entries: make([]entities.HistoryEntry, 0, capacity)}
}

func (h *History) Append(entry entities.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < h.capacity {
		h.entries = append(h.entries, entities.HistoryEntry{})
	}
	copy(h.entries[1:], h.entries[:len(h.entries)-1])
	h.entries[0] = entry
}

// Entries returns a snapshot, newest first.
func (h *History) Entries() []entities.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := make([]entities.HistoryEntry, len(h.entries))
	copy(entries, h.entries)
	return entries
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) Capacity() int {
	return h.capacity
}
