// Package logstore keeps a bounded in-memory history of client log entries
// to serve the read-log operation.
package logstore

import (
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/updraftio/updraft/client/internal/updates"
)

const defaultStoreSize = 1000

// Store is a fixed-capacity ring of log entries. Oldest entries are dropped
// once the capacity is reached.
type Store struct {
	maxSize int
	entries []updates.LogEntry
	mutex   sync.RWMutex
}

// NewStore creates a store holding at most size entries. A non-positive
// size falls back to the default capacity.
func NewStore(size int) *Store {
	if size <= 0 {
		size = defaultStoreSize
	}
	return &Store{
		maxSize: size,
		entries: make([]updates.LogEntry, 0, size),
	}
}

// Add appends an entry, evicting the oldest entries beyond capacity
func (s *Store) Add(entry updates.LogEntry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = append(s.entries, entry)

	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Entries returns the stored entries no older than maxAge, in insertion order
func (s *Store) Entries(maxAge time.Duration) []updates.LogEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if maxAge <= 0 {
		return slices.Clone(s.entries)
	}

	cutoff := time.Now().Add(-maxAge)
	for i, entry := range s.entries {
		if entry.Timestamp.After(cutoff) {
			return slices.Clone(s.entries[i:])
		}
	}

	return nil
}

// Hook feeds logrus output into a Store
type Hook struct {
	store *Store
}

// NewHook creates a logrus hook recording entries into store
func NewHook(store *Store) *Hook {
	return &Hook{store: store}
}

func (h *Hook) Levels() []log.Level {
	return log.AllLevels
}

func (h *Hook) Fire(entry *log.Entry) error {
	stored := updates.LogEntry{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if code, ok := entry.Data["code"].(string); ok {
		stored.Code = code
	}

	h.store.Add(stored)
	return nil
}
