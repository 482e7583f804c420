package logstore

import (
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updraftio/updraft/client/internal/updates"
)

func TestStore_EvictsBeyondCapacity(t *testing.T) {
	store := NewStore(3)

	for _, msg := range []string{"one", "two", "three", "four"} {
		store.Add(updates.LogEntry{Timestamp: time.Now(), Message: msg})
	}

	entries := store.Entries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "four", entries[2].Message)
}

func TestStore_AgeFilter(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	store.Add(updates.LogEntry{Timestamp: now.Add(-2 * time.Hour), Message: "old"})
	store.Add(updates.LogEntry{Timestamp: now.Add(-10 * time.Minute), Message: "recent"})
	store.Add(updates.LogEntry{Timestamp: now, Message: "fresh"})

	entries := store.Entries(time.Hour)
	require.Len(t, entries, 2)
	assert.Equal(t, "recent", entries[0].Message)
	assert.Equal(t, "fresh", entries[1].Message)

	assert.Len(t, store.Entries(0), 3)
}

func TestHook_CapturesLogrusEntries(t *testing.T) {
	store := NewStore(10)

	logger := log.New()
	logger.AddHook(NewHook(store))
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.DebugLevel)

	logger.WithField("code", "ERR_UPDATES_CHECK").Error("check failed")
	logger.Info("check retried")

	entries := store.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[0].Level)
	assert.Equal(t, "check failed", entries[0].Message)
	assert.Equal(t, "ERR_UPDATES_CHECK", entries[0].Code)
	assert.Equal(t, "info", entries[1].Level)
	assert.Empty(t, entries[1].Code)
}
