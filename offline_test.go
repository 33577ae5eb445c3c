package kbucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOfflineLogSuppressionWindow(t *testing.T) {
	t.Parallel()

	log, err := newOfflineLog(16, 3, 10*time.Second)
	require.NoError(t, err)

	id, err := RandomID()
	require.NoError(t, err)

	now := time.Now()
	require.False(t, log.recordFailure(id, false, now))
	require.False(t, log.isSuppressed(id, now))

	now = now.Add(100 * time.Millisecond)
	require.False(t, log.recordFailure(id, false, now))

	now = now.Add(100 * time.Millisecond)
	require.True(t, log.recordFailure(id, false, now))
	require.True(t, log.isSuppressed(id, now))
}

func TestOfflineLogForceRemovesImmediately(t *testing.T) {
	t.Parallel()

	log, err := newOfflineLog(16, 5, 10*time.Second)
	require.NoError(t, err)

	id, err := RandomID()
	require.NoError(t, err)

	require.True(t, log.recordFailure(id, true, time.Now()))
}

func TestOfflineLogStaleEntryIsPurged(t *testing.T) {
	t.Parallel()

	log, err := newOfflineLog(16, 2, 20*time.Millisecond)
	require.NoError(t, err)

	id, err := RandomID()
	require.NoError(t, err)

	now := time.Now()
	require.False(t, log.recordFailure(id, false, now))
	require.True(t, log.recordFailure(id, false, now))
	require.True(t, log.isSuppressed(id, now))

	later := now.Add(50 * time.Millisecond)
	require.False(t, log.isSuppressed(id, later))

	_, ok := log.get(id)
	require.False(t, ok, "stale entry should have been purged")
}

func TestOfflineLogClearRemovesEntry(t *testing.T) {
	t.Parallel()

	log, err := newOfflineLog(16, 1, time.Second)
	require.NoError(t, err)

	id, err := RandomID()
	require.NoError(t, err)

	log.recordFailure(id, false, time.Now())
	_, ok := log.get(id)
	require.True(t, ok)

	log.clear(id)
	_, ok = log.get(id)
	require.False(t, ok)
}
