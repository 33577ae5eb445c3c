package kbucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMaintenanceQueueDrainInsertionOrder(t *testing.T) {
	t.Parallel()

	q := newMaintenanceQueue()
	now := time.Now()

	id1, err := RandomID()
	require.NoError(t, err)
	id2, err := RandomID()
	require.NoError(t, err)
	id3, err := RandomID()
	require.NoError(t, err)

	q.put(id1, now.Add(-time.Second))
	q.put(id2, now.Add(-500*time.Millisecond))
	q.put(id3, now.Add(time.Hour)) // not due yet

	due := q.drain(now)
	require.Equal(t, []Id{id1, id2}, due)

	// second drain is empty: entries were removed.
	require.Empty(t, q.drain(now))
}

func TestMaintenanceQueueRescheduleMovesPosition(t *testing.T) {
	t.Parallel()

	q := newMaintenanceQueue()
	now := time.Now()

	id1, err := RandomID()
	require.NoError(t, err)
	id2, err := RandomID()
	require.NoError(t, err)

	q.put(id1, now)
	q.put(id2, now)
	q.put(id1, now) // reschedule id1 to the back

	due := q.drain(now)
	require.Equal(t, []Id{id2, id1}, due)
}

func TestMaintenanceQueueRemove(t *testing.T) {
	t.Parallel()

	q := newMaintenanceQueue()
	now := time.Now()

	id, err := RandomID()
	require.NoError(t, err)

	q.put(id, now)
	q.remove(id)

	require.Empty(t, q.drain(now))
}
