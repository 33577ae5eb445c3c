package kbucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketPutGetRemove(t *testing.T) {
	t.Parallel()

	b := newBucket()
	id, err := RandomID()
	require.NoError(t, err)
	p := PeerAddress{Id: id}

	inserted, size := b.put(p)
	require.True(t, inserted)
	require.Equal(t, 1, size)

	got, ok := b.get(id)
	require.True(t, ok)
	require.Equal(t, id, got.Id)

	inserted, size = b.put(p)
	require.False(t, inserted)
	require.Equal(t, 1, size)

	removed, size := b.remove(id)
	require.True(t, removed)
	require.Equal(t, 0, size)
	require.False(t, b.has(id))

	removed, _ = b.remove(id)
	require.False(t, removed)
}

func TestBucketSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	b := newBucket()
	for i := 0; i < 5; i++ {
		id, err := RandomID()
		require.NoError(t, err)
		b.put(PeerAddress{Id: id})
	}

	snap := b.snapshot()
	require.Len(t, snap, 5)

	extra, err := RandomID()
	require.NoError(t, err)
	b.put(PeerAddress{Id: extra})

	require.Len(t, snap, 5)
	require.Equal(t, 6, b.len())
}

func TestOversizeIndexTracksOnlyOversizeClasses(t *testing.T) {
	t.Parallel()

	idx := newOversizeIndex()
	idx.sync(5, 3, 2)
	require.Contains(t, idx.classes(), 5)

	idx.sync(5, 2, 2)
	require.NotContains(t, idx.classes(), 5)

	idx.sync(10, 4, 2)
	idx.sync(20, 4, 2)
	classes := idx.classes()
	require.Contains(t, classes, 10)
	require.Contains(t, classes, 20)
}
