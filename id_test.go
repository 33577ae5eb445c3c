package kbucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXORAndBitLength(t *testing.T) {
	t.Parallel()

	var self, other Id
	self[IDLength-1] = 0x01
	other[IDLength-1] = 0x03

	xor := self.Xor(other)
	require.Equal(t, byte(0x02), xor[IDLength-1])
	require.Equal(t, 2, xor.BitLen())
	require.Equal(t, 1, classOf(self, other))
}

func TestClassOfSentinelOnSelf(t *testing.T) {
	t.Parallel()

	id, err := RandomID()
	require.NoError(t, err)
	require.Equal(t, -1, classOf(id, id))
}

func TestClassOfSymmetric(t *testing.T) {
	t.Parallel()

	a, err := RandomID()
	require.NoError(t, err)
	b, err := RandomID()
	require.NoError(t, err)

	require.Equal(t, classOf(a, b), classOf(b, a))
}

func TestZeroSentinel(t *testing.T) {
	t.Parallel()

	require.True(t, ZERO.IsZero())
	require.Equal(t, 0, ZERO.BitLen())

	id, err := RandomID()
	require.NoError(t, err)
	require.False(t, id.IsZero())
}

func TestIDFromBytesRejectsWrongLength(t *testing.T) {
	t.Parallel()

	_, err := IDFromBytes([]byte{1, 2, 3})
	require.Error(t, err)

	id, err := IDFromBytes(MAX[:])
	require.NoError(t, err)
	require.Equal(t, MAX, id)
}

func TestLessAndCmpTotalOrder(t *testing.T) {
	t.Parallel()

	var a, b Id
	a[IDLength-1] = 1
	b[IDLength-1] = 2

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.Equal(t, -1, a.Cmp(b))
	require.Equal(t, 1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(a))
}

func TestDeriveIDIsDeterministic(t *testing.T) {
	t.Parallel()

	a := DeriveID([]byte("node-key-material"))
	b := DeriveID([]byte("node-key-material"))
	c := DeriveID([]byte("different-key-material"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.False(t, a.IsZero())
}

func TestMultihashEncodesID(t *testing.T) {
	t.Parallel()

	id := DeriveID([]byte("node-key-material"))
	mh, err := id.Multihash()
	require.NoError(t, err)
	require.NotEmpty(t, mh)
}
