package kbucket

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/bits"

	util "github.com/ipfs/go-ipfs-util"
	"github.com/minio/sha256-simd"
	"github.com/multiformats/go-multihash"
)

// IDLength is the width of an Id in bytes (160 bits).
const IDLength = 20

// Id is a 160-bit unsigned integer, stored big-endian, used both as a peer
// identifier and as a DHT key. The zero value is the ZERO sentinel.
type Id [IDLength]byte

// ZERO is the all-zero id. It is never a valid peer id.
var ZERO Id

// MAX is the all-ones id, the largest representable Id.
var MAX = func() Id {
	var id Id
	for i := range id {
		id[i] = 0xff
	}
	return id
}()

// IDFromBytes builds an Id from a byte slice of exactly IDLength bytes.
func IDFromBytes(b []byte) (Id, error) {
	var id Id
	if len(b) != IDLength {
		return id, errIDLength(len(b))
	}
	copy(id[:], b)
	return id, nil
}

// DeriveID hashes arbitrary key material (e.g. a public key) down to a
// 160-bit id, the way every DHT in this family derives node ids from
// identity material: SHA-256 the input, then take the leading IDLength
// bytes of the digest.
func DeriveID(key []byte) Id {
	digest := sha256.Sum256(key)
	var id Id
	copy(id[:], digest[:IDLength])
	return id
}

// Multihash wraps the id as a self-describing SHA2-256 multihash, zero
// padded back out to the full digest width multihash.Encode expects to be
// given a canonical, externally-shareable representation of the id.
func (id Id) Multihash() (multihash.Multihash, error) {
	var digest [sha256.Size]byte
	copy(digest[:], id[:])
	return multihash.Encode(digest[:], multihash.SHA2_256)
}

// IsZero reports whether id is the ZERO sentinel.
func (id Id) IsZero() bool {
	return id == ZERO
}

// Equal reports whether id and other are the same 160-bit value.
func (id Id) Equal(other Id) bool {
	return id == other
}

// Xor returns the XOR distance between id and other.
func (id Id) Xor(other Id) Id {
	var out Id
	copy(out[:], util.XOR(id[:], other[:]))
	return out
}

// BitLen returns the index of the most significant set bit plus one, or
// zero if id is the ZERO sentinel. This is the bit-length TomP2P-style
// routing tables use to classify distances into buckets.
func (id Id) BitLen() int {
	for i := 0; i < IDLength; i++ {
		if id[i] == 0 {
			continue
		}
		return (IDLength-i-1)*8 + bits.Len8(id[i])
	}
	return 0
}

// Less reports whether id is strictly less than other when both are
// interpreted as unsigned 160-bit big-endian integers.
func (id Id) Less(other Id) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// Cmp returns -1, 0, or 1 as id is less than, equal to, or greater than
// other.
func (id Id) Cmp(other Id) int {
	return bytes.Compare(id[:], other[:])
}

// String renders the id as lowercase hex.
func (id Id) String() string {
	return hex.EncodeToString(id[:])
}

// RandomID returns a cryptographically random 160-bit id.
func RandomID() (Id, error) {
	var id Id
	if _, err := rand.Read(id[:]); err != nil {
		return ZERO, err
	}
	return id, nil
}

// classOf returns the bucket class index of other relative to self:
// bitLength(self XOR other) - 1, in the range [-1, 159]. A return value of
// -1 denotes the sentinel "no bucket" class, produced only when other == self.
func classOf(self, other Id) int {
	return self.Xor(other).BitLen() - 1
}

func errIDLength(got int) error {
	return fmt.Errorf("kbucket: id must be exactly %d bytes, got %d", IDLength, got)
}
