package kbucket

import "sync"

// numBuckets is the number of XOR-distance classes a 160-bit id space is
// partitioned into.
const numBuckets = IDLength * 8

// bucket is a single class's membership: a plain map guarded by its own
// mutex. A bucket lock is a leaf lock: it is never held across another
// lock acquisition or a listener callback.
type bucket struct {
	mu    sync.Mutex
	peers map[Id]PeerAddress
}

func newBucket() *bucket {
	return &bucket{peers: make(map[Id]PeerAddress)}
}

func (b *bucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.peers)
}

func (b *bucket) get(id Id) (PeerAddress, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.peers[id]
	return p, ok
}

func (b *bucket) has(id Id) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.peers[id]
	return ok
}

// put inserts or updates p. It reports whether the id was newly inserted
// (false means an existing entry was updated in place) and the bucket size
// after the mutation, letting the caller decide whether to fold the class
// into the oversize index without a second lock acquisition.
func (b *bucket) put(p PeerAddress) (inserted bool, size int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, existed := b.peers[p.Id]
	b.peers[p.Id] = p
	return !existed, len(b.peers)
}

// remove deletes id if present. It reports whether it was present and the
// bucket size after the mutation.
func (b *bucket) remove(id Id) (removed bool, size int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.peers[id]; !ok {
		return false, len(b.peers)
	}
	delete(b.peers, id)
	return true, len(b.peers)
}

// snapshot returns a copy of the bucket's current members.
func (b *bucket) snapshot() []PeerAddress {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PeerAddress, 0, len(b.peers))
	for _, p := range b.peers {
		out = append(out, p)
	}
	return out
}

// buckets is the fixed-length array of bucket classes. Index i holds
// peers at distance class i from self.
type buckets [numBuckets]*bucket

func newBuckets() *buckets {
	var bs buckets
	for i := range bs {
		bs[i] = newBucket()
	}
	return &bs
}
