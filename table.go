// Package kbucket implements the routing table of a Kademlia-style
// peer-to-peer overlay: a bucketed, XOR-distance-indexed structure that
// tracks a bounded sample of live peers, ranks them by distance to any
// 160-bit key, and schedules their liveness maintenance.
package kbucket

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"
	"time"
)

// RoutingTable orchestrates the buckets, the offline log, the maintenance
// queue, and the peer-statistics table behind a single programmatic
// contract. There is no background goroutine and no blocking call
// anywhere in this type: it is purely reactive, and the caller (the
// probing/transport layer) owns any timer loop.
type RoutingTable struct {
	cfg Config

	buckets     *buckets
	oversize    *oversizeIndex
	offline     *offlineLog
	maintenance *maintenanceQueue
	stats       *statTable
	filter      *addressFilter
	listeners   ListenerSet

	peerCount int64
}

// New builds a RoutingTable from cfg. Construction fails only when Self is
// the zero id; a non-positive BagSize or CacheSize is replaced by its
// default before the subsystems are built.
func New(cfg Config) (*RoutingTable, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	resolved := cfg.withDefaults()

	offlineLog, err := newOfflineLog(resolved.CacheSize, resolved.MaxFail, resolved.CacheTimeout)
	if err != nil {
		return nil, fmt.Errorf("kbucket: building offline log: %w", err)
	}

	rt := &RoutingTable{
		cfg:         resolved,
		buckets:     newBuckets(),
		oversize:    newOversizeIndex(),
		offline:     offlineLog,
		maintenance: newMaintenanceQueue(),
		stats:       newStatTable(),
		filter:      newAddressFilter(),
	}
	log.Debugf("routing table created: self=%s bagSize=%d maxPeers=%d", resolved.Self, resolved.BagSize, resolved.maxPeers())
	return rt, nil
}

// PeerOnline records that remote was observed alive. A nil referrer
// denotes a first-hand observation; any non-nil value denotes a
// second-hand one. It returns false if the peer was rejected by a gate or
// if the table and its target bucket are both already full.
func (rt *RoutingTable) PeerOnline(remote PeerAddress, referrer *Id) bool {
	now := time.Now()
	firstHand := referrer == nil

	if remote.Id.IsZero() || remote.Id.Equal(rt.cfg.Self) {
		return false
	}

	if firstHand {
		rt.offline.clear(remote.Id)
	}
	if rt.offline.isSuppressed(remote.Id, now) {
		return false
	}
	if rt.filter.contains(ipFromAddr(remote.Addr)) {
		return false
	}
	if remote.FirewalledTCP {
		return false
	}

	class := classOf(rt.cfg.Self, remote.Id)
	b := rt.buckets[class]

	size := int(atomic.LoadInt64(&rt.peerCount))
	_, alreadyInBucket := b.get(remote.Id)

	switch {
	case size < rt.cfg.maxPeers() || alreadyInBucket:
		rt.insertOrUpdate(b, class, remote)
	case b.len() < rt.cfg.BagSize:
		if !rt.removeLatestEntryExceedingBagSize() {
			return false
		}
		rt.insertOrUpdate(b, class, remote)
	default:
		return false
	}

	wasOnlineBefore, checked := rt.statOnlineSnapshot(remote.Id)
	if firstHand {
		checked = rt.applyFirstHandStat(remote.Id, now)
	}
	rt.scheduleNext(remote.Id, now, wasOnlineBefore, checked)

	return true
}

// insertOrUpdate inserts or updates the entry in place inside the
// bucket's own lock, even past bagSize while global slots remain (the bag
// cap is soft). The oversize index and peerCount are fixed up, and
// exactly one of inserted/updated fires, outside the bucket lock.
func (rt *RoutingTable) insertOrUpdate(b *bucket, class int, p PeerAddress) {
	inserted, size := b.put(p)
	rt.oversize.sync(class, size, rt.cfg.BagSize)
	if inserted {
		atomic.AddInt64(&rt.peerCount, 1)
		rt.listeners.notifyInserted(p)
		return
	}
	rt.listeners.notifyUpdated(p)
}

// removeLatestEntryExceedingBagSize frees exactly one global slot by
// evicting the least-recently-seen member of the first oversize bucket
// found (in no particular order), or reports false if no bucket is truly oversize (the
// index may be transiently stale).
func (rt *RoutingTable) removeLatestEntryExceedingBagSize() bool {
	for _, class := range rt.oversize.classes() {
		b := rt.buckets[class]
		members := b.snapshot()
		if len(members) <= rt.cfg.BagSize {
			continue
		}

		victim, found := rt.pickEvictionVictim(members)
		if !found {
			continue
		}

		removed, size := b.remove(victim.Id)
		if !removed {
			// lost a race with a concurrent remove; try the next oversize class.
			continue
		}
		rt.oversize.sync(class, size, rt.cfg.BagSize)
		atomic.AddInt64(&rt.peerCount, -1)
		rt.maintenance.remove(victim.Id)

		if asn, ok := asnHint(ipFromAddr(victim.Addr)); ok {
			log.Debugf("evicting oversize peer %s (asn %d) from bucket %d", victim.Id, asn, class)
		} else {
			log.Debugf("evicting oversize peer %s from bucket %d", victim.Id, class)
		}
		rt.listeners.notifyRemoved(victim)
		return true
	}
	return false
}

// pickEvictionVictim selects the member with the smallest lastSeenOnline
// timestamp, short-circuiting as soon as a never-seen-online (zero
// timestamp) peer is found.
func (rt *RoutingTable) pickEvictionVictim(members []PeerAddress) (PeerAddress, bool) {
	if len(members) == 0 {
		return PeerAddress{}, false
	}
	victim := members[0]
	victimSeen, _ := rt.stats.get(victim.Id)
	for _, p := range members[1:] {
		st, _ := rt.stats.get(p.Id)
		if st.LastSeenOnline.IsZero() {
			return p, true
		}
		if victimSeen.LastSeenOnline.IsZero() {
			continue
		}
		if st.LastSeenOnline.Before(victimSeen.LastSeenOnline) {
			victim = p
			victimSeen = st
		}
	}
	return victim, true
}

// PeerOffline reports that remote failed. If force, removal is
// unconditional; otherwise the peer is removed only once the offline
// log's failure policy is satisfied. It returns true iff the peer was
// removed.
func (rt *RoutingTable) PeerOffline(remote PeerAddress, force bool) bool {
	now := time.Now()
	rt.listeners.notifyFail(remote)

	if rt.offline.recordFailure(remote.Id, force, now) {
		return rt.removePeer(remote)
	}

	rt.stats.clearOnline(remote.Id)
	wasOnlineBefore, checked := rt.statOnlineSnapshot(remote.Id)
	rt.scheduleNext(remote.Id, now, wasOnlineBefore, checked)
	return false
}

// removePeer performs the removal side effects: drop from the bucket, fix
// up the oversize index, drop from the maintenance queue, decrement
// peerCount, and fire removed then offline, in that order.
func (rt *RoutingTable) removePeer(p PeerAddress) bool {
	class := classOf(rt.cfg.Self, p.Id)
	if class < 0 || class >= numBuckets {
		return false
	}
	b := rt.buckets[class]
	removed, size := b.remove(p.Id)
	if !removed {
		return false
	}
	rt.oversize.sync(class, size, rt.cfg.BagSize)
	rt.maintenance.remove(p.Id)
	atomic.AddInt64(&rt.peerCount, -1)
	rt.listeners.notifyRemoved(p)
	rt.listeners.notifyOffline(p)
	return true
}

// statOnlineSnapshot reads a peer's current "ever seen online" flag and
// checked count without mutating anything.
func (rt *RoutingTable) statOnlineSnapshot(id Id) (onlineBefore bool, checked int) {
	st, ok := rt.stats.get(id)
	if !ok {
		return false, 0
	}
	return !st.LastSeenOnline.IsZero(), st.Checked
}

// applyFirstHandStat records a first-hand online event: it widens the
// probe interval once enough uptime has been observed, then stamps
// lastSeenOnline. It returns the resulting checked count.
func (rt *RoutingTable) applyFirstHandStat(id Id, now time.Time) int {
	st := rt.stats.update(id, func(st PeerStat) PeerStat {
		if st.FirstSeen.IsZero() {
			st.FirstSeen = now
		}
		timeouts := rt.cfg.MaintenanceTimeouts
		if len(timeouts) > 0 && st.Checked < len(timeouts) {
			if now.Sub(st.FirstSeen) > timeouts[st.Checked] {
				st.Checked++
			}
		}
		st.LastSeenOnline = now
		return st
	})
	return st.Checked
}

// scheduleNext is the maintenance-scheduling rule, applied identically
// after a successful insert/update and after a non-removing offline
// report. An empty timeout sequence disables scheduling entirely.
func (rt *RoutingTable) scheduleNext(id Id, now time.Time, wasOnlineBefore bool, checked int) {
	timeouts := rt.cfg.MaintenanceTimeouts
	if len(timeouts) == 0 {
		return
	}
	if !wasOnlineBefore {
		rt.maintenance.put(id, now)
		return
	}
	idx := checked
	if idx >= len(timeouts) {
		idx = len(timeouts) - 1
	}
	rt.maintenance.put(id, now.Add(timeouts[idx]))
}

// MaintenanceStatus reports whether liveness-check scheduling is active,
// returning ErrMaintenanceDisabled if the table was built with an empty
// MaintenanceTimeouts sequence.
func (rt *RoutingTable) MaintenanceStatus() error {
	if len(rt.cfg.MaintenanceTimeouts) == 0 {
		return ErrMaintenanceDisabled
	}
	return nil
}

// IsPeerRemovedTemporarily reports whether id is currently suppressed by
// the offline log: a peer in this state will be rejected by any
// second-hand PeerOnline call until the suppression either expires or is
// cleared by a first-hand observation.
func (rt *RoutingTable) IsPeerRemovedTemporarily(id Id) bool {
	return rt.offline.isSuppressed(id, time.Now())
}

// Contains reports whether id names a peer currently tracked in any
// bucket.
func (rt *RoutingTable) Contains(id Id) bool {
	class := classOf(rt.cfg.Self, id)
	if class < 0 || class >= numBuckets {
		return false
	}
	return rt.buckets[class].has(id)
}

// ClosePeers returns the peers closest to id by XOR distance, ascending,
// containing at least atLeast entries if that many are known. self is
// never a tracked peer and so never appears in the result, but a tracked
// peer whose Id equals id itself is a legitimate match and is included.
func (rt *RoutingTable) ClosePeers(id Id, atLeast int) []PeerAddress {
	var collected []PeerAddress

	if id.Equal(rt.cfg.Self) {
		for class := 0; class < numBuckets && len(collected) < atLeast; class++ {
			collected = append(collected, rt.buckets[class].snapshot()...)
		}
		return sortByDistance(id, rt.cfg.Self, collected)
	}

	class := classOf(rt.cfg.Self, id)
	if class >= numBuckets {
		class = numBuckets - 1
	}
	collected = append(collected, rt.buckets[class].snapshot()...)
	for c := class - 1; c >= 0 && len(collected) < atLeast; c-- {
		collected = append(collected, rt.buckets[c].snapshot()...)
	}
	for c := class + 1; c < numBuckets && len(collected) < atLeast; c++ {
		collected = append(collected, rt.buckets[c].snapshot()...)
	}
	return sortByDistance(id, rt.cfg.Self, collected)
}

// IsCloser compares the XOR distances of a and b to id.
func (rt *RoutingTable) IsCloser(id, a, b Id) int {
	return isCloser(id, a, b)
}

// PeersForMaintenance drains and returns every peer whose scheduled check
// time has arrived, in insertion order. A peer removed between scheduling
// and drain is silently skipped.
func (rt *RoutingTable) PeersForMaintenance() []PeerAddress {
	due := rt.maintenance.drain(time.Now())
	out := make([]PeerAddress, 0, len(due))
	for _, id := range due {
		class := classOf(rt.cfg.Self, id)
		if class < 0 || class >= numBuckets {
			continue
		}
		if p, ok := rt.buckets[class].get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// GetAll returns a snapshot of every tracked peer, in unspecified order.
func (rt *RoutingTable) GetAll() []PeerAddress {
	var out []PeerAddress
	for _, b := range rt.buckets {
		out = append(out, b.snapshot()...)
	}
	return out
}

// Size returns the total number of tracked peers in constant time.
func (rt *RoutingTable) Size() int {
	return int(atomic.LoadInt64(&rt.peerCount))
}

// AddAddressFilter blocks future admission of peers whose address falls
// inside mask, a filter expression such as "/ip4/10.0.0.0/ipcidr/8".
func (rt *RoutingTable) AddAddressFilter(mask string) error {
	return rt.filter.addMask(mask)
}

// AddListener registers l for future change and offline events.
func (rt *RoutingTable) AddListener(l Listener) {
	rt.listeners.Add(l)
}

// RemoveListener unregisters l.
func (rt *RoutingTable) RemoveListener(l Listener) {
	rt.listeners.Remove(l)
}

// PeerStat returns a snapshot of a tracked peer's online-history
// accounting, if any is known.
func (rt *RoutingTable) PeerStat(id Id) (PeerStat, bool) {
	return rt.stats.get(id)
}

// RandomIDInBucket generates a random id that classifies into the given
// bucket relative to Self: the probing layer uses this to pick the lookup
// target for a bucket refresh.
func (rt *RoutingTable) RandomIDInBucket(class int) (Id, error) {
	if class < 0 || class >= numBuckets {
		return ZERO, fmt.Errorf("kbucket: class %d out of range [0,%d)", class, numBuckets)
	}

	var dist Id
	if _, err := rand.Read(dist[:]); err != nil {
		return ZERO, err
	}

	// bitIndexFromMSB is the position, counting from the most significant
	// bit of the whole id, of the single bit that must be set for the
	// resulting distance to have bitLen == class+1 (so classOf == class).
	bitIndexFromMSB := numBuckets - 1 - class
	byteIdx := bitIndexFromMSB / 8
	bitInByte := 7 - bitIndexFromMSB%8

	for i := 0; i < byteIdx; i++ {
		dist[i] = 0
	}
	mask := byte(0xFF) >> uint(7-bitInByte)
	dist[byteIdx] &= mask
	dist[byteIdx] |= 1 << uint(bitInByte)

	var id Id
	for i := range id {
		id[i] = rt.cfg.Self[i] ^ dist[i]
	}
	return id, nil
}
