package kbucket

import (
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// PeerStat holds the per-peer online-history accounting described in spec
// §3: when the peer was first observed, the last time it was seen online
// first-hand, and how many liveness probes it has completed.
type PeerStat struct {
	FirstSeen      time.Time
	LastSeenOnline time.Time
	Checked        int
}

// statTable is PeerStat's storage: an independent map keyed by Id, kept
// alive for as long as the routing table itself. It never needs to be kept
// in lockstep with bucket membership — a peer can be evicted from its
// bucket while its history is retained, or vice versa during a race.
type statTable struct {
	m cmap.ConcurrentMap
}

func newStatTable() *statTable {
	return &statTable{m: cmap.New()}
}

func (s *statTable) get(id Id) (PeerStat, bool) {
	v, ok := s.m.Get(id.String())
	if !ok {
		return PeerStat{}, false
	}
	return v.(PeerStat), true
}

func (s *statTable) clearOnline(id Id) {
	s.m.Upsert(id.String(), nil, func(exists bool, cur, _ interface{}) interface{} {
		var st PeerStat
		if exists {
			st = cur.(PeerStat)
		}
		st.LastSeenOnline = time.Time{}
		return st
	})
}

// update atomically applies fn to the stat entry for id (creating a zero
// PeerStat first if none existed) and returns the resulting value.
func (s *statTable) update(id Id, fn func(PeerStat) PeerStat) PeerStat {
	res := s.m.Upsert(id.String(), nil, func(exists bool, cur, _ interface{}) interface{} {
		var st PeerStat
		if exists {
			st = cur.(PeerStat)
		}
		return fn(st)
	})
	return res.(PeerStat)
}
