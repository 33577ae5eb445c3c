package kbucket

import "sort"

// peerDistance pairs a peer with its precomputed XOR distance to some
// target id, avoiding recomputing distances during the sort comparisons.
type peerDistance struct {
	peer     PeerAddress
	distance Id
}

type byDistance []peerDistance

func (s byDistance) Len() int      { return len(s) }
func (s byDistance) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byDistance) Less(i, j int) bool {
	return s[i].distance.Less(s[j].distance)
}

// sortByDistance orders peers by ascending XOR distance to target,
// deduplicating by Id and dropping any entry equal to self (a tracked
// bucket member can never be self, but excluding it defensively keeps
// this function safe to reuse against arbitrary peer slices). A peer
// equal to target itself is a legitimate, and often the most interesting,
// result and is never excluded.
func sortByDistance(target, self Id, peers []PeerAddress) []PeerAddress {
	seen := make(map[Id]struct{}, len(peers))
	pds := make(byDistance, 0, len(peers))
	for _, p := range peers {
		if p.Id.Equal(self) {
			continue
		}
		if _, dup := seen[p.Id]; dup {
			continue
		}
		seen[p.Id] = struct{}{}
		pds = append(pds, peerDistance{peer: p, distance: target.Xor(p.Id)})
	}
	sort.Sort(pds)
	out := make([]PeerAddress, len(pds))
	for i, pd := range pds {
		out[i] = pd.peer
	}
	return out
}

// isCloser compares the XOR distances of a and b to id, returning -1, 0,
// or 1 as a is closer, equidistant, or farther than b.
func isCloser(id, a, b Id) int {
	da := id.Xor(a)
	db := id.Xor(b)
	return da.Cmp(db)
}
