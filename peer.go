package kbucket

import (
	"github.com/multiformats/go-multiaddr"
)

// PeerAddress is an opaque, value-like record describing a reachable peer:
// its Id, its network address, and whether it is known to be behind a
// firewalled TCP connection (such peers are never admitted — we cannot
// dial them back, so tracking them would only waste a slot).
//
// Callers must not mutate a PeerAddress after handing it to a RoutingTable;
// the table treats instances as immutable and freely shares them between
// its internal structures.
type PeerAddress struct {
	Id            Id
	Addr          multiaddr.Multiaddr
	FirewalledTCP bool
}

// Equal reports whether two PeerAddress values name the same peer:
// PeerAddress equality is by Id alone.
func (p PeerAddress) Equal(other PeerAddress) bool {
	return p.Id.Equal(other.Id)
}
