package kbucket

import (
	"net"
	"sync"

	"github.com/libp2p/go-cidranger"
	asnutil "github.com/libp2p/go-libp2p-asn-util"
	"github.com/multiformats/go-multiaddr"
	filter "github.com/whyrusleeping/multiaddr-filter"
)

// addressFilter is a set of blocked networks consulted on peer admission.
// cidranger.Ranger's trie is not documented safe for concurrent inserts
// and lookups, so mutation is serialized with an RWMutex.
type addressFilter struct {
	mu     sync.RWMutex
	ranger cidranger.Ranger
}

func newAddressFilter() *addressFilter {
	return &addressFilter{ranger: cidranger.NewPCTrieRanger()}
}

// addMask parses a human-readable filter expression (e.g. "/ip4/10.0.0.0/ipcidr/8")
// with whyrusleeping/multiaddr-filter and inserts the resulting network.
func (f *addressFilter) addMask(mask string) error {
	ipnet, err := filter.NewMask(mask)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet))
}

// addNetwork inserts an already-parsed network directly.
func (f *addressFilter) addNetwork(ipnet net.IPNet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ranger.Insert(cidranger.NewBasicRangerEntry(ipnet))
}

// contains reports whether ip falls inside any filtered network.
func (f *addressFilter) contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	ok, err := f.ranger.Contains(ip)
	if err != nil {
		log.Debugf("kbucket: address filter lookup failed: %s", err)
		return false
	}
	return ok
}

// ipFromAddr extracts a net.IP from a multiaddr, if it names one.
func ipFromAddr(addr multiaddr.Multiaddr) net.IP {
	if addr == nil {
		return nil
	}
	if v, err := addr.ValueForProtocol(multiaddr.P_IP4); err == nil {
		return net.ParseIP(v)
	}
	if v, err := addr.ValueForProtocol(multiaddr.P_IP6); err == nil {
		return net.ParseIP(v)
	}
	return nil
}

// asnHint returns a best-effort, log-only origin AS for an address. It
// never influences eviction selection: a lookup miss or an IPv4 address
// (asnutil only covers IPv6) simply yields ok=false.
func asnHint(ip net.IP) (uint32, bool) {
	if ip == nil || ip.To4() != nil {
		return 0, false
	}
	asn, err := asnutil.Store.AsnForIPv6(ip)
	if err != nil || asn == 0 {
		return 0, false
	}
	return asn, true
}
