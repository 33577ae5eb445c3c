package kbucket

import "errors"

// ErrInvalidSelf is returned by New when the configured local id is the
// zero id. A routing table cannot classify distances relative to an
// id that collides with the ZERO sentinel.
var ErrInvalidSelf = errors.New("kbucket: self id must be non-zero")

// ErrMaintenanceDisabled is returned by MaintenanceStatus when the table
// was constructed with an empty MaintenanceTimeouts sequence: PeerOnline
// and PeerOffline never schedule liveness checks, and PeersForMaintenance
// will never have anything to drain.
var ErrMaintenanceDisabled = errors.New("kbucket: maintenance is disabled, timeouts sequence is empty")
