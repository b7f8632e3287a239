package device

import "time"

// Policy is the tunable timing/behavior table the rest of the device
// package consults instead of hardcoding durations, grounded in spec.md §4's
// named constants (disconnect grace, bonding retry, temporary TTL, etc).
type Policy struct {
	// DisconnectGrace is how long disconnect() waits for a clean
	// lower-layer teardown before forcing the link down (spec.md §4.1.3).
	DisconnectGrace time.Duration

	// BondingRetryDelay is how long BondingEngine waits before a single
	// automatic retry of a failed bonding attempt (spec.md §4.3).
	BondingRetryDelay time.Duration

	// TemporaryTTL is how long an unpaired, disconnected, temporary device
	// survives before it is eligible for garbage collection (spec.md §3).
	TemporaryTTL time.Duration

	// AutoDiscoveryDeferral delays re-probing services after an unsolicited
	// UUIDs change, to let a burst of EIR updates settle first (spec.md
	// §4.5).
	AutoDiscoveryDeferral time.Duration

	// NameResolveRetryDelay gates how soon a failed BR/EDR name resolution
	// may be retried for the same device (spec.md §4.4).
	NameResolveRetryDelay time.Duration

	// JustWorksRepairingAllowed controls a Just Works re-pair request from an
	// already-bonded device: true passes it to the agent for confirmation,
	// false rejects it (spec.md §4.3).
	JustWorksRepairingAllowed bool
}

// DefaultPolicy returns the timing table used when nothing else is
// configured.
func DefaultPolicy() Policy {
	return Policy{
		DisconnectGrace:           2 * time.Second,
		BondingRetryDelay:         3 * time.Second,
		TemporaryTTL:              30 * time.Second,
		AutoDiscoveryDeferral:     1 * time.Second,
		NameResolveRetryDelay:     15 * time.Second,
		JustWorksRepairingAllowed: false,
	}
}
