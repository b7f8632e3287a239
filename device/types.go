// Package device implements the per-remote-device state machine: the
// Device Controller and the records it owns (bearer state, key material,
// advertising cache, browse/bonding engines, authentication requests, and
// the per-profile service set). It is the nexus the rest of a BlueZ-like
// stack (adapter, agent, profiles, GATT layer, transport I/O) converges on.
package device

import (
	"fmt"
	"strings"
)

// AddressType identifies which bearer namespace an address belongs to.
type AddressType int

const (
	AddressBREDRPublic AddressType = iota
	AddressLEPublic
	AddressLERandom
)

func (t AddressType) String() string {
	switch t {
	case AddressBREDRPublic:
		return "bredr-public"
	case AddressLEPublic:
		return "le-public"
	case AddressLERandom:
		return "le-random"
	default:
		return "unknown"
	}
}

// IsLE reports whether the address type belongs to the LE bearer.
func (t AddressType) IsLE() bool {
	return t == AddressLEPublic || t == AddressLERandom
}

// Bearer identifies one of the two link layers a Device may have. The zero
// value "" names no bearer (e.g. no connect has succeeded yet).
type Bearer string

const (
	BearerBREDR Bearer = "bredr"
	BearerLE    Bearer = "le"
)

func (b Bearer) String() string {
	if b == BearerLE {
		return "le"
	}
	return "bredr"
}

// PreferBearer is the user-facing "PreferredBearer" policy (spec.md §3).
type PreferBearer int

const (
	PreferLastUsed PreferBearer = iota
	PreferLE
	PreferBREDR
	PreferLastSeen
)

// WakeOverride is the remote-wake policy override (spec.md §3).
type WakeOverride int

const (
	WakeDefault WakeOverride = iota
	WakeEnabled
	WakeDisabled
)

// Address is a 48-bit peer Bluetooth address in "AA:BB:CC:DD:EE:FF" form.
type Address string

// IsPrivate reports whether addr is an LE random address whose top two bits
// mark it non-resolvable or resolvable private (spec.md §3 invariant 4).
// The top two bits of the most significant address octet classify the
// random address subtype: 00 static, 01 non-resolvable private, 10 reserved,
// 11 resolvable private (Core spec Vol 6, Part B §1.3).
func (a Address) IsPrivate(t AddressType) bool {
	if t != AddressLERandom {
		return false
	}
	parts := strings.Split(string(a), ":")
	if len(parts) != 6 {
		return false
	}
	var msb byte
	if _, err := fmt.Sscanf(parts[0], "%02x", &msb); err != nil {
		return false
	}
	top := msb >> 6
	return top == 0b01 || top == 0b11
}

// FeatureFlags is the bearer/kernel feature flag tri-state (spec.md §3).
type FeatureFlags struct {
	Supported uint32
	Pending   uint32
	Current   uint32
}
