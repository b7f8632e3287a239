package device

// InboundEvent is one coalesced update for a single device, translated by
// the transport layer (package bluez) from whatever wire signal carried it
// into the fields that actually changed. Every field is a pointer/slice so
// "absent" and "present but zero" are distinguishable, matching how BlueZ's
// PropertiesChanged itself only lists what changed.
type InboundEvent struct {
	Bearer Bearer

	Connected        *bool
	ServicesResolved *bool
	Paired           *bool
	Bonded           *bool
	DisconnectReason *DisconnectReason

	RSSI       *int16
	TxPower    *int8
	Name       *string
	Alias      *string
	Appearance *uint16
	Class      *uint32

	UUIDsAdded       []string
	ManufacturerData []DataBlob
	ServiceData      []DataBlob
	AdvertisingData  []DataBlob

	// LTK, RemoteCSRK, and SIRKAdded are key material delivered out-of-band
	// by a completed bonding/encryption procedure (spec.md §6 "key material
	// (LTK/CSRK/SIRK) delivered"), applied to the KMS on the loop goroutine.
	LTK         *LongTermKey
	RemoteCSRK  *RemoteCSRKUpdate
	SIRKAdded   *SIRK

	// SignedWriteCounter is the counter value carried by an inbound signed
	// write, checked against the stored RemoteCSRK counter for monotonicity
	// (spec.md §3 invariant 9).
	SignedWriteCounter *uint32

	// AuthRequest is an inbound Agent1 credential prompt (spec.md §4.4); the
	// resolution is delivered back on AuthReply once AuthPolicy decides it.
	AuthRequest *AuthenticationRequest
	AuthReply   chan<- AuthResult
}

// RemoteCSRKUpdate carries a freshly-received remote signing key (spec.md
// §4.6).
type RemoteCSRKUpdate struct {
	Value         [16]byte
	Counter       uint32
	Authenticated bool
}

// AuthResult is AuthPolicy's decision for one AuthenticationRequest,
// delivered back over the request's AuthReply channel.
type AuthResult struct {
	Decision AuthDecision
	Err      error
}
