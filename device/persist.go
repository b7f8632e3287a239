package device

// PersistedInfo is the per-device "info" logical group of spec.md §6:
// General, DeviceID, Local/RemoteSignatureKey, SetIdentityResolvingKey#N,
// ServiceChanged. Byte format is left to the Store implementation.
type PersistedInfo struct {
	// General
	Name                  string
	Alias                 string
	Class                 uint32
	Appearance            uint16
	SupportedTechnologies []string
	AddressType           AddressType
	PreferredBearer       PreferBearer
	LastUsedBearer        Bearer
	Trusted               bool
	Blocked               bool
	CablePairing          bool
	WakeAllowed           bool
	Services              []string

	// DeviceID
	HasDeviceID bool
	DeviceID    PnPInfo

	// Local/RemoteSignatureKey
	LocalCSRK  SignatureKey
	RemoteCSRK SignatureKey

	// SetIdentityResolvingKey#N
	SIRKs []SIRK

	// ServiceChanged
	CCCLE    uint16
	CCCBREDR uint16
}

// PersistedCache is the per-device "cache" logical group of spec.md §6:
// observed name (even without persistence), name-resolve failure tracking,
// SDP service records, and primary-service/GATT-db snapshot.
type PersistedCache struct {
	Name                 string
	NameResolvingFailedAt int64 // unix nanos; 0 means "no failure recorded"
	ServiceRecords       []ServiceRecord
	Primaries            []PrimaryService
}
