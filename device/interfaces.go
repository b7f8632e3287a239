package device

import "context"

// IOCapability is the agent input/output capability BondingEngine derives
// and passes to Adapter.CreateBonding (spec.md §4.3 step 1).
type IOCapability string

const (
	IOCapNoInputNoOutput IOCapability = "NoInputNoOutput"
	IOCapDisplayOnly     IOCapability = "DisplayOnly"
	IOCapKeyboardOnly    IOCapability = "KeyboardOnly"
	IOCapDisplayYesNo    IOCapability = "DisplayYesNo"
	IOCapKeyboardDisplay IOCapability = "KeyboardDisplay"
)

// ServiceRecord is one SDP service record (class UUIDs plus an opaque raw
// attribute blob profile code may parse further).
type ServiceRecord struct {
	UUIDs []string
	Raw   []byte
}

// PrimaryService is one GATT primary service discovered over LE (or
// GATT-over-BR/EDR), identified by UUID and its attribute-database path.
type PrimaryService struct {
	UUID string
	Path string
}

// PnPInfo is the PnP Information (DeviceID) SDP record's payload, if found
// during a BR/EDR browse (spec.md §6 persistent layout "DeviceID").
type PnPInfo struct {
	Source  uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// Adapter is every outbound call spec.md §6 names against "adapter":
// bonding, disconnect, block-list membership, and feature flags. The
// concrete implementation (package bluez) drives the real org.bluez D-Bus
// API; tests substitute a fake.
type Adapter interface {
	CreateBonding(ctx context.Context, addr Address, addrType AddressType, ioCap IOCapability) error
	CancelBonding(ctx context.Context, addr Address) error
	RemoveBonding(ctx context.Context, addr Address) error
	Disconnect(ctx context.Context, addr Address, addrType AddressType) error
	Block(ctx context.Context, addr Address) error
	Unblock(ctx context.Context, addr Address) error
	SetDeviceFlags(ctx context.Context, addr Address, flags uint32) error
	SDPSearch(ctx context.Context, addr Address, uuid string) ([]ServiceRecord, error)
	OpenATT(ctx context.Context, addr Address, addrType AddressType, secLevel int) (ATTLink, error)
}

// ATTLink is an open ATT channel with a GATT client layered over it, as
// Browse Engine's LE path needs (spec.md §4.2): wait for the client to be
// ready, then read primary services, then close.
type ATTLink interface {
	WaitReady(ctx context.Context) error
	PrimaryServices(ctx context.Context) ([]PrimaryService, error)
	ElevateSecurity(ctx context.Context, level int) error
	Close() error
}

// Agent is every inbound credential-prompt call spec.md §6 names: the
// counterpart to AuthenticationRequest. Request and display forms are
// separate methods; AuthPolicy.Resolve picks the method to call from the
// request's AuthVariant.
type Agent interface {
	Capability() IOCapability
	RequestPinCode(ctx context.Context, addr Address) (string, error)
	RequestPasskey(ctx context.Context, addr Address) (uint32, error)
	DisplayPasskey(ctx context.Context, addr Address, passkey uint32, entered uint16) error
	DisplayPinCode(ctx context.Context, addr Address, pincode string) error
	RequestConfirmation(ctx context.Context, addr Address, passkey uint32) error
	RequestAuthorization(ctx context.Context, addr Address) error
	Cancel(ctx context.Context, addr Address)
}

// Store is the persistence engine's contract (package device/store
// implements it): load/save the two logical groups spec.md §6 names
// (per-device info and cache), keyed by adapter address and peer address.
type Store interface {
	LoadInfo(adapter, addr Address) (*PersistedInfo, error)
	SaveInfo(adapter, addr Address, info *PersistedInfo) error
	DeleteInfo(adapter, addr Address) error

	LoadCache(adapter, addr Address) (*PersistedCache, error)
	SaveCache(adapter, addr Address, cache *PersistedCache) error
	DeleteCache(adapter, addr Address) error
}

// PublishFunc is how the Device Controller emits a property-changed
// notification (spec.md §2 "publishes property changes"); the object-bus
// publication layer itself is an external collaborator (spec.md §1), so
// this is a plain function the embedder supplies (e.g. a D-Bus
// prop.Properties.Set, or nothing in tests).
type PublishFunc func(propertyName string, value any)

// ProfileDescriptor is a registered profile's entry in the capability
// table Service Set consults (spec.md §4.5, §9 "Profile is a separately
// registered capability table").
type ProfileDescriptor struct {
	UUID        string
	Name        string
	Priority    int
	AutoConnect bool
	Internal    bool
}
