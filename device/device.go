package device

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Device is the per-remote-device state machine spec.md §2 describes: two
// BearerState records, one KeyMaterialStore, one AdvertisingCache, one
// ServiceSet, and the three continuation engines (Browse, Bonding,
// Authentication) that each own at most one outstanding operation. Every
// field below is only ever touched from the single goroutine Run drives;
// anything reachable from another goroutine (a D-Bus method handler, a
// transport callback) must go through dispatch/call.
type Device struct {
	Addr        Address
	AddrType    AddressType
	AdapterAddr Address
	HasBREDR    bool
	HasLE       bool

	BR, LE BearerState
	Keys   KeyMaterialStore
	Cache  AdvertisingCache

	Browse  *BrowseEngine
	Bonding *BondingEngine
	Auth    *AuthPolicy
	Services *ServiceSet

	Trusted             bool
	Blocked             bool
	CablePairing        bool
	WakeAllowed         bool
	// AutoConnectDisabled is set on an untrusted caller's disconnect()
	// (spec.md §4.1.3) and cleared by the next successful explicit connect.
	AutoConnectDisabled bool
	WakeOverride    WakeOverride
	PreferredBearer PreferBearer
	LastUsedBearer  Bearer
	Temporary       bool

	policy  Policy
	adapter Adapter
	agent   Agent
	store   Store
	props   *PropertyTable
	log     *logrus.Entry

	disconnectTimer    ownedTimer
	autoDiscoverTimer  ownedTimer
	nameResolveTimer   ownedTimer
	saveTimer          ownedTimer
	dirty              bool
	pendingPaired      bool

	runCtx context.Context

	cmdCh  chan func()
	inbox  chan InboundEvent
	closed chan struct{}
	once   sync.Once
}

// NewDevice constructs an idle Device for addr, not yet running. hasBREDR
// and hasLE record which bearers this device actually exposes (spec.md §3
// invariant 1: at least one must be true); a dual-mode device sets both.
func NewDevice(addr Address, addrType AddressType, adapterAddr Address, hasBREDR, hasLE bool, adapter Adapter, agent Agent, store Store, profiles map[string]ProfileDescriptor, policy Policy, publish PublishFunc) *Device {
	d := &Device{
		Addr:            addr,
		AddrType:        addrType,
		AdapterAddr:     adapterAddr,
		HasBREDR:        hasBREDR,
		HasLE:           hasLE,
		Cache:           *NewAdvertisingCache(),
		Browse:          NewBrowseEngine(),
		Bonding:         NewBondingEngine(policy),
		Auth:            NewAuthPolicy(policy),
		Services:        NewServiceSet(profiles),
		PreferredBearer: PreferLastUsed,
		policy:          policy,
		adapter:         adapter,
		agent:           agent,
		store:           store,
		props:           NewPropertyTable(publish),
		log:             WithDevice(addr),
		cmdCh:           make(chan func(), 8),
		inbox:           make(chan InboundEvent, 32),
		closed:          make(chan struct{}),
	}
	d.Keys = *NewKeyMaterialStore(d.markDirty)
	registerProperties(d)
	return d
}

// Run drives the event loop until ctx is canceled: commands submitted via
// call/dispatch, inbound transport events, and the timers above all funnel
// through this single select so Device state is only ever touched by one
// goroutine (spec.md §2's "continuation" pattern).
func (d *Device) Run(ctx context.Context) {
	defer d.once.Do(func() { close(d.closed) })
	d.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.cmdCh:
			fn()
		case ev := <-d.inbox:
			d.handleInbound(ev)
		}
	}
}

// Deliver enqueues an inbound transport event for processing by Run. It
// never blocks the caller for long: the channel is buffered, and a full
// buffer drops the oldest update rather than stalling the transport
// goroutine (a later event supersedes an unprocessed older one anyway).
func (d *Device) Deliver(ev InboundEvent) {
	select {
	case d.inbox <- ev:
	default:
		select {
		case <-d.inbox:
		default:
		}
		select {
		case d.inbox <- ev:
		default:
		}
	}
}

// call runs fn on the loop goroutine and waits for its result, giving
// callers (D-Bus method handlers) synchronous-looking semantics for the
// part of each operation that is itself synchronous (validation, starting
// an async engine) per spec.md §5.
func (d *Device) call(fn func() error) error {
	done := make(chan error, 1)
	select {
	case d.cmdCh <- func() { done <- fn() }:
	case <-d.closed:
		return NewError(ErrNotReady, nil)
	}
	select {
	case err := <-done:
		return err
	case <-d.closed:
		return NewError(ErrNotReady, nil)
	}
}

// dispatch runs fn on the loop goroutine without waiting for it, for
// continuation completions (browse/bonding outcomes) that don't need to
// report back to an external caller.
func (d *Device) dispatch(fn func()) {
	select {
	case d.cmdCh <- fn:
	case <-d.closed:
	}
}

func (d *Device) markDirty() {
	d.dirty = true
	d.saveTimer.arm(200*time.Millisecond, d.flush)
}

// flush writes accumulated state to the store, debounced so a burst of key
// or flag changes coalesces into one write (spec.md §6).
func (d *Device) flush() {
	d.dispatch(func() {
		if !d.dirty || d.store == nil {
			return
		}
		d.dirty = false
		info := d.snapshotInfo()
		if err := d.store.SaveInfo(d.AdapterAddr, d.Addr, info); err != nil {
			d.log.WithError(err).Warn("persist info failed")
		}
		cache := d.snapshotCache()
		if err := d.store.SaveCache(d.AdapterAddr, d.Addr, cache); err != nil {
			d.log.WithError(err).Warn("persist cache failed")
		}
	})
}

func (d *Device) snapshotInfo() *PersistedInfo {
	return &PersistedInfo{
		Name:            d.Cache.Name(),
		Alias:           d.Cache.Alias,
		Class:           d.Cache.Class,
		Appearance:      d.Cache.Appearance(),
		AddressType:     d.AddrType,
		PreferredBearer: d.PreferredBearer,
		LastUsedBearer:  d.LastUsedBearer,
		Trusted:         d.Trusted,
		Blocked:         d.Blocked,
		CablePairing:    d.CablePairing,
		WakeAllowed:     d.WakeAllowed,
		LocalCSRK:       d.Keys.LocalCSRK,
		RemoteCSRK:      d.Keys.RemoteCSRK,
		SIRKs:           d.Keys.SIRKs,
	}
}

func (d *Device) snapshotCache() *PersistedCache {
	return &PersistedCache{
		Name: d.Cache.Name(),
	}
}
