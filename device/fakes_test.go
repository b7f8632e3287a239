package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAdapter is an in-memory stand-in for package bluez's *Adapter, driven
// entirely by canned responses a test installs before exercising a Device.
type fakeAdapter struct {
	mu sync.Mutex

	createBondingErr   error
	createBondingCalls int
	createBondingDelay time.Duration

	cancelBondingCalls int

	removeBondingErr error
	disconnectErr    error
	blockErr         error
	unblockErr       error

	sdpResults map[string][]ServiceRecord // keyed by UUID
	sdpErr     error

	openATTLink ATTLink
	openATTErr  error
	openATTLog  []AddressType

	// openATTErrByType/openATTLinkByType override the generic
	// openATTErr/openATTLink for one specific AddressType, for tests that
	// need OpenATT to behave differently per bearer (e.g. S3's BR/EDR
	// EHOSTDOWN, LE success).
	openATTErrByType  map[AddressType]error
	openATTLinkByType map[AddressType]ATTLink
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{sdpResults: map[string][]ServiceRecord{}}
}

func (f *fakeAdapter) CreateBonding(ctx context.Context, addr Address, addrType AddressType, ioCap IOCapability) error {
	f.mu.Lock()
	f.createBondingCalls++
	delay := f.createBondingDelay
	err := f.createBondingErr
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeAdapter) CancelBonding(ctx context.Context, addr Address) error {
	f.mu.Lock()
	f.cancelBondingCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) RemoveBonding(ctx context.Context, addr Address) error { return f.removeBondingErr }

func (f *fakeAdapter) Disconnect(ctx context.Context, addr Address, addrType AddressType) error {
	return f.disconnectErr
}

func (f *fakeAdapter) Block(ctx context.Context, addr Address) error { return f.blockErr }

func (f *fakeAdapter) Unblock(ctx context.Context, addr Address) error { return f.unblockErr }

func (f *fakeAdapter) SetDeviceFlags(ctx context.Context, addr Address, flags uint32) error {
	return nil
}

func (f *fakeAdapter) SDPSearch(ctx context.Context, addr Address, uuid string) ([]ServiceRecord, error) {
	if f.sdpErr != nil {
		return nil, f.sdpErr
	}
	return f.sdpResults[uuid], nil
}

func (f *fakeAdapter) OpenATT(ctx context.Context, addr Address, addrType AddressType, secLevel int) (ATTLink, error) {
	f.mu.Lock()
	f.openATTLog = append(f.openATTLog, addrType)
	defer f.mu.Unlock()
	if err, ok := f.openATTErrByType[addrType]; ok {
		return nil, err
	}
	if f.openATTErr != nil {
		return nil, f.openATTErr
	}
	if link, ok := f.openATTLinkByType[addrType]; ok {
		return link, nil
	}
	return f.openATTLink, nil
}

// fakeATTLink is a scripted ATTLink for the LE browse/connect path.
type fakeATTLink struct {
	waitErr        error
	primaries      []PrimaryService
	primariesErr   error
	elevateErr     error
	closed         bool
}

func (f *fakeATTLink) WaitReady(ctx context.Context) error { return f.waitErr }

func (f *fakeATTLink) PrimaryServices(ctx context.Context) ([]PrimaryService, error) {
	return f.primaries, f.primariesErr
}

func (f *fakeATTLink) ElevateSecurity(ctx context.Context, level int) error { return f.elevateErr }

func (f *fakeATTLink) Close() error { f.closed = true; return nil }

// fakeAgent is a scripted Agent; RequestConfirmation/RequestAuthorization
// always accept unless told to reject.
type fakeAgent struct {
	cap          IOCapability
	rejectAuth   bool
	canceled     bool
}

func (f *fakeAgent) Capability() IOCapability { return f.cap }

func (f *fakeAgent) RequestPinCode(ctx context.Context, addr Address) (string, error) {
	return "0000", nil
}

func (f *fakeAgent) RequestPasskey(ctx context.Context, addr Address) (uint32, error) {
	return 123456, nil
}

func (f *fakeAgent) DisplayPasskey(ctx context.Context, addr Address, passkey uint32, entered uint16) error {
	return nil
}

func (f *fakeAgent) DisplayPinCode(ctx context.Context, addr Address, pincode string) error {
	return nil
}

func (f *fakeAgent) RequestConfirmation(ctx context.Context, addr Address, passkey uint32) error {
	if f.rejectAuth {
		return NewError(ErrAuthenticationReject, nil)
	}
	return nil
}

func (f *fakeAgent) RequestAuthorization(ctx context.Context, addr Address) error {
	if f.rejectAuth {
		return NewError(ErrAuthenticationReject, nil)
	}
	return nil
}

func (f *fakeAgent) Cancel(ctx context.Context, addr Address) { f.canceled = true }

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu    sync.Mutex
	info  map[string]*PersistedInfo
	cache map[string]*PersistedCache
}

func newFakeStore() *fakeStore {
	return &fakeStore{info: map[string]*PersistedInfo{}, cache: map[string]*PersistedCache{}}
}

func storeKey(adapter, addr Address) string { return string(adapter) + "|" + string(addr) }

func (f *fakeStore) LoadInfo(adapter, addr Address) (*PersistedInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.info[storeKey(adapter, addr)]
	if !ok {
		return nil, errors.New("not found")
	}
	return info, nil
}

func (f *fakeStore) SaveInfo(adapter, addr Address, info *PersistedInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info[storeKey(adapter, addr)] = info
	return nil
}

func (f *fakeStore) DeleteInfo(adapter, addr Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.info, storeKey(adapter, addr))
	return nil
}

func (f *fakeStore) LoadCache(adapter, addr Address) (*PersistedCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cache[storeKey(adapter, addr)]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (f *fakeStore) SaveCache(adapter, addr Address, cache *PersistedCache) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[storeKey(adapter, addr)] = cache
	return nil
}

func (f *fakeStore) DeleteCache(adapter, addr Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, storeKey(adapter, addr))
	return nil
}

// publishRecorder collects every property-changed notification a test
// Device emits, for assertions on notification ordering/count.
type publishRecorder struct {
	mu     sync.Mutex
	events []string
}

func (p *publishRecorder) publish(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
}

func (p *publishRecorder) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == name {
			n++
		}
	}
	return n
}

func (p *publishRecorder) has(name string) bool { return p.count(name) > 0 }
