package device

import (
	"context"
	"testing"
	"time"
)

// testPolicy mirrors DefaultPolicy but with the disconnect-grace,
// bonding-retry, auto-discovery and name-resolve delays shrunk so scenario
// tests don't spend real wall-clock time waiting on them; TemporaryTTL keeps
// its default.
func testPolicy() Policy {
	p := DefaultPolicy()
	p.DisconnectGrace = 20 * time.Millisecond
	p.BondingRetryDelay = 10 * time.Millisecond
	p.AutoDiscoveryDeferral = 10 * time.Millisecond
	p.NameResolveRetryDelay = 10 * time.Millisecond
	return p
}

// newRunningDevice builds a Device wired to fresh fakes and starts its event
// loop, registering cleanup to stop it when the test ends.
func newRunningDevice(t *testing.T, hasBREDR, hasLE bool, addrType AddressType, profiles map[string]ProfileDescriptor) (*Device, *fakeAdapter, *fakeAgent, *fakeStore, *publishRecorder) {
	t.Helper()
	adapter := newFakeAdapter()
	agent := &fakeAgent{cap: IOCapNoInputNoOutput}
	store := newFakeStore()
	rec := &publishRecorder{}
	if profiles == nil {
		profiles = map[string]ProfileDescriptor{}
	}
	d := NewDevice(Address("AA:BB:CC:DD:EE:01"), addrType, Address("/org/bluez/hci0"), hasBREDR, hasLE, adapter, agent, store, profiles, testPolicy(), rec.publish)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)
	return d, adapter, agent, store, rec
}

// read runs fn on the Device's loop goroutine and returns its result,
// giving tests data-race-free access to loop-owned fields.
func read[T any](d *Device, fn func(d *Device) T) T {
	var out T
	d.call(func() error { out = fn(d); return nil })
	return out
}

// waitUntil polls cond (evaluated safely on the loop goroutine) until it
// reports true or timeout elapses, returning whether it succeeded.
func waitUntil(d *Device, timeout time.Duration, cond func(d *Device) bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if read(d, cond) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func boolPtr(b bool) *bool { return &b }

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
