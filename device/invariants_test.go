package device

import (
	"context"
	"testing"
	"time"
)

// TestInvariantBondingInProgressRejectsSecondPair is spec.md §8 invariant 2:
// at most one of {browse, bonding} is active; a second pair() while one is
// outstanding fails with "in progress".
func TestInvariantBondingInProgressRejectsSecondPair(t *testing.T) {
	d, adapter, _, _, _ := newRunningDevice(t, true, false, AddressBREDRPublic, nil)
	adapter.createBondingDelay = 200 * time.Millisecond

	if err := d.Pair(context.Background()); err != nil {
		t.Fatalf("first Pair: %v", err)
	}
	err := d.Pair(context.Background())
	if kind, ok := KindOf(err); !ok || kind != ErrInProgress {
		t.Fatalf("expected ErrInProgress for a concurrent Pair, got %v", err)
	}
}

// TestInvariantReconcilePairedBonded is spec.md §8 invariant 6/8 applied
// directly to BearerState: a paired-but-unbonded bearer must drop Paired.
func TestInvariantReconcilePairedBonded(t *testing.T) {
	bs := &BearerState{Paired: true, Bonded: false}
	bs.reconcilePairedBonded()
	if bs.Paired {
		t.Fatal("expected Paired to clear when Bonded is false")
	}

	bs2 := &BearerState{Paired: true, Bonded: true}
	bs2.reconcilePairedBonded()
	if !bs2.Paired {
		t.Fatal("expected Paired to survive when Bonded is true")
	}
}

// TestInvariantPairedBondedObservableDisjunction is spec.md §8 invariant 7:
// the Paired/Bonded observables are the OR of the two bearers.
func TestInvariantPairedBondedObservableDisjunction(t *testing.T) {
	d, _, _, _, _ := newRunningDevice(t, true, true, AddressBREDRPublic, nil)
	d.call(func() error {
		d.BR.Paired = false
		d.LE.Paired = true
		d.BR.Bonded = false
		d.LE.Bonded = false
		return nil
	})
	if !read(d, (*Device).AnyPaired) {
		t.Fatal("expected AnyPaired true when LE alone is paired")
	}
	if read(d, (*Device).AnyBonded) {
		t.Fatal("expected AnyBonded false when neither bearer is bonded")
	}
}

// TestInvariantSIRKUsability is spec.md §8 invariant 11: an encrypted SIRK
// is only usable once an LTK is available; an unencrypted one always is.
func TestInvariantSIRKUsability(t *testing.T) {
	k := NewKeyMaterialStore(nil)
	k.AddSIRK(SIRK{Value: [16]byte{1}, Encrypted: false})
	k.AddSIRK(SIRK{Value: [16]byte{2}, Encrypted: true})

	if !k.SIRKs[0].Usable() {
		t.Fatal("expected an unencrypted SIRK to be usable immediately")
	}
	if k.SIRKs[1].Usable() {
		t.Fatal("expected an encrypted SIRK to be unusable before an LTK is set")
	}

	k.SetLTK(LongTermKey{Central: true})
	if !k.SIRKs[1].Usable() {
		t.Fatal("expected the encrypted SIRK to become usable once an LTK is available")
	}
}

// TestInvariantServicesResolvedClearsOnDisconnect is spec.md §8 invariant
// 10: "services resolved" is true only while connected, and clears when the
// bearer disconnects.
func TestInvariantServicesResolvedClearsOnDisconnect(t *testing.T) {
	d, _, _, _, _ := newRunningDevice(t, false, true, AddressLEPublic, nil)
	d.call(func() error {
		d.LE.Connected = true
		d.LE.SvcResolved = true
		return nil
	})
	if !read(d, func(d *Device) bool { return d.LE.SvcResolved }) {
		t.Fatal("expected SvcResolved true while connected")
	}

	d.Deliver(InboundEvent{Bearer: BearerLE, Connected: boolPtr(false)})
	if !waitUntil(d, time.Second, func(d *Device) bool { return !d.LE.Connected }) {
		t.Fatal("disconnect did not apply in time")
	}
	if read(d, func(d *Device) bool { return d.LE.SvcResolved }) {
		t.Fatal("expected SvcResolved to clear on disconnect")
	}
}

// TestInvariantDisconnectGraceForcesBookkeeping covers spec.md §4.1.3 step 3:
// if the adapter never confirms the disconnect, the grace timer forces the
// same local bookkeeping a Connected=false event would have applied.
func TestInvariantDisconnectGraceForcesBookkeeping(t *testing.T) {
	d, _, _, _, _ := newRunningDevice(t, true, false, AddressBREDRPublic, nil)
	d.call(func() error {
		d.BR.Connected = true
		return nil
	})

	if err := d.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if !waitUntil(d, time.Second, func(d *Device) bool { return !d.BR.Connected }) {
		t.Fatal("expected the grace timer to force Connected=false")
	}
}

// TestInvariantInboundServicesResolvedReleasesDeferredPaired covers spec.md
// §4.1.6 step 3 via the inbound-event path rather than the Browse Engine
// path: a pending deferred Paired notification must also be released when
// the daemon itself reports ServicesResolved externally.
func TestInvariantInboundServicesResolvedReleasesDeferredPaired(t *testing.T) {
	d, _, _, _, rec := newRunningDevice(t, false, true, AddressLEPublic, nil)
	d.call(func() error {
		d.LE.Paired = true
		d.LE.Bonded = true
		d.pendingPaired = true
		return nil
	})

	d.Deliver(InboundEvent{Bearer: BearerLE, ServicesResolved: boolPtr(true)})

	if !waitUntil(d, time.Second, func(d *Device) bool { return !d.pendingPaired }) {
		t.Fatal("expected pendingPaired to clear once ServicesResolved arrived")
	}
	if !rec.has("Paired") {
		t.Fatal("expected a deferred Paired notification once services resolved")
	}
}
