package device

import (
	"testing"
	"time"
)

func TestSelectConnectBearerPresenceOnly(t *testing.T) {
	br, le := &BearerState{}, &BearerState{}
	now := time.Now()

	if b, err := SelectConnectBearer(true, false, br, le, PreferLastUsed, "", AddressBREDRPublic, now); err != nil || b != BearerBREDR {
		t.Fatalf("BR/EDR-only: got %v, %v", b, err)
	}
	if b, err := SelectConnectBearer(false, true, br, le, PreferLastUsed, "", AddressLEPublic, now); err != nil || b != BearerLE {
		t.Fatalf("LE-only: got %v, %v", b, err)
	}
	if _, err := SelectConnectBearer(false, false, br, le, PreferLastUsed, "", AddressBREDRPublic, now); err == nil {
		t.Fatal("expected NotReady when neither bearer is present")
	}
}

func TestSelectConnectBearerUnpairedStillSelectable(t *testing.T) {
	// Neither bearer paired or bonded: selection must still succeed (pairing
	// and connecting are separate operations).
	br, le := &BearerState{}, &BearerState{}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressBREDRPublic, time.Now())
	if err != nil {
		t.Fatalf("expected a bearer to be selectable even when unpaired, got error: %v", err)
	}
	if b != BearerBREDR {
		t.Fatalf("expected the freshness/addr-type fallback to pick BR/EDR, got %v", b)
	}
}

func TestSelectConnectBearerPrefersBonded(t *testing.T) {
	br := &BearerState{}
	le := &BearerState{Bonded: true}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressBREDRPublic, time.Now())
	if err != nil || b != BearerLE {
		t.Fatalf("expected the bonded bearer (LE) to win, got %v, %v", b, err)
	}
}

func TestSelectConnectBearerLERandomAddrType(t *testing.T) {
	br, le := &BearerState{}, &BearerState{}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressLERandom, time.Now())
	if err != nil || b != BearerLE {
		t.Fatalf("expected LE-random address type to pick LE, got %v, %v", b, err)
	}
}

func TestSelectConnectBearerFreshnessTieBreaksBREDR(t *testing.T) {
	now := time.Now()
	br := &BearerState{Connectable: true, LastSeen: now.Add(-10 * time.Second)}
	le := &BearerState{Connectable: true, LastSeen: now.Add(-10 * time.Second)}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressBREDRPublic, now)
	if err != nil || b != BearerBREDR {
		t.Fatalf("expected a freshness tie to break toward BR/EDR, got %v, %v", b, err)
	}
}

func TestSelectConnectBearerFreshnessPicksNewer(t *testing.T) {
	now := time.Now()
	br := &BearerState{Connectable: true, LastSeen: now.Add(-200 * time.Second)}
	le := &BearerState{Connectable: true, LastSeen: now.Add(-5 * time.Second)}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressBREDRPublic, now)
	if err != nil || b != BearerLE {
		t.Fatalf("expected the more recently seen bearer (LE) to win, got %v, %v", b, err)
	}
}

func TestSelectConnectBearerStaleBeyond300sIsUnknown(t *testing.T) {
	now := time.Now()
	br := &BearerState{Connectable: true, LastSeen: now.Add(-301 * time.Second)}
	le := &BearerState{Connectable: true, LastSeen: now.Add(-250 * time.Second)}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressBREDRPublic, now)
	if err != nil || b != BearerLE {
		t.Fatalf("expected the only-known (LE) freshness to win once BR/EDR is stale, got %v, %v", b, err)
	}
}

func TestSelectConnectBearerNonConnectableIsUnknown(t *testing.T) {
	now := time.Now()
	br := &BearerState{Connectable: false, LastSeen: now.Add(-1 * time.Second)}
	le := &BearerState{Connectable: true, LastSeen: now.Add(-100 * time.Second)}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, "", AddressBREDRPublic, now)
	if err != nil || b != BearerLE {
		t.Fatalf("expected a non-connectable BR/EDR to be treated as unknown, got %v, %v", b, err)
	}
}

func TestSelectConnectBearerPreferLastUsed(t *testing.T) {
	br, le := &BearerState{}, &BearerState{}
	b, err := SelectConnectBearer(true, true, br, le, PreferLastUsed, BearerLE, AddressBREDRPublic, time.Now())
	if err != nil || b != BearerLE {
		t.Fatalf("expected PreferLastUsed to return the last-used bearer, got %v, %v", b, err)
	}
}

func TestSelectPairBearerPrefersUnbonded(t *testing.T) {
	br := &BearerState{Bonded: true}
	le := &BearerState{}
	b, err := SelectPairBearer(true, true, br, le, AddressBREDRPublic, time.Now())
	if err != nil || b != BearerLE {
		t.Fatalf("expected pair() to target the unbonded bearer (LE), got %v, %v", b, err)
	}
}

func TestSelectPairBearerSinglePresence(t *testing.T) {
	br, le := &BearerState{}, &BearerState{}
	b, err := SelectPairBearer(false, true, br, le, AddressLEPublic, time.Now())
	if err != nil || b != BearerLE {
		t.Fatalf("expected the only present bearer to be picked, got %v, %v", b, err)
	}
}
