package device

import "testing"

func TestShouldEmitRSSI(t *testing.T) {
	cases := []struct {
		old, next int8
		want      bool
	}{
		{0, -60, true},   // first reading
		{-60, 0, true},   // link gone quiet
		{-60, -64, false}, // below hysteresis threshold
		{-60, -68, true}, // exactly at threshold
		{-60, -52, true}, // exactly at threshold, opposite direction
		{-60, -60, false},
	}
	for _, c := range cases {
		if got := shouldEmitRSSI(c.old, c.next); got != c.want {
			t.Errorf("shouldEmitRSSI(%d, %d) = %v, want %v", c.old, c.next, got, c.want)
		}
	}
}

func TestShouldSetAppearance(t *testing.T) {
	cases := []struct {
		hasExisting   bool
		existing, next uint16
		want          bool
	}{
		{false, 0, 0x0341, true},
		{false, 0, 0, false},
		{true, 0x0341, 0, false},     // zero never clears an existing value
		{true, 0x0341, 0x0341, false}, // no-op write
		{true, 0x0341, 0x0080, true},
	}
	for _, c := range cases {
		if got := shouldSetAppearance(c.hasExisting, c.existing, c.next); got != c.want {
			t.Errorf("shouldSetAppearance(%v, %d, %d) = %v, want %v", c.hasExisting, c.existing, c.next, got, c.want)
		}
	}
}

func TestAdvertisingCacheUUIDsPrefersResolved(t *testing.T) {
	c := NewAdvertisingCache()
	c.AddEIRUUIDs([]string{"0000180d-0000-1000-8000-00805f9b34fb"})
	if got := c.UUIDs(); len(got) != 1 {
		t.Fatalf("expected EIR UUIDs before any resolution, got %v", got)
	}
	c.SetResolvedUUIDs([]string{"0000110b-0000-1000-8000-00805f9b34fb"})
	got := c.UUIDs()
	if len(got) != 1 || got[0] != "0000110b-0000-1000-8000-00805f9b34fb" {
		t.Fatalf("expected resolved UUIDs to take over, got %v", got)
	}
}

func TestAdvertisingCacheSetNameIgnoresEmpty(t *testing.T) {
	c := NewAdvertisingCache()
	if changed := c.SetName("Speaker"); !changed {
		t.Fatal("expected the first non-empty name to change")
	}
	if changed := c.SetName(""); changed {
		t.Fatal("expected an empty name to be ignored")
	}
	if c.Name() != "Speaker" {
		t.Fatalf("expected name to remain %q, got %q", "Speaker", c.Name())
	}
}
