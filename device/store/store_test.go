package store

import (
	"strings"
	"testing"

	"github.com/makesoftwaresafe/bluez/device"
)

const (
	testAdapter = device.Address("/org/bluez/hci0")
	testPeer    = device.Address("AA:BB:CC:DD:EE:01")
)

// TestFileStoreInfoRoundTrip is spec.md §8 invariant 5: load(store(Device))
// reproduces all fields in the §6 persistent layout.
func TestFileStoreInfoRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	want := &device.PersistedInfo{
		Name:            "Headset",
		Alias:           "My Headset",
		Class:           0x240404,
		Appearance:      0x0941,
		AddressType:     device.AddressBREDRPublic,
		PreferredBearer: device.PreferBREDR,
		LastUsedBearer:  device.BearerBREDR,
		Trusted:         true,
		Blocked:         false,
		CablePairing:    true,
		WakeAllowed:     true,
		Services:        []string{"0000110a-0000-1000-8000-00805f9b34fb", "0000110b-0000-1000-8000-00805f9b34fb"},
		HasDeviceID:     true,
		DeviceID:        device.PnPInfo{Source: 1, Vendor: 0x004c, Product: 0x0001, Version: 0x0100},
		LocalCSRK:       device.SignatureKey{Set: true, Value: [16]byte{1, 2, 3}, Counter: 7, Authenticated: true},
		RemoteCSRK:      device.SignatureKey{Set: true, Value: [16]byte{4, 5, 6}, Counter: 42, Authenticated: false},
		SIRKs: []device.SIRK{
			{Value: [16]byte{0xAA}, Encrypted: true, Size: 16, Rank: 1},
			{Value: [16]byte{0xBB}, Encrypted: false, Size: 16, Rank: 2},
		},
		CCCLE:    1,
		CCCBREDR: 2,
	}

	if err := s.SaveInfo(testAdapter, testPeer, want); err != nil {
		t.Fatalf("SaveInfo: %v", err)
	}
	got, err := s.LoadInfo(testAdapter, testPeer)
	if err != nil {
		t.Fatalf("LoadInfo: %v", err)
	}

	if got.Name != want.Name || got.Alias != want.Alias || got.Class != want.Class || got.Appearance != want.Appearance {
		t.Fatalf("General fields mismatch: got %+v, want %+v", got, want)
	}
	if got.AddressType != want.AddressType || got.PreferredBearer != want.PreferredBearer || got.LastUsedBearer != want.LastUsedBearer {
		t.Fatalf("bearer fields mismatch: got %+v", got)
	}
	if got.Trusted != want.Trusted || got.Blocked != want.Blocked || got.CablePairing != want.CablePairing || got.WakeAllowed != want.WakeAllowed {
		t.Fatalf("flag fields mismatch: got %+v", got)
	}
	if len(got.Services) != len(want.Services) || got.Services[0] != want.Services[0] || got.Services[1] != want.Services[1] {
		t.Fatalf("Services mismatch: got %v, want %v", got.Services, want.Services)
	}
	if !got.HasDeviceID || got.DeviceID != want.DeviceID {
		t.Fatalf("DeviceID mismatch: got %+v, want %+v", got.DeviceID, want.DeviceID)
	}
	if got.LocalCSRK != want.LocalCSRK {
		t.Fatalf("LocalCSRK mismatch: got %+v, want %+v", got.LocalCSRK, want.LocalCSRK)
	}
	if got.RemoteCSRK != want.RemoteCSRK {
		t.Fatalf("RemoteCSRK mismatch: got %+v, want %+v", got.RemoteCSRK, want.RemoteCSRK)
	}
	if len(got.SIRKs) != 2 {
		t.Fatalf("expected 2 SIRKs, got %d", len(got.SIRKs))
	}
	for i, want := range want.SIRKs {
		g := got.SIRKs[i]
		if g.Value != want.Value || g.Encrypted != want.Encrypted || g.Size != want.Size || g.Rank != want.Rank {
			t.Fatalf("SIRKs[%d] mismatch: got %+v, want %+v", i, g, want)
		}
	}
	if got.CCCLE != want.CCCLE || got.CCCBREDR != want.CCCBREDR {
		t.Fatalf("CCC fields mismatch: got %+v", got)
	}
}

func TestFileStoreCacheRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	want := &device.PersistedCache{
		Name:                  "Headset",
		NameResolvingFailedAt: 1234567890,
		ServiceRecords: []device.ServiceRecord{
			{UUIDs: []string{"0000110a-0000-1000-8000-00805f9b34fb"}, Raw: []byte{0x01, 0x02, 0x03}},
		},
		Primaries: []device.PrimaryService{
			{UUID: "0000180f-0000-1000-8000-00805f9b34fb", Path: "/org/bluez/hci0/dev_AA_BB/service0010"},
		},
	}

	if err := s.SaveCache(testAdapter, testPeer, want); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}
	got, err := s.LoadCache(testAdapter, testPeer)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}

	if got.Name != want.Name || got.NameResolvingFailedAt != want.NameResolvingFailedAt {
		t.Fatalf("General fields mismatch: got %+v, want %+v", got, want)
	}
	if len(got.ServiceRecords) != 1 || got.ServiceRecords[0].UUIDs[0] != want.ServiceRecords[0].UUIDs[0] {
		t.Fatalf("ServiceRecords mismatch: got %+v", got.ServiceRecords)
	}
	if string(got.ServiceRecords[0].Raw) != string(want.ServiceRecords[0].Raw) {
		t.Fatalf("ServiceRecords[0].Raw mismatch: got %x, want %x", got.ServiceRecords[0].Raw, want.ServiceRecords[0].Raw)
	}
	if len(got.Primaries) != 1 || got.Primaries[0] != want.Primaries[0] {
		t.Fatalf("Primaries mismatch: got %+v, want %+v", got.Primaries, want.Primaries)
	}
}

// TestFileStoreLoadMissingReturnsZeroValue covers the documented behavior
// that loading an unseen device is not an error.
func TestFileStoreLoadMissingReturnsZeroValue(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	info, err := s.LoadInfo(testAdapter, testPeer)
	if err != nil {
		t.Fatalf("LoadInfo on missing device: %v", err)
	}
	if info.Name != "" || info.HasDeviceID {
		t.Fatalf("expected a zero-value PersistedInfo, got %+v", info)
	}
	cache, err := s.LoadCache(testAdapter, testPeer)
	if err != nil {
		t.Fatalf("LoadCache on missing device: %v", err)
	}
	if cache.Name != "" || len(cache.Primaries) != 0 {
		t.Fatalf("expected a zero-value PersistedCache, got %+v", cache)
	}
}

func TestFileStoreDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.SaveInfo(testAdapter, testPeer, &device.PersistedInfo{Name: "Headset"}); err != nil {
		t.Fatalf("SaveInfo: %v", err)
	}
	if err := s.DeleteInfo(testAdapter, testPeer); err != nil {
		t.Fatalf("DeleteInfo: %v", err)
	}
	info, err := s.LoadInfo(testAdapter, testPeer)
	if err != nil {
		t.Fatalf("LoadInfo after delete: %v", err)
	}
	if info.Name != "" {
		t.Fatalf("expected delete to reset to zero value, got %+v", info)
	}
	// Deleting again (nothing on disk) must still succeed.
	if err := s.DeleteInfo(testAdapter, testPeer); err != nil {
		t.Fatalf("DeleteInfo on already-deleted: %v", err)
	}
}

func TestKeyfileParseWriteRoundTrip(t *testing.T) {
	src := "[General]\nName=Headset\nTrusted=true\n\n[DeviceID]\nSource=1\nVendor=76\n"
	kf, err := parseKeyfile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseKeyfile: %v", err)
	}
	if got := kf.groupNames(); len(got) != 2 || got[0] != "DeviceID" || got[1] != "General" {
		t.Fatalf("unexpected group names: %v", got)
	}
	gen := kf.groups["General"]
	if v, ok := gen.get("Name"); !ok || v != "Headset" {
		t.Fatalf("expected General.Name=Headset, got %q, %v", v, ok)
	}
}
