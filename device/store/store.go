package store

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/makesoftwaresafe/bluez/device"
)

// FileStore implements device.Store against a directory tree laid out
// per-adapter, per-peer: <root>/<adapter>/<peer>/info and
// <root>/<adapter>/<peer>/cache, mirroring BlueZ's own
// /var/lib/bluetooth/<adapter>/<peer>/{info,cache} convention.
type FileStore struct {
	root string
}

var _ device.Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at root, creating it if necessary.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func addrDir(addr device.Address) string {
	return strings.ReplaceAll(string(addr), ":", "_")
}

func (s *FileStore) deviceDir(adapter, addr device.Address) string {
	return filepath.Join(s.root, addrDir(adapter), addrDir(addr))
}

func (s *FileStore) infoPath(adapter, addr device.Address) string {
	return filepath.Join(s.deviceDir(adapter, addr), "info")
}

func (s *FileStore) cachePath(adapter, addr device.Address) string {
	return filepath.Join(s.deviceDir(adapter, addr), "cache")
}

// LoadInfo reads the persisted info group for addr, returning a zero-value
// *device.PersistedInfo (not an error) if nothing has been saved yet.
func (s *FileStore) LoadInfo(adapter, addr device.Address) (*device.PersistedInfo, error) {
	f, err := os.Open(s.infoPath(adapter, addr))
	if os.IsNotExist(err) {
		return &device.PersistedInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	kf, err := parseKeyfile(f)
	if err != nil {
		return nil, fmt.Errorf("store: parse info %s/%s: %w", adapter, addr, err)
	}
	return decodeInfo(kf), nil
}

// SaveInfo writes info atomically (write to a temp file, then rename).
func (s *FileStore) SaveInfo(adapter, addr device.Address, info *device.PersistedInfo) error {
	dir := s.deviceDir(adapter, addr)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return writeAtomic(s.infoPath(adapter, addr), encodeInfo(info))
}

// DeleteInfo removes the persisted info file, if any.
func (s *FileStore) DeleteInfo(adapter, addr device.Address) error {
	err := os.Remove(s.infoPath(adapter, addr))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadCache reads the persisted cache group for addr.
func (s *FileStore) LoadCache(adapter, addr device.Address) (*device.PersistedCache, error) {
	f, err := os.Open(s.cachePath(adapter, addr))
	if os.IsNotExist(err) {
		return &device.PersistedCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	kf, err := parseKeyfile(f)
	if err != nil {
		return nil, fmt.Errorf("store: parse cache %s/%s: %w", adapter, addr, err)
	}
	return decodeCache(kf), nil
}

// SaveCache writes cache atomically.
func (s *FileStore) SaveCache(adapter, addr device.Address, cache *device.PersistedCache) error {
	dir := s.deviceDir(adapter, addr)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return writeAtomic(s.cachePath(adapter, addr), encodeCache(cache))
}

// DeleteCache removes the persisted cache file, if any.
func (s *FileStore) DeleteCache(adapter, addr device.Address) error {
	err := os.Remove(s.cachePath(adapter, addr))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func writeAtomic(path string, kf *keyfile) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := kf.write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func parseBool(s string) bool { return s == "true" || s == "1" }

func encodeInfo(info *device.PersistedInfo) *keyfile {
	kf := newKeyfile()
	gen := kf.group("General")
	gen.set("Name", info.Name)
	gen.set("Alias", info.Alias)
	gen.set("Class", strconv.FormatUint(uint64(info.Class), 10))
	gen.set("Appearance", strconv.FormatUint(uint64(info.Appearance), 10))
	gen.set("AddressType", strconv.Itoa(int(info.AddressType)))
	gen.set("PreferredBearer", strconv.Itoa(int(info.PreferredBearer)))
	gen.set("LastUsedBearer", string(info.LastUsedBearer))
	gen.set("Trusted", boolStr(info.Trusted))
	gen.set("Blocked", boolStr(info.Blocked))
	gen.set("CablePairing", boolStr(info.CablePairing))
	gen.set("WakeAllowed", boolStr(info.WakeAllowed))
	gen.set("Services", strings.Join(info.Services, ";"))

	if info.HasDeviceID {
		id := kf.group("DeviceID")
		id.set("Source", strconv.FormatUint(uint64(info.DeviceID.Source), 10))
		id.set("Vendor", strconv.FormatUint(uint64(info.DeviceID.Vendor), 10))
		id.set("Product", strconv.FormatUint(uint64(info.DeviceID.Product), 10))
		id.set("Version", strconv.FormatUint(uint64(info.DeviceID.Version), 10))
	}

	if info.LocalCSRK.Set {
		g := kf.group("LocalSignatureKey")
		g.set("Key", hex.EncodeToString(info.LocalCSRK.Value[:]))
		g.set("Counter", strconv.FormatUint(uint64(info.LocalCSRK.Counter), 10))
		g.set("Authenticated", boolStr(info.LocalCSRK.Authenticated))
	}
	if info.RemoteCSRK.Set {
		g := kf.group("RemoteSignatureKey")
		g.set("Key", hex.EncodeToString(info.RemoteCSRK.Value[:]))
		g.set("Counter", strconv.FormatUint(uint64(info.RemoteCSRK.Counter), 10))
		g.set("Authenticated", boolStr(info.RemoteCSRK.Authenticated))
	}
	for i, sirk := range info.SIRKs {
		g := kf.group(fmt.Sprintf("SetIdentityResolvingKey#%d", i))
		g.set("Key", hex.EncodeToString(sirk.Value[:]))
		g.set("Encrypted", boolStr(sirk.Encrypted))
		g.set("Size", strconv.Itoa(sirk.Size))
		g.set("Rank", strconv.Itoa(sirk.Rank))
	}

	sc := kf.group("ServiceChanged")
	sc.set("CCCLE", strconv.FormatUint(uint64(info.CCCLE), 10))
	sc.set("CCCBREDR", strconv.FormatUint(uint64(info.CCCBREDR), 10))

	return kf
}

func decodeInfo(kf *keyfile) *device.PersistedInfo {
	info := &device.PersistedInfo{}
	if gen, ok := kf.groups["General"]; ok {
		info.Name, _ = gen.get("Name")
		info.Alias, _ = gen.get("Alias")
		if v, ok := gen.get("Class"); ok {
			n, _ := strconv.ParseUint(v, 10, 32)
			info.Class = uint32(n)
		}
		if v, ok := gen.get("Appearance"); ok {
			n, _ := strconv.ParseUint(v, 10, 16)
			info.Appearance = uint16(n)
		}
		if v, ok := gen.get("AddressType"); ok {
			n, _ := strconv.Atoi(v)
			info.AddressType = device.AddressType(n)
		}
		if v, ok := gen.get("PreferredBearer"); ok {
			n, _ := strconv.Atoi(v)
			info.PreferredBearer = device.PreferBearer(n)
		}
		if v, ok := gen.get("LastUsedBearer"); ok {
			info.LastUsedBearer = device.Bearer(v)
		}
		if v, ok := gen.get("Trusted"); ok {
			info.Trusted = parseBool(v)
		}
		if v, ok := gen.get("Blocked"); ok {
			info.Blocked = parseBool(v)
		}
		if v, ok := gen.get("CablePairing"); ok {
			info.CablePairing = parseBool(v)
		}
		if v, ok := gen.get("WakeAllowed"); ok {
			info.WakeAllowed = parseBool(v)
		}
		if v, ok := gen.get("Services"); ok && v != "" {
			info.Services = strings.Split(v, ";")
		}
	}
	if id, ok := kf.groups["DeviceID"]; ok {
		info.HasDeviceID = true
		info.DeviceID.Source = parseU16(id, "Source")
		info.DeviceID.Vendor = parseU16(id, "Vendor")
		info.DeviceID.Product = parseU16(id, "Product")
		info.DeviceID.Version = parseU16(id, "Version")
	}
	if g, ok := kf.groups["LocalSignatureKey"]; ok {
		info.LocalCSRK = decodeSignatureKey(g)
	}
	if g, ok := kf.groups["RemoteSignatureKey"]; ok {
		info.RemoteCSRK = decodeSignatureKey(g)
	}
	for _, name := range kf.order {
		if !strings.HasPrefix(name, "SetIdentityResolvingKey#") {
			continue
		}
		g := kf.groups[name]
		var sirk device.SIRK
		if v, ok := g.get("Key"); ok {
			b, _ := hex.DecodeString(v)
			copy(sirk.Value[:], b)
		}
		if v, ok := g.get("Encrypted"); ok {
			sirk.Encrypted = parseBool(v)
		}
		if v, ok := g.get("Size"); ok {
			sirk.Size, _ = strconv.Atoi(v)
		}
		if v, ok := g.get("Rank"); ok {
			sirk.Rank, _ = strconv.Atoi(v)
		}
		info.SIRKs = append(info.SIRKs, sirk)
	}
	if sc, ok := kf.groups["ServiceChanged"]; ok {
		info.CCCLE = parseU16(sc, "CCCLE")
		info.CCCBREDR = parseU16(sc, "CCCBREDR")
	}
	return info
}

func decodeSignatureKey(g *kfGroup) device.SignatureKey {
	var sk device.SignatureKey
	sk.Set = true
	if v, ok := g.get("Key"); ok {
		b, _ := hex.DecodeString(v)
		copy(sk.Value[:], b)
	}
	if v, ok := g.get("Counter"); ok {
		n, _ := strconv.ParseUint(v, 10, 32)
		sk.Counter = uint32(n)
	}
	if v, ok := g.get("Authenticated"); ok {
		sk.Authenticated = parseBool(v)
	}
	return sk
}

func parseU16(g *kfGroup, key string) uint16 {
	v, ok := g.get(key)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseUint(v, 10, 16)
	return uint16(n)
}

func encodeCache(cache *device.PersistedCache) *keyfile {
	kf := newKeyfile()
	g := kf.group("General")
	g.set("Name", cache.Name)
	g.set("NameResolvingFailedAt", strconv.FormatInt(cache.NameResolvingFailedAt, 10))
	for i, rec := range cache.ServiceRecords {
		rg := kf.group(fmt.Sprintf("ServiceRecord#%d", i))
		rg.set("UUIDs", strings.Join(rec.UUIDs, ";"))
		rg.set("Raw", hex.EncodeToString(rec.Raw))
	}
	for i, p := range cache.Primaries {
		pg := kf.group(fmt.Sprintf("Primary#%d", i))
		pg.set("UUID", p.UUID)
		pg.set("Path", p.Path)
	}
	return kf
}

func decodeCache(kf *keyfile) *device.PersistedCache {
	cache := &device.PersistedCache{}
	if g, ok := kf.groups["General"]; ok {
		cache.Name, _ = g.get("Name")
		if v, ok := g.get("NameResolvingFailedAt"); ok {
			cache.NameResolvingFailedAt, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	for _, name := range kf.order {
		switch {
		case strings.HasPrefix(name, "ServiceRecord#"):
			g := kf.groups[name]
			var rec device.ServiceRecord
			if v, ok := g.get("UUIDs"); ok && v != "" {
				rec.UUIDs = strings.Split(v, ";")
			}
			if v, ok := g.get("Raw"); ok {
				rec.Raw, _ = hex.DecodeString(v)
			}
			cache.ServiceRecords = append(cache.ServiceRecords, rec)
		case strings.HasPrefix(name, "Primary#"):
			g := kf.groups[name]
			var p device.PrimaryService
			p.UUID, _ = g.get("UUID")
			p.Path, _ = g.get("Path")
			cache.Primaries = append(cache.Primaries, p)
		}
	}
	return cache
}
