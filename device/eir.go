package device

// TxPowerUnknown is the sentinel spec.md §3/§4.7 defines for "not observed".
const TxPowerUnknown int8 = 127

// DataBlob is one manufacturer-data or service-data record keyed by its
// company ID / UUID, as observed in an EIR or advertising payload.
type DataBlob struct {
	Key   string
	Value []byte
}

// AdvertisingCache is the AC of spec.md §2/§4.7: it merges every EIR/adv/SDP
// input this device has produced and is the source of most observable
// properties. RSSI emission and appearance assignment are the two sharpest
// edge cases (spec.md §4.7) and are implemented as standalone predicates so
// they can be unit-tested directly.
type AdvertisingCache struct {
	Flags       uint8
	name        string
	Alias       string
	Class       uint32
	appearance  uint16
	hasAppear   bool
	TxPower     int8
	RSSI        int8

	eirUUIDs []string
	uuids    []string // resolved, via SDP/GATT

	ManufacturerData []DataBlob
	ServiceData      []DataBlob
	AdvertisingData  []DataBlob

	anyServiceResolved bool
}

// NewAdvertisingCache returns a cache with TxPower/RSSI set to "unknown".
func NewAdvertisingCache() *AdvertisingCache {
	return &AdvertisingCache{TxPower: TxPowerUnknown, RSSI: 0}
}

// SetName applies the "last non-empty wins" rule (spec.md §4.7) and reports
// whether the observable Name value changed.
func (a *AdvertisingCache) SetName(name string) (changed bool) {
	if name == "" {
		return false
	}
	if a.name == name {
		return false
	}
	a.name = name
	return true
}

// Name returns the last non-empty name observed.
func (a *AdvertisingCache) Name() string { return a.name }

// shouldSetAppearance implements spec.md §4.7: "Appearance: set once, never
// cleared by a zero". A zero value never overwrites an existing one; any
// nonzero value is accepted (first write establishes it permanently unless
// a later nonzero write genuinely differs, which still updates it — only a
// zero is refused).
func shouldSetAppearance(hasExisting bool, existing, next uint16) bool {
	if next == 0 {
		return false
	}
	if !hasExisting {
		return true
	}
	return existing != next
}

// SetAppearance applies shouldSetAppearance and reports whether it changed.
func (a *AdvertisingCache) SetAppearance(v uint16) (changed bool) {
	if !shouldSetAppearance(a.hasAppear, a.appearance, v) {
		return false
	}
	a.appearance = v
	a.hasAppear = true
	return true
}

func (a *AdvertisingCache) Appearance() uint16 { return a.appearance }

// shouldEmitRSSI implements spec.md §4.7's hysteresis: emit only when
// |new-old| >= 8, or when either side is zero (zero means "no prior
// reading" / "link gone quiet", both edge transitions worth surfacing).
func shouldEmitRSSI(old, next int8) bool {
	if old == 0 || next == 0 {
		return old != next
	}
	diff := int(old) - int(next)
	if diff < 0 {
		diff = -diff
	}
	return diff >= 8
}

// SetRSSI applies the value unconditionally (the cache always holds the
// latest reading) and reports whether the change clears the emission
// threshold, i.e. whether callers should publish a property-changed signal.
func (a *AdvertisingCache) SetRSSI(v int8) (shouldEmit bool) {
	shouldEmit = shouldEmitRSSI(a.RSSI, v)
	a.RSSI = v
	return shouldEmit
}

// SetTxPower stores a signed TX power reading; TxPowerUnknown (127) means
// "unknown/not observed" and is a valid, storable value.
func (a *AdvertisingCache) SetTxPower(v int8) (changed bool) {
	if a.TxPower == v {
		return false
	}
	a.TxPower = v
	return true
}

// AddEIRUUIDs unions newly observed (advertising/EIR) UUIDs into the
// EIR-observed set, distinct from the resolved set (spec.md §4.7).
func (a *AdvertisingCache) AddEIRUUIDs(uuids []string) {
	a.eirUUIDs = unionStrings(a.eirUUIDs, uuids)
}

// SetResolvedUUIDs replaces the resolved UUID set (produced by SDP/GATT
// discovery) and marks that at least one bearer has resolved services, so
// the "UUIDs" observable switches from EIR-observed to resolved per
// spec.md §4.7.
func (a *AdvertisingCache) SetResolvedUUIDs(uuids []string) {
	a.uuids = unionStrings(nil, uuids)
	a.anyServiceResolved = true
}

// UUIDs returns the observable "UUIDs" property: resolved UUIDs if any
// bearer has ever resolved services, else EIR-observed UUIDs (spec.md §4.7).
func (a *AdvertisingCache) UUIDs() []string {
	if a.anyServiceResolved {
		return a.uuids
	}
	return a.eirUUIDs
}

// EIRUUIDs returns the raw EIR/advertising-observed UUID set.
func (a *AdvertisingCache) EIRUUIDs() []string { return a.eirUUIDs }

// MergeManufacturerData applies the append-or-replace-all rule keyed by the
// duplicate flag spec.md §4.7 describes.
func (a *AdvertisingCache) MergeManufacturerData(blobs []DataBlob, duplicate bool) {
	a.ManufacturerData = mergeBlobs(a.ManufacturerData, blobs, duplicate)
}

// MergeServiceData applies the same rule to service data records.
func (a *AdvertisingCache) MergeServiceData(blobs []DataBlob, duplicate bool) {
	a.ServiceData = mergeBlobs(a.ServiceData, blobs, duplicate)
}

// MergeAdvertisingData applies the same rule to raw advertising-data blobs.
func (a *AdvertisingCache) MergeAdvertisingData(blobs []DataBlob, duplicate bool) {
	a.AdvertisingData = mergeBlobs(a.AdvertisingData, blobs, duplicate)
}

func mergeBlobs(existing, incoming []DataBlob, duplicate bool) []DataBlob {
	if !duplicate {
		return append([]DataBlob(nil), incoming...)
	}
	out := append([]DataBlob(nil), existing...)
	for _, b := range incoming {
		replaced := false
		for i := range out {
			if out[i].Key == b.Key {
				out[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, b)
		}
	}
	return out
}

func unionStrings(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, s := range existing {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range incoming {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Icon derives the observable "Icon" property from appearance if set, else
// from the major device class (bits 8-12) of class-of-device, else "" (spec.md §6,
// SPEC_FULL.md §3 supplement).
func (a *AdvertisingCache) Icon() string {
	if a.hasAppear {
		return appearanceIcon(a.appearance)
	}
	if a.Class != 0 {
		return classIcon(a.Class)
	}
	return ""
}

func appearanceIcon(v uint16) string {
	switch v >> 6 {
	case 0x01:
		return "phone"
	case 0x02:
		return "computer"
	case 0x03:
		return "input-keyboard"
	case 0x0f:
		return "audio-headset"
	default:
		return "bluetooth"
	}
}

func classIcon(class uint32) string {
	major := (class >> 8) & 0x1f
	switch major {
	case 0x01:
		return "computer"
	case 0x02:
		return "phone"
	case 0x04:
		return "audio-card"
	case 0x05:
		return "input-gaming"
	default:
		return "bluetooth"
	}
}
