package device

// LongTermKey is the link-encryption key set by bonding (spec.md §4.6).
type LongTermKey struct {
	Set      bool
	Central  bool
	EncSize  int
	Value    [16]byte
}

// SignatureKey is a CSRK (local or remote): a signed-write key plus a
// monotonic counter (spec.md §4.6, invariant 9).
type SignatureKey struct {
	Set           bool
	Value         [16]byte
	Counter       uint32
	Authenticated bool
}

// SIRK is a Set Identity Resolving Key (spec.md glossary). Uniqueness key is
// the raw key bytes.
type SIRK struct {
	Value     [16]byte
	Encrypted bool
	Size      int
	Rank      int
	// usable becomes true once the key has joined a device set: immediately
	// for unencrypted SIRKs, or when an LTK becomes available to decrypt an
	// encrypted one (spec.md §3 invariant 11, §4.6).
	usable bool
}

// Usable reports whether this SIRK currently participates in a device set.
func (s SIRK) Usable() bool { return s.usable }

// KeyMaterialStore is the KMS of spec.md §2/§4.6: LTK, local/remote CSRK,
// and zero-or-more SIRKs, all persisted on change.
type KeyMaterialStore struct {
	LTK         LongTermKey
	LocalCSRK   SignatureKey
	RemoteCSRK  SignatureKey
	SIRKs       []SIRK
	dirty       func()
}

// NewKeyMaterialStore returns an empty KMS. onDirty is invoked (if non-nil)
// whenever a mutation should trigger the debounced persistence writeback
// spec.md §4.6 describes.
func NewKeyMaterialStore(onDirty func()) *KeyMaterialStore {
	return &KeyMaterialStore{dirty: onDirty}
}

func (k *KeyMaterialStore) markDirty() {
	if k.dirty != nil {
		k.dirty()
	}
}

// SetLTK installs a new long-term key and immediately re-evaluates every
// SIRK's usability, since SIRK decryption depends on LTK availability
// (spec.md §4.6). This makes invariant 11 hold the instant SetLTK returns.
func (k *KeyMaterialStore) SetLTK(ltk LongTermKey) {
	k.LTK = ltk
	k.LTK.Set = true
	k.reevaluateSIRKs()
	k.markDirty()
}

func (k *KeyMaterialStore) reevaluateSIRKs() {
	for i := range k.SIRKs {
		s := &k.SIRKs[i]
		if !s.Encrypted || k.LTK.Set {
			s.usable = true
		}
	}
}

// SetLocalCSRK installs the local signing key. The local counter increments
// on each outbound signed write via IncrementLocalCounter, never here.
func (k *KeyMaterialStore) SetLocalCSRK(value [16]byte, authenticated bool) {
	k.LocalCSRK = SignatureKey{Set: true, Value: value, Authenticated: authenticated}
	k.markDirty()
}

// IncrementLocalCounter bumps the local CSRK counter after an outbound
// signed write.
func (k *KeyMaterialStore) IncrementLocalCounter() {
	if !k.LocalCSRK.Set {
		return
	}
	k.LocalCSRK.Counter++
	k.markDirty()
}

// ReceiveRemoteCSRK installs the remote signing key, replacing any stored one.
func (k *KeyMaterialStore) ReceiveRemoteCSRK(value [16]byte, counter uint32, authenticated bool) {
	k.RemoteCSRK = SignatureKey{Set: true, Value: value, Counter: counter, Authenticated: authenticated}
	k.markDirty()
}

// AcceptRemoteCounter applies spec.md invariant 9: a received counter >=
// the stored counter updates the stored counter and is accepted; a lower
// counter is rejected and the stored value is left unchanged. Returns
// whether the counter was accepted.
func (k *KeyMaterialStore) AcceptRemoteCounter(counter uint32) bool {
	if !k.RemoteCSRK.Set {
		return false
	}
	if counter < k.RemoteCSRK.Counter {
		return false
	}
	k.RemoteCSRK.Counter = counter
	k.markDirty()
	return true
}

// AddSIRK appends a SIRK, deduplicating on raw key bytes, and evaluates its
// immediate usability (spec.md §4.6).
func (k *KeyMaterialStore) AddSIRK(s SIRK) {
	for i := range k.SIRKs {
		if k.SIRKs[i].Value == s.Value {
			k.SIRKs[i] = s
			k.reevaluateSIRKs()
			k.markDirty()
			return
		}
	}
	if !s.Encrypted || k.LTK.Set {
		s.usable = true
	}
	k.SIRKs = append(k.SIRKs, s)
	k.markDirty()
}
