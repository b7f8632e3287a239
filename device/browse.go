package device

import (
	"context"
	"errors"
	"sync"
)

// Mandatory BR/EDR SDP search UUIDs, walked in this order (spec.md §4.2).
const (
	uuidL2CAP             = "00000100-0000-1000-8000-00805f9b34fb"
	uuidPnPInformation     = "00001200-0000-1000-8000-00805f9b34fb"
	uuidPublicBrowseGroup = "00001002-0000-1000-8000-00805f9b34fb"

	attSecurityMedium = 2
)

var mandatoryBREDRUUIDs = []string{uuidL2CAP, uuidPnPInformation, uuidPublicBrowseGroup}

// BrowseResult is what a completed (non-canceled) browse produces for the
// Controller to merge (spec.md §4.2): UUIDs to add, the new primary-service
// list, and PnP metadata if present.
type BrowseResult struct {
	AddedUUIDs []string
	Primaries  []PrimaryService
	PnP        *PnPInfo
	Records    []ServiceRecord
}

// BrowseOutcome is delivered on the channel BrowseEngine.Start returns.
type BrowseOutcome struct {
	Bearer   Bearer
	Result   *BrowseResult
	Err      error
	Canceled bool
}

// BrowseEngine is the BE of spec.md §2/§4.2: exactly one outstanding
// discovery (SDP for BR/EDR, GATT for LE) at a time, cancellable.
type BrowseEngine struct {
	mu     sync.Mutex
	active bool
	bearer Bearer
	cancel context.CancelFunc
}

// NewBrowseEngine returns an idle engine.
func NewBrowseEngine() *BrowseEngine { return &BrowseEngine{} }

// InProgress reports whether a browse is currently running.
func (be *BrowseEngine) InProgress() bool {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.active
}

// Bearer returns the bearer of the in-progress browse, if any.
func (be *BrowseEngine) Bearer() (Bearer, bool) {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.bearer, be.active
}

// Start launches a browse on bearer against addr. existing is an
// already-ready ATTLink to reuse for LE (may be nil, in which case a fresh
// ATT link is opened). The outcome is delivered asynchronously on the
// returned channel — this method never blocks (spec.md §5 "no synchronous
// wait").
func (be *BrowseEngine) Start(parent context.Context, bearer Bearer, addr Address, addrType AddressType, adapter Adapter, existing ATTLink) (<-chan BrowseOutcome, error) {
	be.mu.Lock()
	if be.active {
		be.mu.Unlock()
		return nil, NewBearerError(ErrInProgress, bearer, nil)
	}
	ctx, cancel := context.WithCancel(parent)
	be.active = true
	be.bearer = bearer
	be.cancel = cancel
	be.mu.Unlock()

	ch := make(chan BrowseOutcome, 1)
	go be.run(ctx, bearer, addr, addrType, adapter, existing, ch)
	return ch, nil
}

// Cancel aborts the in-progress browse, if any. Cancellation is not an
// error: the waiter receives outcome.Canceled == true (spec.md §4.2).
func (be *BrowseEngine) Cancel() {
	be.mu.Lock()
	defer be.mu.Unlock()
	if be.cancel != nil {
		be.cancel()
	}
}

func (be *BrowseEngine) finish() {
	be.mu.Lock()
	be.active = false
	be.cancel = nil
	be.mu.Unlock()
}

func (be *BrowseEngine) run(ctx context.Context, bearer Bearer, addr Address, addrType AddressType, adapter Adapter, existing ATTLink, ch chan<- BrowseOutcome) {
	defer be.finish()

	var outcome BrowseOutcome
	outcome.Bearer = bearer
	if bearer == BearerBREDR {
		outcome.Result, outcome.Err = be.browseBREDR(ctx, addr, adapter)
	} else {
		outcome.Result, outcome.Err = be.browseLE(ctx, addr, addrType, adapter, existing)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		outcome.Canceled = true
		outcome.Err = nil
		outcome.Result = nil
	}
	select {
	case ch <- outcome:
	default:
	}
}

func (be *BrowseEngine) browseBREDR(ctx context.Context, addr Address, adapter Adapter) (*BrowseResult, error) {
	result := &BrowseResult{}
	seen := map[string]bool{}
	for _, uuid := range mandatoryBREDRUUIDs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		recs, err := adapter.SDPSearch(ctx, addr, uuid)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return nil, NewBearerError(ErrConnectionAttempt, BearerBREDR, err)
		}
		result.Records = append(result.Records, recs...)
		for _, rec := range recs {
			for _, u := range rec.UUIDs {
				if !seen[u] {
					seen[u] = true
					result.AddedUUIDs = append(result.AddedUUIDs, u)
				}
			}
		}
		if uuid == uuidPnPInformation && len(recs) > 0 {
			result.PnP = parsePnP(recs[0].Raw)
		}
	}
	result.Primaries = extractGATTPrimaries(result.Records)
	return result, nil
}

func (be *BrowseEngine) browseLE(ctx context.Context, addr Address, addrType AddressType, adapter Adapter, existing ATTLink) (*BrowseResult, error) {
	link := existing
	opened := false
	if link == nil {
		var err error
		link, err = adapter.OpenATT(ctx, addr, addrType, attSecurityMedium)
		if err != nil {
			return nil, NewBearerError(ErrConnectionAttempt, BearerLE, err)
		}
		opened = true
	}
	if opened {
		defer link.Close()
	}
	if err := link.WaitReady(ctx); err != nil {
		return nil, NewBearerError(ErrConnectionAttempt, BearerLE, err)
	}
	// spec.md §9 open question (b), re-specified: success keeps the clone,
	// failure keeps the original. primaries() below IS the "clone" read;
	// any error leaves the caller's existing (original) primaries state
	// untouched since we never assign into shared state on failure.
	primaries, err := link.PrimaryServices(ctx)
	if err != nil {
		return nil, NewBearerError(ErrConnectionAttempt, BearerLE, err)
	}
	result := &BrowseResult{Primaries: primaries}
	for _, p := range primaries {
		result.AddedUUIDs = append(result.AddedUUIDs, p.UUID)
	}
	return result, nil
}

// extractGATTPrimaries pulls GATT-over-BR/EDR primary services out of the
// same SDP record set the mandatory-UUID walk already gathered. The LE path
// reads its primaries from the ATT link instead (browseLE).
func extractGATTPrimaries(records []ServiceRecord) []PrimaryService {
	var out []PrimaryService
	for _, rec := range records {
		for _, u := range rec.UUIDs {
			if isGATTServiceUUID(u) {
				out = append(out, PrimaryService{UUID: u})
			}
		}
	}
	return out
}

func isGATTServiceUUID(uuid string) bool {
	// 16-bit GATT service UUIDs live in the 0000xxxx-...-34fb range and are
	// distinguished from profile UUIDs by falling in the GATT-assigned
	// 0x1800-0x1900 service block.
	if len(uuid) < 8 {
		return false
	}
	prefix := uuid[4:8]
	return prefix >= "1800" && prefix < "1900"
}

func parsePnP(raw []byte) *PnPInfo {
	if len(raw) < 8 {
		return nil
	}
	be16 := func(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
	return &PnPInfo{
		Source:  be16(raw[0:2]),
		Vendor:  be16(raw[2:4]),
		Product: be16(raw[4:6]),
		Version: be16(raw[6:8]),
	}
}
