package device

import "time"

// SelectConnectBearer picks which bearer connect() should use, given which
// bearers the device actually exposes, both bearer records, the device's
// preference, and the last bearer a successful connect actually used
// (spec.md §4.1.1). now is injected for testability.
//
// Presence, not pairing state, gates eligibility here: connect() may dial an
// unpaired bearer (pairing and connecting are separate operations), so a
// bearer only drops out of consideration when the device doesn't have it at
// all.
func SelectConnectBearer(hasBREDR, hasLE bool, br, le *BearerState, prefer PreferBearer, lastUsed Bearer, addrType AddressType, now time.Time) (Bearer, error) {
	switch {
	case !hasBREDR && !hasLE:
		return "", NewError(ErrNotReady, nil)
	case hasBREDR && !hasLE:
		return BearerBREDR, nil
	case hasLE && !hasBREDR:
		return BearerLE, nil
	}

	switch {
	case br.Bonded && !le.Bonded:
		return BearerBREDR, nil
	case le.Bonded && !br.Bonded:
		return BearerLE, nil
	}

	switch prefer {
	case PreferBREDR:
		return BearerBREDR, nil
	case PreferLE:
		return BearerLE, nil
	case PreferLastUsed:
		if lastUsed == BearerBREDR || lastUsed == BearerLE {
			return lastUsed, nil
		}
	case PreferLastSeen:
		return selectByLastSeen(br, le, now), nil
	}

	if addrType == AddressLERandom {
		return BearerLE, nil
	}
	return selectByLastSeen(br, le, now), nil
}

// SelectPairBearer picks which bearer pair() should target (spec.md §4.1.2):
// presence narrows it to one choice the same way connect() does, an already
// bonded bearer means the other one is the one worth pairing, and otherwise
// it falls back to the same selection connect() would make.
func SelectPairBearer(hasBREDR, hasLE bool, br, le *BearerState, addrType AddressType, now time.Time) (Bearer, error) {
	switch {
	case !hasBREDR && !hasLE:
		return "", NewError(ErrNotReady, nil)
	case hasBREDR && !hasLE:
		return BearerBREDR, nil
	case hasLE && !hasBREDR:
		return BearerLE, nil
	}

	switch {
	case br.Bonded && !le.Bonded:
		return BearerLE, nil
	case le.Bonded && !br.Bonded:
		return BearerBREDR, nil
	}

	return SelectConnectBearer(hasBREDR, hasLE, br, le, PreferLastUsed, "", addrType, now)
}

// selectByLastSeen picks whichever connectable bearer observed the device
// more recently, falling back to BR/EDR if neither has a known, connectable
// LastSeen (spec.md §4.1.2, §9 open question (a): unknown never beats
// known).
func selectByLastSeen(br, le *BearerState, now time.Time) Bearer {
	brAge, brKnown := freshnessOf(br, now)
	leAge, leKnown := freshnessOf(le, now)
	switch {
	case !brKnown && !leKnown:
		return BearerBREDR
	case !leKnown:
		return BearerBREDR
	case !brKnown:
		return BearerLE
	case brAge <= leAge:
		return BearerBREDR
	default:
		return BearerLE
	}
}

// freshnessOf is freshness() gated on connectable: a bearer we never saw
// advertise as connectable can't be picked on recency alone.
func freshnessOf(bs *BearerState, now time.Time) (time.Duration, bool) {
	if !bs.Connectable {
		return 0, false
	}
	return bs.freshness(now)
}

// SelectBrowseBearer picks which bearer a post-connect browse should run
// on: the bearer that was just used to connect always wins, since that is
// the link actually up (spec.md §4.2).
func SelectBrowseBearer(connectedVia Bearer) Bearer {
	return connectedVia
}
