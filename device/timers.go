package device

import "time"

// ownedTimer wraps time.Timer with the stop-before-reuse discipline the Go
// documentation recommends, so callers never leak a stale fire into a
// differently-scoped wait. Device owns several of these (disconnect grace,
// save debounce, auto-discovery deferral, name-resolve retry) and each
// behaves identically: arm, maybe cancel, maybe rearm.
type ownedTimer struct {
	t *time.Timer
}

// arm schedules fn to run after d, replacing any previously armed fire.
func (o *ownedTimer) arm(d time.Duration, fn func()) {
	o.cancel()
	o.t = time.AfterFunc(d, fn)
}

// cancel stops a pending fire, if any. Safe to call when nothing is armed.
func (o *ownedTimer) cancel() {
	if o.t != nil {
		o.t.Stop()
		o.t = nil
	}
}

// pending reports whether a fire is currently scheduled.
func (o *ownedTimer) pending() bool {
	return o.t != nil
}
