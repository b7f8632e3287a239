package device

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BondingOutcome is delivered on the channel BondingEngine.Start returns.
type BondingOutcome struct {
	Bearer   Bearer
	Err      error
	Duration time.Duration
	Retried  bool
	Canceled bool
}

// BondingEngine is the BoE of spec.md §2/§4.3: drives exactly one bonding
// attempt at a time, deriving the IO capability from the local Agent, and
// automatically retrying once on a transient failure.
type BondingEngine struct {
	mu      sync.Mutex
	active  bool
	cancel  context.CancelFunc
	retry   ownedTimer
	policy  Policy
}

// NewBondingEngine returns an idle engine governed by policy.
func NewBondingEngine(policy Policy) *BondingEngine {
	return &BondingEngine{policy: policy}
}

// InProgress reports whether a bonding attempt is currently running.
func (be *BondingEngine) InProgress() bool {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.active
}

// deriveIOCapability picks the capability CreateBonding advertises, from the
// local Agent's own capability (spec.md §4.3 step 1: "IO capability derives
// from the registered Agent, not the remote device").
func deriveIOCapability(agent Agent) IOCapability {
	if agent == nil {
		return IOCapNoInputNoOutput
	}
	return agent.Capability()
}

// Start begins a bonding attempt against addr, retrying once automatically
// after policy.BondingRetryDelay when the first attempt fails with a
// transient error (see isTransientBondingFailure). The outcome is delivered
// asynchronously; Start never blocks.
func (be *BondingEngine) Start(parent context.Context, bearer Bearer, addr Address, addrType AddressType, adapter Adapter, agent Agent) (<-chan BondingOutcome, error) {
	be.mu.Lock()
	if be.active {
		be.mu.Unlock()
		return nil, NewError(ErrInProgress, nil)
	}
	ctx, cancel := context.WithCancel(parent)
	be.active = true
	be.cancel = cancel
	be.mu.Unlock()

	ch := make(chan BondingOutcome, 1)
	ioCap := deriveIOCapability(agent)
	go be.run(ctx, bearer, addr, addrType, adapter, ioCap, ch)
	return ch, nil
}

// Cancel aborts the in-progress bonding attempt, including any pending
// automatic retry.
func (be *BondingEngine) Cancel(ctx context.Context, addr Address, adapter Adapter) {
	be.mu.Lock()
	be.retry.cancel()
	c := be.cancel
	be.mu.Unlock()
	if c != nil {
		c()
	}
	if adapter != nil {
		_ = adapter.CancelBonding(ctx, addr)
	}
}

func (be *BondingEngine) finish() {
	be.mu.Lock()
	be.active = false
	be.cancel = nil
	be.mu.Unlock()
}

func (be *BondingEngine) run(ctx context.Context, bearer Bearer, addr Address, addrType AddressType, adapter Adapter, ioCap IOCapability, ch chan<- BondingOutcome) {
	defer be.finish()

	start := time.Now()
	err := adapter.CreateBonding(ctx, addr, addrType, ioCap)
	retried := false

	if err != nil && isTransientBondingFailure(err) && ctx.Err() == nil {
		select {
		case <-time.After(be.policy.BondingRetryDelay):
		case <-ctx.Done():
		}
		if ctx.Err() == nil {
			retried = true
			err = adapter.CreateBonding(ctx, addr, addrType, ioCap)
		}
	}

	outcome := BondingOutcome{Bearer: bearer, Err: err, Duration: time.Since(start), Retried: retried}
	if errors.Is(ctx.Err(), context.Canceled) {
		outcome.Canceled = true
		outcome.Err = nil
	}
	select {
	case ch <- outcome:
	default:
	}
}

// isTransientBondingFailure reports whether a bonding failure warrants the
// single automatic retry (spec.md §4.3): connection-level failures and
// errors that carry no ErrorKind are retried; authentication rejections,
// cancellations and every other kind are not.
func isTransientBondingFailure(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	switch kind {
	case ErrConnectionAttempt, ErrNotConnected, ErrNotReady:
		return true
	default:
		return false
	}
}
