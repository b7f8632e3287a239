package device

import "context"

// disconnectBearer runs spec.md §4.1.3's sequencing: drop the pending
// service-connect queue and mark attached services as disconnecting, cancel
// any in-flight browse or bonding attempt, disable auto-connect for an
// untrusted caller, ask the adapter to tear the link down, and arm a grace
// timer that forces local bookkeeping to "disconnected" if the lower-layer
// confirmation never arrives.
func (d *Device) disconnectBearer(ctx context.Context, bearer Bearer) error {
	bs := d.bearerState(bearer)
	if !bs.Connected {
		return NewBearerError(ErrNotConnected, bearer, nil)
	}

	d.Services.DisconnectAll()
	d.Browse.Cancel()
	d.Bonding.Cancel(ctx, d.Addr, d.adapter)

	if !d.Trusted {
		d.AutoConnectDisabled = true
	}

	d.disconnectTimer.arm(d.policy.DisconnectGrace, func() {
		d.dispatch(func() { d.forceDisconnect(bearer) })
	})

	if err := d.adapter.Disconnect(ctx, d.Addr, d.AddrType); err != nil {
		d.disconnectTimer.cancel()
		return NewBearerError(ErrConnectionAttempt, bearer, err)
	}
	return nil
}

// forceDisconnect is the grace-timer fallback: apply the same bookkeeping a
// confirmed Connected=false event would have applied, since none arrived in
// time (spec.md §4.1.3 step 3).
func (d *Device) forceDisconnect(bearer Bearer) {
	bs := d.bearerState(bearer)
	if !bs.Connected {
		return
	}
	bs.clearOnDisconnect()
	bs.reconcilePairedBonded()
	d.Services.TeardownAll()
	d.props.Notify("Connected")
	d.props.Notify("ServicesResolved")
}
