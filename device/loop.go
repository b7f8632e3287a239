package device

import "time"

// bearerState returns the BearerState this event concerns.
func (d *Device) bearerState(b Bearer) *BearerState {
	if b == BearerBREDR {
		return &d.BR
	}
	return &d.LE
}

// handleInbound applies one coalesced transport update to Device state,
// running entirely on the loop goroutine (spec.md §2).
func (d *Device) handleInbound(ev InboundEvent) {
	bs := d.bearerState(ev.Bearer)
	now := time.Now()

	if ev.Connected != nil {
		if *ev.Connected {
			bs.Connected = true
			bs.LastSeen = now
		} else {
			bs.clearOnDisconnect()
			bs.reconcilePairedBonded()
			d.disconnectTimer.cancel()
		}
		d.props.Notify("Connected")
	}
	if ev.ServicesResolved != nil {
		bs.SvcResolved = *ev.ServicesResolved
		d.props.Notify("ServicesResolved")
		if *ev.ServicesResolved {
			d.onServicesResolved(ev.Bearer)
			if d.pendingPaired {
				d.pendingPaired = false
				d.props.Notify("Paired")
			}
		}
	}
	if ev.Paired != nil {
		bs.Paired = *ev.Paired
		d.props.Notify("Paired")
	}
	if ev.Bonded != nil {
		bs.Bonded = *ev.Bonded
		bs.reconcilePairedBonded()
		d.props.Notify("Bonded")
	}
	if ev.RSSI != nil {
		if d.Cache.SetRSSI(*ev.RSSI) {
			d.props.Notify("RSSI")
		}
		bs.LastSeen = now
	}
	if ev.TxPower != nil {
		if d.Cache.SetTxPower(*ev.TxPower) {
			d.props.Notify("TxPower")
		}
	}
	if ev.Name != nil {
		if d.Cache.SetName(*ev.Name) {
			d.props.Notify("Name")
			d.markDirty()
		}
	}
	if ev.Alias != nil {
		d.Cache.Alias = *ev.Alias
		d.props.Notify("Alias")
	}
	if ev.Appearance != nil {
		if d.Cache.SetAppearance(*ev.Appearance) {
			d.props.Notify("Appearance")
			d.props.Notify("Icon")
			d.markDirty()
		}
	}
	if ev.Class != nil {
		d.Cache.Class = *ev.Class
		d.props.Notify("Class")
		d.props.Notify("Icon")
	}
	if len(ev.UUIDsAdded) > 0 {
		d.Cache.AddEIRUUIDs(ev.UUIDsAdded)
		d.props.Notify("UUIDs")
		d.scheduleAutoDiscovery()
	}
	if len(ev.ManufacturerData) > 0 {
		d.Cache.MergeManufacturerData(ev.ManufacturerData, true)
		d.props.Notify("ManufacturerData")
	}
	if len(ev.ServiceData) > 0 {
		d.Cache.MergeServiceData(ev.ServiceData, true)
		d.props.Notify("ServiceData")
	}
	if len(ev.AdvertisingData) > 0 {
		d.Cache.MergeAdvertisingData(ev.AdvertisingData, true)
		d.props.Notify("AdvertisingData")
	}
	if ev.LTK != nil {
		d.Keys.SetLTK(*ev.LTK)
	}
	if ev.RemoteCSRK != nil {
		d.Keys.ReceiveRemoteCSRK(ev.RemoteCSRK.Value, ev.RemoteCSRK.Counter, ev.RemoteCSRK.Authenticated)
	}
	if ev.SIRKAdded != nil {
		d.Keys.AddSIRK(*ev.SIRKAdded)
	}
	if ev.SignedWriteCounter != nil {
		if !d.Keys.AcceptRemoteCounter(*ev.SignedWriteCounter) {
			d.log.Warn("rejected signed write: counter not monotonic")
		}
	}
	if ev.AuthRequest != nil {
		d.handleAuthRequest(*ev.AuthRequest, ev.AuthReply)
	}
}

// handleAuthRequest resolves an inbound Agent1 callback against the
// device's current bonded/bonding-in-progress state (spec.md §4.4).
// Resolve may block on the local Agent's own I/O, so it runs off the loop
// goroutine; the decision is delivered back over reply once ready.
func (d *Device) handleAuthRequest(req AuthenticationRequest, reply chan<- AuthResult) {
	alreadyBonded := d.AnyBonded()
	bondingInProgress := d.Bonding.InProgress()
	ctx := d.backgroundCtx()
	go func() {
		decision, err := d.Auth.Resolve(ctx, req, d.agent, alreadyBonded, bondingInProgress)
		if reply == nil {
			return
		}
		select {
		case reply <- AuthResult{Decision: decision, Err: err}:
		default:
		}
	}()
}

// scheduleAutoDiscovery defers reprobing the service set after a burst of
// EIR UUID updates, so a handful of advertising reports settle into one
// probe instead of many (spec.md §4.5).
func (d *Device) scheduleAutoDiscovery() {
	d.autoDiscoverTimer.arm(d.policy.AutoDiscoveryDeferral, func() {
		d.dispatch(func() {
			allow := d.allowUUIDSet()
			d.Services.Probe(d.Cache.EIRUUIDs(), allow)
		})
	})
}

func (d *Device) allowUUIDSet() map[string]bool {
	allow := make(map[string]bool)
	if d.Blocked || d.AutoConnectDisabled {
		return allow
	}
	for _, u := range d.Cache.UUIDs() {
		allow[u] = true
	}
	return allow
}

// onServicesResolved runs the post-browse service probe once a bearer
// reports ServicesResolved (spec.md §4.2/§4.5): Browse Engine's result, not
// this hook, is what actually supplies new UUIDs/primaries; this only fires
// the reprobe for UUIDs already observed via EIR when no explicit browse
// ran (e.g. the daemon itself resolved services before we asked).
func (d *Device) onServicesResolved(bearer Bearer) {
	if d.Browse.InProgress() {
		return
	}
	allow := d.allowUUIDSet()
	d.Services.Probe(d.Cache.EIRUUIDs(), allow)
}
