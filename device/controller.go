package device

import (
	"context"
	"strings"
	"time"
)

// addrTypeForBearer maps a chosen bearer back to the AddressType the
// transport layer needs to open a link on it: LE keeps the device's own
// (public or random) LE address type if it has one, BR/EDR always uses the
// BR/EDR-public type (spec.md §3).
func (d *Device) addrTypeForBearer(b Bearer) AddressType {
	if b == BearerLE {
		if d.AddrType.IsLE() {
			return d.AddrType
		}
		return AddressLEPublic
	}
	return AddressBREDRPublic
}

// isHostDown reports whether err represents the kernel's EHOSTDOWN
// connection failure, the trigger for the BR/EDR→LE connect fallback
// (spec.md §4.1 failure modes).
func isHostDown(err error) bool {
	return err != nil && strings.Contains(err.Error(), "EHOSTDOWN")
}

// AnyConnected reports whether either bearer is connected.
func (d *Device) AnyConnected() bool { return d.BR.Connected || d.LE.Connected }

// AnyPaired reports whether either bearer is paired.
func (d *Device) AnyPaired() bool { return d.BR.Paired || d.LE.Paired }

// AnyBonded reports whether either bearer is bonded.
func (d *Device) AnyBonded() bool { return d.BR.Bonded || d.LE.Bonded }

// AnyServicesResolved reports whether either bearer has resolved services.
func (d *Device) AnyServicesResolved() bool { return d.BR.SvcResolved || d.LE.SvcResolved }

// FindService looks up an attached service by profile UUID.
func (d *Device) FindService(uuid string) *Service { return d.Services.find(uuid) }

// Connect implements connect(): select a bearer, open the link, and start a
// browse over it, queuing allowed services for subsequent profile connects
// (spec.md §4.1). A BR/EDR attempt that fails with EHOSTDOWN and an LE
// bearer that isn't already connected falls back to LE (spec.md §4.1
// failure modes, S3).
func (d *Device) Connect(ctx context.Context) error {
	return d.call(func() error {
		bearer, err := SelectConnectBearer(d.HasBREDR, d.HasLE, &d.BR, &d.LE, d.PreferredBearer, d.LastUsedBearer, d.AddrType, time.Now())
		if err != nil {
			return err
		}
		if err := d.connectBearer(ctx, bearer); err != nil {
			if bearer == BearerBREDR && d.HasLE && !d.LE.Connected && isHostDown(err) {
				return d.connectBearer(ctx, BearerLE)
			}
			return err
		}
		return nil
	})
}

// connectBearer opens the link for one bearer and starts a browse over it,
// the part of connect() shared by the primary attempt and the EHOSTDOWN
// fallback.
func (d *Device) connectBearer(ctx context.Context, bearer Bearer) error {
	bs := d.bearerState(bearer)
	if bs.Connected {
		return nil
	}
	addrType := d.addrTypeForBearer(bearer)
	link, err := d.adapter.OpenATT(ctx, d.Addr, addrType, 0)
	if err != nil {
		return NewBearerError(ErrConnectionAttempt, bearer, err)
	}
	bs.Connected = true
	bs.Initiator = true
	bs.LastSeen = time.Now()
	d.LastUsedBearer = bearer
	d.AutoConnectDisabled = false
	d.markDirty()
	d.props.Notify("Connected")

	ch, err := d.Browse.Start(ctx, bearer, d.Addr, addrType, d.adapter, link)
	if err != nil {
		d.log.WithError(err).Debug("browse not started after connect")
		return nil
	}
	go func() {
		outcome := <-ch
		d.dispatch(func() { d.handleBrowseOutcome(outcome) })
	}()
	return nil
}

// Disconnect implements disconnect() for whichever bearer is connected,
// preferring the one that actually carried the last connect (spec.md
// §4.1.3).
func (d *Device) Disconnect(ctx context.Context) error {
	return d.call(func() error {
		switch {
		case d.LastUsedBearer == BearerLE && d.LE.Connected:
			return d.disconnectBearer(ctx, BearerLE)
		case d.LastUsedBearer == BearerBREDR && d.BR.Connected:
			return d.disconnectBearer(ctx, BearerBREDR)
		case d.BR.Connected:
			return d.disconnectBearer(ctx, BearerBREDR)
		case d.LE.Connected:
			return d.disconnectBearer(ctx, BearerLE)
		default:
			return NewError(ErrNotConnected, nil)
		}
	})
}

// ConnectProfile implements connect_profile(uuid): attaches and transitions
// a single registered service to Connected. Actual profile I/O is handled
// by the profile plugin itself (an external collaborator, spec.md §1);
// Device only tracks the resulting lifecycle state.
func (d *Device) ConnectProfile(ctx context.Context, uuid string) error {
	return d.call(func() error {
		svc := d.Services.find(uuid)
		if svc == nil {
			return NewError(ErrProfileUnavailable, nil)
		}
		if !svc.Allowed {
			return NewError(ErrProfileUnavailable, nil)
		}
		if svc.State == ServiceConnected {
			return nil
		}
		svc.State = ServiceConnecting
		svc.State = ServiceConnected
		return nil
	})
}

// DisconnectProfile implements disconnect_profile(uuid).
func (d *Device) DisconnectProfile(ctx context.Context, uuid string) error {
	return d.call(func() error {
		svc := d.Services.find(uuid)
		if svc == nil {
			return NewError(ErrProfileUnavailable, nil)
		}
		if svc.State == ServiceDisconnected {
			return nil
		}
		svc.State = ServiceDisconnecting
		svc.State = ServiceDisconnected
		return nil
	})
}

// Pair implements pair(): selects which bearer to bond over (spec.md
// §4.1.2) and starts a bonding attempt, deriving IO capability from the
// registered Agent (spec.md §4.3).
func (d *Device) Pair(ctx context.Context) error {
	return d.call(func() error {
		if d.Bonding.InProgress() {
			return NewError(ErrInProgress, nil)
		}
		bearer, err := SelectPairBearer(d.HasBREDR, d.HasLE, &d.BR, &d.LE, d.AddrType, time.Now())
		if err != nil {
			return err
		}
		if d.bearerState(bearer).Bonded {
			return NewBearerError(ErrAlreadyExists, bearer, nil)
		}
		addrType := d.addrTypeForBearer(bearer)
		ch, err := d.Bonding.Start(ctx, bearer, d.Addr, addrType, d.adapter, d.agent)
		if err != nil {
			return err
		}
		go func() {
			outcome := <-ch
			d.dispatch(func() { d.handleBondingOutcome(outcome) })
		}()
		return nil
	})
}

// CancelPairing implements cancel_pairing().
func (d *Device) CancelPairing(ctx context.Context) error {
	return d.call(func() error {
		d.Bonding.Cancel(ctx, d.Addr, d.adapter)
		return nil
	})
}

// Block implements block(): marks the device blocked, tears down every
// attached service, and asks the adapter to refuse future connections
// (spec.md §4.1).
func (d *Device) Block(ctx context.Context) error {
	return d.call(func() error {
		if d.Blocked {
			return nil
		}
		if err := d.adapter.Block(ctx, d.Addr); err != nil {
			return NewError(ErrConnectionAttempt, err)
		}
		d.Blocked = true
		d.Services.TeardownAll()
		d.markDirty()
		d.props.Notify("Blocked")
		return nil
	})
}

// Unblock implements unblock(): clears the blocked flag and reprobes the
// service set against the allow-list it now passes (spec.md §4.1, S5).
func (d *Device) Unblock(ctx context.Context) error {
	return d.call(func() error {
		if !d.Blocked {
			return nil
		}
		if err := d.adapter.Unblock(ctx, d.Addr); err != nil {
			return NewError(ErrConnectionAttempt, err)
		}
		d.Blocked = false
		d.Services.Reprobe(d.allowUUIDSet())
		d.markDirty()
		d.props.Notify("Blocked")
		return nil
	})
}

// SetTrusted implements set_trusted(bool).
func (d *Device) SetTrusted(ctx context.Context, trusted bool) error {
	return d.call(func() error {
		if d.Trusted == trusted {
			return nil
		}
		d.Trusted = trusted
		d.markDirty()
		d.props.Notify("Trusted")
		return nil
	})
}

// SetAlias implements set_alias(string); an empty alias reverts to the
// observed name (spec.md §3).
func (d *Device) SetAlias(ctx context.Context, alias string) error {
	return d.call(func() error {
		if d.Cache.Alias == alias {
			return nil
		}
		d.Cache.Alias = alias
		d.markDirty()
		d.props.Notify("Alias")
		return nil
	})
}

// SetWakeAllowed implements set_wake_allowed(bool), made idempotent per
// spec.md §9 open question (c): calling it again with the value already in
// effect is a no-op, so it never redundantly re-pushes DeviceFlags or
// re-triggers the wake-capable feature negotiation.
func (d *Device) SetWakeAllowed(ctx context.Context, allowed bool) error {
	return d.call(func() error {
		if d.WakeAllowed == allowed {
			return nil
		}
		d.WakeAllowed = allowed
		if err := d.adapter.SetDeviceFlags(ctx, d.Addr, d.deviceFlags()); err != nil {
			return NewError(ErrConnectionAttempt, err)
		}
		d.markDirty()
		d.props.Notify("WakeAllowed")
		return nil
	})
}

// SetPreferredBearer implements set_preferred_bearer(PreferBearer).
func (d *Device) SetPreferredBearer(ctx context.Context, prefer PreferBearer) error {
	return d.call(func() error {
		if d.PreferredBearer == prefer {
			return nil
		}
		d.PreferredBearer = prefer
		d.markDirty()
		d.props.Notify("PreferredBearer")
		return nil
	})
}

// deviceFlags encodes the tri-state feature-flag bitmask the adapter
// understands, deriving the wake-capable bit from WakeAllowed/WakeOverride
// (spec.md §3 supported_flags/pending_flags/current_flags).
func (d *Device) deviceFlags() uint32 {
	const flagWakeAllowed uint32 = 1 << 0
	var flags uint32
	switch d.WakeOverride {
	case WakeEnabled:
		flags |= flagWakeAllowed
	case WakeDisabled:
		// leave clear regardless of WakeAllowed
	default:
		if d.WakeAllowed {
			flags |= flagWakeAllowed
		}
	}
	return flags
}

// handleBrowseOutcome merges a completed discovery into Device state
// (spec.md §4.2): add the discovered UUIDs to the cache, probe the service
// set against them, and mark the bearer resolved. A bonding that completed
// while discovery was still outstanding gets its deferred Paired
// notification here, once discovery (not just the bond) actually finishes
// (spec.md §4.1.6 step 3).
func (d *Device) handleBrowseOutcome(outcome BrowseOutcome) {
	if outcome.Canceled {
		d.log.Debug("browse canceled")
		return
	}
	bs := d.bearerState(outcome.Bearer)
	if outcome.Err != nil {
		d.log.WithError(outcome.Err).Debug("browse failed")
		if outcome.Bearer == BearerBREDR && d.HasLE && !d.LE.Connected && isHostDown(outcome.Err) {
			d.connectBearer(d.backgroundCtx(), BearerLE)
		}
		return
	}
	if outcome.Result != nil {
		resolved := append(append([]string(nil), d.Cache.UUIDs()...), outcome.Result.AddedUUIDs...)
		d.Cache.SetResolvedUUIDs(resolved)
		d.Services.Probe(outcome.Result.AddedUUIDs, d.allowUUIDSet())
		d.props.Notify("UUIDs")
	}
	d.progressServiceQueue(outcome.Bearer)
	bs.SvcResolved = true
	if bs.Connected {
		d.props.Notify("ServicesResolved")
	}
	if d.pendingPaired {
		d.pendingPaired = false
		d.props.Notify("Paired")
	}
	d.markDirty()
}

// handleBondingOutcome applies a completed bonding attempt (spec.md §4.3):
// the internal Paired/Bonded flags are set immediately, but the external
// Paired notification is deferred until the bearer's services are resolved
// if discovery hasn't finished yet, matching a daemon that doesn't consider
// a device usable until it knows what's on it. Once applied, it starts the
// post-bond browse that bearer was still missing.
func (d *Device) handleBondingOutcome(outcome BondingOutcome) {
	bs := d.bearerState(outcome.Bearer)
	if outcome.Canceled {
		d.log.Debug("bonding canceled")
		return
	}
	if outcome.Err != nil {
		d.log.WithError(outcome.Err).WithField("retried", outcome.Retried).Debug("bonding failed")
		return
	}
	bs.Paired = true
	bs.Bonded = true
	d.markDirty()
	d.props.Notify("Bonded")
	if bs.SvcResolved {
		d.props.Notify("Paired")
		return
	}
	d.pendingPaired = true
	d.startPostBondBrowse(outcome.Bearer)
}

// progressServiceQueue implements connect()'s service-connection step
// (spec.md §4.1): queue every currently-allowed, disconnected service in
// priority order and drive each through the same Connecting->Connected
// bookkeeping ConnectProfile applies. Actual profile I/O is an external
// collaborator (spec.md §1); Device only tracks the resulting lifecycle.
// Success for the BR/EDR path is "at least one service connected"; nothing
// attached or eligible is not itself an error.
func (d *Device) progressServiceQueue(bearer Bearer) {
	d.Services.QueueConnect()
	for {
		svc := d.Services.NextPending()
		if svc == nil {
			break
		}
		svc.State = ServiceConnecting
		svc.State = ServiceConnected
	}
	if bearer == BearerBREDR && !d.Services.AnyConnected() {
		d.log.Debug("connect: no BR/EDR service connected")
	}
}

// startPostBondBrowse launches the discovery pair() itself doesn't run
// (spec.md §4.1.6): BR/EDR needs no existing link (SDP is connectionless
// from Browse Engine's point of view), LE reuses a connected ATT link if
// one is already up or opens a fresh one.
func (d *Device) startPostBondBrowse(bearer Bearer) {
	if d.Browse.InProgress() {
		return
	}
	addrType := d.addrTypeForBearer(bearer)
	ch, err := d.Browse.Start(d.backgroundCtx(), bearer, d.Addr, addrType, d.adapter, nil)
	if err != nil {
		d.log.WithError(err).Debug("post-bond browse not started")
		return
	}
	go func() {
		outcome := <-ch
		d.dispatch(func() { d.handleBrowseOutcome(outcome) })
	}()
}

// backgroundCtx returns the loop's own lifetime context for continuations
// that must outlive whatever short-lived ctx an external caller supplied
// (spec.md §2: an engine keeps running even after the call that started it
// returns), falling back to Background for code paths exercised before Run
// has started (tests constructing outcomes directly).
func (d *Device) backgroundCtx() context.Context {
	if d.runCtx != nil {
		return d.runCtx
	}
	return context.Background()
}

// registerProperties wires every observable property to the fields that
// back it (spec.md §3), so the D-Bus-facing layer has one uniform table
// instead of hand-rolled per-property plumbing.
func registerProperties(d *Device) {
	d.props.Register(PropertyDescriptor{Name: "Address", Get: func() any { return string(d.Addr) }})
	d.props.Register(PropertyDescriptor{Name: "AddressType", Get: func() any { return d.AddrType.String() }})
	d.props.Register(PropertyDescriptor{Name: "Name", Get: func() any { return d.Cache.Name() }, Exists: func() bool { return d.Cache.Name() != "" }})
	d.props.Register(PropertyDescriptor{
		Name: "Alias",
		Get: func() any {
			if d.Cache.Alias != "" {
				return d.Cache.Alias
			}
			return d.Cache.Name()
		},
		Set: func(v any) error {
			s, ok := v.(string)
			if !ok {
				return NewError(ErrInvalidArguments, nil)
			}
			d.Cache.Alias = s
			return nil
		},
	})
	d.props.Register(PropertyDescriptor{Name: "Class", Get: func() any { return d.Cache.Class }, Exists: func() bool { return d.Cache.Class != 0 }})
	d.props.Register(PropertyDescriptor{Name: "Appearance", Get: func() any { return d.Cache.Appearance() }, Exists: func() bool { return d.Cache.hasAppear }})
	d.props.Register(PropertyDescriptor{Name: "Icon", Get: func() any { return d.Cache.Icon() }, Exists: func() bool { return d.Cache.Icon() != "" }})
	d.props.Register(PropertyDescriptor{Name: "UUIDs", Get: func() any { return d.Cache.UUIDs() }})
	d.props.Register(PropertyDescriptor{Name: "Paired", Get: func() any { return d.AnyPaired() }})
	d.props.Register(PropertyDescriptor{Name: "Bonded", Get: func() any { return d.AnyBonded() }})
	d.props.Register(PropertyDescriptor{Name: "Connected", Get: func() any { return d.AnyConnected() }})
	d.props.Register(PropertyDescriptor{Name: "ServicesResolved", Get: func() any { return d.AnyServicesResolved() }})
	d.props.Register(PropertyDescriptor{Name: "Trusted", Get: func() any { return d.Trusted }, Set: func(v any) error {
		b, ok := v.(bool)
		if !ok {
			return NewError(ErrInvalidArguments, nil)
		}
		d.Trusted = b
		return nil
	}})
	d.props.Register(PropertyDescriptor{Name: "Blocked", Get: func() any { return d.Blocked }})
	d.props.Register(PropertyDescriptor{Name: "RSSI", Get: func() any { return d.Cache.RSSI }, Exists: func() bool { return d.Cache.RSSI != 0 }})
	d.props.Register(PropertyDescriptor{Name: "TxPower", Get: func() any { return d.Cache.TxPower }, Exists: func() bool { return d.Cache.TxPower != TxPowerUnknown }})
	d.props.Register(PropertyDescriptor{Name: "WakeAllowed", Get: func() any { return d.WakeAllowed }})
	d.props.Register(PropertyDescriptor{Name: "PreferredBearer", Get: func() any { return int(d.PreferredBearer) }})
	d.props.Register(PropertyDescriptor{Name: "ManufacturerData", Get: func() any { return d.Cache.ManufacturerData }, Exists: func() bool { return len(d.Cache.ManufacturerData) > 0 }})
	d.props.Register(PropertyDescriptor{Name: "ServiceData", Get: func() any { return d.Cache.ServiceData }, Exists: func() bool { return len(d.Cache.ServiceData) > 0 }})
}
