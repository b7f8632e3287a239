package bluez

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/makesoftwaresafe/bluez/device"
)

// DeviceFound is one coalesced device-found/updated report translated from
// a BlueZ InterfacesAdded or PropertiesChanged signal, ready to hand to
// device.Device.Deliver for whichever Device object owns Addr (spec.md §6
// inbound event "device-found/updated with EIR/adv data and RSSI").
type DeviceFound struct {
	Addr  string
	Event device.InboundEvent
}

// Scan starts discovery on adapter and translates every device-concerning
// InterfacesAdded/PropertiesChanged signal into a DeviceFound, delivered to
// out until ctx is canceled. It never blocks on a full channel: a later
// report supersedes one the consumer hasn't drained yet, matching
// Device.Deliver's own coalescing discipline.
func Scan(ctx context.Context, conn *dbus.Conn, adapter *Adapter, transport, serviceUUIDStr string, out chan<- DeviceFound) error {
	if err := adapter.SetDiscoveryFilter(ctx, transport, serviceUUIDStr); err != nil {
		if err := adapter.SetDiscoveryFilter(ctx, transport, ""); err != nil {
			return fmt.Errorf("bluez: SetDiscoveryFilter: %w", err)
		}
	}
	if err := adapter.StartDiscovery(ctx); err != nil {
		return fmt.Errorf("bluez: StartDiscovery: %w", err)
	}
	defer adapter.StopDiscovery(ctx)

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(ObjectManagerInterface),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		return fmt.Errorf("bluez: AddMatch InterfacesAdded: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(PropertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("bluez: AddMatch PropertiesChanged: %w", err)
	}

	sigCh := make(chan *dbus.Signal, 32)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)

	adapterPrefix := string(adapter.Path()) + "/"

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-sigCh:
			if !ok {
				return nil
			}
			switch {
			case strings.HasSuffix(sig.Name, ".InterfacesAdded"):
				handleInterfacesAdded(sig, adapterPrefix, out)
			case strings.HasSuffix(sig.Name, ".PropertiesChanged"):
				handlePropertiesChanged(sig, adapterPrefix, out)
			}
		}
	}
}

func handleInterfacesAdded(sig *dbus.Signal, adapterPrefix string, out chan<- DeviceFound) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok || !strings.HasPrefix(string(path), adapterPrefix) {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	dev, ok := ifaces[Device1Interface]
	if !ok {
		return
	}
	addr := AddrFromPath(path)
	if addr == "" {
		return
	}
	deliver(addr, dev, out)
}

func handlePropertiesChanged(sig *dbus.Signal, adapterPrefix string, out chan<- DeviceFound) {
	if sig.Path == "" || len(sig.Body) < 2 {
		return
	}
	if !strings.HasPrefix(string(sig.Path), adapterPrefix) {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != Device1Interface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	addr := AddrFromPath(sig.Path)
	if addr == "" {
		return
	}
	deliver(addr, changed, out)
}

// deliver translates a BlueZ property map into an InboundEvent and enqueues
// it for the device owning addr. Only fields actually present are set, so a
// small PropertiesChanged delta never clobbers fields the caller didn't
// report (spec.md §6: "only what changed").
func deliver(addr string, props map[string]dbus.Variant, out chan<- DeviceFound) {
	var ev device.InboundEvent
	ev.Bearer = device.BearerLE

	if v, ok := props["RSSI"]; ok {
		if n, ok := v.Value().(int16); ok {
			ev.RSSI = &n
		}
	}
	if v, ok := props["TxPower"]; ok {
		if n, ok := v.Value().(int16); ok {
			tp := int8(n)
			ev.TxPower = &tp
		}
	}
	if v, ok := props["Name"]; ok {
		if s, ok := v.Value().(string); ok {
			ev.Name = &s
		}
	}
	if v, ok := props["Alias"]; ok {
		if s, ok := v.Value().(string); ok {
			ev.Alias = &s
		}
	}
	if v, ok := props["Appearance"]; ok {
		if n, ok := v.Value().(uint16); ok {
			ev.Appearance = &n
		}
	}
	if v, ok := props["Class"]; ok {
		if n, ok := v.Value().(uint32); ok {
			ev.Class = &n
		}
	}
	if v, ok := props["Connected"]; ok {
		if b, ok := v.Value().(bool); ok {
			ev.Connected = &b
		}
	}
	if v, ok := props["ServicesResolved"]; ok {
		if b, ok := v.Value().(bool); ok {
			ev.ServicesResolved = &b
		}
	}
	if v, ok := props["Paired"]; ok {
		if b, ok := v.Value().(bool); ok {
			ev.Paired = &b
		}
	}
	if v, ok := props["Bonded"]; ok {
		if b, ok := v.Value().(bool); ok {
			ev.Bonded = &b
		}
	}
	if v, ok := props["UUIDs"]; ok {
		if u, ok := v.Value().([]string); ok {
			ev.UUIDsAdded = u
		}
	}
	if v, ok := props["AddressType"]; ok {
		if s, ok := v.Value().(string); ok && s == "public" {
			ev.Bearer = device.BearerBREDR
		}
	}

	select {
	case out <- DeviceFound{Addr: addr, Event: ev}:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- DeviceFound{Addr: addr, Event: ev}:
		default:
		}
	}
}
