package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/makesoftwaresafe/bluez/device"
)

// addrTypeWire maps device.AddressType onto the BlueZ AddressType property
// string ("public"/"random"); BR/EDR has no address-type property at all, so
// the BR/EDR case is only ever used to pick the right D-Bus call shape.
func addrTypeWire(t device.AddressType) string {
	if t == device.AddressLERandom {
		return "random"
	}
	return "public"
}

// Adapter wraps a BlueZ adapter object (e.g. /org/bluez/hci0) and is the
// concrete implementation of device.Adapter: every outbound call named
// against "adapter" is a method here.
type Adapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

var _ device.Adapter = (*Adapter)(nil)

// DefaultAdapter returns the first BlueZ adapter found on the bus (hci0 in
// the common single-radio case).
func DefaultAdapter(conn *dbus.Conn) (*Adapter, error) {
	var out map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := conn.Object(BusName, rootPath)
	err := obj.Call(ObjectManagerInterface+".GetManagedObjects", 0).Store(&out)
	if err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	for path := range out {
		if isAdapterPath(path) {
			return &Adapter{conn: conn, path: path}, nil
		}
	}
	return nil, fmt.Errorf("bluez: no adapter found")
}

// Path returns the adapter object path.
func (a *Adapter) Path() dbus.ObjectPath { return a.path }

func (a *Adapter) devObj(addr device.Address) dbus.BusObject {
	return a.conn.Object(BusName, PathFromAddr(a.path, string(addr)))
}

// StartDiscovery starts discovery on the adapter.
func (a *Adapter) StartDiscovery(ctx context.Context) error {
	return a.conn.Object(BusName, a.path).CallWithContext(ctx, Adapter1Interface+".StartDiscovery", 0).Err
}

// StopDiscovery stops discovery on the adapter.
func (a *Adapter) StopDiscovery(ctx context.Context) error {
	return a.conn.Object(BusName, a.path).CallWithContext(ctx, Adapter1Interface+".StopDiscovery", 0).Err
}

// SetDiscoveryFilter restricts discovery to the given transport/UUID (empty
// uuidStr means "any").
func (a *Adapter) SetDiscoveryFilter(ctx context.Context, transport, uuidStr string) error {
	filter := map[string]any{"Transport": transport}
	if uuidStr != "" {
		filter["UUIDs"] = []string{uuidStr}
	}
	return a.conn.Object(BusName, a.path).CallWithContext(ctx, Adapter1Interface+".SetDiscoveryFilter", 0, filter).Err
}

// CreateBonding starts the BlueZ pairing flow for addr, having already
// arranged (via the caller's Agent) that ioCap describes our input/output
// capability. The agent's capability is registered separately with
// AgentManager1; CreateBonding only triggers Device1.Pair.
func (a *Adapter) CreateBonding(ctx context.Context, addr device.Address, addrType device.AddressType, ioCap device.IOCapability) error {
	return a.devObj(addr).CallWithContext(ctx, Device1Interface+".Pair", 0).Err
}

// CancelBonding cancels an in-flight bonding attempt for addr.
func (a *Adapter) CancelBonding(ctx context.Context, addr device.Address) error {
	return a.devObj(addr).CallWithContext(ctx, Device1Interface+".CancelPairing", 0).Err
}

// RemoveBonding removes addr's persisted pairing material and removes it
// from the adapter's device registry.
func (a *Adapter) RemoveBonding(ctx context.Context, addr device.Address) error {
	path := PathFromAddr(a.path, string(addr))
	return a.conn.Object(BusName, a.path).CallWithContext(ctx, Adapter1Interface+".RemoveDevice", 0, path).Err
}

// Disconnect forces addr's link down through Device1.Disconnect. addrType is
// not used: every bearer connected to addr is disconnected.
func (a *Adapter) Disconnect(ctx context.Context, addr device.Address, addrType device.AddressType) error {
	return a.devObj(addr).CallWithContext(ctx, Device1Interface+".Disconnect", 0).Err
}

// Block marks addr as blocked (refuses future connections).
func (a *Adapter) Block(ctx context.Context, addr device.Address) error {
	return a.setDeviceProp(ctx, addr, "Blocked", true)
}

// Unblock clears addr's blocked flag.
func (a *Adapter) Unblock(ctx context.Context, addr device.Address) error {
	return a.setDeviceProp(ctx, addr, "Blocked", false)
}

// SetDeviceFlags writes the kernel/bearer feature-flag tri-state for addr.
func (a *Adapter) SetDeviceFlags(ctx context.Context, addr device.Address, flags uint32) error {
	return a.setDeviceProp(ctx, addr, "DeviceFlags", flags)
}

func (a *Adapter) setDeviceProp(ctx context.Context, addr device.Address, name string, value any) error {
	path := PathFromAddr(a.path, string(addr))
	obj := a.conn.Object(BusName, path)
	return obj.CallWithContext(ctx, PropertiesInterface+".Set", 0, Device1Interface, name, dbus.MakeVariant(value)).Err
}
