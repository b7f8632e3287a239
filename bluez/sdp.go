package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/makesoftwaresafe/bluez/device"
)

// sdpSearchInterface is the internal device-side interface the adapter
// exposes for BR/EDR service discovery; it has no standard public BlueZ
// analog (real bluetoothd drives SDP search from inside the daemon process,
// not over D-Bus), so it is modeled here as a device-scoped method call the
// Device Controller's own process would expose when embedded in the daemon.
const sdpSearchInterface = "org.bluez.internal.ServiceDiscovery1"

// SDPSearch runs one SDP search for uuidStr against addr and returns the
// service records found. Browse Engine calls this once per mandatory UUID,
// sequentially, collecting records across calls.
func (a *Adapter) SDPSearch(ctx context.Context, addr device.Address, uuidStr string) ([]device.ServiceRecord, error) {
	path := PathFromAddr(a.path, string(addr))
	var raw [][]byte
	call := a.conn.Object(BusName, path).CallWithContext(ctx, sdpSearchInterface+".Search", 0, uuidStr)
	if call.Err != nil {
		return nil, fmt.Errorf("bluez: SDPSearch %s/%s: %w", addr, uuidStr, call.Err)
	}
	if err := call.Store(&raw); err != nil {
		return nil, fmt.Errorf("bluez: SDPSearch %s/%s: decode: %w", addr, uuidStr, err)
	}
	recs := make([]device.ServiceRecord, 0, len(raw))
	for _, r := range raw {
		recs = append(recs, device.ServiceRecord{UUIDs: []string{uuidStr}, Raw: r})
	}
	return recs, nil
}

// ReadManagedObjects fetches the full GetManagedObjects snapshot from the
// bus root. The browse paths do not use it: LE reads primaries through
// gattLink.PrimaryServices and BR/EDR takes them from SDP records.
func (a *Adapter) ReadManagedObjects(ctx context.Context) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var out map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := a.conn.Object(BusName, rootPath)
	err := obj.CallWithContext(ctx, ObjectManagerInterface+".GetManagedObjects", 0).Store(&out)
	if err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	return out, nil
}
