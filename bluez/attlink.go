package bluez

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/makesoftwaresafe/bluez/device"
)

// gattLink is the concrete device.ATTLink: an open BR/EDR or LE connection
// to devicePath, used by Browse Engine's LE path to wait for GATT resolution
// and read the primary-service table.
type gattLink struct {
	conn       *dbus.Conn
	devicePath dbus.ObjectPath
}

var _ device.ATTLink = (*gattLink)(nil)

// OpenATT connects to addr and returns an ATTLink once the underlying
// Device1.Connect call succeeds; WaitReady still has to be called to wait
// for GATT resolution.
func (a *Adapter) OpenATT(ctx context.Context, addr device.Address, addrType device.AddressType, secLevel int) (device.ATTLink, error) {
	devicePath := PathFromAddr(a.path, string(addr))
	obj := a.conn.Object(BusName, devicePath)
	if err := obj.CallWithContext(ctx, Device1Interface+".Connect", 0).Err; err != nil {
		return nil, fmt.Errorf("bluez: Connect %s: %w", addr, err)
	}
	return &gattLink{conn: a.conn, devicePath: devicePath}, nil
}

const servicesResolvedPollInterval = 100 * time.Millisecond

// WaitReady polls ServicesResolved until it flips true, ctx is canceled, or
// the adapter reports the device disconnected in the meantime.
func (l *gattLink) WaitReady(ctx context.Context) error {
	for {
		var v dbus.Variant
		err := l.conn.Object(BusName, l.devicePath).CallWithContext(ctx, PropertiesInterface+".Get", 0, Device1Interface, "ServicesResolved").Store(&v)
		if err == nil {
			if resolved, ok := v.Value().(bool); ok && resolved {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(servicesResolvedPollInterval):
		}
	}
}

// PrimaryServices walks the object tree for GattService1 objects beneath
// devicePath whose Primary property is true.
func (l *gattLink) PrimaryServices(ctx context.Context) ([]device.PrimaryService, error) {
	var out map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := l.conn.Object(BusName, rootPath).CallWithContext(ctx, ObjectManagerInterface+".GetManagedObjects", 0).Store(&out)
	if err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	devPrefix := string(l.devicePath) + "/"
	var primaries []device.PrimaryService
	for path, ifaces := range out {
		p := string(path)
		if !strings.HasPrefix(p, devPrefix) {
			continue
		}
		g, ok := ifaces[GattServiceInterface]
		if !ok {
			continue
		}
		if primary, ok := g["Primary"].Value().(bool); !ok || !primary {
			continue
		}
		uuid, _ := g["UUID"].Value().(string)
		primaries = append(primaries, device.PrimaryService{UUID: uuid, Path: p})
	}
	return primaries, nil
}

// ElevateSecurity re-requests pairing at the desired level; BlueZ has no
// direct "set ATT security level" call, and Device1.Pair is a no-op once the
// link is already bonded at or above the requested level.
func (l *gattLink) ElevateSecurity(ctx context.Context, level int) error {
	return l.conn.Object(BusName, l.devicePath).CallWithContext(ctx, Device1Interface+".Pair", 0).Err
}

// Close disconnects the link.
func (l *gattLink) Close() error {
	return l.conn.Object(BusName, l.devicePath).Call(Device1Interface+".Disconnect", 0).Err
}
