// Package bluez implements the D-Bus-facing transport the device package's
// Device Controller drives: adapter calls, SDP search, ATT/GATT bring-up,
// discovery delivery, and agent proxying, all against the real org.bluez
// bus API.
package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	BusName   = "org.bluez"
	rootPath  = dbus.ObjectPath("/")
	adapterNS = "/org/bluez/"

	Adapter1Interface           = "org.bluez.Adapter1"
	Device1Interface            = "org.bluez.Device1"
	GattServiceInterface        = "org.bluez.GattService1"
	GattCharacteristicInterface = "org.bluez.GattCharacteristic1"
	GattDescriptorInterface     = "org.bluez.GattDescriptor1"
	AgentManagerInterface       = "org.bluez.AgentManager1"
	Agent1Interface             = "org.bluez.Agent1"
	ObjectManagerInterface      = "org.freedesktop.DBus.ObjectManager"
	PropertiesInterface         = "org.freedesktop.DBus.Properties"
)

// UUIDToStr renders a 16-byte UUID in the canonical dashed form BlueZ uses
// on the wire (e.g. "0000110a-0000-1000-8000-00805f9b34fb").
func UUIDToStr(b []byte) string {
	if len(b) != 16 {
		return ""
	}
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15])
}

// AddrFromPath extracts the MAC address from a device object path, e.g.
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF -> AA:BB:CC:DD:EE:FF.
func AddrFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return ""
	}
	s = s[i+1:]
	if !strings.HasPrefix(s, "dev_") {
		return ""
	}
	s = s[4:]
	return strings.ReplaceAll(s, "_", ":")
}

// PathFromAddr builds a device object path from an adapter path and a MAC
// address, e.g. (/org/bluez/hci0, AA:BB:CC:DD:EE:FF) -> .../dev_AA_BB_CC_DD_EE_FF.
func PathFromAddr(adapterPath dbus.ObjectPath, addr string) dbus.ObjectPath {
	s := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(string(adapterPath) + "/dev_" + s)
}

// isAdapterPath reports whether path looks like /org/bluez/hciN (exactly one
// path segment below the bluez root).
func isAdapterPath(path dbus.ObjectPath) bool {
	p := string(path)
	return strings.HasPrefix(p, adapterNS) && strings.Count(p, "/") == 2
}
