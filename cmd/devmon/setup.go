package main

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/makesoftwaresafe/bluez/bluez"
	"github.com/makesoftwaresafe/bluez/config"
	"github.com/makesoftwaresafe/bluez/device"
	"github.com/makesoftwaresafe/bluez/device/store"
)

// session bundles everything a subcommand needs to build one device.Device
// against a live bus connection: the bus itself, the chosen adapter, the
// loaded config, and a persistence store rooted at config.Store.Path.
type session struct {
	cfg     *config.Config
	conn    *dbus.Conn
	adapter *bluez.Adapter
	store   *store.FileStore
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("devmon: load config: %w", err)
	}
	if err := device.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("devmon: log level: %w", err)
	}
	if cfg.Log.Format == "json" {
		device.Log.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("devmon: connect system bus: %w", err)
	}

	adapter, err := bluez.DefaultAdapter(conn)
	if err != nil {
		return nil, fmt.Errorf("devmon: find adapter: %w", err)
	}

	fileStore, err := store.NewFileStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("devmon: open store: %w", err)
	}

	return &session{cfg: cfg, conn: conn, adapter: adapter, store: fileStore}, nil
}

// deviceAddrType asks the bus for the named device's AddressType property,
// falling back to LE-public if the device object doesn't exist yet (a
// not-yet-seen address being paired for the first time).
func (s *session) deviceAddrType(ctx context.Context, addr string) device.AddressType {
	path := bluez.PathFromAddr(s.adapter.Path(), addr)
	var v dbus.Variant
	err := s.conn.Object(bluez.BusName, path).CallWithContext(ctx, bluez.PropertiesInterface+".Get", 0, bluez.Device1Interface, "AddressType").Store(&v)
	if err != nil {
		return device.AddressLEPublic
	}
	if s, ok := v.Value().(string); ok && s == "random" {
		return device.AddressLERandom
	}
	return device.AddressBREDRPublic
}

// newDevice constructs a device.Device for addr, wired against this
// session's adapter, store, and configured profile table, using a
// NoInputNoOutput agent (the CLI itself has no human prompt surface).
func (s *session) newDevice(ctx context.Context, addr string) *device.Device {
	addrType := s.deviceAddrType(ctx, addr)
	adapterAddr := device.Address(s.adapter.Path())
	publish := func(name string, value any) {
		fmt.Printf("%s: %s = %v\n", addr, name, value)
	}
	hasBREDR := !addrType.IsLE()
	hasLE := addrType.IsLE()
	return device.NewDevice(
		device.Address(addr),
		addrType,
		adapterAddr,
		hasBREDR, hasLE,
		s.adapter,
		bluez.NoInputNoOutputAgent{},
		s.store,
		s.cfg.ProfileTable(),
		s.cfg.DevicePolicy(),
		publish,
	)
}
