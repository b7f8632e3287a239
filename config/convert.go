package config

import "github.com/makesoftwaresafe/bluez/device"

// DevicePolicy converts the loaded timing table into a device.Policy.
func (c *Config) DevicePolicy() device.Policy {
	return device.Policy{
		DisconnectGrace:           c.Policy.DisconnectGrace,
		BondingRetryDelay:         c.Policy.BondingRetryDelay,
		TemporaryTTL:              c.Policy.TemporaryTTL,
		AutoDiscoveryDeferral:     c.Policy.AutoDiscoveryDeferral,
		NameResolveRetryDelay:     c.Policy.NameResolveRetryDelay,
		JustWorksRepairingAllowed: c.Policy.JustWorksRepairingAllowed,
	}
}

// ProfileTable converts the configured profile list into the capability
// table device.ServiceSet consults, keyed by UUID.
func (c *Config) ProfileTable() map[string]device.ProfileDescriptor {
	out := make(map[string]device.ProfileDescriptor, len(c.Profiles))
	for _, p := range c.Profiles {
		out[p.UUID] = device.ProfileDescriptor{
			UUID:        p.UUID,
			Name:        p.Name,
			Priority:    p.Priority,
			AutoConnect: p.AutoConnect,
			Internal:    p.Internal,
		}
	}
	return out
}
