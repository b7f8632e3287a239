package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/makesoftwaresafe/bluez/device"
)

// agentPath is the object path this process registers its Agent1
// implementation under; BlueZ calls back into it for every credential
// prompt a bonding attempt raises (spec.md §6 "agent.request_pin/passkey/
// confirm/authorize/display_{passkey,pincode}").
const agentPath = dbus.ObjectPath("/org/bluez/devmon/agent")

// NoInputNoOutputAgent is the device.Agent used when no richer UI is wired
// up: every display call is a log line, every confirm/authorize is
// auto-accepted (BlueZ's own behavior for a NoInputNoOutput agent is to
// accept Just Works and reject anything needing a human-entered value).
type NoInputNoOutputAgent struct{}

var _ device.Agent = NoInputNoOutputAgent{}

func (NoInputNoOutputAgent) Capability() device.IOCapability { return device.IOCapNoInputNoOutput }

func (NoInputNoOutputAgent) RequestPinCode(ctx context.Context, addr device.Address) (string, error) {
	return "", device.NewError(device.ErrAuthenticationReject, fmt.Errorf("no input capability"))
}

func (NoInputNoOutputAgent) RequestPasskey(ctx context.Context, addr device.Address) (uint32, error) {
	return 0, device.NewError(device.ErrAuthenticationReject, fmt.Errorf("no input capability"))
}

func (NoInputNoOutputAgent) DisplayPasskey(ctx context.Context, addr device.Address, passkey uint32, entered uint16) error {
	Log.WithField("device", string(addr)).WithField("passkey", passkey).Info("passkey displayed (no output agent)")
	return nil
}

func (NoInputNoOutputAgent) DisplayPinCode(ctx context.Context, addr device.Address, pincode string) error {
	Log.WithField("device", string(addr)).Info("pincode displayed (no output agent)")
	return nil
}

func (NoInputNoOutputAgent) RequestConfirmation(ctx context.Context, addr device.Address, passkey uint32) error {
	return nil
}

func (NoInputNoOutputAgent) RequestAuthorization(ctx context.Context, addr device.Address) error {
	return nil
}

func (NoInputNoOutputAgent) Cancel(ctx context.Context, addr device.Address) {}

// BusAgent proxies device.Agent calls to an Agent1 object exported
// elsewhere on the session/system bus (e.g. a TUI or a remote agent
// process), rather than deciding locally. It is the concrete counterpart
// to NoInputNoOutputAgent for deployments with a real prompt surface.
type BusAgent struct {
	conn    *dbus.Conn
	adapter *Adapter
	cap     device.IOCapability
}

var _ device.Agent = (*BusAgent)(nil)

// NewBusAgent registers capability with BlueZ's AgentManager1 and returns a
// device.Agent that proxies prompts to whatever Agent1 implementation the
// embedder exports at agentPath. adapter resolves a bare peer address into
// the device object path the Agent1 methods expect.
func NewBusAgent(conn *dbus.Conn, adapter *Adapter, capability device.IOCapability) (*BusAgent, error) {
	mgr := conn.Object(BusName, rootPath)
	if err := mgr.Call(AgentManagerInterface+".RegisterAgent", 0, agentPath, string(capability)).Err; err != nil {
		return nil, fmt.Errorf("bluez: RegisterAgent: %w", err)
	}
	if err := mgr.Call(AgentManagerInterface+".RequestDefaultAgent", 0, agentPath).Err; err != nil {
		return nil, fmt.Errorf("bluez: RequestDefaultAgent: %w", err)
	}
	return &BusAgent{conn: conn, adapter: adapter, cap: capability}, nil
}

func (a *BusAgent) Capability() device.IOCapability { return a.cap }

func (a *BusAgent) agentObj() dbus.BusObject {
	return a.conn.Object(BusName, agentPath)
}

func (a *BusAgent) devicePath(addr device.Address) dbus.ObjectPath {
	return PathFromAddr(a.adapter.Path(), string(addr))
}

func (a *BusAgent) RequestPinCode(ctx context.Context, addr device.Address) (string, error) {
	var pin string
	err := a.agentObj().CallWithContext(ctx, Agent1Interface+".RequestPinCode", 0, a.devicePath(addr)).Store(&pin)
	return pin, err
}

func (a *BusAgent) RequestPasskey(ctx context.Context, addr device.Address) (uint32, error) {
	var passkey uint32
	err := a.agentObj().CallWithContext(ctx, Agent1Interface+".RequestPasskey", 0, a.devicePath(addr)).Store(&passkey)
	return passkey, err
}

func (a *BusAgent) DisplayPasskey(ctx context.Context, addr device.Address, passkey uint32, entered uint16) error {
	return a.agentObj().CallWithContext(ctx, Agent1Interface+".DisplayPasskey", 0, a.devicePath(addr), passkey, entered).Err
}

func (a *BusAgent) DisplayPinCode(ctx context.Context, addr device.Address, pincode string) error {
	return a.agentObj().CallWithContext(ctx, Agent1Interface+".DisplayPinCode", 0, a.devicePath(addr), pincode).Err
}

func (a *BusAgent) RequestConfirmation(ctx context.Context, addr device.Address, passkey uint32) error {
	return a.agentObj().CallWithContext(ctx, Agent1Interface+".RequestConfirmation", 0, a.devicePath(addr), passkey).Err
}

func (a *BusAgent) RequestAuthorization(ctx context.Context, addr device.Address) error {
	return a.agentObj().CallWithContext(ctx, Agent1Interface+".RequestAuthorization", 0, a.devicePath(addr)).Err
}

func (a *BusAgent) Cancel(ctx context.Context, addr device.Address) {
	_ = a.agentObj().CallWithContext(ctx, Agent1Interface+".Cancel", 0).Err
}
