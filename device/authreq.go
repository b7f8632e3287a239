package device

import "context"

// AuthVariant identifies which org.bluez Agent1 method the remote bonding
// attempt is driving (spec.md §4.3/§6).
type AuthVariant int

const (
	AuthRequestPinCode AuthVariant = iota
	AuthRequestPasskey
	AuthDisplayPasskey
	AuthDisplayPinCode
	AuthRequestConfirmation
	AuthRequestAuthorization
)

// AuthenticationRequest is one inbound credential prompt, correlated by
// Address with whatever bonding attempt (local or remote-initiated) is in
// flight for that device.
type AuthenticationRequest struct {
	Variant AuthVariant
	Addr    Address
	Passkey uint32
	Entered uint16
	PinCode string
}

// AuthDecision is AR's resolution of one AuthenticationRequest: whether to
// accept, and (for display variants) nothing further to report.
type AuthDecision struct {
	Accept  bool
	PinCode string
	Passkey uint32
}

// AuthPolicy resolves AuthenticationRequest variants against the local
// Agent and the device's current bonding state (spec.md §4.3): it is the
// AR of spec.md §2, the thing standing between a raw Agent1 callback and
// the decision the Device Controller acts on.
type AuthPolicy struct {
	policy Policy
}

// NewAuthPolicy returns an AR bound to policy.
func NewAuthPolicy(policy Policy) *AuthPolicy {
	return &AuthPolicy{policy: policy}
}

// Resolve decides req against agent, given whether addr is already bonded
// and whether a bonding attempt is currently in progress for it.
func (ar *AuthPolicy) Resolve(ctx context.Context, req AuthenticationRequest, agent Agent, alreadyBonded, bondingInProgress bool) (AuthDecision, error) {
	switch req.Variant {
	case AuthRequestPinCode:
		pin, err := agent.RequestPinCode(ctx, req.Addr)
		if err != nil {
			return AuthDecision{}, err
		}
		return AuthDecision{Accept: true, PinCode: pin}, nil

	case AuthRequestPasskey:
		passkey, err := agent.RequestPasskey(ctx, req.Addr)
		if err != nil {
			return AuthDecision{}, err
		}
		return AuthDecision{Accept: true, Passkey: passkey}, nil

	case AuthDisplayPasskey:
		if err := agent.DisplayPasskey(ctx, req.Addr, req.Passkey, req.Entered); err != nil {
			return AuthDecision{}, err
		}
		return AuthDecision{Accept: true}, nil

	case AuthDisplayPinCode:
		if err := agent.DisplayPinCode(ctx, req.Addr, req.PinCode); err != nil {
			return AuthDecision{}, err
		}
		return AuthDecision{Accept: true}, nil

	case AuthRequestConfirmation:
		// A Confirm arriving while we ourselves are mid-bonding with this
		// device is auto-accepted — the user already consented to the
		// bonding attempt that triggered it (spec.md §4.3/§4.4).
		if bondingInProgress {
			return AuthDecision{Accept: true}, nil
		}
		// A Just Works (or numeric-comparison) confirmation on a device
		// that is already bonded, outside of an attempt we ourselves
		// started, is treated as an unsolicited re-pair and rejected
		// unless policy.JustWorksRepairingAllowed is set, in which case the
		// agent decides.
		if alreadyBonded && !ar.policy.JustWorksRepairingAllowed {
			return AuthDecision{Accept: false}, NewBearerError(ErrAuthenticationReject, BearerBREDR, nil)
		}
		if err := agent.RequestConfirmation(ctx, req.Addr, req.Passkey); err != nil {
			return AuthDecision{Accept: false}, err
		}
		return AuthDecision{Accept: true}, nil

	case AuthRequestAuthorization:
		if err := agent.RequestAuthorization(ctx, req.Addr); err != nil {
			return AuthDecision{Accept: false}, err
		}
		return AuthDecision{Accept: true}, nil

	default:
		return AuthDecision{}, NewError(ErrInvalidArguments, nil)
	}
}
