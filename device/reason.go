package device

// DisconnectReason names why a bearer went down, carried on the
// "Disconnected" signal (spec.md §7).
type DisconnectReason string

const (
	ReasonUnknown        DisconnectReason = "Unknown"
	ReasonTimeout        DisconnectReason = "Timeout"
	ReasonLocal          DisconnectReason = "Local"
	ReasonRemote         DisconnectReason = "Remote"
	ReasonAuthentication DisconnectReason = "Authentication"
	ReasonSuspend        DisconnectReason = "Suspend"
)
