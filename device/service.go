package device

import "sort"

// ServiceState is one of the four states a Service lifecycle moves through
// (spec.md §4.5).
type ServiceState int

const (
	ServiceDisconnected ServiceState = iota
	ServiceConnecting
	ServiceConnected
	ServiceDisconnecting
)

func (s ServiceState) String() string {
	switch s {
	case ServiceConnecting:
		return "connecting"
	case ServiceConnected:
		return "connected"
	case ServiceDisconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// Service is one per-profile attachment discovered for a device (spec.md
// §2/§4.5): its own connect/disconnect lifecycle, an allowed/blocked flag,
// and the profile that claims it. Service holds only a non-owning back
// reference to its Device (spec.md §9 "cyclic relationships... flattened").
type Service struct {
	Profile   ProfileDescriptor
	State     ServiceState
	Allowed   bool
	// ClaimsRange is true when this service was discovered by an internal
	// profile that claims the attribute range, suppressing external
	// handlers for the same range (spec.md §4.5).
	ClaimsRange bool
}

// ServiceSet is the SS of spec.md §2/§4.5: an ordered collection of Service
// attachments plus the sequential pending-connect queue.
type ServiceSet struct {
	services []*Service
	pending  []*Service
	profiles map[string]ProfileDescriptor
}

// NewServiceSet returns an empty set backed by the given profile capability
// table (spec.md §9: "Profile is a separately-registered capability table,
// consulted but never owned by Device").
func NewServiceSet(profiles map[string]ProfileDescriptor) *ServiceSet {
	return &ServiceSet{profiles: profiles}
}

// Services returns the attached services ordered by descending profile
// priority (spec.md §4.5).
func (s *ServiceSet) Services() []*Service {
	out := append([]*Service(nil), s.services...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Profile.Priority > out[j].Profile.Priority })
	return out
}

// Probe attaches a Service for each added UUID that maps to a registered
// profile, retaining unattached UUIDs with no matching profile (spec.md
// §4.5: "if no profile is registered for the UUID, no service attaches but
// the UUID is retained" — retention itself lives in AdvertisingCache;
// Probe's job is only the attach decision). allowUUIDs is the adapter's
// UUID allow-list; a service's Allowed flag is the intersection of the
// profile's AutoConnect intent with that allow-list (spec.md §4.5).
func (s *ServiceSet) Probe(addedUUIDs []string, allowUUIDs map[string]bool) []*Service {
	var attached []*Service
	for _, uuid := range addedUUIDs {
		prof, ok := s.profiles[uuid]
		if !ok {
			continue
		}
		if s.find(uuid) != nil {
			continue
		}
		if s.rangeClaimed(prof) {
			continue
		}
		svc := &Service{Profile: prof, State: ServiceDisconnected}
		s.services = append(s.services, svc)
		attached = append(attached, svc)
	}
	s.Reprobe(allowUUIDs)
	return attached
}

// Reprobe recomputes Allowed for every attached service against the
// current allow-list, without attaching anything new (used after
// unblock(), spec.md §4.1 / S5).
func (s *ServiceSet) Reprobe(allowUUIDs map[string]bool) {
	for _, svc := range s.services {
		svc.Allowed = svc.Profile.AutoConnect && allowUUIDs[svc.Profile.UUID]
	}
}

func (s *ServiceSet) rangeClaimed(prof ProfileDescriptor) bool {
	if !prof.Internal {
		return false
	}
	for _, svc := range s.services {
		if svc.Profile.Internal && svc.ClaimsRange {
			return true
		}
	}
	return false
}

func (s *ServiceSet) find(uuid string) *Service {
	for _, svc := range s.services {
		if svc.Profile.UUID == uuid {
			return svc
		}
	}
	return nil
}

// QueueConnect appends the currently-allowed, disconnected services (in
// priority order) to the pending queue for sequential connection (spec.md
// §4.1 connect()).
func (s *ServiceSet) QueueConnect() {
	s.pending = nil
	for _, svc := range s.Services() {
		if svc.Allowed && svc.State == ServiceDisconnected {
			s.pending = append(s.pending, svc)
		}
	}
}

// NextPending pops and returns the next queued service, or nil if the
// queue is empty.
func (s *ServiceSet) NextPending() *Service {
	if len(s.pending) == 0 {
		return nil
	}
	svc := s.pending[0]
	s.pending = s.pending[1:]
	return svc
}

// DropPending clears the pending-connect queue (spec.md §4.1.3 step 1).
func (s *ServiceSet) DropPending() {
	s.pending = nil
}

// AnyConnected reports whether at least one service is connected (spec.md
// §4.1 connect() success criterion for the BR/EDR path).
func (s *ServiceSet) AnyConnected() bool {
	for _, svc := range s.services {
		if svc.State == ServiceConnected {
			return true
		}
	}
	return false
}

// DisconnectAll transitions every non-disconnected service to
// Disconnecting and returns them, for the Controller to actually signal
// (spec.md §4.1.3 step 1).
func (s *ServiceSet) DisconnectAll() []*Service {
	var out []*Service
	for _, svc := range s.services {
		if svc.State != ServiceDisconnected {
			svc.State = ServiceDisconnecting
			out = append(out, svc)
		}
	}
	s.DropPending()
	return out
}

// TeardownAll forces every service to Disconnected, for block()/remove()
// (spec.md §4.1 block()).
func (s *ServiceSet) TeardownAll() {
	for _, svc := range s.services {
		svc.State = ServiceDisconnected
	}
	s.DropPending()
}
