package device

// PropertyDescriptor binds one published property name to the getter (and,
// for writable properties, setter) that reaches into Device state for it.
// Exists lets a property hide itself entirely (e.g. ServiceData before any
// advertisement carries it) instead of merely reporting a zero value.
type PropertyDescriptor struct {
	Name   string
	Get    func() any
	Set    func(any) error
	Exists func() bool
}

func (d PropertyDescriptor) exists() bool {
	if d.Exists == nil {
		return true
	}
	return d.Exists()
}

// PropertyTable is the dynamic dispatch table spec.md §3 implies every
// exposed property goes through: Device never special-cases "which
// property changed" logic outside of this table, and publication always
// flows through the same PublishFunc.
type PropertyTable struct {
	order   []string
	entries map[string]PropertyDescriptor
	publish PublishFunc
}

// NewPropertyTable returns an empty table that calls publish on Notify.
// publish may be nil (tests that don't care about the bus-facing side).
func NewPropertyTable(publish PublishFunc) *PropertyTable {
	return &PropertyTable{entries: make(map[string]PropertyDescriptor), publish: publish}
}

// Register adds (or replaces) one property's descriptor.
func (t *PropertyTable) Register(d PropertyDescriptor) {
	if _, exists := t.entries[d.Name]; !exists {
		t.order = append(t.order, d.Name)
	}
	t.entries[d.Name] = d
}

// Get returns the current value of name, and whether it exists right now.
func (t *PropertyTable) Get(name string) (any, bool) {
	d, ok := t.entries[name]
	if !ok || !d.exists() {
		return nil, false
	}
	return d.Get(), true
}

// Set writes value through name's setter, or ErrInvalidArguments if name is
// unknown or read-only.
func (t *PropertyTable) Set(name string, value any) error {
	d, ok := t.entries[name]
	if !ok || d.Set == nil {
		return NewError(ErrInvalidArguments, nil)
	}
	return d.Set(value)
}

// Snapshot returns every currently-existing property's value, in
// registration order (stable iteration, matching how a GetAll would read).
func (t *PropertyTable) Snapshot() map[string]any {
	out := make(map[string]any, len(t.order))
	for _, name := range t.order {
		d := t.entries[name]
		if d.exists() {
			out[name] = d.Get()
		}
	}
	return out
}

// Notify re-reads name and publishes its value, a no-op if the property no
// longer exists or no PublishFunc was supplied.
func (t *PropertyTable) Notify(name string) {
	if t.publish == nil {
		return
	}
	if v, ok := t.Get(name); ok {
		t.publish(name, v)
	}
}
