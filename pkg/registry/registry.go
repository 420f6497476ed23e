package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/beamline/pkg/devices"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// Info describes a registered device and what it can do.
type Info struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Registry manages the devices available to plans.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]domain.Target
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]domain.Target),
	}
}

// FromConfig builds and registers the declared devices in order, so a device
// may depend on any device declared before it.
func FromConfig(cfgs []devices.Config) (*Registry, error) {
	r := NewRegistry()
	for _, cfg := range cfgs {
		dev, err := devices.New(cfg, r.Readable)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", cfg.Name, err)
		}
		if err := r.Register(dev); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a device. Names must be unique.
func (r *Registry) Register(dev domain.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[dev.Name()]; exists {
		return domain.Invalid("name", "device %q already registered", dev.Name())
	}
	r.devices[dev.Name()] = dev
	return nil
}

// Get looks a device up by name.
func (r *Registry) Get(name string) (domain.Target, error) {
	r.mu.RLock()
	dev, ok := r.devices[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, name)
	}
	return dev, nil
}

// Readable returns the named device if it can be read.
func (r *Registry) Readable(name string) (ports.Readable, error) {
	dev, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	rd, ok := dev.(ports.Readable)
	if !ok {
		return nil, domain.Invalid(name, "device cannot be read")
	}
	return rd, nil
}

// Movable returns the named device if it can be set.
func (r *Registry) Movable(name string) (ports.Movable, error) {
	dev, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	mv, ok := dev.(ports.Movable)
	if !ok {
		return nil, domain.Invalid(name, "device cannot be moved")
	}
	return mv, nil
}

// Names returns the registered device names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devices))
	for name := range r.devices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Describe lists every device with its capabilities, sorted by name.
func (r *Registry) Describe() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		dev, err := r.Get(name)
		if err != nil {
			continue
		}
		out = append(out, Info{Name: name, Capabilities: Capabilities(dev)})
	}
	return out
}

// Capabilities names the ports a device implements.
func Capabilities(dev domain.Target) []string {
	var caps []string
	if _, ok := dev.(ports.Readable); ok {
		caps = append(caps, "read")
	}
	if _, ok := dev.(ports.Movable); ok {
		caps = append(caps, "set")
	}
	if _, ok := dev.(ports.Triggerable); ok {
		caps = append(caps, "trigger")
	}
	if _, ok := dev.(ports.Settler); ok {
		caps = append(caps, "settle")
	}
	return caps
}
