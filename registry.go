package mailer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds named, ready-to-use transports.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Transport
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Transport)}
}

// NewRegistryFromConfig builds one transport per entry of transports.
func NewRegistryFromConfig(transports map[string]TransportConfig, logger zerolog.Logger) (*Registry, error) {
	r := NewRegistry()

	names := make([]string, 0, len(transports))
	for name := range transports {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := transports[name]
		t, err := createTransport(tc.Type, tc.Settings, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport %q: %w", name, err)
		}
		r.Register(name, t)
	}
	return r, nil
}

// Register stores t under name, replacing any previous entry.
func (r *Registry) Register(name string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = t
}

// Driver returns the transport registered under name. A miss returns a
// *DriverError matching ErrUnknownTransportDriver.
func (r *Registry) Driver(name string) (Transport, error) {
	r.mu.RLock()
	t, ok := r.drivers[name]
	r.mu.RUnlock()
	if !ok || name == "" {
		return nil, &DriverError{Name: name, Known: r.Names()}
	}
	return t, nil
}

// Names returns the registered driver names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
