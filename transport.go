package mailer

import (
	"errors"
	"fmt"
)

type selectorKind int

const (
	selectDefault selectorKind = iota
	selectTransport
	selectDriver
	selectFactory
)

// TransportFactory builds a transport for one send from the registry.
type TransportFactory func(r *Registry) (Transport, error)

// TransportSelector picks the transport of a send. The zero value selects
// the default transport.
type TransportSelector struct {
	kind      selectorKind
	transport Transport
	driver    string
	factory   TransportFactory
}

// DefaultTransport selects the builder's own transport, or the configured
// driver when the builder has none.
func DefaultTransport() TransportSelector {
	return TransportSelector{kind: selectDefault}
}

// UseTransport selects t as is.
func UseTransport(t Transport) TransportSelector {
	return TransportSelector{kind: selectTransport, transport: t}
}

// UseDriver selects a registered transport by name. An empty name behaves
// like DefaultTransport.
func UseDriver(name string) TransportSelector {
	return TransportSelector{kind: selectDriver, driver: name}
}

// UseFactory selects whatever f returns.
func UseFactory(f TransportFactory) TransportSelector {
	return TransportSelector{kind: selectFactory, factory: f}
}

// String describes the selector for logs and errors.
func (s TransportSelector) String() string {
	switch s.kind {
	case selectTransport:
		if s.transport == nil {
			return "transport(nil)"
		}
		return "transport(" + s.transport.Name() + ")"
	case selectDriver:
		return "driver(" + s.driver + ")"
	case selectFactory:
		return "factory"
	default:
		return "default"
	}
}

// resolveTransport turns a selector into exactly one transport. Precedence:
// the selector, then the builder's instance transport, then mail.driver.
func (b *Builder) resolveTransport(sel TransportSelector) (Transport, error) {
	switch sel.kind {
	case selectTransport:
		if sel.transport == nil {
			return nil, errors.New("nil transport selected")
		}
		return sel.transport, nil

	case selectFactory:
		if sel.factory == nil {
			return nil, errors.New("nil transport factory selected")
		}
		t, err := sel.factory(b.registry)
		if err != nil {
			return nil, fmt.Errorf("transport factory: %w", err)
		}
		if t == nil {
			return nil, errors.New("transport factory returned no transport")
		}
		return t, nil

	case selectDriver:
		if sel.driver != "" {
			return b.registry.Driver(sel.driver)
		}
	}

	if b.transport != nil {
		return b.transport, nil
	}
	return b.registry.Driver(b.config.Mail.Driver)
}
