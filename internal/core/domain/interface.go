package domain

import (
	"fmt"
	"slices"
)

// InterfaceID names a capability interface, e.g. "calculator/v1".
type InterfaceID string

// String returns the identifier as a string.
func (id InterfaceID) String() string {
	return string(id)
}

// Interface is the statically declared shape of a capability: its identifier
// and the operations callers may invoke on it.
type Interface struct {
	ID      InterfaceID `yaml:"id" mapstructure:"id" validate:"required,nospace"`
	Methods []string    `yaml:"methods" mapstructure:"methods" validate:"required,min=1,unique,dive,required,nospace"`
}

// Declares reports whether method is one of the interface's operations.
func (i Interface) Declares(method string) bool {
	return slices.Contains(i.Methods, method)
}

// Manifest is a component's capability manifest: the interfaces it offers
// through inbound ports and the interfaces it requires through outbound ports.
// It replaces runtime discovery; ports are checked against it when created.
type Manifest struct {
	Component string      `yaml:"component" mapstructure:"component" validate:"required"`
	Offered   []Interface `yaml:"offered" mapstructure:"offered" validate:"dive"`
	Required  []Interface `yaml:"required" mapstructure:"required" validate:"dive"`
}

// Validate checks the manifest's structure and that no interface is declared twice.
func (m *Manifest) Validate() error {
	if err := GlobalValidator.Validate(m); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	seen := make(map[InterfaceID]bool)
	for _, group := range [][]Interface{m.Offered, m.Required} {
		clear(seen)
		for _, iface := range group {
			if seen[iface.ID] {
				return fmt.Errorf("invalid manifest for %s: interface %s declared twice", m.Component, iface.ID)
			}
			seen[iface.ID] = true
		}
	}
	return nil
}

// Offers returns the offered interface with the given id.
func (m *Manifest) Offers(id InterfaceID) (Interface, bool) {
	return find(m.Offered, id)
}

// Requires returns the required interface with the given id.
func (m *Manifest) Requires(id InterfaceID) (Interface, bool) {
	return find(m.Required, id)
}

func find(list []Interface, id InterfaceID) (Interface, bool) {
	for _, iface := range list {
		if iface.ID == id {
			return iface, true
		}
	}
	return Interface{}, false
}
