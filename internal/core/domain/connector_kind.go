package domain

import (
	"fmt"
	"maps"
	"strings"
)

// ConnectorKind is the tag a connector factory resolves to a constructor.
// Both sides of a cross-process connection resolve the same tag independently.
type ConnectorKind string

// Built-in connector kinds.
const (
	ConnectorForwarding ConnectorKind = "forwarding"
	ConnectorData       ConnectorKind = "data"
	ConnectorTwoWay     ConnectorKind = "twoway"
)

// String returns the kind as a string.
func (k ConnectorKind) String() string {
	return string(k)
}

// ConnectorSpec is the portable description of a connector. It is what
// crosses a process boundary in place of a live connector.
type ConnectorSpec struct {
	Kind    ConnectorKind     `json:"kind" yaml:"kind" mapstructure:"kind" validate:"required,nospace"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}

// NewConnectorSpec returns a spec for kind with no options.
func NewConnectorSpec(kind ConnectorKind) ConnectorSpec {
	return ConnectorSpec{Kind: kind}
}

// Validate checks that the connector spec names a kind.
func (s ConnectorSpec) Validate() error {
	if strings.TrimSpace(string(s.Kind)) == "" {
		return fmt.Errorf("connector kind is required")
	}
	if strings.ContainsAny(string(s.Kind), " \t\n") {
		return fmt.Errorf("connector kind %q contains whitespace", s.Kind)
	}
	return nil
}

// Clone returns a deep copy of s.
func (s ConnectorSpec) Clone() ConnectorSpec {
	return ConnectorSpec{Kind: s.Kind, Options: maps.Clone(s.Options)}
}
