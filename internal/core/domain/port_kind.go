package domain

import "fmt"

// PortKind distinguishes the port variants.
type PortKind int

const (
	PortUnknown PortKind = iota
	// PortInbound exposes a capability of its owner.
	PortInbound
	// PortOutbound calls a capability offered elsewhere.
	PortOutbound
	// PortDataInbound offers pull requests and emits push deliveries.
	PortDataInbound
	// PortDataOutbound pulls data and receives push deliveries.
	PortDataOutbound
	// PortTwoWay makes symmetric peer calls in both directions.
	PortTwoWay
)

var portKindStrings = map[PortKind]string{
	PortInbound:      "inbound",
	PortOutbound:     "outbound",
	PortDataInbound:  "data-inbound",
	PortDataOutbound: "data-outbound",
	PortTwoWay:       "two-way",
}

var stringToPortKind = map[string]PortKind{
	"inbound":       PortInbound,
	"outbound":      PortOutbound,
	"data-inbound":  PortDataInbound,
	"data-outbound": PortDataOutbound,
	"two-way":       PortTwoWay,
}

// String returns the string representation.
func (k PortKind) String() string {
	if s, ok := portKindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// ParsePortKind parses a string to PortKind.
func ParsePortKind(s string) (PortKind, error) {
	if k, ok := stringToPortKind[s]; ok {
		return k, nil
	}
	return PortUnknown, fmt.Errorf("invalid port kind: %s", s)
}

// MarshalText encodes the kind by name.
func (k PortKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. "unknown" decodes to PortUnknown.
func (k *PortKind) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*k = PortUnknown
		return nil
	}
	parsed, err := ParsePortKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Offering reports whether ports of this kind sit on the offering side of a connection.
func (k PortKind) Offering() bool {
	switch k {
	case PortInbound, PortDataInbound, PortTwoWay:
		return true
	default:
		return false
	}
}

// Requiring reports whether ports of this kind may initiate a connection.
func (k PortKind) Requiring() bool {
	switch k {
	case PortOutbound, PortDataOutbound, PortTwoWay:
		return true
	default:
		return false
	}
}

// Peer returns the kind a connection partner of this kind must have.
func (k PortKind) Peer() PortKind {
	switch k {
	case PortOutbound:
		return PortInbound
	case PortInbound:
		return PortOutbound
	case PortDataOutbound:
		return PortDataInbound
	case PortDataInbound:
		return PortDataOutbound
	case PortTwoWay:
		return PortTwoWay
	default:
		return PortUnknown
	}
}

// PortState is the position of a port in its lifecycle.
type PortState int

const (
	StateUnpublished PortState = iota
	StateDisconnected
	StateConnected
	StateDestroyed
)

// String returns string representation of the port state.
func (s PortState) String() string {
	switch s {
	case StateUnpublished:
		return "unpublished"
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Published reports whether a port in this state is visible in its registry.
func (s PortState) Published() bool {
	return s == StateDisconnected || s == StateConnected
}
