package domain

import (
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Location is the network address at which a process can be reached: the
// value a directory entry holds for a published port.
type Location struct {
	host string
	port int
}

// NewLocation validates host and port.
func NewLocation(host string, port int) (Location, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Location{}, fmt.Errorf("location host cannot be empty")
	}
	if strings.ContainsAny(host, " \t") {
		return Location{}, fmt.Errorf("location host %q contains whitespace", host)
	}
	if port < 1 || port > 65535 {
		return Location{}, fmt.Errorf("location port %d out of range", port)
	}
	return Location{host: host, port: port}, nil
}

// ParseLocation parses "host:port".
func ParseLocation(s string) (Location, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: port is not a number", s)
	}
	return NewLocation(host, port)
}

// Host returns the host part.
func (l Location) Host() string {
	return l.host
}

// Port returns the port number.
func (l Location) Port() int {
	return l.port
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l.host == "" && l.port == 0
}

// String returns "host:port".
func (l Location) String() string {
	if l.IsZero() {
		return ""
	}
	return net.JoinHostPort(l.host, strconv.Itoa(l.port))
}

// LocationDecodeHook converts configuration strings into Locations.
// Empty strings decode to the zero Location.
func LocationDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(Location{}) {
			return data, nil
		}
		str, ok := data.(string)
		if !ok {
			return data, nil
		}
		if strings.TrimSpace(str) == "" {
			return Location{}, nil
		}
		loc, err := ParseLocation(str)
		if err != nil {
			return nil, err
		}
		return loc, nil
	}
}
