package domain

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// maxPortURILength bounds URIs so they always fit on one protocol line.
const maxPortURILength = 256

// PortURI names one endpoint. It is unique within a process's local registry
// and, in a distributed deployment, is the key used in the directory service.
type PortURI string

// NewPortURI validates s and returns it as a PortURI.
// URIs travel as single fields of space-separated wire lines, so they may not
// contain whitespace.
func NewPortURI(s string) (PortURI, error) {
	if s == "" {
		return "", fmt.Errorf("port URI cannot be empty")
	}
	if len(s) > maxPortURILength {
		return "", fmt.Errorf("port URI too long: maximum %d characters, got %d", maxPortURILength, len(s))
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("port URI %q contains whitespace", s)
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("port URI %q contains non-printable characters", s)
		}
	}
	return PortURI(s), nil
}

// MustPortURI is NewPortURI for literals known to be valid. It panics otherwise.
func MustPortURI(s string) PortURI {
	uri, err := NewPortURI(s)
	if err != nil {
		panic(err)
	}
	return uri
}

// GeneratePortURI returns a fresh URI of the form "<prefix>-<uuid>".
func GeneratePortURI(prefix string) PortURI {
	prefix = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, prefix)
	if prefix == "" {
		prefix = "port"
	}
	return PortURI(prefix + "-" + uuid.NewString())
}

// String returns the URI as a string.
func (u PortURI) String() string {
	return string(u)
}

// IsZero reports whether the URI is unset.
func (u PortURI) IsZero() bool {
	return u == ""
}

// PortURIDecodeHook converts configuration strings into validated PortURIs.
func PortURIDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(PortURI("")) {
			return data, nil
		}
		str, ok := data.(string)
		if !ok {
			return data, nil
		}
		uri, err := NewPortURI(str)
		if err != nil {
			return nil, fmt.Errorf("invalid port URI %q: %w", str, err)
		}
		return uri, nil
	}
}
