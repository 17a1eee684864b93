package ports

import (
	"context"
)

// LookupResult is the outcome of a directory lookup. A missing key is a
// normal outcome reported through Found, never an error.
type LookupResult struct {
	Value string
	Found bool
}

// Found returns a LookupResult carrying value.
func Found(value string) LookupResult {
	return LookupResult{Value: value, Found: true}
}

// NotFound is the LookupResult for an unbound key.
var NotFound = LookupResult{}

// DirectoryStore is the key/value map behind the directory service.
// Implementations must be safe for concurrent use.
type DirectoryStore interface {
	// Put binds key to value. It fails with errors.ErrAlreadyBound if key is bound.
	Put(ctx context.Context, key, value string) error
	// Lookup returns the value bound to key, if any.
	Lookup(ctx context.Context, key string) (LookupResult, error)
	// Remove unbinds key. It fails with errors.ErrNotBound if key is unbound.
	Remove(ctx context.Context, key string) error
	// Close releases the store's resources.
	Close() error
}
