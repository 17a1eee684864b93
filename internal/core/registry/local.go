// Package registry provides the per-process address book mapping port URIs
// to port objects.
package registry

import (
	"slices"
	"sync"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Entry is anything that can be published: it must know its own URI.
type Entry interface {
	URI() domain.PortURI
}

// Local is the in-memory registry of one process. It holds at most one entry
// per URI, and every bound entry's own URI equals its key. All operations are
// short, lock-protected and never perform I/O.
type Local[E Entry] struct {
	mu      sync.Mutex
	entries map[domain.PortURI]E
}

// NewLocal creates an empty registry.
func NewLocal[E Entry]() *Local[E] {
	return &Local[E]{
		entries: make(map[domain.PortURI]E),
	}
}

// Publish binds uri to entry. Binding a URI twice, or under a key different
// from the entry's own URI, is a contract violation.
func (r *Local[E]) Publish(uri domain.PortURI, entry E) error {
	if uri.IsZero() {
		return errors.Violationf("cannot publish under an empty URI")
	}
	if got := entry.URI(); got != uri {
		return errors.Violationf("entry URI %q does not match key %q", got, uri)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.entries[uri]; bound {
		return errors.Violationf("URI %q is already published", uri)
	}
	r.entries[uri] = entry
	return nil
}

// Lookup returns the entry bound to uri. A miss is reported through found
// and is the normal trigger for remote resolution.
func (r *Local[E]) Lookup(uri domain.PortURI) (entry E, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found = r.entries[uri]
	return entry, found
}

// Unpublish removes the binding for uri. Unpublishing an unbound URI is a
// contract violation.
func (r *Local[E]) Unpublish(uri domain.PortURI) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.entries[uri]; !bound {
		return errors.Violationf("URI %q is not published", uri)
	}
	delete(r.entries, uri)
	return nil
}

// Len returns the number of bound URIs.
func (r *Local[E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// URIs returns the bound URIs in sorted order.
func (r *Local[E]) URIs() []domain.PortURI {
	r.mu.Lock()
	uris := make([]domain.PortURI, 0, len(r.entries))
	for uri := range r.entries {
		uris = append(uris, uri)
	}
	r.mu.Unlock()

	slices.Sort(uris)
	return uris
}
