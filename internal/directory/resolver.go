package directory

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/ports"
)

// CachingResolver remembers resolved locations so repeated connects to the
// same remote port skip the directory round trip. Misses are not cached: a
// port may be published later. Entries go stale when a port moves; the node
// calls Forget when a remote leg reports the port gone and resolves again.
type CachingResolver struct {
	next  ports.PeerResolver
	cache *lru.Cache[domain.PortURI, domain.Location]
}

var _ ports.ResolverCache = (*CachingResolver)(nil)

// NewCachingResolver wraps next with an LRU cache holding up to size entries.
func NewCachingResolver(next ports.PeerResolver, size int) (*CachingResolver, error) {
	cache, err := lru.New[domain.PortURI, domain.Location](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	return &CachingResolver{next: next, cache: cache}, nil
}

func (r *CachingResolver) Resolve(ctx context.Context, uri domain.PortURI) (domain.Location, bool, error) {
	if loc, ok := r.cache.Get(uri); ok {
		return loc, true, nil
	}
	loc, found, err := r.next.Resolve(ctx, uri)
	if err != nil || !found {
		return loc, found, err
	}
	r.cache.Add(uri, loc)
	return loc, true, nil
}

// Forget drops any cached location for uri.
func (r *CachingResolver) Forget(uri domain.PortURI) {
	r.cache.Remove(uri)
}

// Len returns the number of cached locations.
func (r *CachingResolver) Len() int {
	return r.cache.Len()
}
