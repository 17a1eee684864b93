// Package redisstore backs the directory service with Redis, so directory
// entries outlive the service process and can be inspected with redis-cli.
package redisstore

import (
	"context"
	stderrors "errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
)

// DefaultPrefix namespaces directory keys.
const DefaultPrefix = "junction:directory:"

// Store implements ports.DirectoryStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store connected to the Redis server at address.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Put binds key with SETNX so concurrent puts bind at most once.
func (s *Store) Put(ctx context.Context, key, value string) error {
	ok, err := s.client.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return errors.NewDomainError(errors.ErrTransport, fmt.Errorf("redis setnx: %w", err))
	}
	if !ok {
		return errors.NewDomainError(errors.ErrAlreadyBound, fmt.Errorf("key %q", key))
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, key string) (ports.LookupResult, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if stderrors.Is(err, backend.Nil) {
		return ports.NotFound, nil
	}
	if err != nil {
		return ports.NotFound, errors.NewDomainError(errors.ErrTransport, fmt.Errorf("redis get: %w", err))
	}
	return ports.Found(v), nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return errors.NewDomainError(errors.ErrTransport, fmt.Errorf("redis del: %w", err))
	}
	if n == 0 {
		return errors.NewDomainError(errors.ErrNotBound, fmt.Errorf("key %q", key))
	}
	return nil
}

// Ping checks the connection; the admin health check uses it.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.NewDomainError(errors.ErrTransport, fmt.Errorf("redis ping: %w", err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ ports.DirectoryStore = (*Store)(nil)
