// Package directorytest holds the behaviour every ports.DirectoryStore must
// show, as a reusable test suite.
package directorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
)

// RunStoreContract runs the store suite. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) ports.DirectoryStore) {
	t.Helper()

	t.Run("round trip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		res, err := s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.False(t, res.Found)

		require.NoError(t, s.Put(ctx, "k", "v"))
		res, err = s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, ports.Found("v"), res)

		err = s.Put(ctx, "k", "v2")
		assert.ErrorIs(t, err, errors.ErrAlreadyBound)
		res, err = s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", res.Value, "a failed put leaves the binding alone")

		require.NoError(t, s.Remove(ctx, "k"))
		res, err = s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, ports.NotFound, res)
	})

	t.Run("remove unbound", func(t *testing.T) {
		s := newStore(t)
		err := s.Remove(context.Background(), "missing")
		assert.ErrorIs(t, err, errors.ErrNotBound)
	})

	t.Run("rebind after remove", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", "1"))
		require.NoError(t, s.Remove(ctx, "k"))
		require.NoError(t, s.Put(ctx, "k", "2"))
		res, err := s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "2", res.Value)
	})

	t.Run("concurrent put binds once", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const writers = 16
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won []string
		)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := fmt.Sprintf("w%d", i)
				if err := s.Put(ctx, "contended", v); err == nil {
					mu.Lock()
					won = append(won, v)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, won, 1)
		res, err := s.Lookup(ctx, "contended")
		require.NoError(t, err)
		assert.Equal(t, won[0], res.Value)
	})
}
