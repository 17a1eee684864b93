package barrier

import (
	"context"
	stderrors "errors"
	"sync"
)

// ErrBroken is returned by Cyclic.Await once the barrier has been broken.
var ErrBroken = stderrors.New("barrier is broken")

// Cyclic is a reusable barrier for a fixed number of parties. The last party
// to arrive in a round runs the release action exactly once, and only then are
// the parties of that round let go. The barrier resets itself for the next
// round.
type Cyclic struct {
	parties int
	action  func()

	mu     sync.Mutex
	count  int
	gen    *generation
	broken bool
}

type generation struct {
	done   chan struct{}
	broken bool
}

func newGeneration() *generation {
	return &generation{done: make(chan struct{})}
}

// NewCyclic returns a barrier for parties parties. action may be nil.
func NewCyclic(parties int, action func()) *Cyclic {
	if parties < 1 {
		parties = 1
	}
	return &Cyclic{parties: parties, action: action, gen: newGeneration()}
}

// Parties returns the number of parties per round.
func (b *Cyclic) Parties() int { return b.parties }

// Waiting returns the number of parties blocked in the current round.
func (b *Cyclic) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Await blocks until every party has arrived in this round. If ctx ends
// first the barrier is broken for everyone and ctx's error is returned.
func (b *Cyclic) Await(ctx context.Context) error {
	b.mu.Lock()
	if b.broken {
		b.mu.Unlock()
		return ErrBroken
	}
	g := b.gen
	b.count++
	if b.count == b.parties {
		b.count = 0
		b.gen = newGeneration()
		b.mu.Unlock()

		// Every other party of g is blocked on g.done, so the action runs
		// before any of them proceeds.
		if b.action != nil {
			b.action()
		}
		close(g.done)
		return nil
	}
	b.mu.Unlock()

	select {
	case <-g.done:
		if g.broken {
			return ErrBroken
		}
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		if g == b.gen {
			b.breakLocked()
		}
		broken := g.broken
		b.mu.Unlock()
		if broken {
			return ctx.Err()
		}
		// The round completed while ctx was ending.
		<-g.done
		return nil
	}
}

// Break releases every waiting party with ErrBroken and makes later Await
// calls fail.
func (b *Cyclic) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakLocked()
}

func (b *Cyclic) breakLocked() {
	if b.broken {
		return
	}
	b.broken = true
	b.gen.broken = true
	close(b.gen.done)
}
