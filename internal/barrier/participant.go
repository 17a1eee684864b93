package barrier

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

// Participant is one process's connection to the barrier service. The same
// connection is reused for every round.
type Participant struct {
	reg Registration

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// Join connects to the barrier service at addr as participant id. callback
// is the address the participant advertises with each registration.
func Join(ctx context.Context, addr, id string, callback domain.Location) (*Participant, error) {
	if id == "" || strings.ContainsAny(id, " \t\r\n") {
		return nil, errors.Violationf("participant id %q must be non-empty and contain no whitespace", id)
	}
	if callback.IsZero() {
		return nil, errors.Violationf("participant %s needs a callback location", id)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewDomainError(errors.ErrTransport, fmt.Errorf("dial barrier %s: %w", addr, err))
	}
	return &Participant{
		reg:  Registration{ID: id, Callback: callback},
		conn: conn,
		r:    bufio.NewReader(conn),
	}, nil
}

// ID returns the participant id.
func (p *Participant) ID() string { return p.reg.ID }

// Await registers for the next round and blocks until the service releases
// it. There is no timeout beyond ctx: a missing peer stalls the round.
func (p *Participant) Await(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetDeadline(deadline)
	} else {
		_ = p.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := p.conn.Write([]byte(p.reg.String() + "\n")); err != nil {
		return p.transportError(ctx, err)
	}
	line, err := p.r.ReadString('\n')
	if err != nil {
		return p.transportError(ctx, err)
	}
	switch reply := strings.TrimRight(line, "\r\n"); reply {
	case ReplyResume:
		return nil
	case ReplyDuplicate:
		return errors.Protocolf("participant id %s is held by another connection this round", p.reg.ID)
	default:
		return errors.Protocolf("barrier rejected %s: %q", p.reg.ID, reply)
	}
}

// Close leaves the barrier.
func (p *Participant) Close() error {
	return p.conn.Close()
}

func (p *Participant) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return errors.NewDomainError(errors.ErrTransport, fmt.Errorf("barrier await as %s: %w", p.reg.ID, err))
}
