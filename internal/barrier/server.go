package barrier

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/transport"
)

const writeTimeout = 10 * time.Second

// Config configures a barrier Server.
type Config struct {
	// Participants is the number of processes that rendezvous each round.
	Participants int
	Logger       *slog.Logger
	Metrics      ports.BarrierMetrics
}

// Server is the rendezvous service. Each accepted connection gets a worker
// that reads a registration, records it in the round table and waits at a
// local cyclic barrier shared by all workers. The last arrival's release
// action writes "resume" to every registered connection and clears the table.
type Server struct {
	participants int
	barrier      *Cyclic
	logger       *slog.Logger
	metrics      ports.BarrierMetrics

	remaining atomic.Int64
	rounds    atomic.Int64

	mu         sync.Mutex
	table      map[string]*member
	duplicates []*member
}

// member is a registered participant of the current round.
type member struct {
	reg  Registration
	conn *participantConn
}

// participantConn serializes writes to one connection.
type participantConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *participantConn) writeLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// NewServer creates a barrier server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Participants < 1 {
		return nil, errors.NewDomainError(errors.ErrMisconfigured,
			fmt.Errorf("barrier needs at least one participant, got %d", cfg.Participants))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NoopMetrics{}
	}
	s := &Server{
		participants: cfg.Participants,
		logger:       cfg.Logger.With("service", "barrier"),
		metrics:      cfg.Metrics,
		table:        make(map[string]*member),
	}
	s.barrier = NewCyclic(cfg.Participants, s.release)
	s.remaining.Store(int64(cfg.Participants))
	return s, nil
}

// Remaining returns how many participants have not yet left.
func (s *Server) Remaining() int {
	return int(s.remaining.Load())
}

// Rounds returns the number of completed rounds.
func (s *Server) Rounds() int {
	return int(s.rounds.Load())
}

// Pending returns the number of participants registered in the current round.
func (s *Server) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts exactly the configured number of connections on ln and
// returns once every participant has left. Cancelling ctx closes every
// connection and breaks the barrier.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	acceptor, err := transport.NewFixedAcceptor(s.participants)
	if err != nil {
		return err
	}
	s.logger.Info("barrier service listening",
		"address", ln.Addr().String(),
		"participants", s.participants)

	stop := context.AfterFunc(ctx, s.barrier.Break)
	defer stop()

	err = acceptor.Serve(ctx, ln, s.handle)
	s.logger.Info("barrier service stopped", "rounds", s.Rounds())
	return err
}

// handle runs one participant's read-register-wait loop. End of stream means
// the participant left.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	pc := &participantConn{conn: conn}
	s.logger.Info("participant connected", "remote", remote)
	defer func() {
		_ = conn.Close()
		s.metrics.ParticipantLeft()
		left := s.remaining.Add(-1)
		s.logger.Info("participant left", "remote", remote, "remaining", left)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), MaxLineLength)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		reg, err := ParseRegistration(line)
		if err != nil {
			s.logger.Warn("malformed registration", "remote", remote, "line", line, "error", err)
			if err := pc.writeLine(ReplyMalformed); err != nil {
				return
			}
			continue
		}

		s.register(reg, pc)
		if err := s.barrier.Await(ctx); err != nil {
			s.logger.Debug("barrier wait ended", "participant", reg.ID, "error", err)
			return
		}
	}
	err := scanner.Err()
	switch {
	case stderrors.Is(err, bufio.ErrTooLong):
		s.logger.Warn("registration line too long", "remote", remote, "limit", MaxLineLength)
		_ = pc.writeLine(ReplyMalformed)
	case err != nil && !stderrors.Is(err, net.ErrClosed):
		s.logger.Debug("read failed", "remote", remote, "error", err)
	}
}

// register records reg in the round table. A second registration under the
// same id in one round is logged and ignored; the first keeps its slot and
// the second connection is told at release.
func (s *Server) register(reg Registration, pc *participantConn) {
	s.mu.Lock()
	_, dup := s.table[reg.ID]
	if dup {
		s.duplicates = append(s.duplicates, &member{reg: reg, conn: pc})
	} else {
		s.table[reg.ID] = &member{reg: reg, conn: pc}
	}
	s.mu.Unlock()

	s.metrics.RecordArrival()
	if dup {
		s.metrics.RecordDuplicate()
		s.logger.Warn("duplicate registration ignored", "participant", reg.ID, "callback", reg.Callback)
		return
	}
	s.logger.Debug("participant arrived", "participant", reg.ID, "callback", reg.Callback)
}

// release is the barrier action, run once per round by the last arrival
// while every other worker of the round is still blocked. The table is
// swapped out under the lock and written to outside it.
func (s *Server) release() {
	s.mu.Lock()
	members := make([]*member, 0, len(s.table))
	for _, m := range s.table {
		members = append(members, m)
	}
	clear(s.table)
	duplicates := s.duplicates
	s.duplicates = nil
	s.mu.Unlock()

	round := s.rounds.Add(1)
	for _, m := range members {
		if err := m.conn.writeLine(ReplyResume); err != nil {
			s.logger.Warn("failed to resume participant", "participant", m.reg.ID, "error", err)
		}
	}
	for _, m := range duplicates {
		if err := m.conn.writeLine(ReplyDuplicate); err != nil {
			s.logger.Warn("failed to notify duplicate registration", "participant", m.reg.ID, "error", err)
		}
	}
	s.metrics.RecordRelease(len(members))
	s.logger.Info("round released", "round", round, "participants", len(members))
}
