package directory

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"

	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
	"github.com/sufield/junction/internal/transport"
)

// Metric outcome labels.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeBound    = "bound"
	outcomeNotBound = "not_bound"
	outcomeUnknown  = "unknown"
	outcomeError    = "error"
)

// Config configures a directory Server.
type Config struct {
	// Participants is the number of connections the server accepts. It is
	// fixed for the life of the server.
	Participants int
	// Store holds the entries. Defaults to a MemoryStore.
	Store   ports.DirectoryStore
	Logger  *slog.Logger
	Metrics ports.DirectoryMetrics
}

// Server serves the directory protocol to a fixed number of long-lived
// connections, one worker per connection. It stops accepting once every
// expected participant has connected and returns once all of them have
// disconnected.
type Server struct {
	participants int
	store        ports.DirectoryStore
	logger       *slog.Logger
	metrics      ports.DirectoryMetrics

	remaining atomic.Int64
}

// NewServer creates a directory server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Participants < 1 {
		return nil, errors.NewDomainError(errors.ErrMisconfigured,
			fmt.Errorf("directory needs at least one participant, got %d", cfg.Participants))
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NoopMetrics{}
	}
	s := &Server{
		participants: cfg.Participants,
		store:        cfg.Store,
		logger:       cfg.Logger.With("service", "directory"),
		metrics:      cfg.Metrics,
	}
	s.remaining.Store(int64(cfg.Participants))
	return s, nil
}

// Remaining returns how many expected participants have not yet disconnected.
func (s *Server) Remaining() int {
	return int(s.remaining.Load())
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

// Serve accepts exactly the configured number of connections on ln, then
// closes ln. It returns when every accepted connection has ended. Cancelling
// ctx closes the listener and every open connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	acceptor, err := transport.NewFixedAcceptor(s.participants)
	if err != nil {
		return err
	}
	s.logger.Info("directory service listening",
		"address", ln.Addr().String(),
		"participants", s.participants)

	err = acceptor.Serve(ctx, ln, s.handle)
	s.logger.Info("directory service stopped", "remaining", s.Remaining())
	return err
}

// handle serves one connection until it sends shutdown or goes away.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.metrics.ConnectionOpened()
	s.logger.Info("participant connected", "remote", remote)
	defer func() {
		_ = conn.Close()
		s.metrics.ConnectionClosed()
		left := s.remaining.Add(-1)
		s.logger.Info("participant left", "remote", remote, "remaining", left)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), MaxLineLength)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		reply, quit := s.dispatch(ctx, line)
		if _, err := w.WriteString(reply + "\n"); err != nil {
			s.logger.Debug("write failed", "remote", remote, "error", err)
			return
		}
		if err := w.Flush(); err != nil {
			s.logger.Debug("write failed", "remote", remote, "error", err)
			return
		}
		if quit {
			return
		}
	}
	err := scanner.Err()
	switch {
	case stderrors.Is(err, bufio.ErrTooLong):
		s.logger.Warn("request line too long", "remote", remote, "limit", MaxLineLength)
		s.metrics.RecordRequest(outcomeUnknown, outcomeUnknown)
		if _, err := w.WriteString(ReplyUnknownCommand + "\n"); err == nil {
			_ = w.Flush()
		}
	case err != nil && !stderrors.Is(err, net.ErrClosed):
		s.logger.Debug("read failed", "remote", remote, "error", err)
	}
}

// dispatch executes one request line and returns the reply line. quit is
// true when the connection should be closed after the reply.
func (s *Server) dispatch(ctx context.Context, line string) (reply string, quit bool) {
	cmd, err := ParseCommand(line)
	if err != nil {
		s.logger.Warn("rejected directory request", "line", line, "error", err)
		s.metrics.RecordRequest(outcomeUnknown, outcomeUnknown)
		return ReplyUnknownCommand, false
	}
	s.logger.Debug("directory request", "command", cmd.Name, "key", cmd.Key)

	outcome := outcomeOK
	defer func() { s.metrics.RecordRequest(cmd.Name, outcome) }()

	switch cmd.Name {
	case CmdLookup:
		res, err := s.store.Lookup(ctx, cmd.Key)
		switch {
		case err != nil:
			outcome = outcomeError
			s.logger.Error("directory store failed", "command", cmd.Name, "error", err)
			return ReplyStoreFailure, false
		case !res.Found:
			outcome = outcomeNotFound
			return ReplyNotFound, false
		}
		return LookupReply(res.Value), false

	case CmdPut:
		err := s.store.Put(ctx, cmd.Key, cmd.Value)
		switch {
		case err == nil:
			return ReplyOK, false
		case stderrors.Is(err, errors.ErrAlreadyBound):
			outcome = outcomeBound
			return ReplyBound, false
		}
		outcome = outcomeError
		s.logger.Error("directory store failed", "command", cmd.Name, "error", err)
		return ReplyStoreFailure, false

	case CmdRemove:
		err := s.store.Remove(ctx, cmd.Key)
		switch {
		case err == nil:
			return ReplyOK, false
		case stderrors.Is(err, errors.ErrNotBound):
			outcome = outcomeNotBound
			return ReplyNotBound, false
		}
		outcome = outcomeError
		s.logger.Error("directory store failed", "command", cmd.Name, "error", err)
		return ReplyStoreFailure, false

	default: // CmdShutdown
		return ReplyOK, true
	}
}
