package directory

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
	"github.com/sufield/junction/internal/core/ports"
)

// Client speaks the directory protocol over one long-lived connection. It is
// safe for concurrent use; requests are serialized on the connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// Dial connects to the directory service at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewDomainError(errors.ErrTransport, fmt.Errorf("dial directory %s: %w", addr, err))
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

// Put binds key to value. A bound key yields errors.ErrAlreadyBound.
func (c *Client) Put(ctx context.Context, key, value string) error {
	if !validToken(key) || !validToken(value) {
		return errors.Violationf("directory keys and values must be non-empty and contain no whitespace")
	}
	reply, err := c.roundTrip(ctx, Command{Name: CmdPut, Key: key, Value: value})
	if err != nil {
		return err
	}
	switch reply {
	case ReplyOK:
		return nil
	case ReplyBound:
		return errors.NewDomainError(errors.ErrAlreadyBound, fmt.Errorf("key %q", key))
	default:
		return unexpected(CmdPut, reply)
	}
}

// Lookup returns the value bound to key. A missing key is reported through
// the result, not as an error.
func (c *Client) Lookup(ctx context.Context, key string) (ports.LookupResult, error) {
	if !validToken(key) {
		return ports.NotFound, errors.Violationf("directory keys must be non-empty and contain no whitespace")
	}
	reply, err := c.roundTrip(ctx, Command{Name: CmdLookup, Key: key})
	if err != nil {
		return ports.NotFound, err
	}
	if reply == ReplyNotFound {
		return ports.NotFound, nil
	}
	if v, ok := strings.CutPrefix(reply, ReplyOK+" "); ok && v != "" {
		return ports.Found(v), nil
	}
	return ports.NotFound, unexpected(CmdLookup, reply)
}

// Remove unbinds key. An unbound key yields errors.ErrNotBound.
func (c *Client) Remove(ctx context.Context, key string) error {
	if !validToken(key) {
		return errors.Violationf("directory keys must be non-empty and contain no whitespace")
	}
	reply, err := c.roundTrip(ctx, Command{Name: CmdRemove, Key: key})
	if err != nil {
		return err
	}
	switch reply {
	case ReplyOK:
		return nil
	case ReplyNotBound:
		return errors.NewDomainError(errors.ErrNotBound, fmt.Errorf("key %q", key))
	default:
		return unexpected(CmdRemove, reply)
	}
}

// Shutdown ends the session and closes the connection. The service counts
// the client as departed.
func (c *Client) Shutdown(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, Command{Name: CmdShutdown})
	closeErr := c.Close()
	if err != nil {
		return err
	}
	if reply != ReplyOK {
		return unexpected(CmdShutdown, reply)
	}
	return closeErr
}

// Close drops the connection without a shutdown request.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Resolve implements ports.PeerResolver: directory values are locations.
func (c *Client) Resolve(ctx context.Context, uri domain.PortURI) (domain.Location, bool, error) {
	res, err := c.Lookup(ctx, uri.String())
	if err != nil || !res.Found {
		return domain.Location{}, false, err
	}
	loc, err := domain.ParseLocation(res.Value)
	if err != nil {
		return domain.Location{}, false, errors.Protocolf("directory entry for %q is not a location: %v", uri, err)
	}
	return loc, true, nil
}

// PublishLocation implements ports.LocationPublisher.
func (c *Client) PublishLocation(ctx context.Context, uri domain.PortURI, loc domain.Location) error {
	return c.Put(ctx, uri.String(), loc.String())
}

// WithdrawLocation implements ports.LocationPublisher.
func (c *Client) WithdrawLocation(ctx context.Context, uri domain.PortURI) error {
	return c.Remove(ctx, uri.String())
}

// roundTrip writes one request line and reads one reply line. The
// connection deadline follows ctx.
func (c *Client) roundTrip(ctx context.Context, cmd Command) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := c.w.WriteString(cmd.String() + "\n"); err != nil {
		return "", transportError(ctx, cmd.Name, err)
	}
	if err := c.w.Flush(); err != nil {
		return "", transportError(ctx, cmd.Name, err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", transportError(ctx, cmd.Name, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func transportError(ctx context.Context, cmd string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		err = context.DeadlineExceeded
	}
	return errors.NewDomainError(errors.ErrTransport, fmt.Errorf("directory %s: %w", cmd, err))
}

func unexpected(cmd, reply string) error {
	return errors.Protocolf("unexpected reply to %s: %q", cmd, reply)
}

var (
	_ ports.PeerResolver      = (*Client)(nil)
	_ ports.LocationPublisher = (*Client)(nil)
)
