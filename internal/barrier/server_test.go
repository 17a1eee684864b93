package barrier

import (
	"bufio"
	"context"
	stderrors "errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/errors"
)

type runningServer struct {
	srv  *Server
	addr string
	done chan error
	stop context.CancelFunc
}

func startServer(t *testing.T, participants int) *runningServer {
	t.Helper()

	srv, err := NewServer(Config{Participants: participants})
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningServer{srv: srv, addr: ln.Addr().String(), done: make(chan error, 1), stop: cancel}
	go func() { rs.done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-rs.done
	})
	return rs
}

func (rs *runningServer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rs.done:
		rs.done <- err
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("barrier server did not stop")
		return nil
	}
}

type rawParticipant struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialRaw(t *testing.T, addr string) *rawParticipant {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rawParticipant{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (p *rawParticipant) send(line string) {
	p.t.Helper()
	_, err := p.conn.Write([]byte(line + "\n"))
	require.NoError(p.t, err)
}

// read returns the next line, or "" if none arrives within d.
func (p *rawParticipant) read(d time.Duration) string {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(d))
	line, err := p.r.ReadString('\n')
	if err != nil {
		var ne net.Error
		if stderrors.As(err, &ne) && ne.Timeout() {
			return ""
		}
		require.NoError(p.t, err)
	}
	return strings.TrimRight(line, "\n")
}

func TestServer_ReleasesOnlyWhenAllArrive(t *testing.T) {
	rs := startServer(t, 2)
	a := dialRaw(t, rs.addr)
	b := dialRaw(t, rs.addr)

	a.send("A hostA 9001")
	require.Eventually(t, func() bool { return rs.srv.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "", a.read(100*time.Millisecond), "A must not be resumed before B arrives")

	b.send("B hostB 9002")
	assert.Equal(t, "resume", a.read(2*time.Second))
	assert.Equal(t, "resume", b.read(2*time.Second))

	assert.Equal(t, 1, rs.srv.Rounds())
	assert.Equal(t, 0, rs.srv.Pending(), "round table cleared after release")
}

func TestServer_ReusableAcrossRounds(t *testing.T) {
	const n, rounds = 3, 4
	rs := startServer(t, n)
	ctx := context.Background()

	participants := make([]*Participant, n)
	for i := range participants {
		loc, err := domain.NewLocation("127.0.0.1", 9000+i)
		require.NoError(t, err)
		p, err := Join(ctx, rs.addr, string(rune('a'+i)), loc)
		require.NoError(t, err)
		participants[i] = p
	}

	for r := 1; r <= rounds; r++ {
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i, p := range participants {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = p.Await(ctx)
			}()
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, r, rs.srv.Rounds())
	}

	for _, p := range participants {
		require.NoError(t, p.Close())
	}
	require.NoError(t, rs.wait(t))
	assert.Equal(t, 0, rs.srv.Remaining())
}

func TestServer_DuplicateRegistrationIgnored(t *testing.T) {
	rs := startServer(t, 2)
	first := dialRaw(t, rs.addr)
	second := dialRaw(t, rs.addr)

	first.send("A hostA 9001")
	require.Eventually(t, func() bool { return rs.srv.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	second.send("A hostB 9002")
	assert.Equal(t, "resume", first.read(2*time.Second))
	assert.Equal(t, ReplyDuplicate, second.read(2*time.Second), "the ignored registration is told, not resumed")
	assert.Equal(t, 1, rs.srv.Rounds())
	assert.Equal(t, 0, rs.srv.Pending())
}

func TestParticipant_AwaitReportsDuplicateID(t *testing.T) {
	rs := startServer(t, 2)
	ctx := context.Background()
	loc, err := domain.NewLocation("127.0.0.1", 9000)
	require.NoError(t, err)

	first, err := Join(ctx, rs.addr, "a", loc)
	require.NoError(t, err)
	defer first.Close()
	second, err := Join(ctx, rs.addr, "a", loc)
	require.NoError(t, err)
	defer second.Close()

	errs := make(chan error, 2)
	go func() { errs <- first.Await(ctx) }()
	go func() { errs <- second.Await(ctx) }()

	var protocolErrs, released int
	for range 2 {
		select {
		case err := <-errs:
			if err == nil {
				released++
				continue
			}
			assert.ErrorIs(t, err, errors.ErrProtocol)
			protocolErrs++
		case <-time.After(5 * time.Second):
			t.Fatal("await did not return")
		}
	}
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, protocolErrs)
}

func TestServer_OverlongRegistration(t *testing.T) {
	rs := startServer(t, 1)
	p := dialRaw(t, rs.addr)

	// A full buffer without a line terminator. Nothing is left unread, so
	// the server's close cannot reset the reply away.
	_, err := p.conn.Write([]byte(strings.Repeat("x", MaxLineLength)))
	require.NoError(t, err)
	assert.Equal(t, ReplyMalformed, p.read(2*time.Second))

	_, err = p.r.ReadString('\n')
	assert.Error(t, err, "connection closed after an overlong line")
	require.NoError(t, rs.wait(t))
	assert.Equal(t, 0, rs.srv.Rounds())
}

func TestServer_MalformedRegistration(t *testing.T) {
	rs := startServer(t, 1)
	p := dialRaw(t, rs.addr)

	p.send("A hostA")
	assert.Equal(t, ReplyMalformed, p.read(2*time.Second))
	assert.Equal(t, 0, rs.srv.Rounds())

	// With one participant every well-formed registration completes a round.
	p.send("A hostA 9001")
	assert.Equal(t, "resume", p.read(2*time.Second))
	p.send("A hostA 9001")
	assert.Equal(t, "resume", p.read(2*time.Second))
	assert.Equal(t, 2, rs.srv.Rounds())
}

func TestServer_ContextCancelReleasesWaiters(t *testing.T) {
	rs := startServer(t, 2)
	a := dialRaw(t, rs.addr)
	a.send("A hostA 9001")
	require.Eventually(t, func() bool { return rs.srv.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	rs.stop()
	require.NoError(t, rs.wait(t))
	assert.Equal(t, 0, rs.srv.Rounds())
}

func TestParticipant_Validation(t *testing.T) {
	loc, err := domain.NewLocation("127.0.0.1", 9000)
	require.NoError(t, err)

	_, err = Join(context.Background(), "127.0.0.1:1", "has space", loc)
	assert.True(t, errors.IsContractViolation(err))

	_, err = Join(context.Background(), "127.0.0.1:1", "a", domain.Location{})
	assert.True(t, errors.IsContractViolation(err))
}

func TestParticipant_AwaitHonoursContext(t *testing.T) {
	rs := startServer(t, 2)
	loc, err := domain.NewLocation("127.0.0.1", 9000)
	require.NoError(t, err)

	p, err := Join(context.Background(), rs.addr, "lonely", loc)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Await(ctx)
	assert.ErrorIs(t, err, errors.ErrTransport)
}
