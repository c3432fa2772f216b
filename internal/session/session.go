// Package session represents the lifecycle of one accepted tracker
// connection: its identity, its line reader and writer, its state and
// a teardown that runs exactly once.
package session

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/util"
)

// State is where a session is in its read-forward-teardown sequence.
type State int32

const (
	StateOpen State = iota
	StateReading
	StateForwarding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReading:
		return "reading"
	case StateForwarding:
		return "forwarding"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// socketBufferer is implemented by *net.TCPConn and *net.UnixConn.
type socketBufferer interface {
	SetReadBuffer(bytes int) error
	SetWriteBuffer(bytes int) error
}

type readCloser interface{ CloseRead() error }

type writeCloser interface{ CloseWrite() error }

// Session owns one accepted connection.  It is never shared between
// handlers.
type Session struct {
	ID     string
	Peer   string
	Conn   net.Conn
	Reader *bufio.Reader // nil until Setup succeeds
	Writer *bufio.Writer // nil until Setup succeeds
	Logger *util.Logger

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	once   sync.Once
	done   chan struct{}
	err    error
}

// New binds conn to a fresh session with its own cancellable context
// derived from ctx.  The logger is tagged with the session id and peer.
func New(ctx context.Context, conn net.Conn, logger *util.Logger) *Session {
	if logger == nil {
		logger = util.NewLogger(-1)
	}
	id := uuid.NewString()
	peer := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		peer = addr.String()
	}

	s := &Session{
		ID:     id,
		Peer:   peer,
		Conn:   conn,
		Logger: logger.With("conn", id[:8]).With("peer", peer),
		done:   make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context { return s.ctx }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// SetState moves the session to st.  A closed session stays closed.
func (s *Session) SetState(st State) {
	for {
		cur := s.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

// Setup prepares the transport: socket buffer sizes when bufferSize is
// positive, a read deadline when readTimeout is positive, then the
// line reader and writer.  Connections without socket buffer controls
// keep their defaults.
func (s *Session) Setup(bufferSize int, readTimeout time.Duration) error {
	if bufferSize > 0 {
		if b, ok := s.Conn.(socketBufferer); ok {
			s.Logger.Info("Initializing socket buffers (%d bytes)", bufferSize)
			if err := b.SetReadBuffer(bufferSize); err != nil {
				return relayerrors.Wrap("setup", s.Peer, fmt.Errorf("set read buffer: %w", err))
			}
			if err := b.SetWriteBuffer(bufferSize); err != nil {
				return relayerrors.Wrap("setup", s.Peer, fmt.Errorf("set write buffer: %w", err))
			}
		} else {
			s.Logger.Debug("%T has no socket buffer controls", s.Conn)
		}
	}

	if readTimeout > 0 {
		if err := s.Conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return relayerrors.Wrap("setup", s.Peer, fmt.Errorf("set read deadline: %w", err))
		}
	}

	s.Reader = bufio.NewReader(s.Conn)
	s.Writer = bufio.NewWriter(s.Conn)
	return nil
}

// Close tears the session down once: cancel the context, close the
// read side, close the write side, close the connection.  Every step
// runs even when an earlier one fails.  Errors that only say the
// connection was already closed are logged at debug level and dropped;
// the rest are joined and returned.  Later calls return the same
// result without touching the connection again.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.state.Store(int32(StateClosed))
		s.cancel()

		var errs []error
		for _, step := range []struct {
			name string
			fn   func() error
		}{
			{"close read", s.closeRead},
			{"close write", s.closeWrite},
			{"close", s.Conn.Close},
		} {
			err := step.fn()
			if err == nil {
				continue
			}
			if util.IsClosed(err) {
				s.Logger.Debug("%s: %v", step.name, err)
				continue
			}
			errs = append(errs, relayerrors.Wrap(step.name, s.Peer, err))
		}
		s.err = relayerrors.Join(errs...)
		close(s.done)
	})
	return s.err
}

// Done is closed once teardown has finished.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) closeRead() error {
	if rc, ok := s.Conn.(readCloser); ok {
		return rc.CloseRead()
	}
	return nil
}

func (s *Session) closeWrite() error {
	var flushErr error
	if s.Writer != nil {
		flushErr = s.Writer.Flush()
	}
	if wc, ok := s.Conn.(writeCloser); ok {
		return relayerrors.Join(flushErr, wc.CloseWrite())
	}
	return flushErr
}
