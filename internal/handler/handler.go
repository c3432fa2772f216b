// Package handler runs the read-forward-teardown sequence for each
// accepted tracker connection.
//
// A connection carries exactly one message, delimited by the peer
// closing its side.  Every line read is kept with a trailing newline;
// a non-empty message is handed to the Forwarder once, and the
// connection is torn down whatever happened.
package handler

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"time"

	"gpsrelay/config"
	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/internal/forward"
	"gpsrelay/internal/metrics"
	"gpsrelay/internal/session"
	"gpsrelay/util"
)

// Forwarder delivers one message to the web server.
type Forwarder interface {
	Forward(ctx context.Context, dest, message string) (*forward.Response, error)
}

// Options configures a Handler.  URL is required; everything else has
// a usable zero value.
type Options struct {
	URL             string
	BufferSize      int           // socket buffer size, 0 = OS default
	ReadTimeout     time.Duration // whole-message read deadline, 0 = none
	MaxMessageBytes int64         // default config.DefaultMaxMessageBytes
	Forwarder       Forwarder     // default forward.New with the default timeout
	Metrics         *metrics.Collector
	Logger          *util.Logger
}

// Handler starts one independent goroutine per connection.  It holds
// only read-only settings and is safe for concurrent use.
type Handler struct {
	opts Options
}

// New returns a Handler with defaults applied to opts.
func New(opts Options) *Handler {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = config.DefaultMaxMessageBytes
	}
	if opts.MaxMessageBytes > config.MaxMessageBytesLimit {
		opts.MaxMessageBytes = config.MaxMessageBytesLimit
	}
	if opts.Forwarder == nil {
		opts.Forwarder = forward.New(forward.Options{Timeout: config.DefaultForwardTimeout})
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(-1)
	}
	return &Handler{opts: opts}
}

// Start takes ownership of conn.  Transport setup runs on the calling
// goroutine; if it fails the connection is torn down and the error
// returned.  Otherwise the rest of the sequence runs in the background
// and Start returns immediately.  The returned session is never nil;
// its Done channel closes after teardown.
func (h *Handler) Start(ctx context.Context, conn net.Conn) (*session.Session, error) {
	h.opts.Metrics.ConnectionOpened()

	sess := session.New(ctx, conn, h.opts.Logger)
	sess.Logger.Info("Client connected")

	if err := sess.Setup(h.opts.BufferSize, h.opts.ReadTimeout); err != nil {
		sess.Logger.Error("Transport setup failed: %v", err)
		h.opts.Metrics.SetupError()
		h.teardown(sess)
		return sess, err
	}

	go h.run(sess)
	return sess, nil
}

func (h *Handler) run(sess *session.Session) {
	defer h.teardown(sess)
	log := sess.Logger

	msg, err := h.readMessage(sess)
	switch {
	case relayerrors.Is(err, relayerrors.ErrMessageTooLarge):
		log.Error("Dropping message: %v (limit %d bytes)", err, h.opts.MaxMessageBytes)
		h.opts.Metrics.OversizeMessage()
		return
	case relayerrors.IsTimeout(err):
		log.Warn("Read timed out, keeping %d bytes: %v", len(msg), err)
		h.opts.Metrics.ReadError()
	case err != nil:
		log.Warn("Read failed, keeping %d bytes: %v", len(msg), err)
		h.opts.Metrics.ReadError()
	}

	if msg == "" {
		log.Info("Message is empty")
		h.opts.Metrics.EmptyMessage()
		return
	}

	h.opts.Metrics.MessageReceived(len(msg))
	log.Info("Received from GPS: %q", msg)
	h.forward(sess, msg)
}

// readMessage collects lines until end-of-stream.  On a read failure
// it returns what was collected so far together with the error.
func (h *Handler) readMessage(sess *session.Session) (string, error) {
	sess.SetState(session.StateReading)
	sess.Logger.Info("Reading input buffer")

	limit := h.opts.MaxMessageBytes
	sc := bufio.NewScanner(sess.Reader)
	sc.Buffer(make([]byte, 0, min(4096, limit+1)), int(limit)+1)
	sc.Split(scanLines)

	var sb strings.Builder
	for sc.Scan() {
		line := sc.Bytes()
		if int64(sb.Len()+len(line)+1) > limit {
			return "", relayerrors.ErrMessageTooLarge
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}

	if err := sc.Err(); err != nil {
		if relayerrors.Is(err, bufio.ErrTooLong) {
			return "", relayerrors.ErrMessageTooLarge
		}
		return sb.String(), relayerrors.Wrap("read", sess.Peer, err)
	}
	sess.Logger.Info("Read %d bytes", sb.Len())
	return sb.String(), nil
}

// scanLines is a bufio.SplitFunc that ends a line at "\n", "\r\n" or a
// lone "\r".  The terminator is not part of the token.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// A "\r" as the last buffered byte may be the start of "\r\n".
		if i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		if i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (h *Handler) forward(sess *session.Session, msg string) {
	sess.SetState(session.StateForwarding)
	log := sess.Logger
	log.Info("Sending to web server %s", h.opts.URL)

	start := time.Now()
	resp, err := h.opts.Forwarder.Forward(sess.Context(), h.opts.URL, msg)
	h.opts.Metrics.Forwarded(err, time.Since(start))

	if err != nil {
		if resp != nil && resp.Body != "" {
			log.Error("HTTP request failed: %v, response: %s", err, strings.TrimRight(resp.Body, "\n"))
			return
		}
		log.Error("HTTP request failed: %v", err)
		return
	}
	if resp.Truncated {
		log.Warn("Response body exceeded %d bytes, truncated", forward.MaxResponseBytes)
	}
	log.Info("HTTP request sent with result: %s", strings.TrimRight(resp.Body, "\n"))
}

func (h *Handler) teardown(sess *session.Session) {
	sess.Logger.Info("Disconnecting")
	if err := sess.Close(); err != nil {
		sess.Logger.Warn("Teardown: %v", err)
	}
	h.opts.Metrics.ConnectionClosed()
}
