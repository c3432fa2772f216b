// Package forward delivers one tracker message to the web server as a
// form-encoded HTTP POST.  A Forwarder makes exactly one attempt per
// call: no retries, no queueing.
package forward

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/internal/transport"
)

// FormField is the form field carrying the raw tracker message.
const FormField = "message"

// ContentType is sent with every POST.
const ContentType = "application/x-www-form-urlencoded"

// MaxResponseBytes bounds how much of the upstream reply is kept.
// Anything beyond it is discarded.
const MaxResponseBytes = 1 << 20

// Response is what the web server sent back.
type Response struct {
	StatusCode int
	Body       string // newline-joined lines of the response body
	Truncated  bool   // the body was longer than MaxResponseBytes
}

// Options configures an HTTPForwarder.
type Options struct {
	// Timeout bounds the whole exchange, connect to last body byte.
	// Zero means no limit.
	Timeout time.Duration
	// Dialer opens the upstream TCP connection (default TCPDialer).
	Dialer transport.Dialer
}

// HTTPForwarder posts messages with a dedicated http.Client.
type HTTPForwarder struct {
	client *http.Client
}

// New returns an HTTPForwarder.  Keep-alives are disabled, so each
// forward opens and closes its own upstream connection.
func New(opts Options) *HTTPForwarder {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &transport.TCPDialer{Timeout: opts.Timeout}
	}

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.Dial,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   false,
	}

	return &HTTPForwarder{
		client: &http.Client{
			Transport: tr,
			Timeout:   opts.Timeout,
		},
	}
}

// Encode returns the request body for message: message=<percent-encoded>.
func Encode(message string) string {
	return url.Values{FormField: {message}}.Encode()
}

// Forward POSTs message to dest and returns the upstream reply.
//
// On a non-2xx status the Response is still returned alongside a
// *errors.ForwardError so the caller can log whatever the server said.
func (f *HTTPForwarder) Forward(ctx context.Context, dest, message string) (*Response, error) {
	if dest == "" {
		return nil, &relayerrors.ForwardError{Err: relayerrors.ErrEmptyURL}
	}

	body := Encode(message)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, strings.NewReader(body))
	if err != nil {
		return nil, &relayerrors.ForwardError{URL: dest, Err: err}
	}
	req.Header.Set("Content-Type", ContentType)
	req.ContentLength = int64(len(body))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &relayerrors.ForwardError{URL: dest, Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	out := &Response{StatusCode: resp.StatusCode}
	if len(raw) > MaxResponseBytes {
		raw = raw[:MaxResponseBytes]
		out.Truncated = true
	}
	text := joinLines(raw)
	out.Body = text

	if resp.StatusCode < 200 || resp.StatusCode > 299 || readErr != nil {
		return out, &relayerrors.ForwardError{
			URL:        dest,
			StatusCode: resp.StatusCode,
			Body:       text,
			Err:        readErr,
		}
	}
	return out, nil
}

// joinLines returns data as text with every line, including a final
// unterminated one, followed by "\n".  A "\r" before "\n" is dropped.
func joinLines(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return strings.Join(lines, "\n") + "\n"
}
