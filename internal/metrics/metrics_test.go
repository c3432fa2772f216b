package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal))

	c.ConnectionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal), "total must not decrease")
}

func TestCollector_Messages(t *testing.T) {
	c := New()

	c.MessageReceived(18)
	c.MessageReceived(4096)
	c.EmptyMessage()
	c.OversizeMessage()
	c.ReadError()
	c.SetupError()
	c.AcceptError()

	assert.Equal(t, 1, testutil.CollectAndCount(c.messageBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.emptyMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.oversizeMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.readErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.setupErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.acceptErrors))
}

func TestCollector_Forwarded(t *testing.T) {
	c := New()

	c.Forwarded(nil, 20*time.Millisecond)
	c.Forwarded(nil, 30*time.Millisecond)
	c.Forwarded(errors.New("refused"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.forwards.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.forwards.WithLabelValues(ResultFailed)))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ConnectionOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "gpsrelay_connections_total 1"),
		"exposition should contain the connection counter:\n%s", body)
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.AcceptError()
	c.SetupError()
	c.ReadError()
	c.MessageReceived(10)
	c.EmptyMessage()
	c.OversizeMessage()
	c.Forwarded(nil, time.Second)

	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
