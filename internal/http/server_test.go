package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticStats map[string]interface{}

func (s staticStats) Stats() map[string]interface{} { return s }

func serve(opts Options, path string) *httptest.ResponseRecorder {
	router := NewRouter(opts, zerolog.Nop())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, path, nil))
	return w
}

func TestProbes(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := serve(Options{}, "/live")
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(Options{
		Service: "giveaway-bot",
		Stats:   map[string]StatsProvider{"redis": staticStats{"addr": "localhost:6379"}},
	}, "/health")
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"giveaway-bot"`)
	assert.Contains(t, w.Body.String(), `"addr":"localhost:6379"`)

	w = serve(Options{Checks: map[string]Pinger{"redis": ok}}, "/ready")
	assert.Equal(t, nethttp.StatusOK, w.Code)

	w = serve(Options{Checks: map[string]Pinger{"redis": ok, "mongo": down}}, "/ready")
	assert.Equal(t, nethttp.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "mongo unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(Options{}, "/metrics")
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
