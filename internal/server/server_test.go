package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shyim/hellokube/internal/accesslog"
	"github.com/shyim/hellokube/internal/config"
	"github.com/shyim/hellokube/internal/metrics"
	"github.com/stretchr/testify/assert"
)

type memoryRecorder struct {
	mu      sync.Mutex
	entries []accesslog.Entry
	err     error
}

func (m *memoryRecorder) Record(_ context.Context, entry accesslog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)

	return m.err
}

func serve(t *testing.T, handler http.Handler, method, path string) (*http.Response, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	res := rec.Result()
	body, err := io.ReadAll(res.Body)

	assert.NoError(t, err)

	return res, string(body)
}

func TestGreetingRoute(t *testing.T) {
	s := New(config.Default(), config.DefaultGreeting)

	res, body := serve(t, s.Handler(), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Hello updated from Kubernetes 🚀", body)
	assert.Equal(t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
}

func TestHeadGreetingRoute(t *testing.T) {
	s := New(config.Default(), config.DefaultGreeting)

	res, _ := serve(t, s.Handler(), http.MethodHead, "/")

	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestUnknownRoutesAreNotFound(t *testing.T) {
	s := New(config.Default(), config.DefaultGreeting)
	handler := s.Handler()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/missing"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/missing"},
		{http.MethodPost, "/"},
		{http.MethodDelete, "/"},
		{http.MethodGet, "//"},
		{http.MethodGet, "/./"},
		{http.MethodGet, "/missing/.."},
	}

	for _, tc := range cases {
		res, body := serve(t, handler, tc.method, tc.path)

		assert.Equal(t, http.StatusNotFound, res.StatusCode, "%s %s", tc.method, tc.path)
		assert.Equal(t, "404 page not found\n", body)
	}
}

func TestGreetingIgnoresQuery(t *testing.T) {
	s := New(config.Default(), config.DefaultGreeting)

	res, body := serve(t, s.Handler(), http.MethodGet, "/?x=1")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, config.DefaultGreeting, body)
}

func TestConfiguredGreeting(t *testing.T) {
	s := New(config.Default(), "Hello from staging")

	_, body := serve(t, s.Handler(), http.MethodGet, "/")

	assert.Equal(t, "Hello from staging", body)
}

func TestMetricsObserveUnmatchedRoutes(t *testing.T) {
	collector := metrics.NewCollector("test")
	s := New(config.Default(), config.DefaultGreeting, WithMetrics(collector))
	handler := s.Handler()

	serve(t, handler, http.MethodGet, "/")
	serve(t, handler, http.MethodGet, "/missing")

	count, err := testutil.GatherAndCount(collector.Registry(), "hellokube_http_requests_total")

	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAccessLogRecordsRequests(t *testing.T) {
	recorder := &memoryRecorder{}
	s := New(config.Default(), config.DefaultGreeting, WithRecorder(recorder))
	handler := s.Handler()

	serve(t, handler, http.MethodGet, "/")
	serve(t, handler, http.MethodGet, "/missing")

	assert.Len(t, recorder.entries, 2)
	assert.Equal(t, "/", recorder.entries[0].Path)
	assert.Equal(t, http.StatusOK, recorder.entries[0].Status)
	assert.Equal(t, "/missing", recorder.entries[1].Path)
	assert.Equal(t, http.StatusNotFound, recorder.entries[1].Status)
	assert.False(t, recorder.entries[0].RequestedAt.IsZero())
}

func TestAccessLogFailureDoesNotChangeResponse(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("disk full")}
	s := New(config.Default(), config.DefaultGreeting, WithRecorder(recorder))

	res, body := serve(t, s.Handler(), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, config.DefaultGreeting, body)
}

func TestListenFailsWhenPortIsTaken(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	assert.NoError(t, err)

	defer taken.Close()

	cfg := config.Default()
	cfg.Port = taken.Addr().(*net.TCPAddr).Port

	_, err = New(cfg, config.DefaultGreeting).Listen()

	assert.ErrorContains(t, err, "cannot listen on port "+strconv.Itoa(cfg.Port))
}

func TestListenAndServe(t *testing.T) {
	free, err := net.Listen("tcp", ":0")
	assert.NoError(t, err)

	cfg := config.Default()
	cfg.Port = free.Addr().(*net.TCPAddr).Port

	assert.NoError(t, free.Close())

	collector := metrics.NewCollector("test")
	s := New(cfg, config.DefaultGreeting, WithMetrics(collector))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.ListenAndServe(ctx)
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Port) + "/"

	var body []byte

	assert.Eventually(t, func() bool {
		res, err := http.Get(url)

		if err != nil {
			return false
		}

		defer res.Body.Close()

		body, _ = io.ReadAll(res.Body)

		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, config.DefaultGreeting, string(body))
	assert.True(t, collector.Ready())

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.False(t, collector.Ready())
}
