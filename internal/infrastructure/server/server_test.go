package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/extsync/internal/app"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/secrets"
	"github.com/GriffinCanCode/extsync/tests/helpers/testutil"
)

func testServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Storage.SettingsFile = filepath.Join(dir, "conf", "settings.yaml")
	cfg.Storage.StagingDir = dir
	cfg.Sync.WatchSettings = false
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(cfg, app.Options{
		Logger:  logging.NewNop(),
		Host:    testutil.NewFakeHost(nil),
		Secrets: secrets.NewMemoryStore(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestRoutesAreWired(t *testing.T) {
	srv := testServer(t, nil)

	for _, path := range []string{"/", "/health", "/badge", "/advisories", "/metrics", "/metrics/json"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRefreshWithoutEndpointsRaisesAdvisory(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"advisory":"Please set the package registry URLs in the settings."`)
	assert.Contains(t, srv.App().Advisories.Messages(), "Please set the package registry URLs in the settings.")
}

func TestForeignOriginRejected(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimitApplied(t *testing.T) {
	srv := testServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Enabled: true}
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := testServer(t, func(cfg *config.Config) {
		cfg.Sync.WatchSettings = true
		cfg.Sync.Interval = 50 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTraceIDEchoed(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "trace-from-client")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, "trace-from-client", w.Header().Get("X-Trace-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Span-ID"))
}
