package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Database:  DatabaseConfig{DSN: filepath.Join(t.TempDir(), "db", "topoplan.db")},
		Rollout:   RolloutConfig{Enabled: true, Interval: time.Hour, MaxConcurrent: 1},
		Variables: map[string]string{},
	}
}

func TestNewServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server, err := NewServer(testConfig(t), logger)
	require.NoError(t, err)
	require.NotNil(t, server.rollout)

	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, server.Shutdown(context.Background()))
}

func TestNewServer_RolloutDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rollout.Enabled = false

	server, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, server.rollout)
	assert.NoError(t, server.Shutdown(context.Background()))
}

func TestServer_StartStopsOnContextCancel(t *testing.T) {
	server, err := NewServer(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerError(t *testing.T) {
	inner := errors.New("boom")
	err := &ServerError{Op: "Start", Err: inner, ExitCode: ExitHTTPServerError}

	assert.Equal(t, "Start: boom", err.Error())
	assert.ErrorIs(t, err, inner)

	var sErr *ServerError
	require.True(t, errors.As(error(err), &sErr))
	assert.Equal(t, ExitHTTPServerError, sErr.ExitCode)
}
