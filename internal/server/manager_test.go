package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestNewManager(t *testing.T) {
	m := NewManager(http.NewServeMux(), DefaultConfig(), zaptest.NewLogger(t))
	require.NotNil(t, m)
	assert.True(t, m.IsRunning())
	assert.Empty(t, m.BoundAddr())
}

func TestNewManagerNilLogger(t *testing.T) {
	m := NewManager(http.NewServeMux(), DefaultConfig(), nil)
	require.NotNil(t, m)
	require.NotNil(t, m.logger)
}

func TestStartAndShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	cfg := DefaultConfig()
	cfg.Addr = ":0"
	m := NewManager(mux, cfg, zaptest.NewLogger(t))

	require.NoError(t, m.Start())
	addr := m.BoundAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.BoundAddr())
}

func TestDoubleStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":0"
	m := NewManager(http.NewServeMux(), cfg, zaptest.NewLogger(t))

	require.NoError(t, m.Start())
	defer m.Shutdown(context.Background())

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestShutdownIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":0"
	m := NewManager(http.NewServeMux(), cfg, zaptest.NewLogger(t))

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStartAfterShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":0"
	m := NewManager(http.NewServeMux(), cfg, zaptest.NewLogger(t))

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	err = m.StartTLS("server.crt", "server.key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestListenFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "256.256.256.256:0"
	m := NewManager(http.NewServeMux(), cfg, zaptest.NewLogger(t))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestErrorsNonBlocking(t *testing.T) {
	m := NewManager(http.NewServeMux(), DefaultConfig(), zaptest.NewLogger(t))
	select {
	case err := <-m.Errors():
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":9999"
	m := NewManager(http.NewServeMux(), cfg, zaptest.NewLogger(t))
	assert.Equal(t, ":9999", m.Addr())
}
