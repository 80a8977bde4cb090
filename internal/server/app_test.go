package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatmle/tinker-api/internal/api"
	"github.com/chatmle/tinker-api/internal/config"
	"github.com/chatmle/tinker-api/internal/tinker"
)

func TestNewConnector_DisabledBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Backend.Enabled = false

	connector := newConnector(cfg, zap.NewNop())
	_, err := connector.Connect("k")
	require.ErrorIs(t, err, tinker.ErrUnavailable)
}

func TestNewConnector_EnabledBackend(t *testing.T) {
	t.Parallel()

	connector := newConnector(config.Default(), zap.NewNop())
	require.IsType(t, &tinker.HTTPConnector{}, connector)
}

func TestApp_ProxiesToBackend(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/training/runs/abc123" || r.Header.Get("Authorization") != "Bearer key-1" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		fmt.Fprint(w, `{"id":"abc123","status":"completed","model_id":"ft-999"}`)
	}))
	defer backend.Close()

	cfg := config.Default()
	cfg.Backend.BaseURL = backend.URL
	app := NewApp(cfg, zap.NewNop(), newConnector(cfg, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/jobs/abc123", nil)
	req.Header.Set(api.KeyHeader, "key-1")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"job_id":"abc123","status":"completed","progress":null,"current_step":null,
		"total_steps":null,"loss":null,"error":null,"model_id":"ft-999"}`, rec.Body.String())
}

func TestApp_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.ShutdownTimeoutSeconds = 2
	app := NewApp(cfg, zap.NewNop(), tinker.UnavailableConnector{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "tinker-api")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
