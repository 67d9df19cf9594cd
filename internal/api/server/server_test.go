package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/api/v1/handlers"
	v1routes "github.com/dmlat/STT-Telegram/internal/api/v1/routes"
	"github.com/dmlat/STT-Telegram/internal/app/billing"
	"github.com/dmlat/STT-Telegram/internal/app/ledger"
	"github.com/dmlat/STT-Telegram/internal/app/pipeline"
	"github.com/dmlat/STT-Telegram/internal/app/testutil"
	"github.com/dmlat/STT-Telegram/internal/metrics"
)

type staticRunner struct {
	result pipeline.Result
}

func (r *staticRunner) Run(_ context.Context, _ pipeline.Request) pipeline.Result {
	return r.result
}

func newTestServer(t *testing.T, registry *prometheus.Registry) *Server {
	t.Helper()

	logger := zap.NewNop()
	mem := testutil.NewMemoryStore()
	quotas := ledger.New(mem, 300, logger)

	m := metrics.New(prometheus.NewRegistry())
	if registry != nil {
		m = metrics.New(registry)
	}

	runner := &staticRunner{result: pipeline.Result{
		Outcome:         pipeline.OutcomeCompleted,
		Text:            "ok",
		DurationSeconds: 1,
		JobID:           1,
	}}

	container := &v1routes.HandlerContainer{
		Jobs:  handlers.NewJobsHandler(runner, t.TempDir(), logger),
		Users: handlers.NewUsersHandler(quotas, mem),
		Payments: handlers.NewPaymentsHandler(
			billing.DefaultPricing(),
			billing.NewTransactionStore(mem, quotas, logger),
			nil,
			m,
			logger,
		),
	}

	return NewServer(Config{
		Host:        "127.0.0.1",
		Port:        "0",
		Environment: "test",
	}, container, registry, logger)
}

func TestServer_OperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "STT Telegram API")
}

func TestServer_MetricsExposition(t *testing.T) {
	registry := prometheus.NewRegistry()
	srv := newTestServer(t, registry)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sttd_audio_seconds_total")
}

func TestServer_MetricsDisabledWithoutRegistry(t *testing.T) {
	srv := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_MountsV1Routes(t *testing.T) {
	srv := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/7/balance", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_available_seconds")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs",
		strings.NewReader(`{"user_id":7,"url":"https://files.example.com/a.ogg"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"completed"`)
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := newTestServer(t, nil)

	errCh := srv.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			t.Fatalf("unexpected listener error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}
