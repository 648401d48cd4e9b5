package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prescription-order-service/internal/problem"
)

func TestShutdown_RejectDuringDrainPassesThroughBeforeBegin(t *testing.T) {
	s := NewShutdown(time.Second, 10*time.Second)
	handler := s.RejectDuringDrain(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShutdown_RejectDuringDrainReturns503AfterBegin(t *testing.T) {
	s := NewShutdown(time.Second, 10*time.Second)
	s.Begin()

	handler := s.RejectDuringDrain(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run once draining")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestShutdown_RunDrainsThenClosesServer(t *testing.T) {
	s := NewShutdown(time.Second, 5*time.Second)
	srv := &http.Server{Handler: http.NewServeMux()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, s.Draining())
	err := s.Run(ctx, srv, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, s.Draining())
}

func TestNewShuttingDown_IsRetryableWithConfiguredDelay(t *testing.T) {
	f := problem.NewShuttingDown(7 * time.Second)
	assert.True(t, f.Retryable)
	assert.Equal(t, 7*time.Second, f.RetryAfter)
	assert.Equal(t, problem.ShuttingDown, f.Kind)
}
