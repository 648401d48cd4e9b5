package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prescription-order-service/internal/admission"
	"prescription-order-service/internal/cache"
	"prescription-order-service/internal/config"
	"prescription-order-service/internal/lifecycle"
	"prescription-order-service/internal/metrics"
	"prescription-order-service/internal/ordersdemo"
	"prescription-order-service/internal/pipeline"
)

// fixedSignals is a ports.PressureSignals double letting each scenario
// dial in whatever load level it needs without a real worker pool.
type fixedSignals struct {
	heapPct, poolPct float64
	pending          int
}

func (f fixedSignals) HeapLoadPercent() float64       { return f.heapPct }
func (f fixedSignals) ThreadPoolUtilPercent() float64 { return f.poolPct }
func (f fixedSignals) PendingWorkDepth() int          { return f.pending }

func newTestServer(t *testing.T, signals fixedSignals) (*httptest.Server, *lifecycle.Shutdown) {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Default()

	cacheService := cache.NewService(cache.VariantLocalOnly, cache.NewLocalCache(1000, 0, logger), nil, cache.Config{
		DefaultTTL: time.Minute,
	}, "test-instance", logger)

	collector := metrics.NewCollector("test")
	executor := wireExecutor(cfg, logger, collector)

	orderHandlers := ordersdemo.NewHandlers(
		ordersdemo.NewService(ordersdemo.NewMemoryStore(), ordersdemo.NewResilientExecutor(executor)),
		logger,
	)

	sampler := admission.NewSampler(signals, time.Millisecond, logger)
	samplerCtx, stopSampler := context.WithCancel(context.Background())
	t.Cleanup(stopSampler)
	go sampler.Run(samplerCtx, admission.Thresholds{
		MemoryThresholdPercent:     cfg.RateLimiting.MemoryThresholdPercent / 100,
		ThreadPoolThresholdPercent: cfg.RateLimiting.ThreadPoolThresholdPercent / 100,
		PendingWorkItemsThreshold:  cfg.RateLimiting.PendingWorkItemsThreshold,
	})
	time.Sleep(20 * time.Millisecond) // let at least one sample land before requests are sent

	shutdown := lifecycle.NewShutdown(cfg.GracefulShutdown.ShutdownTimeout, cfg.RateLimiting.RetryAfter)

	requestPipeline := pipeline.New(logger).
		Add(pipeline.NewLogging(logger)).
		Add(pipeline.NewValidation()).
		Add(pipeline.NewCaching(cacheService, cfg.Resilience.PrimaryStore.Timeout, logger))

	handler := buildRouter(cfg, logger, sampler, shutdown, requestPipeline, orderHandlers, collector)
	return httptest.NewServer(handler), shutdown
}

// S1: paged list returns a next-link once more rows exist than fit on a page.
func TestE2E_PagedListReturnsNextLinkWhenMoreRowsExist(t *testing.T) {
	srv, _ := newTestServer(t, fixedSignals{})
	defer srv.Close()

	for i := 0; i < 5; i++ {
		body, _ := json.Marshal(map[string]any{"patientId": "p1", "drug": "amoxicillin", "refills": 2})
		resp, err := http.Post(srv.URL+"/api/v2/orders", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/v2/orders?$top=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Value    []ordersdemo.Order `json:"value"`
		NextLink string             `json:"@odata.nextLink"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Len(t, envelope.Value, 2)
	assert.NotEmpty(t, envelope.NextLink)
}

// S2: a successful create invalidates the cached list so the next read observes it.
func TestE2E_CreateOrderInvalidatesCachedList(t *testing.T) {
	srv, _ := newTestServer(t, fixedSignals{})
	defer srv.Close()

	first, err := http.Get(srv.URL + "/api/v2/orders")
	require.NoError(t, err)
	first.Body.Close()

	body, _ := json.Marshal(map[string]any{"patientId": "p2", "drug": "lisinopril", "refills": 1})
	created, err := http.Post(srv.URL+"/api/v2/orders", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, created.StatusCode)
	created.Body.Close()

	second, err := http.Get(srv.URL + "/api/v2/orders")
	require.NoError(t, err)
	defer second.Body.Close()

	var envelope struct {
		Value []ordersdemo.Order `json:"value"`
	}
	require.NoError(t, json.NewDecoder(second.Body).Decode(&envelope))
	assert.Len(t, envelope.Value, 1)
}

// S3: a rejected command (validation failure) must not invalidate the cache.
func TestE2E_RejectedCreateDoesNotInvalidateCache(t *testing.T) {
	srv, _ := newTestServer(t, fixedSignals{})
	defer srv.Close()

	warm, err := http.Get(srv.URL + "/api/v2/orders")
	require.NoError(t, err)
	warm.Body.Close()

	body, _ := json.Marshal(map[string]any{"patientId": "p3", "drug": "epoetin", "refills": 0})
	rejected, err := http.Post(srv.URL+"/api/v2/orders", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	rejected.Body.Close()

	again, err := http.Get(srv.URL + "/api/v2/orders")
	require.NoError(t, err)
	defer again.Body.Close()
	assert.Equal(t, http.StatusOK, again.StatusCode)
}

// S4: once pressure exceeds threshold, every request is rejected 429 with Retry-After.
func TestE2E_AdmissionRejectsUnderPressure(t *testing.T) {
	srv, _ := newTestServer(t, fixedSignals{heapPct: 0.99})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v2/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

// S6: once shutdown has begun, new requests are rejected rather than admitted.
func TestE2E_RequestsRejectedDuringDrain(t *testing.T) {
	srv, shutdown := newTestServer(t, fixedSignals{})
	defer srv.Close()

	shutdown.Begin()

	resp, err := http.Get(srv.URL + "/api/v2/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
