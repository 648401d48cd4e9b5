package lifecycle

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"prescription-order-service/internal/problem"
)

// Shutdown coordinates graceful drain: new requests are rejected with a
// ShuttingDown failure the instant Begin is called, in-flight requests get
// up to Grace to finish, and the underlying http.Server is then closed.
// Sequence adapted from the teacher's cmd/api/main.go (signal.Notify ->
// srv.Shutdown -> logger.Sync), generalized into a reusable type whose
// flag is observed by the RejectDuringDrain middleware.
type Shutdown struct {
	draining   atomic.Bool
	Grace      time.Duration
	RetryAfter time.Duration
}

func NewShutdown(grace, retryAfter time.Duration) *Shutdown {
	return &Shutdown{Grace: grace, RetryAfter: retryAfter}
}

// Begin flips the draining flag. Called once, from the signal handler.
func (s *Shutdown) Begin() { s.draining.Store(true) }

// Draining reports whether shutdown has started.
func (s *Shutdown) Draining() bool { return s.draining.Load() }

// RejectDuringDrain is mounted ahead of the admission, timeout and breaker
// middleware (after request-id and panic recovery): once draining, every
// new request is rejected immediately rather than being admitted and then
// racing the server close.
func (s *Shutdown) RejectDuringDrain(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Draining() {
				problem.Write(w, r, problem.NewShuttingDown(s.RetryAfter), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Run blocks until ctx is cancelled (typically by a signal.NotifyContext
// handler installed by the caller), then begins draining and shuts the
// server down within Grace, logging each step.
func (s *Shutdown) Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	<-ctx.Done()

	logger.Info("shutdown signal received, draining")
	s.Begin()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown did not complete cleanly", zap.Error(err))
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
