// Package lifecycle implements per-request timeout, the write-safe
// detached cancellation handle for commands, and graceful shutdown
// coordination (spec component C5).
package lifecycle

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"prescription-order-service/internal/problem"
)

// Timeouts resolves the per-route timeout, falling back to a default.
// Adapted from the teacher's timeout middleware (context.WithTimeout +
// goroutine + select + panic recovery inside the goroutine), generalized
// to read a per-route override before falling back to the default.
type Timeouts struct {
	Default  time.Duration
	PerRoute map[string]time.Duration
}

func (t Timeouts) For(route string) time.Duration {
	if d, ok := t.PerRoute[route]; ok {
		return d
	}
	return t.Default
}

// Timeout wraps requests in a cancellation scope bounded by the resolved
// timeout. Covers handler execution and serialization, not response body
// transmission (governed at the HTTP layer by minimum data-rate limits).
func Timeout(timeouts Timeouts, routeName func(*http.Request) string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout := timeouts.For(routeName(r))
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)
			done := make(chan struct{})

			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						logger.Error("panic in timeout-wrapped handler",
							zap.String("request_id", middleware.GetReqID(r.Context())),
							zap.Any("panic", rec),
							zap.String("stack", string(debug.Stack())),
						)
					}
				}()
				next.ServeHTTP(w, r)
				close(done)
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				logger.Warn("request timed out",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Duration("timeout", timeout),
				)
				if w.Header().Get("Content-Type") == "" {
					problem.Write(w, r, problem.NewTimeoutExceeded("REQUEST_TIMEOUT", "the request exceeded its time budget"), logger)
				}
				return
			}
		})
	}
}

// DetachWriteSafe returns a context decoupled from client disconnect but
// still bounded, so a mid-write disconnect cannot orphan partial state
// (spec section 4.5's cancellation discipline: writes must not observe
// the request-scoped cancellation) while still guaranteeing the write
// cannot hang forever.
func DetachWriteSafe(ctx context.Context, bound time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	return context.WithTimeout(detached, bound)
}
