// Package httpmw holds HTTP-layer middleware that sits outside the
// request pipeline's behaviors: a route-class circuit breaker (using
// sony/gobreaker directly, distinct from the per-kind sliding-window
// breaker inside the resilience executor) that logs its state changes
// through zap.
package httpmw

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"prescription-order-service/internal/problem"
)

// CircuitBreakerConfig configures a route-class HTTP circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// CircuitBreaker wraps an entire route class with a gobreaker instance,
// tripping on a 5xx ratio. This is the outermost safety valve; the
// resilience executor's own per-kind breaker (internal/resilience) guards
// individual outbound calls inside the handler.
func CircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Error("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := cb.Execute(func() (any, error) {
				wrapper := &statusCapture{ResponseWriter: w, statusCode: http.StatusOK}
				next.ServeHTTP(wrapper, r)
				if wrapper.statusCode >= 500 {
					return nil, http.ErrAbortHandler
				}
				return nil, nil
			})

			if err != nil {
				switch err {
				case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
					problem.Write(w, r, problem.New(problem.Transient, "ROUTE_BREAKER_OPEN", "service temporarily unavailable"), logger)
				default:
					// err == http.ErrAbortHandler: the wrapped handler already wrote its
					// own response; nothing further to write.
				}
			}
		})
	}
}

type statusCapture struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusCapture) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
