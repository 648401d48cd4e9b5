package problem

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Response is the RFC-7807-flavored problem-details envelope named in
// spec section 6. Errors map to "{type, title, status, detail, traceId,
// errors?}"; the errors field is populated only for Validation failures.
type Response struct {
	Type    string               `json:"type"`
	Title   string               `json:"title"`
	Status  int                  `json:"status"`
	Detail  string               `json:"detail"`
	TraceID string               `json:"traceId,omitempty"`
	Errors  map[string][]string  `json:"errors,omitempty"`
}

// StatusFor maps a FailureKind to an HTTP status code per spec section 4.7.
func StatusFor(kind FailureKind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Rejected:
		return http.StatusTooManyRequests
	case TimeoutExceeded:
		return http.StatusRequestTimeout
	case Transient, PermanentBackend, ShuttingDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindForStatus maps a status code back to a FailureKind. It inverts
// StatusFor for every kind except the three that share 503: that status
// maps back to Transient only.
func KindForStatus(status int) (FailureKind, bool) {
	switch status {
	case http.StatusBadRequest:
		return Validation, true
	case http.StatusUnauthorized:
		return Unauthorized, true
	case http.StatusNotFound:
		return NotFound, true
	case http.StatusConflict:
		return Conflict, true
	case http.StatusTooManyRequests:
		return Rejected, true
	case http.StatusRequestTimeout:
		return TimeoutExceeded, true
	case http.StatusServiceUnavailable:
		return Transient, true
	default:
		return "", false
	}
}

// Write renders a Failure as a problem-details HTTP response, setting
// Retry-After when the failure carries one.
func Write(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	f := As(err)
	status := StatusFor(f.Kind)

	traceID := r.Header.Get("X-Correlation-Id")
	if traceID == "" {
		traceID = middleware.GetReqID(r.Context())
	}
	w.Header().Set("X-Correlation-Id", traceID)

	resp := Response{
		Type:    string(f.Kind),
		Title:   f.Code,
		Status:  status,
		Detail:  f.Message,
		TraceID: traceID,
		Errors:  f.FieldErrors,
	}

	if f.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(f.RetryAfter.Seconds())))
	}

	logger.Log(logLevel(f.Kind),
		"http error response",
		zap.String("kind", string(f.Kind)),
		zap.String("code", f.Code),
		zap.Int("status", status),
		zap.String("trace_id", traceID),
		zap.Bool("retryable", f.Retryable),
		zap.Error(f.Cause),
	)

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		logger.Error("failed to encode problem-details response", zap.Error(encErr))
	}
}

func logLevel(kind FailureKind) zapcore.Level {
	switch kind {
	case PermanentBackend, ShuttingDown:
		return zapcore.ErrorLevel
	case Transient, Rejected, TimeoutExceeded:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// RecoveryMiddleware recovers panics, converts them to a PermanentBackend
// Failure, and stamps the correlation id on the response before any
// downstream handler can write one. Adapted from the teacher's
// ErrorEnrichmentMiddleware.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := middleware.GetReqID(r.Context())
					logger.Error("panic recovered",
						zap.String("request_id", requestID),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
					)
					f := New(PermanentBackend, "PANIC_RECOVERED", "an unexpected error occurred").
						WithOperation(fmt.Sprintf("%s %s", r.Method, r.URL.Path)).
						WithRequestID(requestID)
					Write(w, r, f, logger)
				}
			}()

			correlationID := r.Header.Get("X-Correlation-Id")
			if correlationID == "" {
				correlationID = middleware.GetReqID(r.Context())
			}
			w.Header().Set("X-Correlation-Id", correlationID)

			next.ServeHTTP(w, r)
		})
	}
}
