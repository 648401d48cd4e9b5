package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prescription-order-service/internal/problem"
)

// LoggingPriority is the lowest (most outer) priority, matching the
// teacher's convention that logging wraps everything else so it can
// time and report the whole chain, including validation failures.
const LoggingPriority = 0

// Logging logs request start/end, duration, and outcome. Grounded on the
// teacher's mediator LoggingBehavior (application/mediator/mediator.go).
type Logging struct {
	logger *zap.Logger
}

func NewLogging(logger *zap.Logger) *Logging {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logging{logger: logger}
}

func (l *Logging) Name() string  { return "logging" }
func (l *Logging) Priority() int { return LoggingPriority }

func (l *Logging) Handle(ctx context.Context, req any, next Next) (any, error) {
	name := requestName(req)
	start := time.Now()

	l.logger.Debug("handling request", zap.String("request", name))

	resp, err := next(ctx, req)

	fields := []zap.Field{
		zap.String("request", name),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		f := problem.As(err)
		fields = append(fields,
			zap.String("kind", string(f.Kind)),
			zap.String("code", f.Code),
			zap.Error(err),
		)
		l.logger.Warn("request failed", fields...)
	} else {
		l.logger.Info("request handled", fields...)
	}

	return resp, err
}

func requestName(req any) string {
	if d, ok := req.(Descriptor); ok {
		return d.Name()
	}
	return "unknown"
}
