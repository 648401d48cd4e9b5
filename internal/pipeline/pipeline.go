// Package pipeline implements the Request Pipeline (spec component C3):
// an ordered list of Behaviors composed once at startup around a
// terminal handler. Adapted from the teacher's HTTP-specific
// middleware.Pipeline (priority-sorted Middleware composed via Build())
// generalized to wrap a mediator-style Next func instead of
// http.HandlerFunc, matching application/mediator.Mediator's
// PreProcess/PostProcess behavior hook shape.
package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Next is the continuation a Behavior calls to run the remainder of the
// pipeline (eventually the terminal handler).
type Next func(ctx context.Context, req any) (any, error)

// Behavior is one named, priority-ordered pipeline stage. Lower Priority
// runs more outermost, matching the teacher's "lower numbers execute
// first" convention (middleware/pipeline.go).
type Behavior interface {
	Name() string
	Priority() int
	Handle(ctx context.Context, req any, next Next) (any, error)
}

// Pipeline composes its Behaviors, outermost to innermost by ascending
// Priority, around a terminal handler at Build() time.
type Pipeline struct {
	behaviors []Behavior
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

func (p *Pipeline) Add(b Behavior) *Pipeline {
	p.behaviors = append(p.behaviors, b)
	sort.SliceStable(p.behaviors, func(i, j int) bool {
		return p.behaviors[i].Priority() < p.behaviors[j].Priority()
	})
	return p
}

// Build composes the registered behaviors around handler, outermost
// first, returning a single Next that runs the whole chain.
func (p *Pipeline) Build(handler Next) Next {
	final := handler
	for i := len(p.behaviors) - 1; i >= 0; i-- {
		b := p.behaviors[i]
		next := final
		final = func(ctx context.Context, req any) (any, error) {
			return b.Handle(ctx, req, next)
		}
		p.logger.Debug("composed pipeline behavior", zap.String("behavior", b.Name()), zap.Int("priority", b.Priority()))
	}
	return final
}
