package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"prescription-order-service/internal/cache"
	"prescription-order-service/internal/lifecycle"
)

// CachingPriority runs after Validation, wrapping the handler so a
// CacheableQuery is served from cache.Service.GetOrLoad and an
// InvalidatingCommand's write-through invalidation only fires on success
// (spec section 4.3).
const CachingPriority = 20

// Caching consults the request's CacheableQuery/InvalidatingCommand
// tagging and routes through cache.Service accordingly. A request
// implementing neither interface passes through untouched. Grounded on
// the teacher's CachingNodeRepository cache-aside decorator, generalized
// from a single repository method to any pipeline request via the
// descriptor interfaces in descriptor.go.
type Caching struct {
	cache        cache.Cache
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewCaching builds the Caching behavior. writeTimeout bounds the
// write-safe detached scope a command runs under (spec section 4.5/5:
// a command must not observe the inbound request's cancellation, but
// still can't hang forever) — it should match the resilience executor's
// PrimaryStore timeout, since that's the call the command's handler will
// make.
func NewCaching(c cache.Cache, writeTimeout time.Duration, logger *zap.Logger) *Caching {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caching{cache: c, writeTimeout: writeTimeout, logger: logger}
}

func (c *Caching) Name() string  { return "caching" }
func (c *Caching) Priority() int { return CachingPriority }

func (c *Caching) Handle(ctx context.Context, req any, next Next) (any, error) {
	if q, ok := req.(CacheableQuery); ok {
		return c.handleQuery(ctx, q, req, next)
	}
	if cmd, ok := req.(InvalidatingCommand); ok {
		return c.handleCommand(ctx, cmd, req, next)
	}
	return next(ctx, req)
}

func (c *Caching) handleQuery(ctx context.Context, q CacheableQuery, req any, next Next) (any, error) {
	var result any
	var handlerErr error

	ttl := time.Duration(q.CacheTTLSeconds()) * time.Second
	loaded, err := c.cache.GetOrLoad(ctx, q.CacheKey(), q.CacheConsistency(), ttl, func(ctx context.Context) ([]byte, error) {
		var encoded []byte
		result, handlerErr = next(ctx, req)
		if handlerErr != nil {
			return nil, handlerErr
		}
		encoded, handlerErr = encodeResponse(result)
		return encoded, handlerErr
	})
	if handlerErr != nil {
		return nil, handlerErr
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		// Freshly computed this call: return the typed value directly
		// rather than round-tripping through the encoded bytes.
		return result, nil
	}
	return loaded, nil
}

func (c *Caching) handleCommand(ctx context.Context, cmd InvalidatingCommand, req any, next Next) (any, error) {
	writeCtx, cancel := lifecycle.DetachWriteSafe(ctx, c.writeTimeout)
	defer cancel()

	var result any
	err := c.cache.WithLock(writeCtx, cmd.Name(), func(ctx context.Context) error {
		var innerErr error
		result, innerErr = next(ctx, req)
		return innerErr
	}, cmd.InvalidateKeys())
	if err != nil {
		return nil, err
	}
	return result, nil
}

func encodeResponse(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return json.Marshal(v)
}
