package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prescription-order-service/internal/ports"
)

// Variant selects which tier(s) back a Cache instance, chosen once at
// construction from config (spec section 9: "select concrete
// implementation at construction from config"). Generalizes the
// teacher's local/di/cache trio (InMemoryCache/NoOpCache/
// SimpleMemoryCacheWrapper) from three hand-written types into one
// Cache interface with four constructor-selected variants.
type Variant string

const (
	VariantLocalOnly  Variant = "local_only"
	VariantRemoteOnly Variant = "remote_only"
	VariantHybrid     Variant = "hybrid"
	VariantNull       Variant = "null"
)

// Cache is the single interface every variant satisfies: the five
// operations named in spec section 9 (Get, Set, Delete, Invalidate by
// pattern, and lock-aware Get-or-load for the consistency modes), plus
// WithLock for the command write path.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, consistency Consistency) error
	Delete(ctx context.Context, key string) error
	Invalidate(ctx context.Context, patterns []string) error
	// GetOrLoad implements the full read path for a cacheable query
	// under the given consistency mode: Eventual reads straight through;
	// Strong calls load directly, neither reading nor filling the cache,
	// while the key is locked; Serializable waits for the lock up to LockWaitTimeout
	// before falling through to load. ttl is stored alongside a freshly
	// loaded value on miss; ttl <= 0 falls back to Config.DefaultTTL.
	GetOrLoad(ctx context.Context, key string, consistency Consistency, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error)
	// WithLock is the writer-side entry point for commands: acquire,
	// run fn, invalidate on success, release.
	WithLock(ctx context.Context, key string, fn func(context.Context) error, invalidate []string) error
}

// Config configures a Service instance.
type Config struct {
	Variant    Variant
	DefaultTTL time.Duration
	Lock       LockPolicy
}

// Service is the concrete Cache implementation selecting local/remote
// tiers per Variant and applying the consistency-mode rules from spec
// section 4.2 around the remote tier's lock primitives.
type Service struct {
	variant Variant
	local   *LocalCache
	remote  ports.RemoteCache
	cfg     Config
	logger  *zap.Logger
	ownerID string
}

func NewService(variant Variant, local *LocalCache, remote ports.RemoteCache, cfg Config, ownerID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Variant = variant
	return &Service{variant: variant, local: local, remote: remote, cfg: cfg, logger: logger, ownerID: ownerID}
}

// Get consults Local then Remote, per spec section 4.3's caching
// behavior ordering. Cache failures are never fatal (section 4.2): a
// Get error is swallowed and reported as a miss, logged at error level.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.variant == VariantNull {
		return nil, false, nil
	}
	if s.local != nil && s.variant != VariantRemoteOnly {
		if v, ok, _ := s.local.Get(ctx, key); ok {
			return v, true, nil
		}
	}
	if s.remote != nil && s.variant != VariantLocalOnly {
		v, ok, err := s.remote.Get(ctx, key)
		if err != nil {
			s.logger.Error("remote cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
			return nil, false, nil
		}
		return v, ok, nil
	}
	return nil, false, nil
}

// Set writes through to whichever tiers the variant enables. Set/Del
// failures are logged, never returned as fatal, so the authoritative
// write still lands (spec section 4.2's failure semantics).
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration, consistency Consistency) error {
	if s.variant == VariantNull {
		return nil
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if s.local != nil && s.variant != VariantRemoteOnly {
		if err := s.local.Set(ctx, key, value, ttl); err != nil {
			s.logger.Error("local cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	if s.remote != nil && s.variant != VariantLocalOnly {
		if err := s.remote.Set(ctx, key, value, ttl); err != nil {
			s.logger.Error("remote cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if s.variant == VariantNull {
		return nil
	}
	if s.local != nil && s.variant != VariantRemoteOnly {
		if err := s.local.Delete(ctx, key); err != nil {
			s.logger.Error("local cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	if s.remote != nil && s.variant != VariantLocalOnly {
		if err := s.remote.Del(ctx, key); err != nil {
			s.logger.Error("remote cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Invalidate deletes every key, exact or trailing-wildcard, across every
// enabled tier — called by the pipeline's Caching behavior only after a
// command handler returns success (spec section 4.3's "invalidate-only-
// on-success" rule; enforcement lives in internal/pipeline, not here).
func (s *Service) Invalidate(ctx context.Context, patterns []string) error {
	if s.variant == VariantNull {
		return nil
	}
	for _, p := range patterns {
		if s.local != nil && s.variant != VariantRemoteOnly {
			if err := s.local.Clear(ctx, p); err != nil {
				s.logger.Error("local cache invalidate failed", zap.String("pattern", p), zap.Error(err))
			}
		}
		if s.remote != nil && s.variant != VariantLocalOnly {
			var err error
			if len(p) > 0 && p[len(p)-1] == '*' {
				err = s.remote.DelByPrefix(ctx, p)
			} else {
				err = s.remote.Del(ctx, p)
			}
			if err != nil {
				s.logger.Error("remote cache invalidate failed", zap.String("pattern", p), zap.Error(err))
			}
		}
	}
	return nil
}

// GetOrLoad implements the three consistency modes named in spec section
// 4.2 for a single cacheable read.
func (s *Service) GetOrLoad(ctx context.Context, key string, consistency Consistency, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	switch consistency {
	case Strong, Serializable:
		return s.getOrLoadLocked(ctx, key, consistency, ttl, load)
	default:
		return s.getOrLoadEventual(ctx, key, ttl, load)
	}
}

func (s *Service) getOrLoadEventual(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := s.Get(ctx, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.Set(ctx, key, v, ttl, Eventual)
	return v, nil
}

func (s *Service) getOrLoadLocked(ctx context.Context, key string, consistency Consistency, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if s.remote == nil || s.variant == VariantLocalOnly || s.variant == VariantNull {
		return s.getOrLoadEventual(ctx, key, ttl, load)
	}

	locked, err := s.isLocked(ctx, key)
	if err != nil {
		s.logger.Error("lock check failed, falling through to load", zap.String("key", key), zap.Error(err))
		return load(ctx)
	}

	if !locked {
		return s.getOrLoadEventual(ctx, key, ttl, load)
	}

	if consistency == Strong {
		return load(ctx)
	}

	acquired, err := s.remote.LockWait(ctx, lockKey(key), s.cfg.Lock.LockWaitTimeout, s.cfg.Lock.LockRetryDelay)
	if err != nil || !acquired {
		return load(ctx)
	}
	return s.getOrLoadEventual(ctx, key, ttl, load)
}

func (s *Service) isLocked(ctx context.Context, key string) (bool, error) {
	_, locked, err := s.remote.Get(ctx, lockKey(key))
	return locked, err
}

func lockKey(key string) string { return "lock:" + key }

// WithLock is the writer-side entry point for the Strong and Serializable
// modes: acquire, run fn, invalidate, release. Release happens whatever
// fn's outcome (the lock must clear either way); invalidation happens only
// when fn succeeds. Without a remote tier, or when the lock cannot be
// acquired, fn runs unlocked and a successful fn still invalidates.
func (s *Service) WithLock(ctx context.Context, key string, fn func(context.Context) error, invalidate []string) error {
	runAndInvalidate := func() error {
		if err := fn(ctx); err != nil {
			return err
		}
		_ = s.Invalidate(ctx, invalidate)
		return nil
	}

	if s.remote == nil {
		return runAndInvalidate()
	}

	ttl := s.cfg.Lock.LockTimeout
	ok, err := s.remote.LockAcquire(ctx, lockKey(key), s.ownerID, ttl)
	if err != nil {
		s.logger.Error("lock acquire failed", zap.String("key", key), zap.Error(err))
		return runAndInvalidate()
	}
	if !ok {
		return runAndInvalidate()
	}
	defer func() {
		if relErr := s.remote.LockRelease(ctx, lockKey(key), s.ownerID); relErr != nil {
			s.logger.Error("lock release failed", zap.String("key", key), zap.Error(relErr))
		}
	}()

	return runAndInvalidate()
}
