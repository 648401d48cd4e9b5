package pipeline

import "prescription-order-service/internal/cache"

// Descriptor is the per-command/query metadata the pipeline's behaviors
// consult: what it's named for logging, how it validates, and whether
// (and how) it participates in caching. A single request object
// implementing Descriptor carries all of this; behaviors type-assert
// req against the narrower interfaces below rather than a single fat
// interface, so a plain command that doesn't cache needn't implement
// CacheableQuery.
type Descriptor interface {
	Name() string
}

// Validatable is implemented by requests that carry validator/v10 struct
// tags to be checked by the Validation behavior.
type Validatable interface {
	Descriptor
}

// CacheableQuery is implemented by queries tagged cacheable (spec
// section 4.3, behavior 3): Key names the cache entry, Consistency picks
// the mode, and TTL is the entry's lifetime (0 defers to the cache's
// configured default).
type CacheableQuery interface {
	Descriptor
	CacheKey() string
	CacheConsistency() cache.Consistency
	CacheTTLSeconds() int
}

// InvalidatingCommand is implemented by commands tagged invalidating:
// only a successful handler run triggers invalidation of the declared
// keys (spec section 4.3's "invalidate-only-on-success" rule). The
// Caching behavior does not read a command's CacheConsistency; every
// command takes the same WithLock path.
type InvalidatingCommand interface {
	Descriptor
	InvalidateKeys() []string
	CacheConsistency() cache.Consistency
}
