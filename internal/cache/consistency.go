package cache

import "time"

// Consistency is the tagged-variant sum type selected per cache-key
// operation (spec section 9: "tagged-variant sum types for FailureKind
// and CacheConsistency"), not a separate service per mode.
type Consistency string

const (
	Eventual     Consistency = "eventual"
	Strong       Consistency = "strong"
	Serializable Consistency = "serializable"
)

// LockPolicy configures the lock-based consistency modes (Strong,
// Serializable). LockTimeoutSeconds MUST exceed the handler's
// worst-case execution time with margin (spec section 4.2) — this is a
// deployment-time invariant, not something the type enforces.
type LockPolicy struct {
	LockTimeout     time.Duration
	LockWaitTimeout time.Duration
	LockRetryDelay  time.Duration
}
