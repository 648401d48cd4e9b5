// Package resilience implements the Resilient Executor (spec component
// C1): per-kind retry, circuit breaker, and timeout wrapping every
// outbound call to the primary store or the cache.
package resilience

// Kind names the dependency class a call targets. Each kind carries its
// own retry/breaker/timeout policy (spec section 4.1's "per-kind policy").
type Kind string

const (
	PrimaryStore Kind = "primary_store"
	Cache        Kind = "cache"
)
