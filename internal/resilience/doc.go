// Package resilience implements composable fault-tolerance primitives —
// retry, circuit breaker, bulkhead, timeout, and four rate-limiter
// algorithms — plus their ordered composition into a Policy, built as thin
// adapters over github.com/sony/gobreaker/v2, github.com/cenkalti/backoff/v4,
// and golang.org/x/time/rate.
package resilience
