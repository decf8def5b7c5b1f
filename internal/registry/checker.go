// Package registry verifies whether candidate image references exist.
//
// Existence checks back every tier of the matching cascade, so the contract
// is deliberately forgiving: a check that fails (network, auth, timeout)
// reports "does not exist" rather than an error. "Not found" and "check
// failed" are both ordinary outcomes here, never control flow exceptions.
package registry

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Checker verifies that an image reference exists in its registry.
type Checker interface {
	// Exists reports whether the candidate reference resolves to a real
	// image. Lookup failures of any kind resolve to false; this never
	// returns an error to callers.
	Exists(ctx context.Context, candidate string) bool
}

// AuthError indicates authentication/authorization failure.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError indicates a transient network failure.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError indicates the ref/tag/manifest was not found.
type NotFoundError struct {
	Ref string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s: %v", e.Ref, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// Memoized wraps a Checker with per-candidate result caching. The backends
// themselves do not cache, so cascades that re-try the same candidate wrap
// their checker with Memoized once and share it.
//
// Safe for concurrent use; duplicate in-flight probes for the same candidate
// are acceptable redundant work, not a correctness issue.
func Memoized(inner Checker) Checker {
	return &memoChecker{inner: inner, seen: make(map[string]bool)}
}

type memoChecker struct {
	inner Checker

	mu   sync.RWMutex
	seen map[string]bool
}

func (m *memoChecker) Exists(ctx context.Context, candidate string) bool {
	m.mu.RLock()
	exists, ok := m.seen[candidate]
	m.mu.RUnlock()
	if ok {
		log.WithField("candidate", candidate).Debug("existence check memo hit")
		return exists
	}

	exists = m.inner.Exists(ctx, candidate)

	m.mu.Lock()
	m.seen[candidate] = exists
	m.mu.Unlock()
	return exists
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, candidate string) bool

// Exists implements Checker.
func (f CheckerFunc) Exists(ctx context.Context, candidate string) bool {
	return f(ctx, candidate)
}
