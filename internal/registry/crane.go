package registry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	log "github.com/sirupsen/logrus"
)

// CraneChecker probes registries with a manifest HEAD request. It works
// against any OCI/Docker v2 registry and needs no extra tooling, at the
// cost of one round trip per candidate.
type CraneChecker struct {
	keychain authn.Keychain
}

// NewCraneChecker creates a checker using the default Docker keychain
// (~/.docker/config.json and credential helpers).
func NewCraneChecker() *CraneChecker {
	return &CraneChecker{keychain: authn.DefaultKeychain}
}

// NewCraneCheckerWithKeychain creates a checker with a custom keychain.
func NewCraneCheckerWithKeychain(kc authn.Keychain) *CraneChecker {
	if kc == nil {
		kc = authn.DefaultKeychain
	}
	return &CraneChecker{keychain: kc}
}

// Exists implements Checker. Candidates without an explicit tag or digest
// are probed as :latest.
func (c *CraneChecker) Exists(ctx context.Context, candidate string) bool {
	if err := c.Probe(ctx, candidate); err != nil {
		log.WithField("candidate", candidate).WithError(err).Debug("manifest probe miss")
		return false
	}
	return true
}

// Probe implements Prober. It returns a classified error so the retry
// layer can tell permanent misses from transient failures.
func (c *CraneChecker) Probe(ctx context.Context, candidate string) error {
	ref, err := name.ParseReference(candidate)
	if err != nil {
		// Unparseable candidates cannot exist; treat as a permanent miss.
		return &NotFoundError{Ref: candidate, Err: err}
	}

	_, err = remote.Head(ref,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(c.keychain),
	)
	if err != nil {
		return classifyProbeError(candidate, err)
	}
	return nil
}

// classifyProbeError wraps probe failures into typed errors so the retry
// layer can distinguish permanent misses from transient failures. It uses
// transport.Error status codes where available, falling back to string
// matching for errors without structured information.
func classifyProbeError(ref string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NetworkError{Err: err}
	}

	var terr *transport.Error
	if errors.As(err, &terr) {
		switch {
		case terr.StatusCode == http.StatusUnauthorized || terr.StatusCode == http.StatusForbidden:
			return &AuthError{Err: err}
		case terr.StatusCode == http.StatusNotFound:
			return &NotFoundError{Ref: ref, Err: err}
		case terr.StatusCode == http.StatusTooManyRequests || terr.StatusCode >= 500:
			return &NetworkError{Err: err}
		}
		// Registry API error codes carry the miss class even when the
		// HTTP status is ambiguous.
		for _, diag := range terr.Errors {
			switch diag.Code {
			case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode:
				return &NotFoundError{Ref: ref, Err: err}
			case transport.UnauthorizedErrorCode, transport.DeniedErrorCode:
				return &AuthError{Err: err}
			}
		}
		return &NotFoundError{Ref: ref, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{Err: err}
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "authentication required") ||
		strings.Contains(errStr, "denied"):
		return &AuthError{Err: err}
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "manifest unknown") ||
		strings.Contains(errStr, "name unknown"):
		return &NotFoundError{Ref: ref, Err: err}
	}
	return &NetworkError{Err: err}
}
