package review

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by all provider clients. Callers distinguish them
// with errors.Is.
var (
	// ErrCredentialsMissing means the tenant never connected this provider.
	// Not retryable; the user has to reconnect.
	ErrCredentialsMissing = errors.New("provider credentials missing")

	// ErrAuthExpired means the upstream rejected the access token. The
	// caller refreshes the token and retries exactly once.
	ErrAuthExpired = errors.New("provider auth expired")

	// ErrRefreshFailed means the refresh-token grant itself failed. Treated
	// as "provider temporarily unavailable", not a fatal tenant error.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrRateLimited is surfaced as-is; no automatic retry.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrSetupIncomplete means required provider identifiers (Google
	// account/location) are absent. User-actionable, not a bug.
	ErrSetupIncomplete = errors.New("provider setup incomplete")

	// ErrUnreachable covers network failures and timeouts.
	ErrUnreachable = errors.New("provider unreachable")
)

// UpstreamError is a non-2xx provider response with the raw body attached
// for diagnostics.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: status %d: %s", e.Provider, e.Status, e.Body)
}

// StatusError maps a non-2xx upstream status to the error taxonomy.
func StatusError(provider string, status int, body string) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: status %d: %w", provider, status, ErrAuthExpired)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: status %d: %w", provider, status, ErrRateLimited)
	default:
		return &UpstreamError{Provider: provider, Status: status, Body: body}
	}
}
