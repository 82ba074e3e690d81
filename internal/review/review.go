// Package review defines the provider-agnostic review shape, the uniform
// provider client contract and the shared error taxonomy.
package review

import (
	"context"
	"time"
)

// Provider identifiers.
const (
	ProviderKiyoh    = "kiyoh"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// Review is the canonical, provider-agnostic shape of one fetched review.
// Rating stays on the provider's native scale (Kiyoh 1-10, Google and
// Facebook 1-5).
type Review struct {
	ExternalID string
	Provider   string
	Author     string
	Rating     float64
	Text       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Credentials carries the per-tenant access data a client needs for one
// call. Which fields are populated depends on the provider.
type Credentials struct {
	// Kiyoh publication API.
	BaseURL    string
	APIToken   string
	LocationID string
	TenantID   string

	// OAuth providers.
	AccessToken string
	AccountID   string // Google: accounts/{id}
	PageID      string // Facebook page id
}

// Client is the uniform contract every review provider implements.
type Client interface {
	Name() string
	ListReviews(ctx context.Context, creds Credentials) ([]Review, error)
	PostReply(ctx context.Context, creds Credentials, externalID, text string) error
}

// KnownProvider reports whether name is a supported provider identifier.
func KnownProvider(name string) bool {
	switch name {
	case ProviderKiyoh, ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}
