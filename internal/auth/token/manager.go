// Package token owns OAuth access-token lifecycle for tenant provider
// credentials, including transparent refresh with persistence.
package token

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

// expiryBuffer is the safety window: tokens expiring within it are treated
// as already expired and refreshed before use.
const expiryBuffer = 5 * time.Minute

// Manager returns currently-valid access tokens for a tenant+provider pair,
// refreshing and persisting through the tenant record when needed.
// Concurrent refreshes for the same pair are serialized by a per-key lock so
// two racing refreshes cannot overwrite each other's fresh token with a
// stale one.
type Manager struct {
	db           *gorm.DB
	clientID     string
	clientSecret string
	tokenURL     string // overridable in tests

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(db *gorm.DB, clientID, clientSecret string) *Manager {
	return &Manager{
		db:           db,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     google.Endpoint.TokenURL,
		locks:        make(map[string]*sync.Mutex),
	}
}

// SetTokenURL points the refresh grant at a different endpoint. Tests use
// an httptest server.
func (m *Manager) SetTokenURL(tokenURL string) { m.tokenURL = tokenURL }

func (m *Manager) lockFor(companyID, provider string) *sync.Mutex {
	key := companyID + "/" + provider
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// GetValidAccessToken returns an access token that is valid for at least the
// buffer window. Every successful refresh persists state, so callers must
// not hold on to the token beyond a single sync operation.
func (m *Manager) GetValidAccessToken(ctx context.Context, companyID, provider string) (string, error) {
	lock := m.lockFor(companyID, provider)
	lock.Lock()
	defer lock.Unlock()

	var company models.Company
	if err := m.db.First(&company, "id = ?", companyID).Error; err != nil {
		return "", fmt.Errorf("company %s: %w", companyID, err)
	}

	switch provider {
	case review.ProviderGoogle:
		return m.googleToken(ctx, &company, false)
	case review.ProviderFacebook:
		return facebookToken(&company)
	default:
		return "", fmt.Errorf("provider %s has no managed tokens", provider)
	}
}

// ForceRefresh discards the stored access token and refreshes immediately.
// The sync orchestrator calls this after an upstream 401 before its single
// retry.
func (m *Manager) ForceRefresh(ctx context.Context, companyID, provider string) (string, error) {
	if provider != review.ProviderGoogle {
		// Facebook page tokens have no refresh grant; a 401 means the
		// tenant must reconnect.
		return "", review.ErrCredentialsMissing
	}

	lock := m.lockFor(companyID, provider)
	lock.Lock()
	defer lock.Unlock()

	var company models.Company
	if err := m.db.First(&company, "id = ?", companyID).Error; err != nil {
		return "", fmt.Errorf("company %s: %w", companyID, err)
	}
	return m.googleToken(ctx, &company, true)
}

func (m *Manager) googleToken(ctx context.Context, company *models.Company, force bool) (string, error) {
	if !force && company.GMBTokenExpiry != nil && company.GMBAccessToken != "" {
		if company.GMBTokenExpiry.After(time.Now().Add(expiryBuffer)) {
			return company.GMBAccessToken, nil
		}
	}

	if company.GMBRefreshToken == "" {
		return "", fmt.Errorf("google not connected for tenant %s: %w", company.ID, review.ErrCredentialsMissing)
	}

	config := &oauth2.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: m.tokenURL},
	}
	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: company.GMBRefreshToken})

	newToken, err := source.Token()
	if err != nil {
		if isPermanentRefreshError(err) {
			return "", fmt.Errorf("google refresh rejected (%v): %w", err, review.ErrCredentialsMissing)
		}
		return "", fmt.Errorf("google refresh: %v: %w", err, review.ErrRefreshFailed)
	}

	updates := map[string]any{
		"gmb_access_token": newToken.AccessToken,
		"gmb_token_expiry": newToken.Expiry,
	}
	// Persist rotated refresh token if provided (RFC 6749 compliance)
	if newToken.RefreshToken != "" && newToken.RefreshToken != company.GMBRefreshToken {
		updates["gmb_refresh_token"] = newToken.RefreshToken
	}
	if err := m.db.Model(&models.Company{}).Where("id = ?", company.ID).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	return newToken.AccessToken, nil
}

// facebookToken returns the stored page token. Page tokens issued from a
// long-lived user token do not expire on a refresh schedule, but a recorded
// expiry in the past means the tenant has to reconnect.
func facebookToken(company *models.Company) (string, error) {
	if company.FBPageAccessToken == "" {
		return "", fmt.Errorf("facebook not connected for tenant %s: %w", company.ID, review.ErrCredentialsMissing)
	}
	if company.FBTokenExpiry != nil && company.FBTokenExpiry.Before(time.Now()) {
		return "", fmt.Errorf("facebook token expired for tenant %s: %w", company.ID, review.ErrCredentialsMissing)
	}
	return company.FBPageAccessToken, nil
}

// isPermanentRefreshError distinguishes revoked/invalid grants (the user
// must reconnect) from transient upstream trouble.
func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
