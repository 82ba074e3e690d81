// Package sync pulls reviews from provider APIs, deduplicates them against the
// local store and drives notification creation.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/ai"
	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/metrics"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/facebook"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/googlebiz"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/kiyoh"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSyncInProgress is returned when a sync for the same tenant+provider
// pair is already running. Callers retry; queueing interactive requests
// would only pile up identical work.
var ErrSyncInProgress = errors.New("sync already in progress for this tenant and provider")

// TokenSource yields valid access tokens for OAuth providers.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, companyID, provider string) (string, error)
	ForceRefresh(ctx context.Context, companyID, provider string) (string, error)
}

// Drafter produces an AI reply suggestion for a review.
type Drafter interface {
	Draft(ctx context.Context, s ai.Settings, r review.Review) (string, error)
}

// Orchestrator synchronizes one tenant+provider pair: fetch, normalize,
// dedup, upsert, notify. Fetch failures abort the provider's sync;
// per-item failures are logged and swallowed so one bad review cannot sink
// a batch.
type Orchestrator struct {
	db      *gorm.DB
	tokens  TokenSource
	kiyoh   *kiyoh.Client
	google  *googlebiz.Client
	fb      *facebook.Client
	drafter Drafter
	logger  *zap.Logger

	aiDefaultProvider string
	aiDefaultModel    string

	mu       sync.Mutex
	inflight map[string]struct{}
}

type Option func(*Orchestrator)

// WithAIDefaults sets the global fallback backend and model used when a
// tenant has no override.
func WithAIDefaults(provider, model string) Option {
	return func(o *Orchestrator) {
		o.aiDefaultProvider = provider
		o.aiDefaultModel = model
	}
}

func NewOrchestrator(
	database *gorm.DB,
	tokens TokenSource,
	kiyohClient *kiyoh.Client,
	googleClient *googlebiz.Client,
	fbClient *facebook.Client,
	drafter Drafter,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		db:       database,
		tokens:   tokens,
		kiyoh:    kiyohClient,
		google:   googleClient,
		fb:       fbClient,
		drafter:  drafter,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) tryAcquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
}

// SyncTenant runs one sync for a tenant+provider pair and returns the
// number of newly discovered reviews. Concurrent calls for the same pair
// fail fast with ErrSyncInProgress; different tenants and different
// providers of the same tenant run independently.
func (o *Orchestrator) SyncTenant(ctx context.Context, companyID, provider string) (int, error) {
	if !review.KnownProvider(provider) {
		return 0, fmt.Errorf("unknown provider %q", provider)
	}

	key := companyID + "/" + provider
	if !o.tryAcquire(key) {
		return 0, ErrSyncInProgress
	}
	defer o.release(key)

	start := time.Now()
	newCount, err := o.sync(ctx, companyID, provider)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SyncRuns.WithLabelValues(provider, outcome).Inc()
	if newCount > 0 {
		metrics.NewReviews.WithLabelValues(provider).Add(float64(newCount))
	}
	if logErr := db.RecordSyncRun(o.db, companyID, provider, newCount, time.Since(start), err); logErr != nil {
		o.logger.Warn("failed to record sync run", zap.Error(logErr))
	}

	return newCount, err
}

func (o *Orchestrator) sync(ctx context.Context, companyID, provider string) (int, error) {
	company, err := db.GetCompany(o.db, companyID)
	if err != nil {
		return 0, err
	}

	switch provider {
	case review.ProviderKiyoh:
		return o.syncKiyoh(ctx, company)
	case review.ProviderGoogle:
		return o.syncGoogle(ctx, company)
	case review.ProviderFacebook:
		return o.syncFacebook(ctx, company)
	default:
		return 0, fmt.Errorf("unknown provider %q", provider)
	}
}

func (o *Orchestrator) syncKiyoh(ctx context.Context, company *models.Company) (int, error) {
	if company.BaseURL == "" || company.APIToken == "" || company.LocationID == "" {
		return 0, fmt.Errorf("kiyoh not configured for tenant %s: %w", company.ID, review.ErrCredentialsMissing)
	}

	creds := review.Credentials{
		BaseURL:    company.BaseURL,
		APIToken:   company.APIToken,
		LocationID: company.LocationID,
		TenantID:   company.KiyohTenantID,
	}
	reviews, err := o.kiyoh.ListReviews(ctx, creds)
	if err != nil {
		return 0, err
	}

	newCount := 0
	for _, r := range reviews {
		if o.ingest(ctx, company, r) {
			newCount++
		}
	}
	return newCount, nil
}

func (o *Orchestrator) syncGoogle(ctx context.Context, company *models.Company) (int, error) {
	if !company.GMBEnabled {
		return 0, fmt.Errorf("google not connected for tenant %s: %w", company.ID, review.ErrCredentialsMissing)
	}

	accessToken, err := o.tokens.GetValidAccessToken(ctx, company.ID, review.ProviderGoogle)
	if err != nil {
		return 0, err
	}

	creds := review.Credentials{
		AccessToken: accessToken,
		AccountID:   company.GMBAccountID,
		LocationID:  company.GMBLocationID,
	}

	raws, err := o.google.ListRawReviews(ctx, creds)
	if errors.Is(err, review.ErrAuthExpired) {
		// The stored token was rejected despite a future expiry. Refresh
		// once and retry.
		accessToken, err = o.tokens.ForceRefresh(ctx, company.ID, review.ProviderGoogle)
		if err != nil {
			return 0, err
		}
		creds.AccessToken = accessToken
		raws, err = o.google.ListRawReviews(ctx, creds)
	}
	if err != nil {
		return 0, err
	}

	newCount := 0
	for _, raw := range raws {
		norm := googlebiz.Normalize(raw)
		if norm.ExternalID == "" {
			continue
		}
		if err := o.upsertGMBRow(company.ID, raw, norm); err != nil {
			o.logger.Warn("gmb canonical upsert failed",
				zap.String("company", company.ID),
				zap.String("review", norm.ExternalID),
				zap.Error(err))
		}
		if o.ingest(ctx, company, norm) {
			newCount++
		}
	}
	return newCount, nil
}

func (o *Orchestrator) upsertGMBRow(companyID string, raw googlebiz.RawReview, norm review.Review) error {
	row := &models.GMBReview{
		ReviewID:   norm.ExternalID,
		CompanyID:  companyID,
		Reviewer:   raw.Reviewer.DisplayName,
		StarRating: raw.StarRating,
		Comment:    raw.Comment,
	}
	if !norm.CreatedAt.IsZero() {
		t := norm.CreatedAt
		row.CreateTime = &t
	}
	if !norm.UpdatedAt.IsZero() {
		t := norm.UpdatedAt
		row.UpdateTime = &t
	}
	if raw.ReviewReply != nil {
		row.ReviewReply = raw.ReviewReply.Comment
		if t, err := time.Parse(time.RFC3339, raw.ReviewReply.UpdateTime); err == nil {
			row.ReplyUpdateTime = &t
		}
	}
	return db.UpsertGMBReview(o.db, row)
}

func (o *Orchestrator) syncFacebook(ctx context.Context, company *models.Company) (int, error) {
	if !company.FBEnabled {
		return 0, fmt.Errorf("facebook not connected for tenant %s: %w", company.ID, review.ErrCredentialsMissing)
	}

	accessToken, err := o.tokens.GetValidAccessToken(ctx, company.ID, review.ProviderFacebook)
	if err != nil {
		return 0, err
	}

	creds := review.Credentials{
		AccessToken: accessToken,
		PageID:      company.FBPageID,
	}
	raws, err := o.fb.ListRawRatings(ctx, creds)
	if err != nil {
		return 0, err
	}

	newCount := 0
	for _, raw := range raws {
		norm, ok := facebook.Normalize(raw)
		if !ok || norm.ExternalID == "" {
			// No determinable rating or identity; not ingested.
			continue
		}
		if err := o.upsertFacebookRow(company.ID, raw, norm); err != nil {
			o.logger.Warn("facebook canonical upsert failed",
				zap.String("company", company.ID),
				zap.String("review", norm.ExternalID),
				zap.Error(err))
		}
		if o.ingest(ctx, company, norm) {
			newCount++
		}
	}
	return newCount, nil
}

func (o *Orchestrator) upsertFacebookRow(companyID string, raw facebook.RawRating, norm review.Review) error {
	row := &models.FacebookReview{
		ReviewID:           norm.ExternalID,
		CompanyID:          companyID,
		ReviewerName:       raw.Reviewer.Name,
		ReviewerID:         raw.Reviewer.ID,
		Rating:             norm.Rating,
		ReviewText:         raw.ReviewText,
		RecommendationType: raw.RecommendationType,
	}
	if !norm.CreatedAt.IsZero() {
		t := norm.CreatedAt
		row.CreatedTime = &t
	}
	return db.UpsertFacebookReview(o.db, row)
}

// ingest creates or repairs the notification for one normalized review and
// reports whether the review was new. Failures are logged, never
// propagated: a single broken item must not abort the batch.
func (o *Orchestrator) ingest(ctx context.Context, company *models.Company, r review.Review) bool {
	if r.ExternalID == "" {
		return false
	}

	existing, err := db.FindNotification(o.db, company.ID, r.ExternalID)
	if err != nil && !errors.Is(err, db.ErrNotificationNotFound) {
		o.logger.Warn("notification lookup failed",
			zap.String("company", company.ID),
			zap.String("review", r.ExternalID),
			zap.Error(err))
		return false
	}

	if existing != nil {
		if err := db.RepairNotification(o.db, company.ID, r.ExternalID, db.RepairFields{
			Author: r.Author,
			Rating: r.Rating,
			Text:   r.Text,
			Date:   r.CreatedAt,
		}); err != nil {
			o.logger.Warn("notification repair failed",
				zap.String("company", company.ID),
				zap.String("review", r.ExternalID),
				zap.Error(err))
		}
		return false
	}

	suggested := o.draft(ctx, company, r)

	created, err := db.InsertNotificationIfAbsent(o.db, &models.ReviewNotification{
		ReviewID:          r.ExternalID,
		CompanyID:         company.ID,
		Provider:          r.Provider,
		ReviewAuthor:      r.Author,
		ReviewRating:      r.Rating,
		ReviewText:        r.Text,
		ReviewDate:        r.CreatedAt,
		SuggestedResponse: suggested,
		Status:            models.StatusPending,
		IsRead:            false,
	})
	if err != nil {
		o.logger.Warn("notification insert failed",
			zap.String("company", company.ID),
			zap.String("review", r.ExternalID),
			zap.Error(err))
		return false
	}
	return created
}

// draft asks the AI generator for a suggestion. Best effort: any failure
// degrades to an empty draft.
func (o *Orchestrator) draft(ctx context.Context, company *models.Company, r review.Review) string {
	if !company.AIEnabled || o.drafter == nil {
		return ""
	}

	settings := o.resolveAISettings(company)
	if settings.Provider == "" {
		return ""
	}

	suggestion, err := o.drafter.Draft(ctx, settings, r)
	if err != nil {
		metrics.DraftFailures.Inc()
		o.logger.Warn("draft generation failed",
			zap.String("company", company.ID),
			zap.String("review", r.ExternalID),
			zap.Error(err))
		return ""
	}
	return suggestion
}

// resolveAISettings merges tenant overrides over global defaults, once per
// call.
func (o *Orchestrator) resolveAISettings(company *models.Company) ai.Settings {
	provider := company.AIProvider
	if provider == "" {
		provider = o.aiDefaultProvider
	}
	model := company.AIModel
	if model == "" {
		model = o.aiDefaultModel
	}
	return ai.Settings{
		Provider:    provider,
		Model:       model,
		Language:    company.Language,
		CompanyName: company.Name,
	}
}
