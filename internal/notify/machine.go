// Package notify drives the notification workflow: triage transitions and
// reply publication.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrIllegalTransition is returned when a requested status change is not
// allowed from the notification's current status.
var ErrIllegalTransition = errors.New("illegal notification status transition")

// TokenSource yields valid access tokens for OAuth providers.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, companyID, provider string) (string, error)
}

// Replier posts a reply to one review at its provider.
type Replier interface {
	PostReply(ctx context.Context, creds review.Credentials, externalID, text string) error
}

// Machine owns notification status changes. Transitions:
//
//	pending  -> approved (reply published upstream first)
//	pending  -> dismissed
//	any      -> archived
//
// Anything else is rejected with ErrIllegalTransition.
type Machine struct {
	db       *gorm.DB
	tokens   TokenSource
	repliers map[string]Replier
	logger   *zap.Logger
}

func NewMachine(database *gorm.DB, tokens TokenSource, repliers map[string]Replier, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{db: database, tokens: tokens, repliers: repliers, logger: logger}
}

// allowed reports whether from may move to to.
func allowed(from, to string) bool {
	if to == models.StatusArchived {
		return true
	}
	if from != models.StatusPending {
		return false
	}
	return to == models.StatusApproved || to == models.StatusDismissed
}

// Approve publishes replyText to the provider and, only on success, marks
// the notification approved and records the text as its response. The
// upstream post happening first means a failed publication leaves the
// notification pending and retryable.
func (m *Machine) Approve(ctx context.Context, companyID, notificationID, replyText string) (*models.ReviewNotification, error) {
	n, err := db.GetNotificationByID(m.db, companyID, notificationID)
	if err != nil {
		return nil, err
	}
	if !allowed(n.Status, models.StatusApproved) {
		return nil, fmt.Errorf("%w: %s -> approved", ErrIllegalTransition, n.Status)
	}
	if replyText == "" {
		replyText = n.SuggestedResponse
	}
	if replyText == "" {
		return nil, errors.New("no reply text provided and no suggested response available")
	}

	if err := m.publish(ctx, companyID, n, replyText); err != nil {
		return nil, err
	}

	if n.Provider == review.ProviderGoogle {
		// Mirror the reply into the canonical row so stats and later syncs
		// see it without waiting for the next fetch.
		if err := db.SetGMBReviewReply(m.db, companyID, n.ReviewID, replyText); err != nil {
			m.logger.Warn("recording gmb reply locally failed",
				zap.String("review", n.ReviewID), zap.Error(err))
		}
	}

	err = m.db.Model(n).Updates(map[string]any{
		"status":             models.StatusApproved,
		"suggested_response": replyText,
		"is_read":            true,
	}).Error
	if err != nil {
		// The reply is live upstream but the local row is stale. Keep the
		// notification pending so the operator sees the discrepancy.
		m.logger.Error("reply published but status update failed",
			zap.String("notification", n.ID),
			zap.Error(err))
		return nil, err
	}

	m.logger.Info("reply approved and published",
		zap.String("company", companyID),
		zap.String("provider", n.Provider),
		zap.String("review", n.ReviewID))
	return n, nil
}

// Dismiss marks a pending notification dismissed. Nothing is sent upstream.
func (m *Machine) Dismiss(ctx context.Context, companyID, notificationID string) (*models.ReviewNotification, error) {
	return m.transition(companyID, notificationID, models.StatusDismissed)
}

// Archive moves a notification to the terminal archived status.
func (m *Machine) Archive(ctx context.Context, companyID, notificationID string) (*models.ReviewNotification, error) {
	return m.transition(companyID, notificationID, models.StatusArchived)
}

func (m *Machine) transition(companyID, notificationID, to string) (*models.ReviewNotification, error) {
	n, err := db.GetNotificationByID(m.db, companyID, notificationID)
	if err != nil {
		return nil, err
	}
	if !allowed(n.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, n.Status, to)
	}
	updates := map[string]any{"status": to}
	if to != models.StatusArchived {
		updates["is_read"] = true
	}
	if err := m.db.Model(n).Updates(updates).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// MarkAllRead flips the read flag on every notification of the tenant.
func (m *Machine) MarkAllRead(companyID string) error {
	return db.MarkAllRead(m.db, companyID)
}

// ArchiveProcessed archives every approved or dismissed notification of the
// tenant in one sweep.
func (m *Machine) ArchiveProcessed(companyID string) error {
	return db.ArchiveProcessed(m.db, companyID)
}

// publish posts the reply text at the notification's provider using the
// tenant's stored credentials.
func (m *Machine) publish(ctx context.Context, companyID string, n *models.ReviewNotification, text string) error {
	replier, ok := m.repliers[n.Provider]
	if !ok {
		return fmt.Errorf("no reply client for provider %q", n.Provider)
	}

	company, err := db.GetCompany(m.db, companyID)
	if err != nil {
		return err
	}

	creds, err := m.credentials(ctx, company, n.Provider)
	if err != nil {
		return err
	}
	return replier.PostReply(ctx, creds, n.ReviewID, text)
}

func (m *Machine) credentials(ctx context.Context, company *models.Company, provider string) (review.Credentials, error) {
	switch provider {
	case review.ProviderKiyoh:
		if company.BaseURL == "" || company.APIToken == "" || company.LocationID == "" {
			return review.Credentials{}, review.ErrCredentialsMissing
		}
		return review.Credentials{
			BaseURL:    company.BaseURL,
			APIToken:   company.APIToken,
			LocationID: company.LocationID,
			TenantID:   company.KiyohTenantID,
		}, nil
	case review.ProviderGoogle:
		if !company.GMBEnabled {
			return review.Credentials{}, review.ErrCredentialsMissing
		}
		token, err := m.tokens.GetValidAccessToken(ctx, company.ID, provider)
		if err != nil {
			return review.Credentials{}, err
		}
		return review.Credentials{
			AccessToken: token,
			AccountID:   company.GMBAccountID,
			LocationID:  company.GMBLocationID,
		}, nil
	case review.ProviderFacebook:
		if !company.FBEnabled {
			return review.Credentials{}, review.ErrCredentialsMissing
		}
		token, err := m.tokens.GetValidAccessToken(ctx, company.ID, provider)
		if err != nil {
			return review.Credentials{}, err
		}
		return review.Credentials{
			AccessToken: token,
			PageID:      company.FBPageID,
		}, nil
	}
	return review.Credentials{}, fmt.Errorf("unknown provider %q", provider)
}
