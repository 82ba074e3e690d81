package db

import (
	"errors"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotificationNotFound is returned by lookups scoped to a tenant.
var ErrNotificationNotFound = errors.New("notification not found")

// FindNotification looks up the notification for one review of one tenant.
func FindNotification(db *gorm.DB, companyID, reviewID string) (*models.ReviewNotification, error) {
	var n models.ReviewNotification
	err := db.Where("review_id = ? AND company_id = ?", reviewID, companyID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetNotificationByID looks up a notification by primary key, scoped to the
// tenant so one tenant cannot act on another's rows.
func GetNotificationByID(db *gorm.DB, companyID, id string) (*models.ReviewNotification, error) {
	var n models.ReviewNotification
	err := db.Where("id = ? AND company_id = ?", id, companyID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// InsertNotificationIfAbsent creates the notification for a newly discovered
// review. Returns false without error when a row for (reviewID, companyID)
// already exists, so repeated syncs cannot double-notify.
func InsertNotificationIfAbsent(db *gorm.DB, n *models.ReviewNotification) (bool, error) {
	if _, err := FindNotification(db, n.CompanyID, n.ReviewID); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotificationNotFound) {
		return false, err
	}

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = models.StatusPending
	}
	if err := db.Create(n).Error; err != nil {
		return false, err
	}
	return true, nil
}

// RepairFields are the display fields a later sync may correct on an
// existing notification. Status, IsRead and SuggestedResponse are
// deliberately not representable here: repair must never regress a user's
// triage decision.
type RepairFields struct {
	Author string
	Rating float64
	Text   string
	Date   time.Time
}

// RepairNotification refreshes the mutable display fields of an existing
// row. Upstream data can arrive incomplete on first sync and complete
// later.
func RepairNotification(db *gorm.DB, companyID, reviewID string, fields RepairFields) error {
	return db.Model(&models.ReviewNotification{}).
		Where("review_id = ? AND company_id = ?", reviewID, companyID).
		Updates(map[string]any{
			"review_author": fields.Author,
			"review_rating": fields.Rating,
			"review_text":   fields.Text,
			"review_date":   fields.Date,
		}).Error
}

// ListNotifications returns the newest non-archived notifications for a
// tenant, capped at 50.
func ListNotifications(db *gorm.DB, companyID string) ([]models.ReviewNotification, error) {
	var out []models.ReviewNotification
	err := db.Where("company_id = ? AND status <> ?", companyID, models.StatusArchived).
		Order("created_at DESC").
		Limit(50).
		Find(&out).Error
	return out, err
}

// RecentReviewTexts returns the newest non-empty review texts for a
// tenant, newest first. Feeds the strong-points analysis.
func RecentReviewTexts(db *gorm.DB, companyID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	var texts []string
	err := db.Model(&models.ReviewNotification{}).
		Where("company_id = ? AND review_text <> ''", companyID).
		Order("review_date DESC").
		Limit(limit).
		Pluck("review_text", &texts).Error
	return texts, err
}

// CountUnread counts unread notifications regardless of status.
func CountUnread(db *gorm.DB, companyID string) (int64, error) {
	var n int64
	err := db.Model(&models.ReviewNotification{}).
		Where("company_id = ? AND is_read = ?", companyID, false).
		Count(&n).Error
	return n, err
}

// CountPending counts notifications still awaiting triage.
func CountPending(db *gorm.DB, companyID string) (int64, error) {
	var n int64
	err := db.Model(&models.ReviewNotification{}).
		Where("company_id = ? AND status = ?", companyID, models.StatusPending).
		Count(&n).Error
	return n, err
}

// MarkAllRead flips the read flag on every notification of the tenant.
// Status is untouched.
func MarkAllRead(db *gorm.DB, companyID string) error {
	return db.Model(&models.ReviewNotification{}).
		Where("company_id = ?", companyID).
		Update("is_read", true).Error
}

// ArchiveProcessed moves every non-pending notification to archived.
// Pending rows stay: they still need a decision.
func ArchiveProcessed(db *gorm.DB, companyID string) error {
	return db.Model(&models.ReviewNotification{}).
		Where("company_id = ? AND status <> ?", companyID, models.StatusPending).
		Update("status", models.StatusArchived).Error
}
