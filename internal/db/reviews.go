package db

import (
	"errors"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"gorm.io/gorm"
)

// UpsertGMBReview inserts or repairs the canonical Google review row keyed
// by (ReviewID, CompanyID). CreateTime is only written on insert; the other
// display fields track upstream.
func UpsertGMBReview(db *gorm.DB, r *models.GMBReview) error {
	var existing models.GMBReview
	err := db.Where("review_id = ? AND company_id = ?", r.ReviewID, r.CompanyID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.LastSyncedAt = time.Now()
		return db.Create(r).Error
	}
	if err != nil {
		return err
	}

	return db.Model(&existing).Updates(map[string]any{
		"reviewer":          r.Reviewer,
		"star_rating":       r.StarRating,
		"comment":           r.Comment,
		"update_time":       r.UpdateTime,
		"review_reply":      r.ReviewReply,
		"reply_update_time": r.ReplyUpdateTime,
		"last_synced_at":    time.Now(),
	}).Error
}

// SetGMBReviewReply records a posted owner reply on the canonical row.
func SetGMBReviewReply(db *gorm.DB, companyID, reviewID, reply string) error {
	now := time.Now()
	return db.Model(&models.GMBReview{}).
		Where("review_id = ? AND company_id = ?", reviewID, companyID).
		Updates(map[string]any{
			"review_reply":      reply,
			"reply_update_time": &now,
		}).Error
}

// UpsertFacebookReview inserts or repairs the canonical Facebook review row
// keyed by (ReviewID, CompanyID).
func UpsertFacebookReview(db *gorm.DB, r *models.FacebookReview) error {
	var existing models.FacebookReview
	err := db.Where("review_id = ? AND company_id = ?", r.ReviewID, r.CompanyID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.LastSyncedAt = time.Now()
		return db.Create(r).Error
	}
	if err != nil {
		return err
	}

	return db.Model(&existing).Updates(map[string]any{
		"reviewer_name":       r.ReviewerName,
		"reviewer_id":         r.ReviewerID,
		"rating":              r.Rating,
		"review_text":         r.ReviewText,
		"recommendation_type": r.RecommendationType,
		"created_time":        r.CreatedTime,
		"last_synced_at":      time.Now(),
	}).Error
}

// DeleteFacebookReviews removes the cached Facebook rows for a tenant.
// Called on disconnect.
func DeleteFacebookReviews(db *gorm.DB, companyID string) (int64, error) {
	result := db.Where("company_id = ?", companyID).Delete(&models.FacebookReview{})
	return result.RowsAffected, result.Error
}
