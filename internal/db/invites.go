package db

import (
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordInvite persists an invitation after Kiyoh accepted it.
func RecordInvite(db *gorm.DB, invite models.ReviewInvite) (models.ReviewInvite, error) {
	invite.ID = uuid.New().String()
	err := db.Create(&invite).Error
	return invite, err
}

// RecentInvites returns a tenant's latest invitations, newest first.
func RecentInvites(db *gorm.DB, companyID string, limit int) ([]models.ReviewInvite, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []models.ReviewInvite
	err := db.Where("company_id = ?", companyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
