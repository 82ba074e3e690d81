package db

import (
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordSyncRun appends one sync log row. Logging failures are swallowed by
// the caller; diagnostics must never fail a sync.
func RecordSyncRun(db *gorm.DB, companyID, provider string, newReviews int, duration time.Duration, runErr error) error {
	entry := models.SyncLog{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UnixMilli(),
		CompanyID:  companyID,
		Provider:   provider,
		NewReviews: newReviews,
		Duration:   duration.Milliseconds(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	return db.Create(&entry).Error
}

// RecentSyncRuns returns the latest runs for a tenant, newest first.
func RecentSyncRuns(db *gorm.DB, companyID string, limit int) ([]models.SyncLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.SyncLog
	err := db.Where("company_id = ?", companyID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SyncRunStats aggregates success/error counts over a tenant's sync logs.
func SyncRunStats(db *gorm.DB, companyID string) (models.SyncStats, error) {
	var stats models.SyncStats
	if err := db.Model(&models.SyncLog{}).Where("company_id = ?", companyID).Count(&stats.TotalRuns).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.SyncLog{}).Where("company_id = ? AND error = ''", companyID).Count(&stats.SuccessCount).Error; err != nil {
		return stats, err
	}
	stats.ErrorCount = stats.TotalRuns - stats.SuccessCount
	return stats, nil
}
