package db

import (
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"gorm.io/gorm"
)

// ProviderStats is the average rating and review count derived from a
// canonical provider table. Read-only; display concern.
type ProviderStats struct {
	Rating float64 `json:"rating"`
	Count  int64   `json:"count"`
}

// gmbStarValues mirrors the upstream word enum.
var gmbStarValues = map[string]float64{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

// GMBStats averages the locally synced Google reviews. The star column
// stores the upstream word enum, so the average is computed over a grouped
// count per word.
func GMBStats(db *gorm.DB, companyID string) (ProviderStats, error) {
	var rows []struct {
		StarRating string
		N          int64
	}
	err := db.Model(&models.GMBReview{}).
		Select("star_rating, count(*) as n").
		Where("company_id = ?", companyID).
		Group("star_rating").
		Scan(&rows).Error
	if err != nil {
		return ProviderStats{}, err
	}

	var totalScore float64
	var totalCount int64
	for _, row := range rows {
		value, ok := gmbStarValues[row.StarRating]
		if !ok {
			continue
		}
		totalScore += value * float64(row.N)
		totalCount += row.N
	}
	if totalCount == 0 {
		return ProviderStats{}, nil
	}
	return ProviderStats{Rating: totalScore / float64(totalCount), Count: totalCount}, nil
}

// FacebookStats averages the locally synced Facebook ratings.
func FacebookStats(db *gorm.DB, companyID string) (ProviderStats, error) {
	var row struct {
		Avg float64
		N   int64
	}
	err := db.Model(&models.FacebookReview{}).
		Select("coalesce(avg(rating), 0) as avg, count(rating) as n").
		Where("company_id = ? AND rating > 0", companyID).
		Scan(&row).Error
	if err != nil {
		return ProviderStats{}, err
	}
	return ProviderStats{Rating: row.Avg, Count: row.N}, nil
}
