package db

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCompanyNotFound = errors.New("company not found")

// GetCompany fetches one tenant by id.
func GetCompany(db *gorm.DB, id string) (*models.Company, error) {
	var c models.Company
	err := db.First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCompany inserts a new tenant. An id is assigned when absent.
func CreateCompany(db *gorm.DB, c *models.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Language == "" {
		c.Language = "nl"
	}
	return db.Create(c).Error
}

// GoogleConnection is everything the OAuth callback persists in one write.
type GoogleConnection struct {
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	AccountID    string
	LocationID   string
}

// SaveGoogleConnection stores the complete Google credential sub-record and
// enables the integration atomically.
func SaveGoogleConnection(db *gorm.DB, companyID string, conn GoogleConnection) error {
	return db.Model(&models.Company{}).Where("id = ?", companyID).Updates(map[string]any{
		"gmb_enabled":       true,
		"gmb_access_token":  conn.AccessToken,
		"gmb_refresh_token": conn.RefreshToken,
		"gmb_token_expiry":  conn.TokenExpiry,
		"gmb_account_id":    conn.AccountID,
		"gmb_location_id":   conn.LocationID,
	}).Error
}

// DisconnectGoogle nulls the whole Google credential sub-record in a single
// update so no half-cleared state is observable.
func DisconnectGoogle(db *gorm.DB, companyID string) error {
	return db.Model(&models.Company{}).Where("id = ?", companyID).Updates(map[string]any{
		"gmb_enabled":       false,
		"gmb_access_token":  "",
		"gmb_refresh_token": "",
		"gmb_token_expiry":  nil,
		"gmb_account_id":    "",
		"gmb_location_id":   "",
	}).Error
}

// FacebookConnection is everything the OAuth callback persists in one write.
type FacebookConnection struct {
	UserAccessToken string
	PageAccessToken string
	PageID          string
	TokenExpiry     time.Time
}

// SaveFacebookConnection stores the complete Facebook credential sub-record
// and enables the integration atomically.
func SaveFacebookConnection(db *gorm.DB, companyID string, conn FacebookConnection) error {
	return db.Model(&models.Company{}).Where("id = ?", companyID).Updates(map[string]any{
		"fb_enabled":           true,
		"fb_access_token":      conn.UserAccessToken,
		"fb_page_access_token": conn.PageAccessToken,
		"fb_page_id":           conn.PageID,
		"fb_token_expiry":      conn.TokenExpiry,
	}).Error
}

// DisconnectFacebook nulls the Facebook credential sub-record in a single
// update.
func DisconnectFacebook(db *gorm.DB, companyID string) error {
	return db.Model(&models.Company{}).Where("id = ?", companyID).Updates(map[string]any{
		"fb_enabled":           false,
		"fb_access_token":      "",
		"fb_page_access_token": "",
		"fb_page_id":           "",
		"fb_token_expiry":      nil,
	}).Error
}

// StrongPoints reads the cached strong-points phrases for one output
// language. Returns nil when the language has no cached analysis.
func StrongPoints(c *models.Company, language string) []string {
	if c.StrongPoints == "" {
		return nil
	}
	var byLanguage map[string][]string
	if err := json.Unmarshal([]byte(c.StrongPoints), &byLanguage); err != nil {
		return nil
	}
	return byLanguage[language]
}

// SaveStrongPoints caches the analysis result for one language, preserving
// other languages' entries.
func SaveStrongPoints(db *gorm.DB, companyID, language string, points []string) error {
	company, err := GetCompany(db, companyID)
	if err != nil {
		return err
	}
	byLanguage := map[string][]string{}
	if company.StrongPoints != "" {
		// Corrupt cache is replaced, not propagated.
		_ = json.Unmarshal([]byte(company.StrongPoints), &byLanguage)
	}
	byLanguage[language] = points

	blob, err := json.Marshal(byLanguage)
	if err != nil {
		return err
	}
	return db.Model(&models.Company{}).Where("id = ?", companyID).
		Update("strong_points", string(blob)).Error
}
