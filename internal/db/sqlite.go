package db

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(
		&models.Company{},
		&models.ReviewNotification{},
		&models.GMBReview{},
		&models.FacebookReview{},
		&models.ReviewInvite{},
		&models.SyncLog{},
		&models.Config{},
	); err != nil {
		return nil, err
	}

	// Ensure API key exists (generate on first run)
	ensureAPIKey(db)

	return db, nil
}

func newAPIKey() string {
	keyBytes := make([]byte, 16)
	rand.Read(keyBytes)
	return "sk-" + hex.EncodeToString(keyBytes)
}

// keyPrefix is what ends up in the log. The full key only lives in the
// database and in API responses.
func keyPrefix(apiKey string) string {
	if len(apiKey) > 10 {
		return apiKey[:10] + "..."
	}
	return apiKey
}

// ensureAPIKey generates API key if not exists
func ensureAPIKey(db *gorm.DB) {
	var config models.Config
	result := db.Where("key = ?", "api_key").First(&config)

	if result.Error != nil {
		apiKey := newAPIKey()
		db.Create(&models.Config{
			Key:   "api_key",
			Value: apiKey,
		})
		zap.L().Info("generated new API key", zap.String("prefix", keyPrefix(apiKey)))
	}
}

// GetAPIKey retrieves the API key from database
func GetAPIKey(db *gorm.DB) string {
	var config models.Config
	db.Where("key = ?", "api_key").First(&config)
	return config.Value
}

// RegenerateAPIKey creates a new API key
func RegenerateAPIKey(db *gorm.DB) string {
	apiKey := newAPIKey()
	db.Model(&models.Config{}).Where("key = ?", "api_key").Update("value", apiKey)
	zap.L().Info("regenerated API key", zap.String("prefix", keyPrefix(apiKey)))
	return apiKey
}
