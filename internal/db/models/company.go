package models

import "time"

// Company is a tenant: one customer organization whose reviews are tracked.
// Provider credentials live as sub-records on this row; at most one active
// credential set exists per provider. OAuth fields are set by the callback
// handlers and cleared together on disconnect.
type Company struct {
	ID   string `gorm:"primaryKey"` // UUID
	Name string `gorm:"not null"`

	// Kiyoh publication API (static token, no refresh).
	BaseURL       string
	APIToken      string
	LocationID    string
	KiyohTenantID string

	// Google Business Profile OAuth sub-record.
	GMBEnabled      bool `gorm:"default:false"`
	GMBAccessToken  string
	GMBRefreshToken string
	GMBTokenExpiry  *time.Time
	GMBAccountID    string // accounts/{id}
	GMBLocationID   string // locations/{id}

	// Facebook page sub-record. Page tokens have no refresh grant; a new
	// token requires reconnecting.
	FBEnabled         bool   `gorm:"default:false"`
	FBAccessToken     string // long-lived user token
	FBPageAccessToken string
	FBPageID          string
	FBTokenExpiry     *time.Time

	// AI features.
	AIEnabled    bool   `gorm:"default:false"`
	AIProvider   string // overrides the global default when set
	AIModel      string
	Language     string `gorm:"default:'nl'"`
	StrongPoints string // JSON map of language -> up to 3 phrases

	CreatedAt time.Time
	UpdatedAt time.Time
}
