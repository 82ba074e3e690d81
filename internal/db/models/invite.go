package models

import "time"

// ReviewInvite records one invitation email handed off to Kiyoh. Rows are
// an audit trail only; delivery is Kiyoh's job once the API call succeeds.
type ReviewInvite struct {
	ID        string `gorm:"primaryKey"` // UUID
	CompanyID string `gorm:"index;not null"`

	Email     string `gorm:"not null"`
	FirstName string
	LastName  string
	RefCode   string
	Language  string `gorm:"default:'nl'"`
	Delay     int    `gorm:"default:0"`

	CreatedAt time.Time
}
