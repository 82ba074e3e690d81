package models

import "time"

// Notification statuses. A notification starts pending, moves to approved or
// dismissed by user action, and ends up archived. Archived is terminal.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDismissed = "dismissed"
	StatusArchived  = "archived"
)

// ReviewNotification is the per-review action item driving the response
// workflow. Created at most once per (ReviewID, CompanyID); later syncs may
// repair display fields but never touch Status, IsRead or an existing
// SuggestedResponse. Rows are archived, never deleted.
type ReviewNotification struct {
	ID        string `gorm:"primaryKey"` // UUID
	ReviewID  string `gorm:"uniqueIndex:idx_review_company;not null"`
	CompanyID string `gorm:"uniqueIndex:idx_review_company;not null"`
	Provider  string `gorm:"default:'kiyoh'"`

	ReviewAuthor string
	ReviewRating float64
	ReviewText   string
	ReviewDate   time.Time

	SuggestedResponse string
	Status            string `gorm:"default:'pending';index"`
	IsRead            bool   `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
