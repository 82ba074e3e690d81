package models

import "time"

// GMBReview is the canonical local copy of one Google Business Profile
// review. ReviewID is the last path segment of the upstream resource name.
type GMBReview struct {
	ID         uint   `gorm:"primaryKey"`
	ReviewID   string `gorm:"uniqueIndex:idx_gmb_review_company;not null"`
	CompanyID  string `gorm:"uniqueIndex:idx_gmb_review_company;not null"`
	Reviewer   string
	StarRating string // upstream word enum: ONE..FIVE
	Comment    string

	CreateTime *time.Time
	UpdateTime *time.Time

	ReviewReply     string
	ReplyUpdateTime *time.Time

	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FacebookReview is the canonical local copy of one Facebook page rating.
// ReviewID is the open graph story id when present; otherwise the weak
// fallback "{created_time}_{reviewer_id}", which can collide for two reviews
// from the same reviewer in the same second.
type FacebookReview struct {
	ID           uint   `gorm:"primaryKey"`
	ReviewID     string `gorm:"uniqueIndex:idx_fb_review_company;not null"`
	CompanyID    string `gorm:"uniqueIndex:idx_fb_review_company;not null"`
	ReviewerName string
	ReviewerID   string
	Rating       float64
	ReviewText   string

	RecommendationType string // positive, negative
	CreatedTime        *time.Time

	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
