package models

// SyncLog records one sync run for diagnostics.
type SyncLog struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Timestamp  int64  `gorm:"index" json:"timestamp"`
	CompanyID  string `gorm:"index" json:"company_id"`
	Provider   string `gorm:"index" json:"provider"`
	NewReviews int    `json:"new_reviews"`
	Duration   int64  `json:"duration"` // milliseconds
	Error      string `json:"error,omitempty"`
}

// SyncStats holds aggregated statistics over sync logs.
type SyncStats struct {
	TotalRuns    int64 `json:"total_runs"`
	SuccessCount int64 `json:"success_count"`
	ErrorCount   int64 `json:"error_count"`
}
