package db

import (
	"testing"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
)

func TestUpsertGMBReview_InsertThenRepair(t *testing.T) {
	db := newTestDB(t)

	createTime := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	first := &models.GMBReview{
		ReviewID:   "rev-1",
		CompanyID:  "co-1",
		Reviewer:   "Anna",
		StarRating: "FOUR",
		Comment:    "Nice",
		CreateTime: &createTime,
	}
	if err := UpsertGMBReview(db, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Same review comes back edited upstream.
	updateTime := createTime.Add(48 * time.Hour)
	second := &models.GMBReview{
		ReviewID:   "rev-1",
		CompanyID:  "co-1",
		Reviewer:   "Anna B.",
		StarRating: "FIVE",
		Comment:    "Very nice after all",
		UpdateTime: &updateTime,
	}
	if err := UpsertGMBReview(db, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var got models.GMBReview
	if err := db.Where("review_id = ? AND company_id = ?", "rev-1", "co-1").First(&got).Error; err != nil {
		t.Fatal(err)
	}
	if got.StarRating != "FIVE" || got.Comment != "Very nice after all" {
		t.Errorf("mutable fields not updated: %+v", got)
	}
	if got.CreateTime == nil || !got.CreateTime.Equal(createTime) {
		t.Errorf("CreateTime changed on update: %v", got.CreateTime)
	}
	if got.LastSyncedAt.IsZero() {
		t.Error("LastSyncedAt not set")
	}

	var count int64
	db.Model(&models.GMBReview{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestSetGMBReviewReply(t *testing.T) {
	db := newTestDB(t)

	if err := UpsertGMBReview(db, &models.GMBReview{ReviewID: "rev-1", CompanyID: "co-1", StarRating: "TWO"}); err != nil {
		t.Fatal(err)
	}
	if err := SetGMBReviewReply(db, "co-1", "rev-1", "Sorry to hear that"); err != nil {
		t.Fatal(err)
	}

	var got models.GMBReview
	db.Where("review_id = ?", "rev-1").First(&got)
	if got.ReviewReply != "Sorry to hear that" || got.ReplyUpdateTime == nil {
		t.Errorf("reply not recorded: %+v", got)
	}
}

func TestUpsertFacebookReview_InsertThenRepair(t *testing.T) {
	db := newTestDB(t)

	if err := UpsertFacebookReview(db, &models.FacebookReview{
		ReviewID:           "story-1",
		CompanyID:          "co-1",
		ReviewerName:       "Kees",
		Rating:             5,
		RecommendationType: "positive",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := UpsertFacebookReview(db, &models.FacebookReview{
		ReviewID:   "story-1",
		CompanyID:  "co-1",
		Rating:     5,
		ReviewText: "text arrived on a later sync",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var count int64
	db.Model(&models.FacebookReview{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
	var got models.FacebookReview
	db.Where("review_id = ?", "story-1").First(&got)
	if got.ReviewText != "text arrived on a later sync" {
		t.Errorf("text not repaired: %+v", got)
	}
}

func TestDeleteFacebookReviews(t *testing.T) {
	db := newTestDB(t)

	for _, id := range []string{"s1", "s2"} {
		if err := UpsertFacebookReview(db, &models.FacebookReview{ReviewID: id, CompanyID: "co-1", Rating: 5}); err != nil {
			t.Fatal(err)
		}
	}
	if err := UpsertFacebookReview(db, &models.FacebookReview{ReviewID: "s1", CompanyID: "co-2", Rating: 1}); err != nil {
		t.Fatal(err)
	}

	n, err := DeleteFacebookReviews(db, "co-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}

	var remaining int64
	db.Model(&models.FacebookReview{}).Count(&remaining)
	if remaining != 1 {
		t.Errorf("other tenant's rows affected, remaining = %d", remaining)
	}
}

func TestGMBStats_AveragesWordEnum(t *testing.T) {
	db := newTestDB(t)

	for i, star := range []string{"FIVE", "FIVE", "THREE", "UNKNOWN_WORD"} {
		if err := UpsertGMBReview(db, &models.GMBReview{
			ReviewID:   string(rune('a' + i)),
			CompanyID:  "co-1",
			StarRating: star,
		}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := GMBStats(db, "co-1")
	if err != nil {
		t.Fatal(err)
	}
	// (5+5+3)/3; the unknown word is excluded.
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.Rating < 4.32 || stats.Rating > 4.34 {
		t.Errorf("Rating = %v, want ~4.33", stats.Rating)
	}
}

func TestFacebookStats_IgnoresZeroRatings(t *testing.T) {
	db := newTestDB(t)

	for id, rating := range map[string]float64{"s1": 5, "s2": 1, "s3": 0} {
		if err := UpsertFacebookReview(db, &models.FacebookReview{ReviewID: id, CompanyID: "co-1", Rating: rating}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := FacebookStats(db, "co-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 2 || stats.Rating != 3 {
		t.Errorf("stats = %+v, want count 2 avg 3", stats)
	}
}

func TestSyncRunStats(t *testing.T) {
	db := newTestDB(t)

	if err := RecordSyncRun(db, "co-1", "kiyoh", 3, 120*time.Millisecond, nil); err != nil {
		t.Fatal(err)
	}
	if err := RecordSyncRun(db, "co-1", "google", 0, 80*time.Millisecond, errTest); err != nil {
		t.Fatal(err)
	}

	stats, err := SyncRunStats(db, "co-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRuns != 2 || stats.SuccessCount != 1 || stats.ErrorCount != 1 {
		t.Errorf("stats = %+v", stats)
	}

	runs, err := RecentSyncRuns(db, "co-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
}

type testErr string

func (e testErr) Error() string { return string(e) }

var errTest = testErr("boom")
