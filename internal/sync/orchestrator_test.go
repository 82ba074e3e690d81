package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/ai"
	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/facebook"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/googlebiz"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/kiyoh"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = database.AutoMigrate(
		&models.Company{},
		&models.ReviewNotification{},
		&models.GMBReview{},
		&models.FacebookReview{},
		&models.SyncLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

type stubTokens struct {
	token         string
	err           error
	forcedToken   string
	forceRefreshs int
}

func (s *stubTokens) GetValidAccessToken(context.Context, string, string) (string, error) {
	return s.token, s.err
}

func (s *stubTokens) ForceRefresh(context.Context, string, string) (string, error) {
	s.forceRefreshs++
	if s.forcedToken == "" {
		return "", review.ErrCredentialsMissing
	}
	return s.forcedToken, nil
}

type stubDrafter struct {
	draft string
	err   error
	calls int
}

func (s *stubDrafter) Draft(context.Context, ai.Settings, review.Review) (string, error) {
	s.calls++
	return s.draft, s.err
}

func kiyohServer(t *testing.T, reviews []map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"reviews": reviews})
	}))
	t.Cleanup(server.Close)
	return server
}

func seedKiyohCompany(t *testing.T, database *gorm.DB, baseURL string, aiEnabled bool) *models.Company {
	t.Helper()
	c := &models.Company{
		ID:         "co-1",
		Name:       "Testshop",
		BaseURL:    baseURL,
		APIToken:   "pub-token",
		LocationID: "1054321",
		AIEnabled:  aiEnabled,
		AIProvider: "fake",
		Language:   "nl",
	}
	if err := database.Create(c).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	return c
}

func newKiyohOrchestrator(database *gorm.DB, drafter Drafter) *Orchestrator {
	return NewOrchestrator(
		database, &stubTokens{},
		kiyoh.NewClient(5*time.Second),
		googlebiz.NewClient(5*time.Second),
		facebook.NewClient(5*time.Second),
		drafter, nil,
		WithAIDefaults("fake", "fake-model"),
	)
}

func TestSyncTenant_KiyohCreatesNotificationsWithDrafts(t *testing.T) {
	database := newTestDB(t)
	server := kiyohServer(t, []map[string]any{
		{"reviewId": "r-1", "reviewAuthor": "Jan", "rating": 9.0, "dateSince": "2024-03-01",
			"reviewContent": []map[string]any{{"questionGroup": "DEFAULT_OPINION", "rating": "Prima service"}}},
		{"reviewId": "r-2", "reviewAuthor": "Piet", "rating": 4.0, "dateSince": "2024-03-02",
			"reviewContent": []map[string]any{{"questionGroup": "DEFAULT_OPINION", "rating": "Niet tevreden"}}},
	})
	seedKiyohCompany(t, database, server.URL, true)

	drafter := &stubDrafter{draft: "Bedankt voor uw review!"}
	o := newKiyohOrchestrator(database, drafter)

	count, err := o.SyncTenant(context.Background(), "co-1", review.ProviderKiyoh)
	if err != nil {
		t.Fatalf("SyncTenant: %v", err)
	}
	if count != 2 {
		t.Fatalf("new reviews = %d, want 2", count)
	}
	if drafter.calls != 2 {
		t.Errorf("drafter called %d times, want 2", drafter.calls)
	}

	n, err := db.FindNotification(database, "co-1", "r-1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Status != models.StatusPending || n.SuggestedResponse != "Bedankt voor uw review!" {
		t.Errorf("notification = %+v", n)
	}
	if n.Provider != review.ProviderKiyoh || n.ReviewAuthor != "Jan" {
		t.Errorf("notification = %+v", n)
	}

	// A sync log row exists for the run.
	runs, err := db.RecentSyncRuns(database, "co-1", 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("sync runs = %v err = %v", runs, err)
	}
	if runs[0].NewReviews != 2 || runs[0].Error != "" {
		t.Errorf("sync run = %+v", runs[0])
	}
}

func TestSyncTenant_RerunIsIdempotentAndRepairs(t *testing.T) {
	database := newTestDB(t)
	server := kiyohServer(t, []map[string]any{
		{"reviewId": "r-1", "reviewAuthor": "Jan", "rating": 9.0, "dateSince": "2024-03-01",
			"reviewContent": []map[string]any{{"questionGroup": "DEFAULT_OPINION", "rating": "Prima service"}}},
	})
	seedKiyohCompany(t, database, server.URL, true)

	drafter := &stubDrafter{draft: "Bedankt!"}
	o := newKiyohOrchestrator(database, drafter)

	if _, err := o.SyncTenant(context.Background(), "co-1", review.ProviderKiyoh); err != nil {
		t.Fatal(err)
	}

	// User approves, and the author name gets corrected upstream.
	if err := database.Model(&models.ReviewNotification{}).
		Where("review_id = ? AND company_id = ?", "r-1", "co-1").
		Updates(map[string]any{"status": models.StatusApproved, "is_read": true}).Error; err != nil {
		t.Fatal(err)
	}

	count, err := o.SyncTenant(context.Background(), "co-1", review.ProviderKiyoh)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("rerun reported %d new reviews, want 0", count)
	}
	if drafter.calls != 1 {
		t.Errorf("drafter called %d times, want only on first discovery", drafter.calls)
	}

	n, _ := db.FindNotification(database, "co-1", "r-1")
	if n.Status != models.StatusApproved || !n.IsRead {
		t.Errorf("rerun regressed triage state: %+v", n)
	}
}

func TestSyncTenant_DraftFailureDegradesToEmpty(t *testing.T) {
	database := newTestDB(t)
	server := kiyohServer(t, []map[string]any{
		{"reviewId": "r-1", "reviewAuthor": "Jan", "rating": 9.0, "dateSince": "2024-03-01",
			"reviewContent": []map[string]any{{"questionGroup": "DEFAULT_OPINION", "rating": "Prima service"}}},
	})
	seedKiyohCompany(t, database, server.URL, true)

	o := newKiyohOrchestrator(database, &stubDrafter{err: errors.New("model down")})

	count, err := o.SyncTenant(context.Background(), "co-1", review.ProviderKiyoh)
	if err != nil {
		t.Fatalf("sync must not fail on draft errors: %v", err)
	}
	if count != 1 {
		t.Fatalf("new reviews = %d, want 1", count)
	}

	n, _ := db.FindNotification(database, "co-1", "r-1")
	if n.SuggestedResponse != "" {
		t.Errorf("suggestion = %q, want empty after draft failure", n.SuggestedResponse)
	}
}

func TestSyncTenant_AIDisabledSkipsDrafter(t *testing.T) {
	database := newTestDB(t)
	server := kiyohServer(t, []map[string]any{
		{"reviewId": "r-1", "reviewAuthor": "Jan", "rating": 9.0, "dateSince": "2024-03-01",
			"reviewContent": []map[string]any{{"questionGroup": "DEFAULT_OPINION", "rating": "Prima service"}}},
	})
	seedKiyohCompany(t, database, server.URL, false)

	drafter := &stubDrafter{draft: "should not be used"}
	o := newKiyohOrchestrator(database, drafter)

	if _, err := o.SyncTenant(context.Background(), "co-1", review.ProviderKiyoh); err != nil {
		t.Fatal(err)
	}
	if drafter.calls != 0 {
		t.Errorf("drafter called %d times with AI disabled", drafter.calls)
	}
}

func TestSyncTenant_UnknownProvider(t *testing.T) {
	o := newKiyohOrchestrator(newTestDB(t), &stubDrafter{})
	if _, err := o.SyncTenant(context.Background(), "co-1", "yelp"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestSyncTenant_MissingKiyohCredentials(t *testing.T) {
	database := newTestDB(t)
	if err := database.Create(&models.Company{ID: "co-1", Name: "Empty"}).Error; err != nil {
		t.Fatal(err)
	}

	o := newKiyohOrchestrator(database, &stubDrafter{})
	_, err := o.SyncTenant(context.Background(), "co-1", review.ProviderKiyoh)
	if !errors.Is(err, review.ErrCredentialsMissing) {
		t.Fatalf("err = %v, want ErrCredentialsMissing", err)
	}

	// The failed run still lands in the sync log.
	runs, _ := db.RecentSyncRuns(database, "co-1", 10)
	if len(runs) != 1 || runs[0].Error == "" {
		t.Errorf("sync runs = %+v", runs)
	}
}

func TestSyncTenant_MutualExclusionPerPair(t *testing.T) {
	o := newKiyohOrchestrator(newTestDB(t), &stubDrafter{})

	if !o.tryAcquire("co-1/kiyoh") {
		t.Fatal("first acquire failed")
	}
	if o.tryAcquire("co-1/kiyoh") {
		t.Error("second acquire for same pair succeeded")
	}
	if !o.tryAcquire("co-1/google") {
		t.Error("different provider of same tenant blocked")
	}
	if !o.tryAcquire("co-2/kiyoh") {
		t.Error("different tenant blocked")
	}

	o.release("co-1/kiyoh")
	if !o.tryAcquire("co-1/kiyoh") {
		t.Error("acquire after release failed")
	}
}

func TestSyncTenant_GoogleUpsertsCanonicalRows(t *testing.T) {
	database := newTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"reviews": []map[string]any{
				{
					"name":       "accounts/1/locations/2/reviews/rev-1",
					"reviewer":   map[string]string{"displayName": "Anna"},
					"starRating": "FOUR",
					"comment":    "Nice place",
					"createTime": "2024-01-15T09:00:00Z",
					"reviewReply": map[string]string{
						"comment":    "Thanks!",
						"updateTime": "2024-01-16T10:00:00Z",
					},
				},
			},
		})
	}))
	defer server.Close()

	c := &models.Company{
		ID: "co-1", Name: "Testshop",
		GMBEnabled: true, GMBAccountID: "1", GMBLocationID: "2",
	}
	if err := database.Create(c).Error; err != nil {
		t.Fatal(err)
	}

	googleClient := googlebiz.NewClient(5 * time.Second)
	googleClient.SetBaseURLs(server.URL, "", "")

	o := NewOrchestrator(
		database, &stubTokens{token: "tok"},
		kiyoh.NewClient(5*time.Second), googleClient, facebook.NewClient(5*time.Second),
		&stubDrafter{}, nil,
	)

	count, err := o.SyncTenant(context.Background(), "co-1", review.ProviderGoogle)
	if err != nil {
		t.Fatalf("SyncTenant: %v", err)
	}
	if count != 1 {
		t.Fatalf("new reviews = %d, want 1", count)
	}

	var row models.GMBReview
	if err := database.Where("review_id = ? AND company_id = ?", "rev-1", "co-1").First(&row).Error; err != nil {
		t.Fatalf("canonical row missing: %v", err)
	}
	if row.StarRating != "FOUR" || row.ReviewReply != "Thanks!" {
		t.Errorf("canonical row = %+v", row)
	}
	if _, err := db.FindNotification(database, "co-1", "rev-1"); err != nil {
		t.Errorf("notification missing: %v", err)
	}
}

func TestSyncTenant_GoogleRetriesOnceAfterAuthExpired(t *testing.T) {
	database := newTestDB(t)

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"reviews": []any{}})
	}))
	defer server.Close()

	c := &models.Company{
		ID: "co-1", Name: "Testshop",
		GMBEnabled: true, GMBAccountID: "1", GMBLocationID: "2",
	}
	if err := database.Create(c).Error; err != nil {
		t.Fatal(err)
	}

	googleClient := googlebiz.NewClient(5 * time.Second)
	googleClient.SetBaseURLs(server.URL, "", "")

	tokens := &stubTokens{token: "stale", forcedToken: "fresh"}
	o := NewOrchestrator(
		database, tokens,
		kiyoh.NewClient(5*time.Second), googleClient, facebook.NewClient(5*time.Second),
		&stubDrafter{}, nil,
	)

	if _, err := o.SyncTenant(context.Background(), "co-1", review.ProviderGoogle); err != nil {
		t.Fatalf("SyncTenant: %v", err)
	}
	if tokens.forceRefreshs != 1 {
		t.Errorf("ForceRefresh called %d times, want 1", tokens.forceRefreshs)
	}
	if attempts != 2 {
		t.Errorf("upstream hit %d times, want 2", attempts)
	}
}

func TestSyncTenant_FacebookSkipsUndeterminableRatings(t *testing.T) {
	database := newTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"recommendation_type": "positive",
					"review_text":         "Top bedrijf",
					"created_time":        "2024-01-01T00:00:00+0000",
					"reviewer":            map[string]string{"name": "Kees", "id": "u1"},
					"open_graph_story":    map[string]string{"id": "story-1"},
				},
				{
					// No rating, no recommendation: skipped.
					"review_text":  "???",
					"created_time": "2024-01-02T00:00:00+0000",
					"reviewer":     map[string]string{"name": "X", "id": "u2"},
				},
			},
		})
	}))
	defer server.Close()

	c := &models.Company{ID: "co-1", Name: "Testshop", FBEnabled: true, FBPageID: "page-1"}
	if err := database.Create(c).Error; err != nil {
		t.Fatal(err)
	}

	fbClient := facebook.NewClient(5 * time.Second)
	fbClient.SetBaseURL(server.URL)

	o := NewOrchestrator(
		database, &stubTokens{token: "page-tok"},
		kiyoh.NewClient(5*time.Second), googlebiz.NewClient(5*time.Second), fbClient,
		&stubDrafter{}, nil,
	)

	count, err := o.SyncTenant(context.Background(), "co-1", review.ProviderFacebook)
	if err != nil {
		t.Fatalf("SyncTenant: %v", err)
	}
	if count != 1 {
		t.Fatalf("new reviews = %d, want 1 (undeterminable skipped)", count)
	}

	var row models.FacebookReview
	if err := database.Where("review_id = ?", "story-1").First(&row).Error; err != nil {
		t.Fatalf("canonical row missing: %v", err)
	}
	if row.Rating != 5 || row.RecommendationType != "positive" {
		t.Errorf("canonical row = %+v", row)
	}
}
