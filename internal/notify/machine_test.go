package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
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
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

type stubReplier struct {
	err       error
	calls     int
	lastCreds review.Credentials
	lastID    string
	lastText  string
}

func (s *stubReplier) PostReply(_ context.Context, creds review.Credentials, externalID, text string) error {
	s.calls++
	s.lastCreds = creds
	s.lastID = externalID
	s.lastText = text
	return s.err
}

type stubTokens struct {
	token string
	err   error
}

func (s *stubTokens) GetValidAccessToken(context.Context, string, string) (string, error) {
	return s.token, s.err
}

func seedCompany(t *testing.T, database *gorm.DB) *models.Company {
	t.Helper()
	c := &models.Company{
		ID: "co-1", Name: "Testshop",
		BaseURL: "https://www.kiyoh.com", APIToken: "tok", LocationID: "1054321",
		GMBEnabled: true, GMBAccountID: "1", GMBLocationID: "2",
		FBEnabled: true, FBPageID: "page-1",
	}
	if err := database.Create(c).Error; err != nil {
		t.Fatal(err)
	}
	return c
}

func seedNotification(t *testing.T, database *gorm.DB, provider, status, suggestion string) *models.ReviewNotification {
	t.Helper()
	n := &models.ReviewNotification{
		ID:                uuid.New().String(),
		ReviewID:          "r-" + provider + "-" + status,
		CompanyID:         "co-1",
		Provider:          provider,
		ReviewAuthor:      "Jan",
		ReviewRating:      9,
		ReviewText:        "Prima service",
		ReviewDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		SuggestedResponse: suggestion,
		Status:            status,
	}
	if err := database.Create(n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.StatusPending, models.StatusApproved, true},
		{models.StatusPending, models.StatusDismissed, true},
		{models.StatusPending, models.StatusArchived, true},
		{models.StatusApproved, models.StatusArchived, true},
		{models.StatusDismissed, models.StatusArchived, true},
		{models.StatusArchived, models.StatusArchived, true},
		{models.StatusApproved, models.StatusDismissed, false},
		{models.StatusApproved, models.StatusApproved, false},
		{models.StatusDismissed, models.StatusApproved, false},
		{models.StatusArchived, models.StatusApproved, false},
		{models.StatusArchived, models.StatusDismissed, false},
	}
	for _, tc := range cases {
		if got := allowed(tc.from, tc.to); got != tc.want {
			t.Errorf("allowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestApprove_PublishesThenCommits(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "Bedankt!")

	replier := &stubReplier{}
	m := NewMachine(database, &stubTokens{}, map[string]Replier{review.ProviderKiyoh: replier}, nil)

	if _, err := m.Approve(context.Background(), "co-1", n.ID, "Dank voor uw bezoek"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if replier.calls != 1 || replier.lastText != "Dank voor uw bezoek" || replier.lastID != n.ReviewID {
		t.Errorf("replier = %+v", replier)
	}
	if replier.lastCreds.APIToken != "tok" || replier.lastCreds.LocationID != "1054321" {
		t.Errorf("creds = %+v", replier.lastCreds)
	}

	stored, err := db.GetNotificationByID(database, "co-1", n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusApproved || !stored.IsRead {
		t.Errorf("stored = %+v", stored)
	}
	if stored.SuggestedResponse != "Dank voor uw bezoek" {
		t.Errorf("response not recorded: %q", stored.SuggestedResponse)
	}
}

func TestApprove_EmptyReplyFallsBackToSuggestion(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "Bedankt voor uw review!")

	replier := &stubReplier{}
	m := NewMachine(database, &stubTokens{}, map[string]Replier{review.ProviderKiyoh: replier}, nil)

	if _, err := m.Approve(context.Background(), "co-1", n.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if replier.lastText != "Bedankt voor uw review!" {
		t.Errorf("published %q, want the stored suggestion", replier.lastText)
	}
}

func TestApprove_NoTextAtAll(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "")

	replier := &stubReplier{}
	m := NewMachine(database, &stubTokens{}, map[string]Replier{review.ProviderKiyoh: replier}, nil)

	if _, err := m.Approve(context.Background(), "co-1", n.ID, ""); err == nil {
		t.Fatal("expected error when no reply text is available")
	}
	if replier.calls != 0 {
		t.Error("nothing should be published without text")
	}
}

func TestApprove_PublishFailureKeepsPending(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "Bedankt!")

	replier := &stubReplier{err: errors.New("upstream down")}
	m := NewMachine(database, &stubTokens{}, map[string]Replier{review.ProviderKiyoh: replier}, nil)

	if _, err := m.Approve(context.Background(), "co-1", n.ID, "tekst"); err == nil {
		t.Fatal("expected publish error to propagate")
	}

	stored, _ := db.GetNotificationByID(database, "co-1", n.ID)
	if stored.Status != models.StatusPending || stored.IsRead {
		t.Errorf("failed publish must leave the row pending: %+v", stored)
	}
}

func TestApprove_IllegalFromApproved(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusApproved, "x")

	m := NewMachine(database, &stubTokens{}, map[string]Replier{review.ProviderKiyoh: &stubReplier{}}, nil)

	_, err := m.Approve(context.Background(), "co-1", n.ID, "nogmaals")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
}

func TestApprove_GoogleMirrorsReplyIntoCanonicalRow(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderGoogle, models.StatusPending, "")
	if err := database.Create(&models.GMBReview{
		ReviewID: n.ReviewID, CompanyID: "co-1", Reviewer: "Jan", StarRating: "FOUR",
	}).Error; err != nil {
		t.Fatal(err)
	}

	replier := &stubReplier{}
	m := NewMachine(database, &stubTokens{token: "tok"}, map[string]Replier{review.ProviderGoogle: replier}, nil)

	if _, err := m.Approve(context.Background(), "co-1", n.ID, "Thanks!"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if replier.lastCreds.AccessToken != "tok" || replier.lastCreds.AccountID != "1" {
		t.Errorf("creds = %+v", replier.lastCreds)
	}

	var row models.GMBReview
	if err := database.Where("review_id = ? AND company_id = ?", n.ReviewID, "co-1").First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if row.ReviewReply != "Thanks!" || row.ReplyUpdateTime == nil {
		t.Errorf("canonical row not mirrored: %+v", row)
	}
}

func TestApprove_TokenFailurePropagates(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderFacebook, models.StatusPending, "x")

	replier := &stubReplier{}
	m := NewMachine(database,
		&stubTokens{err: review.ErrAuthExpired},
		map[string]Replier{review.ProviderFacebook: replier}, nil)

	_, err := m.Approve(context.Background(), "co-1", n.ID, "tekst")
	if !errors.Is(err, review.ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
	if replier.calls != 0 {
		t.Error("must not publish without a token")
	}
}

func TestApprove_NoReplierForProvider(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "x")

	m := NewMachine(database, &stubTokens{}, map[string]Replier{}, nil)
	if _, err := m.Approve(context.Background(), "co-1", n.ID, "tekst"); err == nil {
		t.Fatal("expected error for missing reply client")
	}
}

func TestDismissAndArchive(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	m := NewMachine(database, &stubTokens{}, map[string]Replier{}, nil)

	pending := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "")
	if _, err := m.Dismiss(context.Background(), "co-1", pending.ID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	stored, _ := db.GetNotificationByID(database, "co-1", pending.ID)
	if stored.Status != models.StatusDismissed || !stored.IsRead {
		t.Errorf("dismissed = %+v", stored)
	}

	// Dismissed rows cannot be dismissed again but can be archived.
	if _, err := m.Dismiss(context.Background(), "co-1", pending.ID); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
	if _, err := m.Archive(context.Background(), "co-1", pending.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	stored, _ = db.GetNotificationByID(database, "co-1", pending.ID)
	if stored.Status != models.StatusArchived {
		t.Errorf("archived = %+v", stored)
	}
}

func TestMachine_CrossTenantBlocked(t *testing.T) {
	database := newTestDB(t)
	seedCompany(t, database)
	n := seedNotification(t, database, review.ProviderKiyoh, models.StatusPending, "x")

	m := NewMachine(database, &stubTokens{}, map[string]Replier{review.ProviderKiyoh: &stubReplier{}}, nil)
	_, err := m.Approve(context.Background(), "other-co", n.ID, "tekst")
	if !errors.Is(err, db.ErrNotificationNotFound) {
		t.Fatalf("err = %v, want ErrNotificationNotFound", err)
	}
}
