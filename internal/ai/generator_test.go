package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Xeno9948/KiyohMobileUI/internal/review"
)

// fakeBackend returns canned content or an error and records the request.
type fakeBackend struct {
	content string
	err     error
	last    CompletionRequest
	calls   int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.content, f.err
}

func testSettings() Settings {
	return Settings{Provider: "fake", Model: "fake-model", Language: "nl", CompanyName: "Testshop"}
}

func newTestGenerator(backend Backend) *Generator {
	return NewGenerator(map[string]Backend{"fake": backend}, nil)
}

func TestSentimentBand(t *testing.T) {
	tests := []struct {
		rating float64
		want   string
	}{
		{10, sentimentPositive},
		{7, sentimentPositive},
		{6.9, sentimentNeutral},
		{5, sentimentNeutral},
		{4.9, sentimentNegative},
		{1, sentimentNegative},
	}
	for _, tt := range tests {
		if got := sentimentBand(tt.rating); got != tt.want {
			t.Errorf("sentimentBand(%v) = %q, want %q", tt.rating, got, tt.want)
		}
	}
}

func TestScaledRating(t *testing.T) {
	if got := scaledRating(review.Review{Provider: review.ProviderGoogle, Rating: 4}); got != 8 {
		t.Errorf("google rating = %v, want doubled", got)
	}
	if got := scaledRating(review.Review{Provider: review.ProviderFacebook, Rating: 1}); got != 2 {
		t.Errorf("facebook rating = %v, want doubled", got)
	}
	if got := scaledRating(review.Review{Provider: review.ProviderKiyoh, Rating: 9}); got != 9 {
		t.Errorf("kiyoh rating = %v, want unchanged", got)
	}
}

func TestDraft_SkipsTextlessReviews(t *testing.T) {
	backend := &fakeBackend{content: "should not be called"}
	g := newTestGenerator(backend)

	got, err := g.Draft(context.Background(), testSettings(), review.Review{Rating: 9, Text: "  ok "})
	if err != nil || got != "" {
		t.Fatalf("Draft = (%q, %v), want empty without error", got, err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times for textless review", backend.calls)
	}
}

func TestDraft_PromptShape(t *testing.T) {
	backend := &fakeBackend{content: "Bedankt Jan! Fijn dat alles goed is aangekomen."}
	g := newTestGenerator(backend)

	r := review.Review{Provider: review.ProviderGoogle, Author: "Jan", Rating: 4, Text: "Alles prima geregeld"}
	got, err := g.Draft(context.Background(), testSettings(), r)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if got != backend.content {
		t.Errorf("Draft = %q", got)
	}
	if backend.last.Temperature != draftTemperature || backend.last.MaxTokens != maxCompletion {
		t.Errorf("request params: %+v", backend.last)
	}
	// 4 stars doubled to 8/10 lands in the positive band.
	if !strings.Contains(backend.last.System, "positieve review") {
		t.Errorf("system prompt missing positive guideline: %q", backend.last.System)
	}
	if !strings.Contains(backend.last.User, "Beoordeling: 8/10") {
		t.Errorf("user prompt = %q", backend.last.User)
	}
}

func TestDraft_AnonymousAuthor(t *testing.T) {
	backend := &fakeBackend{content: "Bedankt!"}
	g := newTestGenerator(backend)

	_, err := g.Draft(context.Background(), testSettings(), review.Review{Rating: 9, Text: "Prima service"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(backend.last.User, "Klant: Anoniem") {
		t.Errorf("user prompt = %q", backend.last.User)
	}
}

func TestDraft_BackendFailurePropagates(t *testing.T) {
	g := newTestGenerator(&fakeBackend{err: errors.New("model down")})

	_, err := g.Draft(context.Background(), testSettings(), review.Review{Rating: 9, Text: "Prima service"})
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
}

func TestDraft_UnknownProvider(t *testing.T) {
	g := NewGenerator(nil, nil)
	_, err := g.Draft(context.Background(), testSettings(), review.Review{Rating: 9, Text: "Prima service"})
	if err == nil {
		t.Fatal("expected error for unconfigured backend")
	}
}

func TestDraft_TruncatesLongAnswers(t *testing.T) {
	backend := &fakeBackend{content: "Een. Twee. Drie. Vier. Vijf. Zes."}
	g := newTestGenerator(backend)

	got, err := g.Draft(context.Background(), testSettings(), review.Review{Rating: 9, Text: "Prima service"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Een. Twee. Drie. Vier." {
		t.Errorf("Draft = %q, want four sentences", got)
	}
}

func TestAnalyzeStrongPoints_HappyPath(t *testing.T) {
	backend := &fakeBackend{content: `["Snelle levering", "Goede prijzen", "Vriendelijke service"]`}
	g := newTestGenerator(backend)

	points, err := g.AnalyzeStrongPoints(context.Background(), testSettings(), []string{"Prima service", "Snel geleverd"})
	if err != nil {
		t.Fatalf("AnalyzeStrongPoints: %v", err)
	}
	if len(points) != 3 || points[0] != "Snelle levering" {
		t.Errorf("points = %v", points)
	}
	if backend.last.Temperature != analyzeTemperature {
		t.Errorf("temperature = %v", backend.last.Temperature)
	}
}

func TestAnalyzeStrongPoints_FiltersShortTexts(t *testing.T) {
	backend := &fakeBackend{content: `["Goed"]`}
	g := newTestGenerator(backend)

	_, err := g.AnalyzeStrongPoints(context.Background(), testSettings(), []string{"ok", "  9 ", "Echt een prima winkel"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(backend.last.User, "ok\n") {
		t.Errorf("short texts not filtered: %q", backend.last.User)
	}
	if !strings.Contains(backend.last.User, "Echt een prima winkel") {
		t.Errorf("usable text missing: %q", backend.last.User)
	}
}

func TestAnalyzeStrongPoints_NoUsableTexts(t *testing.T) {
	g := newTestGenerator(&fakeBackend{})
	points, err := g.AnalyzeStrongPoints(context.Background(), testSettings(), []string{"ok", ""})
	if err != nil || points != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", points, err)
	}
}

func TestAnalyzeStrongPoints_FallbackOnBackendError(t *testing.T) {
	g := newTestGenerator(&fakeBackend{err: errors.New("model down")})

	points, err := g.AnalyzeStrongPoints(context.Background(), testSettings(), []string{"Echt een prima winkel"})
	if err == nil {
		t.Fatal("expected error alongside fallback")
	}
	want := []string{"Goede service", "Betrouwbaar", "Snelle levering"}
	for i, p := range want {
		if points[i] != p {
			t.Fatalf("points = %v, want dutch fallback", points)
		}
	}
}

func TestAnalyzeStrongPoints_FallbackOnGarbageOutput(t *testing.T) {
	g := newTestGenerator(&fakeBackend{content: "I could not find any strong points."})

	points, err := g.AnalyzeStrongPoints(context.Background(), testSettings(), []string{"Echt een prima winkel"})
	if err != nil {
		t.Fatalf("garbage output should not error: %v", err)
	}
	if len(points) != 3 || points[0] != "Goede service" {
		t.Errorf("points = %v, want fallback", points)
	}
}

func TestParseStrongPoints(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantOK  bool
	}{
		{
			name:    "clean array",
			content: `["A", "B"]`,
			want:    []string{"A", "B"},
			wantOK:  true,
		},
		{
			name:    "json code fence",
			content: "```json\n[\"A\", \"B\"]\n```",
			want:    []string{"A", "B"},
			wantOK:  true,
		},
		{
			name:    "prose around array",
			content: `Here are the points: ["A", "B"] hope that helps!`,
			want:    []string{"A", "B"},
			wantOK:  true,
		},
		{
			name:    "caps at three",
			content: `["A", "B", "C", "D"]`,
			want:    []string{"A", "B", "C"},
			wantOK:  true,
		},
		{
			name:    "drops empty entries",
			content: `["", "  ", "A"]`,
			want:    []string{"A"},
			wantOK:  true,
		},
		{name: "no array", content: "nothing here", wantOK: false},
		{name: "empty array", content: "[]", wantOK: false},
		{name: "array of objects", content: `[{"point": "A"}]`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseStrongPoints(tt.content)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestLimitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "under limit", in: "Een. Twee.", n: 4, want: "Een. Twee."},
		{name: "at limit", in: "Een. Twee. Drie. Vier.", n: 4, want: "Een. Twee. Drie. Vier."},
		{name: "over limit", in: "Een. Twee. Drie. Vier. Vijf.", n: 4, want: "Een. Twee. Drie. Vier."},
		{name: "ender run counts once", in: "Echt?! Ja. Nee. Toch.", n: 2, want: "Echt?! Ja."},
		{name: "no enders", in: "geen einde", n: 2, want: "geen einde"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := limitSentences(tt.in, tt.n); got != tt.want {
				t.Errorf("limitSentences = %q, want %q", got, tt.want)
			}
		})
	}
}
