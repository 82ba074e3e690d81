package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Xeno9948/KiyohMobileUI/internal/review"
)

const (
	draftTemperature   = 0.7
	analyzeTemperature = 0.3
	maxCompletion      = 500
	maxDraftSentences  = 4
	maxAnalyzeTexts    = 15
	maxStrongPoints    = 3
)

// Sentiment bands on the 1-10 scale.
const (
	sentimentPositive = "positive"
	sentimentNeutral  = "neutral"
	sentimentNegative = "negative"
)

// Generator produces review reply drafts and strong-point summaries. All
// parameters arrive through Settings per call; the generator holds no
// tenant state.
type Generator struct {
	backends map[string]Backend
	models   map[string]string // backend id -> default model
}

func NewGenerator(backends map[string]Backend, models map[string]string) *Generator {
	if backends == nil {
		backends = map[string]Backend{}
	}
	if models == nil {
		models = map[string]string{}
	}
	return &Generator{backends: backends, models: models}
}

// Enabled reports whether any backend is configured.
func (g *Generator) Enabled() bool { return len(g.backends) > 0 }

func (g *Generator) resolve(s Settings) (Backend, string, error) {
	backend, ok := g.backends[s.Provider]
	if !ok {
		return nil, "", fmt.Errorf("ai backend %q not configured", s.Provider)
	}
	model := s.Model
	if model == "" {
		model = g.models[s.Provider]
	}
	if model == "" {
		return nil, "", fmt.Errorf("no model configured for ai backend %q", s.Provider)
	}
	return backend, model, nil
}

// sentimentBand classifies a rating on the 1-10 scale. Ratings from 5-star
// providers are doubled by the caller before classification.
func sentimentBand(rating float64) string {
	switch {
	case rating >= 7:
		return sentimentPositive
	case rating >= 5:
		return sentimentNeutral
	default:
		return sentimentNegative
	}
}

// scaledRating converts provider-native ratings to the 1-10 scale the
// prompt and sentiment bands are written for.
func scaledRating(r review.Review) float64 {
	switch r.Provider {
	case review.ProviderGoogle, review.ProviderFacebook:
		return r.Rating * 2
	default:
		return r.Rating
	}
}

// Draft produces a short (2-4 sentence) reply suggestion for one review.
// Reviews without meaningful text get no draft. Callers in the sync path
// treat any error as "no draft".
func (g *Generator) Draft(ctx context.Context, s Settings, r review.Review) (string, error) {
	if len(strings.TrimSpace(r.Text)) < 5 {
		return "", nil
	}

	backend, model, err := g.resolve(s)
	if err != nil {
		return "", err
	}

	rating := scaledRating(r)
	author := r.Author
	if author == "" {
		author = anonymousName(s.Language)
	}

	content, err := backend.Complete(ctx, CompletionRequest{
		Model:       model,
		System:      draftSystemPrompt(s, sentimentBand(rating)),
		User:        draftUserPrompt(s.Language, author, rating, r.Text),
		Temperature: draftTemperature,
		MaxTokens:   maxCompletion,
	})
	if err != nil {
		return "", err
	}
	return limitSentences(strings.TrimSpace(content), maxDraftSentences), nil
}

// AnalyzeStrongPoints summarizes up to 15 review texts into at most 3 short
// phrases. On any failure the language's generic fallback phrases are
// returned together with the error so the caller can still render
// something.
func (g *Generator) AnalyzeStrongPoints(ctx context.Context, s Settings, texts []string) ([]string, error) {
	usable := make([]string, 0, maxAnalyzeTexts)
	for _, t := range texts {
		if len(strings.TrimSpace(t)) > 5 {
			usable = append(usable, strings.TrimSpace(t))
		}
		if len(usable) == maxAnalyzeTexts {
			break
		}
	}
	if len(usable) == 0 {
		return nil, nil
	}

	backend, model, err := g.resolve(s)
	if err != nil {
		return fallbackStrongPoints(s.Language), err
	}

	content, err := backend.Complete(ctx, CompletionRequest{
		Model:       model,
		System:      analyzeSystemPrompt(s.Language),
		User:        "Reviews:\n" + strings.Join(usable, "\n\n"),
		Temperature: analyzeTemperature,
		MaxTokens:   maxCompletion,
	})
	if err != nil {
		return fallbackStrongPoints(s.Language), err
	}

	points, ok := parseStrongPoints(content)
	if !ok {
		return fallbackStrongPoints(s.Language), nil
	}
	return points, nil
}

var codeFenceRe = regexp.MustCompile("```(?:json)?\n?|```")

// parseStrongPoints extracts a JSON string array from model output.
// Code fences are stripped and, when the output is not a clean array,
// the substring between the first '[' and the last ']' is tried.
func parseStrongPoints(content string) ([]string, bool) {
	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(content, ""))

	var points []string
	if err := json.Unmarshal([]byte(cleaned), &points); err != nil {
		start := strings.Index(cleaned, "[")
		end := strings.LastIndex(cleaned, "]")
		if start < 0 || end <= start {
			return nil, false
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &points); err != nil {
			return nil, false
		}
	}

	out := make([]string, 0, maxStrongPoints)
	for _, p := range points {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == maxStrongPoints {
			break
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// limitSentences keeps at most n sentences of text.
func limitSentences(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			// Treat runs of enders (e.g. "?!") as one boundary.
			if i+1 < len(text) {
				next := text[i+1]
				if next == '.' || next == '!' || next == '?' {
					continue
				}
			}
			count++
			if count == n {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}
	return text
}
