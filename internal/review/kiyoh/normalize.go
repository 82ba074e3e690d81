package kiyoh

import (
	"encoding/json"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/review"
)

// flexString unmarshals a JSON string or number into a string. Kiyoh has
// been observed returning reviewId and locationId as either.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = flexString(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*s = flexString(asNumber.String())
		return nil
	}
	// Tolerate anything else as empty rather than failing the batch.
	*s = ""
	return nil
}

// rawReview is one review as delivered by the publication API.
type rawReview struct {
	ReviewID      flexString   `json:"reviewId"`
	ReviewAuthor  string       `json:"reviewAuthor"`
	Rating        float64      `json:"rating"`
	DateSince     string       `json:"dateSince"`
	UpdatedSince  string       `json:"updatedSince"`
	ReviewContent []rawContent `json:"reviewContent"`
}

type rawContent struct {
	QuestionGroup string     `json:"questionGroup"`
	Rating        flexString `json:"rating"` // free-text answers arrive in the rating field
}

// extractor is one named attempt at pulling review text out of the content
// entries. Extractors run in priority order; the first non-empty result
// wins.
type extractor struct {
	name string
	fn   func(rawReview) string
}

var contentExtractors = []extractor{
	{"opinion", byQuestionGroup("DEFAULT_OPINION")},
	{"oneliner", byQuestionGroup("DEFAULT_ONELINER")},
	{"positive", byQuestionGroup("positive")},
	{"general-opinion", byQuestionGroup("general_opinion")},
	{"any-long-text", anyLongText},
}

func byQuestionGroup(group string) func(rawReview) string {
	return func(r rawReview) string {
		for _, c := range r.ReviewContent {
			if c.QuestionGroup == group {
				return string(c.Rating)
			}
		}
		return ""
	}
}

// anyLongText is the last resort: any content value longer than 2 chars is
// assumed to be prose rather than a score.
func anyLongText(r rawReview) string {
	for _, c := range r.ReviewContent {
		if len(c.Rating) > 2 {
			return string(c.Rating)
		}
	}
	return ""
}

func extractText(r rawReview) string {
	for _, e := range contentExtractors {
		if text := e.fn(r); text != "" {
			return text
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize maps one raw Kiyoh review into the canonical shape. It is total:
// malformed input yields zero values, never an error, so one bad review
// cannot abort a batch. The timestamp prefers dateSince, then updatedSince,
// then ingestion time.
func Normalize(r rawReview) review.Review {
	createdAt := time.Now()
	if t, ok := parseDate(r.DateSince); ok {
		createdAt = t
	} else if t, ok := parseDate(r.UpdatedSince); ok {
		createdAt = t
	}

	updatedAt := createdAt
	if t, ok := parseDate(r.UpdatedSince); ok {
		updatedAt = t
	}

	return review.Review{
		ExternalID: string(r.ReviewID),
		Provider:   review.ProviderKiyoh,
		Author:     r.ReviewAuthor,
		Rating:     r.Rating,
		Text:       extractText(r),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}
