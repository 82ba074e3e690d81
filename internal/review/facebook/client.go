// Package facebook talks to the Graph API ratings endpoint for a page.
// Facebook "recommendations" often carry no numeric rating; one is inferred
// from recommendation_type where possible, otherwise the entry is skipped.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/util"
)

const (
	defaultTimeout = 15 * time.Second
	DefaultBaseURL = "https://graph.facebook.com/v19.0"

	ratingFields = "rating,review_text,reviewer,created_time,recommendation_type,has_rating,has_review,open_graph_story"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithHTTP(timeout, nil)
}

func NewClientWithHTTP(timeout time.Duration, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient, baseURL: DefaultBaseURL}
}

// SetBaseURL overrides the Graph API endpoint for tests.
func (c *Client) SetBaseURL(baseURL string) {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func (c *Client) Name() string { return review.ProviderFacebook }

// RawRating is one entry from the page ratings edge.
type RawRating struct {
	Rating     float64 `json:"rating"`
	ReviewText string  `json:"review_text"`
	Reviewer   struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"reviewer"`
	CreatedTime        string `json:"created_time"`
	RecommendationType string `json:"recommendation_type"`
	OpenGraphStory     *struct {
		ID string `json:"id"`
	} `json:"open_graph_story"`
}

// ExternalID returns the stable story id when present, otherwise the weak
// fallback "{created_time}_{reviewer_id}". The fallback can collide for two
// reviews from the same reviewer in the same second; this is an accepted
// limitation of the upstream data.
func (r RawRating) ExternalID() string {
	if r.OpenGraphStory != nil && r.OpenGraphStory.ID != "" {
		return r.OpenGraphStory.ID
	}
	if r.CreatedTime == "" && r.Reviewer.ID == "" {
		return ""
	}
	return r.CreatedTime + "_" + r.Reviewer.ID
}

// HasFallbackID reports whether the id was synthesized rather than provided
// by the platform. Replies need a real story id.
func (r RawRating) HasFallbackID() bool {
	return r.OpenGraphStory == nil || r.OpenGraphStory.ID == ""
}

// InferRating returns the effective rating and whether one could be
// determined. A missing numeric rating maps to 5 for positive
// recommendations and 1 for negative ones; anything else is skipped, never
// ingested as rating 0.
func (r RawRating) InferRating() (float64, bool) {
	if r.Rating > 0 {
		return r.Rating, true
	}
	switch r.RecommendationType {
	case "positive":
		return 5, true
	case "negative":
		return 1, true
	}
	return 0, false
}

// Normalize maps one raw rating into the canonical shape. The second return
// is false when the entry carries no determinable rating and must be
// skipped.
func Normalize(r RawRating) (review.Review, bool) {
	rating, ok := r.InferRating()
	if !ok {
		return review.Review{}, false
	}
	created := parseTime(r.CreatedTime)
	return review.Review{
		ExternalID: r.ExternalID(),
		Provider:   review.ProviderFacebook,
		Author:     r.Reviewer.Name,
		Rating:     rating,
		Text:       r.ReviewText,
		CreatedAt:  created,
		UpdatedAt:  created,
	}, true
}

// Graph timestamps look like 2023-06-01T12:30:00+0000.
var timeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

func parseTime(value string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (c *Client) ListReviews(ctx context.Context, creds review.Credentials) ([]review.Review, error) {
	raws, err := c.ListRawRatings(ctx, creds)
	if err != nil {
		return nil, err
	}
	reviews := make([]review.Review, 0, len(raws))
	for _, raw := range raws {
		if norm, ok := Normalize(raw); ok {
			reviews = append(reviews, norm)
		}
	}
	return reviews, nil
}

// ListRawRatings fetches the ratings edge unfiltered. The orchestrator uses
// it to persist recommendation_type alongside the canonical row.
func (c *Client) ListRawRatings(ctx context.Context, creds review.Credentials) ([]RawRating, error) {
	if creds.PageID == "" || creds.AccessToken == "" {
		return nil, review.ErrCredentialsMissing
	}

	q := url.Values{}
	q.Set("fields", ratingFields)
	q.Set("access_token", creds.AccessToken)
	q.Set("limit", "100")

	endpoint := fmt.Sprintf("%s/%s/ratings?%s", c.baseURL, creds.PageID, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook ratings: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, review.StatusError(review.ProviderFacebook, resp.StatusCode, util.TruncateBytes(body))
	}

	// Graph errors can also arrive with status 200.
	var parsed struct {
		Data  []RawRating `json:"data"`
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &review.UpstreamError{Provider: review.ProviderFacebook, Status: resp.StatusCode, Body: "malformed response: " + util.TruncateBytes(body)}
	}
	if parsed.Error != nil {
		if parsed.Error.Code == 190 { // invalid or expired token
			return nil, fmt.Errorf("facebook: %s: %w", parsed.Error.Message, review.ErrAuthExpired)
		}
		return nil, &review.UpstreamError{Provider: review.ProviderFacebook, Status: resp.StatusCode, Body: parsed.Error.Message}
	}
	return parsed.Data, nil
}

// PostReply comments on the review's open graph story. Synthesized fallback
// ids cannot be replied to.
func (c *Client) PostReply(ctx context.Context, creds review.Credentials, externalID, text string) error {
	if creds.AccessToken == "" {
		return review.ErrCredentialsMissing
	}
	if strings.Contains(externalID, "_") && strings.Contains(externalID, "T") {
		return &review.UpstreamError{Provider: review.ProviderFacebook, Status: 0, Body: "review has no story id; replying is not possible"}
	}

	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", creds.AccessToken)

	endpoint := fmt.Sprintf("%s/%s/comments", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("facebook reply: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return review.StatusError(review.ProviderFacebook, resp.StatusCode, util.TruncateBytes(body))
	}
	return nil
}
