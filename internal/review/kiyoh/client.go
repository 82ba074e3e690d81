// Package kiyoh talks to the Kiyoh publication API. Authentication is a
// static per-tenant API token sent in the X-Publication-Api-Token header;
// there is no refresh flow.
package kiyoh

import (
	"bytes"
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
	defaultLimit   = 20
)

type Client struct {
	httpClient *http.Client
	limit      int
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
	return &Client{httpClient: httpClient, limit: defaultLimit}
}

func (c *Client) Name() string { return review.ProviderKiyoh }

// listResponse is the upstream review listing. It carries location statistics
// (star distribution) alongside the individual reviews.
type listResponse struct {
	LocationID   flexString `json:"locationId"`
	LocationName string     `json:"locationName"`

	AverageRating  float64 `json:"averageRating"`
	NumberReviews  int     `json:"numberReviews"`
	Recommendation int     `json:"recommendation"`

	Last12MonthAverageRating float64 `json:"last12MonthAverageRating"`
	Last12MonthNumberReviews int     `json:"last12MonthNumberReviews"`

	FiveStars  int `json:"fiveStars"`
	FourStars  int `json:"fourStars"`
	ThreeStars int `json:"threeStars"`
	TwoStars   int `json:"twoStars"`
	OneStars   int `json:"oneStars"`

	ViewReviewURL   string `json:"viewReviewUrl"`
	CreateReviewURL string `json:"createReviewUrl"`

	Reviews []rawReview `json:"reviews"`
}

// Statistics is the location-level star distribution used by the stats
// aggregator.
type Statistics struct {
	LocationID     string  `json:"locationId"`
	LocationName   string  `json:"locationName"`
	AverageRating  float64 `json:"averageRating"`
	NumberReviews  int     `json:"numberReviews"`
	Recommendation int     `json:"recommendation"`

	Last12MonthAverageRating float64 `json:"last12MonthAverageRating"`
	Last12MonthNumberReviews int     `json:"last12MonthNumberReviews"`

	FiveStars  int `json:"fiveStars"`
	FourStars  int `json:"fourStars"`
	ThreeStars int `json:"threeStars"`
	TwoStars   int `json:"twoStars"`
	OneStars   int `json:"oneStars"`

	ViewReviewURL   string `json:"viewReviewUrl"`
	CreateReviewURL string `json:"createReviewUrl"`
}

func (c *Client) ListReviews(ctx context.Context, creds review.Credentials) ([]review.Review, error) {
	resp, err := c.list(ctx, creds, c.limit)
	if err != nil {
		return nil, err
	}
	reviews := make([]review.Review, 0, len(resp.Reviews))
	for _, raw := range resp.Reviews {
		reviews = append(reviews, Normalize(raw))
	}
	return reviews, nil
}

// Statistics fetches the location star distribution. The dedicated
// statistics endpoint does not return per-star counts, so this reads them
// from the review listing with limit=1.
func (c *Client) Statistics(ctx context.Context, creds review.Credentials) (*Statistics, error) {
	resp, err := c.list(ctx, creds, 1)
	if err != nil {
		return nil, err
	}
	recommendation := resp.Recommendation
	if recommendation == 0 && resp.AverageRating > 0 {
		recommendation = int(resp.AverageRating/10*100 + 0.5)
	}
	return &Statistics{
		LocationID:               string(resp.LocationID),
		LocationName:             resp.LocationName,
		AverageRating:            resp.AverageRating,
		NumberReviews:            resp.NumberReviews,
		Recommendation:           recommendation,
		Last12MonthAverageRating: resp.Last12MonthAverageRating,
		Last12MonthNumberReviews: resp.Last12MonthNumberReviews,
		FiveStars:                resp.FiveStars,
		FourStars:                resp.FourStars,
		ThreeStars:               resp.ThreeStars,
		TwoStars:                 resp.TwoStars,
		OneStars:                 resp.OneStars,
		ViewReviewURL:            resp.ViewReviewURL,
		CreateReviewURL:          resp.CreateReviewURL,
	}, nil
}

func (c *Client) list(ctx context.Context, creds review.Credentials, limit int) (*listResponse, error) {
	if creds.BaseURL == "" || creds.APIToken == "" {
		return nil, review.ErrCredentialsMissing
	}

	q := url.Values{}
	q.Set("locationId", creds.LocationID)
	q.Set("tenantId", creds.TenantID)
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("orderBy", "CREATE_DATE")
	q.Set("sortOrder", "DESC")

	endpoint := strings.TrimRight(creds.BaseURL, "/") + "/v1/publication/review/external?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Publication-Api-Token", creds.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kiyoh list: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, review.StatusError(review.ProviderKiyoh, resp.StatusCode, util.TruncateBytes(body))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &review.UpstreamError{Provider: review.ProviderKiyoh, Status: resp.StatusCode, Body: "malformed response: " + util.TruncateBytes(body)}
	}
	return &parsed, nil
}

// Invite describes one review-invitation email. Delay is in days; zero
// sends immediately.
type Invite struct {
	Email     string
	FirstName string
	LastName  string
	RefCode   string
	Language  string
	Delay     int
}

// SendInvite asks Kiyoh to mail a review invitation to one customer.
// Language falls back to "nl" when unset.
func (c *Client) SendInvite(ctx context.Context, creds review.Credentials, invite Invite) error {
	if creds.BaseURL == "" || creds.APIToken == "" {
		return review.ErrCredentialsMissing
	}
	if invite.Email == "" {
		return fmt.Errorf("kiyoh invite: email is required")
	}
	language := invite.Language
	if language == "" {
		language = "nl"
	}

	payload, err := json.Marshal(map[string]any{
		"location_id":  strings.TrimSpace(creds.LocationID),
		"invite_email": invite.Email,
		"delay":        invite.Delay,
		"first_name":   invite.FirstName,
		"last_name":    invite.LastName,
		"ref_code":     invite.RefCode,
		"language":     language,
	})
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(creds.BaseURL, "/") + "/v1/invite/external"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Publication-Api-Token", creds.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kiyoh invite: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return review.StatusError(review.ProviderKiyoh, resp.StatusCode, util.TruncateBytes(body))
	}
	return nil
}

// PostReply submits a public response to a review through the moderation
// endpoint.
func (c *Client) PostReply(ctx context.Context, creds review.Credentials, externalID, text string) error {
	if creds.BaseURL == "" || creds.APIToken == "" {
		return review.ErrCredentialsMissing
	}

	payload, err := json.Marshal(map[string]string{
		"locationId":         strings.TrimSpace(creds.LocationID),
		"tenantId":           creds.TenantID,
		"reviewId":           externalID,
		"response":           text,
		"reviewResponseType": "PUBLIC",
		"responseEmail":      "false",
	})
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(creds.BaseURL, "/") + "/v1/publication/review/response"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Publication-Api-Token", creds.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kiyoh reply: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return review.StatusError(review.ProviderKiyoh, resp.StatusCode, util.TruncateBytes(body))
	}
	return nil
}
