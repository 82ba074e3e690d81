// Package googlebiz talks to the Google Business Profile APIs: the v4
// mybusiness endpoint for reviews and replies, and the account/business
// information services for one-time identity resolution at connect time.
package googlebiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/util"
)

const (
	defaultTimeout = 15 * time.Second

	defaultReviewsBaseURL  = "https://mybusiness.googleapis.com/v4"
	defaultAccountsBaseURL = "https://mybusinessaccountmanagement.googleapis.com/v1"
	defaultInfoBaseURL     = "https://mybusinessbusinessinformation.googleapis.com/v1"
)

// starRatings maps the upstream word enum to a numeric rating.
var starRatings = map[string]float64{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

type Client struct {
	httpClient      *http.Client
	reviewsBaseURL  string
	accountsBaseURL string
	infoBaseURL     string
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
	return &Client{
		httpClient:      httpClient,
		reviewsBaseURL:  defaultReviewsBaseURL,
		accountsBaseURL: defaultAccountsBaseURL,
		infoBaseURL:     defaultInfoBaseURL,
	}
}

// SetBaseURLs overrides the upstream endpoints. Tests point them at a fake
// server.
func (c *Client) SetBaseURLs(reviews, accounts, info string) {
	if reviews != "" {
		c.reviewsBaseURL = strings.TrimRight(reviews, "/")
	}
	if accounts != "" {
		c.accountsBaseURL = strings.TrimRight(accounts, "/")
	}
	if info != "" {
		c.infoBaseURL = strings.TrimRight(info, "/")
	}
}

func (c *Client) Name() string { return review.ProviderGoogle }

// RawReview is one review as delivered by the v4 API.
type RawReview struct {
	Name     string `json:"name"` // accounts/{a}/locations/{l}/reviews/{id}
	ReviewID string `json:"reviewId"`
	Reviewer struct {
		DisplayName string `json:"displayName"`
	} `json:"reviewer"`
	StarRating  string `json:"starRating"`
	Comment     string `json:"comment"`
	CreateTime  string `json:"createTime"`
	UpdateTime  string `json:"updateTime"`
	ReviewReply *struct {
		Comment    string `json:"comment"`
		UpdateTime string `json:"updateTime"`
	} `json:"reviewReply"`
}

// ExternalID derives the stable review identity: the last path segment of
// the resource name, falling back to the explicit reviewId field.
func (r RawReview) ExternalID() string {
	if r.Name != "" {
		parts := strings.Split(r.Name, "/")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}
	return r.ReviewID
}

// Normalize maps one raw review into the canonical shape. Total: unknown
// star words yield rating 0 rather than an error.
func Normalize(r RawReview) review.Review {
	created := parseTime(r.CreateTime)
	updated := parseTime(r.UpdateTime)
	if updated.IsZero() {
		updated = created
	}
	return review.Review{
		ExternalID: r.ExternalID(),
		Provider:   review.ProviderGoogle,
		Author:     r.Reviewer.DisplayName,
		Rating:     starRatings[r.StarRating],
		Text:       r.Comment,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (c *Client) ListReviews(ctx context.Context, creds review.Credentials) ([]review.Review, error) {
	raws, err := c.ListRawReviews(ctx, creds)
	if err != nil {
		return nil, err
	}
	reviews := make([]review.Review, 0, len(raws))
	for _, raw := range raws {
		reviews = append(reviews, Normalize(raw))
	}
	return reviews, nil
}

// ListRawReviews returns the unnormalized payload. The sync orchestrator
// uses it to mirror reply fields into the canonical table.
func (c *Client) ListRawReviews(ctx context.Context, creds review.Credentials) ([]RawReview, error) {
	account, location, err := resourceIDs(creds)
	if err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, review.ErrCredentialsMissing
	}

	endpoint := fmt.Sprintf("%s/%s/%s/reviews", c.reviewsBaseURL, account, location)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gmb list: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, review.StatusError(review.ProviderGoogle, resp.StatusCode, util.TruncateBytes(body))
	}

	var parsed struct {
		Reviews []RawReview `json:"reviews"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &review.UpstreamError{Provider: review.ProviderGoogle, Status: resp.StatusCode, Body: "malformed response: " + util.TruncateBytes(body)}
	}
	return parsed.Reviews, nil
}

// PostReply upserts the owner reply on a review.
func (c *Client) PostReply(ctx context.Context, creds review.Credentials, externalID, text string) error {
	account, location, err := resourceIDs(creds)
	if err != nil {
		return err
	}
	if creds.AccessToken == "" {
		return review.ErrCredentialsMissing
	}

	payload, err := json.Marshal(map[string]string{"comment": text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/%s/reviews/%s/reply", c.reviewsBaseURL, account, location, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmb reply: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return review.StatusError(review.ProviderGoogle, resp.StatusCode, util.TruncateBytes(body))
	}
	return nil
}

// resourceIDs validates and prefix-normalizes the stored account and
// location identifiers. Missing ids fail fast with ErrSetupIncomplete
// instead of guessing.
func resourceIDs(creds review.Credentials) (account, location string, err error) {
	if creds.AccountID == "" || creds.LocationID == "" {
		return "", "", fmt.Errorf("gmb account or location id not set: %w", review.ErrSetupIncomplete)
	}
	account = creds.AccountID
	if !strings.HasPrefix(account, "accounts/") {
		account = "accounts/" + account
	}
	location = creds.LocationID
	if !strings.HasPrefix(location, "locations/") {
		// Stored locations may carry the full accounts/{a}/locations/{l}
		// resource name; keep only the trailing locations/{l} part.
		if i := strings.Index(location, "locations/"); i >= 0 {
			location = location[i:]
		} else {
			location = "locations/" + location
		}
	}
	return account, location, nil
}

// Identity is the account/location pair resolved at connect time and cached
// on the tenant record.
type Identity struct {
	AccountID  string // accounts/{id}
	LocationID string // full resource name of the first location
}

// ResolveIdentity performs the two-step identity resolution: list accounts,
// then list locations under the first account. Called once from the OAuth
// callback.
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, review.ErrCredentialsMissing
	}

	var accountsResp struct {
		Accounts []struct {
			Name string `json:"name"`
		} `json:"accounts"`
	}
	if err := c.getJSON(ctx, c.accountsBaseURL+"/accounts", accessToken, &accountsResp); err != nil {
		return nil, err
	}
	if len(accountsResp.Accounts) == 0 {
		return nil, fmt.Errorf("no business accounts visible to this user: %w", review.ErrSetupIncomplete)
	}
	account := accountsResp.Accounts[0].Name

	var locationsResp struct {
		Locations []struct {
			Name string `json:"name"`
		} `json:"locations"`
	}
	endpoint := fmt.Sprintf("%s/%s/locations?readMask=name", c.infoBaseURL, account)
	if err := c.getJSON(ctx, endpoint, accessToken, &locationsResp); err != nil {
		return nil, err
	}
	if len(locationsResp.Locations) == 0 {
		return nil, fmt.Errorf("account %s has no locations: %w", account, review.ErrSetupIncomplete)
	}

	return &Identity{
		AccountID:  account,
		LocationID: locationsResp.Locations[0].Name,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmb identity: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return review.StatusError(review.ProviderGoogle, resp.StatusCode, util.TruncateBytes(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &review.UpstreamError{Provider: review.ProviderGoogle, Status: resp.StatusCode, Body: "malformed response: " + util.TruncateBytes(body)}
	}
	return nil
}

// StarRatingValue maps the word enum to 1..5, or 0 when unknown.
func StarRatingValue(word string) float64 {
	return starRatings[word]
}
