// Package facebook implements the Facebook page OAuth connect flow.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/auth"
	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDialogBaseURL = "https://www.facebook.com/v19.0"
	defaultGraphBaseURL  = "https://graph.facebook.com/v19.0"

	// Long-lived tokens last about 60 days. Facebook does not always return
	// an expires_in for them, so this is the conservative local assumption.
	defaultTokenLifetime = 60 * 24 * time.Hour
)

// Scopes needed to read page ratings and post comment replies.
const scopes = "pages_show_list,pages_read_user_content,pages_manage_engagement"

// Handlers wires the Facebook login dialog flow to the tenant store.
type Handlers struct {
	db          *gorm.DB
	appID       string
	appSecret   string
	redirectURL string
	httpClient  *http.Client
	logger      *zap.Logger

	dialogBaseURL string
	graphBaseURL  string
}

func NewHandlers(database *gorm.DB, appID, appSecret, redirectURL string, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		db:            database,
		appID:         appID,
		appSecret:     appSecret,
		redirectURL:   redirectURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
		dialogBaseURL: defaultDialogBaseURL,
		graphBaseURL:  defaultGraphBaseURL,
	}
}

// SetBaseURLs overrides the dialog and graph endpoints. Used by tests.
func (h *Handlers) SetBaseURLs(dialog, graph string) {
	h.dialogBaseURL = dialog
	h.graphBaseURL = graph
}

// HandleLogin redirects to the Facebook login dialog. The tenant id
// travels in the state parameter.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	if companyID == "" {
		http.Error(w, "companyId query parameter is required", http.StatusBadRequest)
		return
	}
	if _, err := db.GetCompany(h.db, companyID); err != nil {
		http.Error(w, "unknown company", http.StatusNotFound)
		return
	}

	q := url.Values{}
	q.Set("client_id", h.appID)
	q.Set("redirect_uri", h.redirectURL)
	q.Set("state", auth.EncodeState(companyID))
	q.Set("scope", scopes)

	http.Redirect(w, r, h.dialogBaseURL+"/dialog/oauth?"+q.Encode(), http.StatusTemporaryRedirect)
}

// HandleCallback exchanges the code for a short-lived user token, upgrades
// it to a long-lived one, picks the first managed page and persists the
// connection with that page's access token.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "consent denied: "+errMsg, http.StatusBadRequest)
		return
	}

	companyID, err := auth.DecodeState(r.URL.Query().Get("state"))
	if err != nil {
		http.Error(w, "invalid state token", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	shortToken, _, err := h.exchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("facebook code exchange failed", zap.Error(err))
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	longToken, lifetime, err := h.extendToken(r.Context(), shortToken)
	if err != nil {
		// A short-lived token still works for about an hour. Better a brief
		// connection than none.
		h.logger.Warn("facebook token extension failed, keeping short-lived token", zap.Error(err))
		longToken, lifetime = shortToken, time.Hour
	}

	page, err := h.firstPage(r.Context(), longToken)
	if err != nil {
		h.logger.Error("facebook page lookup failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = db.SaveFacebookConnection(h.db, companyID, db.FacebookConnection{
		UserAccessToken: longToken,
		PageAccessToken: page.AccessToken,
		PageID:          page.ID,
		TokenExpiry:     time.Now().Add(lifetime),
	})
	if err != nil {
		h.logger.Error("saving facebook connection failed", zap.Error(err))
		http.Error(w, "failed to save connection", http.StatusInternalServerError)
		return
	}

	h.logger.Info("facebook page connected",
		zap.String("company", companyID),
		zap.String("page", page.ID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"connected": true,
		"provider":  review.ProviderFacebook,
		"pageId":    page.ID,
		"pageName":  page.Name,
	})
}

// HandleDisconnect clears the tenant's Facebook credentials and drops the
// locally cached page ratings, which are unreadable without a page token.
func (h *Handlers) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	if companyID == "" {
		http.Error(w, "companyId query parameter is required", http.StatusBadRequest)
		return
	}
	if err := db.DisconnectFacebook(h.db, companyID); err != nil {
		h.logger.Error("facebook disconnect failed", zap.Error(err))
		http.Error(w, "failed to disconnect", http.StatusInternalServerError)
		return
	}
	if _, err := db.DeleteFacebookReviews(h.db, companyID); err != nil {
		h.logger.Warn("clearing cached facebook reviews failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"connected": false, "provider": review.ProviderFacebook})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handlers) exchangeCode(ctx context.Context, code string) (string, time.Duration, error) {
	q := url.Values{}
	q.Set("client_id", h.appID)
	q.Set("client_secret", h.appSecret)
	q.Set("redirect_uri", h.redirectURL)
	q.Set("code", code)
	return h.fetchToken(ctx, q)
}

func (h *Handlers) extendToken(ctx context.Context, shortToken string) (string, time.Duration, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", h.appID)
	q.Set("client_secret", h.appSecret)
	q.Set("fb_exchange_token", shortToken)
	return h.fetchToken(ctx, q)
}

func (h *Handlers) fetchToken(ctx context.Context, q url.Values) (string, time.Duration, error) {
	endpoint := h.graphBaseURL + "/oauth/access_token?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("facebook oauth: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", 0, review.StatusError(review.ProviderFacebook, resp.StatusCode, util.TruncateBytes(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", 0, fmt.Errorf("malformed token response: %s", util.TruncateBytes(body))
	}
	lifetime := defaultTokenLifetime
	if tok.ExpiresIn > 0 {
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	}
	return tok.AccessToken, lifetime, nil
}

type page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// firstPage returns the first page the user manages. Single-page tenants
// are the norm; multi-page selection is a UI concern this service does not
// have.
func (h *Handlers) firstPage(ctx context.Context, userToken string) (*page, error) {
	endpoint := h.graphBaseURL + "/me/accounts?access_token=" + url.QueryEscape(userToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook pages: %v: %w", err, review.ErrUnreachable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, review.StatusError(review.ProviderFacebook, resp.StatusCode, util.TruncateBytes(body))
	}

	var pages struct {
		Data []page `json:"data"`
	}
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("malformed pages response: %s", util.TruncateBytes(body))
	}
	if len(pages.Data) == 0 {
		return nil, fmt.Errorf("no managed pages for this user: %w", review.ErrSetupIncomplete)
	}
	if pages.Data[0].AccessToken == "" {
		return nil, fmt.Errorf("page %s returned no access token: %w", pages.Data[0].ID, review.ErrSetupIncomplete)
	}
	return &pages.Data[0], nil
}
