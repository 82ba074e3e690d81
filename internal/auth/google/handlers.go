package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/auth"
	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/googlebiz"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// Handlers wires the three-legged OAuth flow to the tenant store.
type Handlers struct {
	db     *gorm.DB
	config *oauth2.Config
	client *googlebiz.Client
	logger *zap.Logger
}

func NewHandlers(database *gorm.DB, config *oauth2.Config, client *googlebiz.Client, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{db: database, config: config, client: client, logger: logger}
}

// HandleLogin starts the consent flow. The tenant id travels in the state
// parameter so the callback knows which company to attach the grant to.
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

	// AccessTypeOffline with forced consent guarantees a refresh token even
	// on repeat grants.
	url := h.config.AuthCodeURL(auth.EncodeState(companyID),
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback exchanges the authorization code, resolves the tenant's
// account and first location, and persists the connection.
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

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google code exchange failed", zap.Error(err))
		http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusBadGateway)
		return
	}
	if token.RefreshToken == "" {
		http.Error(w, "google did not return a refresh token; revoke access and retry", http.StatusBadRequest)
		return
	}

	identity, err := h.client.ResolveIdentity(r.Context(), token.AccessToken)
	if err != nil {
		if errors.Is(err, review.ErrSetupIncomplete) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("google identity resolution failed", zap.Error(err))
		http.Error(w, "could not resolve business account", http.StatusBadGateway)
		return
	}

	err = db.SaveGoogleConnection(h.db, companyID, db.GoogleConnection{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		AccountID:    identity.AccountID,
		LocationID:   identity.LocationID,
	})
	if err != nil {
		h.logger.Error("saving google connection failed", zap.Error(err))
		http.Error(w, "failed to save connection", http.StatusInternalServerError)
		return
	}

	h.logger.Info("google business profile connected",
		zap.String("company", companyID),
		zap.String("account", identity.AccountID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"connected": true,
		"provider":  review.ProviderGoogle,
		"accountId": identity.AccountID,
	})
}

// HandleDisconnect clears the tenant's Google credentials.
func (h *Handlers) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	if companyID == "" {
		http.Error(w, "companyId query parameter is required", http.StatusBadRequest)
		return
	}
	if err := db.DisconnectGoogle(h.db, companyID); err != nil {
		h.logger.Error("google disconnect failed", zap.Error(err))
		http.Error(w, "failed to disconnect", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"connected": false, "provider": review.ProviderGoogle})
}
