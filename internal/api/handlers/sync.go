package handlers

import (
	"errors"
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/sync"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SyncHandler triggers review synchronization for a tenant.
type SyncHandler struct {
	db           *gorm.DB
	orchestrator *sync.Orchestrator
	logger       *zap.Logger
}

func NewSyncHandler(database *gorm.DB, orchestrator *sync.Orchestrator, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{db: database, orchestrator: orchestrator, logger: logger}
}

type syncRequest struct {
	CompanyID string `json:"companyId"`
	Provider  string `json:"provider"`
}

type providerResult struct {
	Provider   string `json:"provider"`
	NewReviews int    `json:"newReviews"`
	Error      string `json:"error,omitempty"`
}

// HandleSync runs one sync. With an explicit provider only that provider
// runs; otherwise every configured provider of the tenant runs in turn and
// per-provider failures are reported alongside the successes.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CompanyID == "" {
		req.CompanyID = companyIDFrom(r)
	}
	if req.CompanyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "companyId is required"})
		return
	}

	if req.Provider != "" {
		if !review.KnownProvider(req.Provider) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown provider"})
			return
		}
		count, err := h.orchestrator.SyncTenant(r.Context(), req.CompanyID, req.Provider)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, providerResult{Provider: req.Provider, NewReviews: count})
		return
	}

	company, err := db.GetCompany(h.db, req.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}

	providers := []string{}
	if company.BaseURL != "" && company.APIToken != "" {
		providers = append(providers, review.ProviderKiyoh)
	}
	if company.GMBEnabled {
		providers = append(providers, review.ProviderGoogle)
	}
	if company.FBEnabled {
		providers = append(providers, review.ProviderFacebook)
	}
	if len(providers) == 0 {
		writeError(w, review.ErrCredentialsMissing)
		return
	}

	results := make([]providerResult, 0, len(providers))
	total := 0
	for _, provider := range providers {
		count, err := h.orchestrator.SyncTenant(r.Context(), req.CompanyID, provider)
		res := providerResult{Provider: provider, NewReviews: count}
		if err != nil {
			res.Error = err.Error()
			if !errors.Is(err, sync.ErrSyncInProgress) {
				h.logger.Warn("provider sync failed",
					zap.String("company", req.CompanyID),
					zap.String("provider", provider),
					zap.Error(err))
			}
		}
		total += count
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"newReviews": total,
		"providers":  results,
	})
}

// HandleSyncHistory lists recent sync runs for a tenant.
func (h *SyncHandler) HandleSyncHistory(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFrom(r)
	if companyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "companyId is required"})
		return
	}
	runs, err := db.RecentSyncRuns(h.db, companyID, 20)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := db.SyncRunStats(h.db, companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"stats": stats,
	})
}
