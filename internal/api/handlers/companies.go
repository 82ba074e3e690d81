package handlers

import (
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompaniesHandler manages tenant records.
type CompaniesHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCompaniesHandler(database *gorm.DB, logger *zap.Logger) *CompaniesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompaniesHandler{db: database, logger: logger}
}

type createCompanyRequest struct {
	Name          string `json:"name"`
	BaseURL       string `json:"baseUrl,omitempty"`
	APIToken      string `json:"apiToken,omitempty"`
	LocationID    string `json:"locationId,omitempty"`
	KiyohTenantID string `json:"kiyohTenantId,omitempty"`
	AIEnabled     bool   `json:"aiEnabled,omitempty"`
	AIProvider    string `json:"aiProvider,omitempty"`
	AIModel       string `json:"aiModel,omitempty"`
	Language      string `json:"language,omitempty"`
}

// HandleCreate registers a new tenant. Kiyoh credentials may come along
// immediately; the OAuth providers connect through their own flows.
func (h *CompaniesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	company := &models.Company{
		Name:          req.Name,
		BaseURL:       req.BaseURL,
		APIToken:      req.APIToken,
		LocationID:    req.LocationID,
		KiyohTenantID: req.KiyohTenantID,
		AIEnabled:     req.AIEnabled,
		AIProvider:    req.AIProvider,
		AIModel:       req.AIModel,
		Language:      req.Language,
	}
	if err := db.CreateCompany(h.db, company); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("company created",
		zap.String("company", company.ID),
		zap.String("name", company.Name))
	writeJSON(w, http.StatusCreated, company)
}

// HandleRegenerateAPIKey rotates the service API key. The caller's current
// key stops working as soon as the new one is returned.
func (h *CompaniesHandler) HandleRegenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	apiKey := db.RegenerateAPIKey(h.db)
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": apiKey})
}

// HandleGet returns one tenant with credential material redacted.
func (h *CompaniesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFrom(r)
	if companyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "companyId is required"})
		return
	}
	company, err := db.GetCompany(h.db, companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                company.ID,
		"name":              company.Name,
		"language":          company.Language,
		"kiyohConnected":    company.BaseURL != "" && company.APIToken != "",
		"googleConnected":   company.GMBEnabled,
		"facebookConnected": company.FBEnabled,
		"aiEnabled":         company.AIEnabled,
	})
}
