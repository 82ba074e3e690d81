package handlers

import (
	"net/http"
	"time"

	"github.com/Xeno9948/KiyohMobileUI/internal/ai"
	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AIHandler serves the strong-points analysis endpoints.
type AIHandler struct {
	db        *gorm.DB
	generator *ai.Generator

	defaultProvider string
	defaultModel    string
	logger          *zap.Logger
}

func NewAIHandler(database *gorm.DB, generator *ai.Generator, defaultProvider, defaultModel string, logger *zap.Logger) *AIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIHandler{
		db:              database,
		generator:       generator,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		logger:          logger,
	}
}

type analyzeRequest struct {
	CompanyID string `json:"companyId"`
	Language  string `json:"language,omitempty"`
}

// HandleAnalyze runs the strong-points analysis over the tenant's recent
// review texts and caches the result per language. The generator degrades
// to fallback phrases on model failure, so this route only errors on
// storage problems.
func (h *AIHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
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

	company, err := db.GetCompany(h.db, req.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}
	language := req.Language
	if language == "" {
		language = company.Language
	}

	texts, err := db.RecentReviewTexts(h.db, req.CompanyID, 50)
	if err != nil {
		writeError(w, err)
		return
	}

	points, err := h.generator.AnalyzeStrongPoints(r.Context(), h.settingsFor(company, language), texts)
	if err != nil {
		// Fallback phrases come back with the error; serve them and keep
		// the cause in the log.
		h.logger.Warn("strong points analysis degraded to fallback",
			zap.String("company", req.CompanyID), zap.Error(err))
	}

	if len(points) > 0 {
		if err := db.SaveStrongPoints(h.db, req.CompanyID, language, points); err != nil {
			h.logger.Warn("caching strong points failed",
				zap.String("company", req.CompanyID), zap.Error(err))
		}
	}

	if points == nil {
		points = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"strongPoints": points,
		"language":     language,
		"reviewCount":  len(texts),
	})
}

// settingsFor merges the tenant's model configuration with the server
// defaults.
func (h *AIHandler) settingsFor(company *models.Company, language string) ai.Settings {
	settings := ai.Settings{
		Provider:    company.AIProvider,
		Model:       company.AIModel,
		Language:    language,
		CompanyName: company.Name,
	}
	if settings.Provider == "" {
		settings.Provider = h.defaultProvider
	}
	if settings.Model == "" {
		settings.Model = h.defaultModel
	}
	return settings
}

type draftRequest struct {
	CompanyID    string  `json:"companyId"`
	Provider     string  `json:"provider,omitempty"`
	ReviewAuthor string  `json:"reviewAuthor"`
	ReviewRating float64 `json:"reviewRating"`
	ReviewText   string  `json:"reviewText"`
}

// HandleDraft generates a fresh reply suggestion for an arbitrary review,
// independent of any stored notification. Unlike the sync path this route
// does not degrade to an empty draft; callers asked for a draft explicitly
// and get the failure back.
func (h *AIHandler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
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
	if req.Provider == "" {
		req.Provider = review.ProviderKiyoh
	}
	if !review.KnownProvider(req.Provider) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown provider: " + req.Provider})
		return
	}

	company, err := db.GetCompany(h.db, req.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !company.AIEnabled {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "AI responses are disabled for this company"})
		return
	}

	rev := review.Review{
		Provider:  req.Provider,
		Author:    req.ReviewAuthor,
		Rating:    req.ReviewRating,
		Text:      req.ReviewText,
		CreatedAt: time.Now(),
	}
	draft, err := h.generator.Draft(r.Context(), h.settingsFor(company, company.Language), rev)
	if err != nil {
		h.logger.Warn("draft generation failed",
			zap.String("company", req.CompanyID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"suggestedResponse": draft})
}

// HandleCachedAnalysis returns the cached strong points for one language
// without touching any model.
func (h *AIHandler) HandleCachedAnalysis(w http.ResponseWriter, r *http.Request) {
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
	language := r.URL.Query().Get("language")
	if language == "" {
		language = company.Language
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"strongPoints": db.StrongPoints(company, language),
		"language":     language,
	})
}
