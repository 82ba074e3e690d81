package handlers

import (
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/kiyoh"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatsHandler aggregates per-provider rating statistics for one tenant.
type StatsHandler struct {
	db     *gorm.DB
	kiyoh  *kiyoh.Client
	logger *zap.Logger
}

func NewStatsHandler(database *gorm.DB, kiyohClient *kiyoh.Client, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{db: database, kiyoh: kiyohClient, logger: logger}
}

// HandleStats combines live Kiyoh statistics with local aggregates for the
// OAuth providers. A failing provider yields a null section, not a failed
// response: the dashboard renders what it can.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
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

	out := map[string]any{
		"kiyoh":    nil,
		"google":   nil,
		"facebook": nil,
	}

	if company.BaseURL != "" && company.APIToken != "" {
		creds := review.Credentials{
			BaseURL:    company.BaseURL,
			APIToken:   company.APIToken,
			LocationID: company.LocationID,
			TenantID:   company.KiyohTenantID,
		}
		stats, err := h.kiyoh.Statistics(r.Context(), creds)
		if err != nil {
			h.logger.Warn("kiyoh statistics unavailable",
				zap.String("company", companyID), zap.Error(err))
		} else {
			out["kiyoh"] = stats
		}
	}

	if company.GMBEnabled {
		stats, err := db.GMBStats(h.db, companyID)
		if err != nil {
			h.logger.Warn("gmb stats query failed",
				zap.String("company", companyID), zap.Error(err))
		} else {
			out["google"] = stats
		}
	}

	if company.FBEnabled {
		stats, err := db.FacebookStats(h.db, companyID)
		if err != nil {
			h.logger.Warn("facebook stats query failed",
				zap.String("company", companyID), zap.Error(err))
		} else {
			out["facebook"] = stats
		}
	}

	if pending, err := db.CountPending(h.db, companyID); err == nil {
		out["pendingCount"] = pending
	}
	if unread, err := db.CountUnread(h.db, companyID); err == nil {
		out["unreadCount"] = unread
	}

	writeJSON(w, http.StatusOK, out)
}
