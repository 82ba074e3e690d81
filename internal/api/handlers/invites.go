package handlers

import (
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/db/models"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/review/kiyoh"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvitesHandler sends Kiyoh review invitations and lists the ones sent.
type InvitesHandler struct {
	db     *gorm.DB
	kiyoh  *kiyoh.Client
	logger *zap.Logger
}

func NewInvitesHandler(database *gorm.DB, kiyohClient *kiyoh.Client, logger *zap.Logger) *InvitesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvitesHandler{db: database, kiyoh: kiyohClient, logger: logger}
}

type inviteRequest struct {
	CompanyID string `json:"companyId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	RefCode   string `json:"refCode,omitempty"`
	Language  string `json:"language,omitempty"`
	Delay     int    `json:"delay,omitempty"`
}

// HandleSend asks Kiyoh to mail a review invitation and records it locally.
// The row is written only after the upstream call succeeds.
func (h *InvitesHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
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
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	company, err := db.GetCompany(h.db, req.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}
	if company.BaseURL == "" || company.APIToken == "" {
		writeError(w, review.ErrCredentialsMissing)
		return
	}
	creds := review.Credentials{
		BaseURL:    company.BaseURL,
		APIToken:   company.APIToken,
		LocationID: company.LocationID,
		TenantID:   company.KiyohTenantID,
	}

	language := req.Language
	if language == "" {
		language = "nl"
	}
	invite := kiyoh.Invite{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RefCode:   req.RefCode,
		Language:  language,
		Delay:     req.Delay,
	}
	if err := h.kiyoh.SendInvite(r.Context(), creds, invite); err != nil {
		h.logger.Warn("kiyoh invite failed",
			zap.String("company", req.CompanyID), zap.Error(err))
		writeError(w, err)
		return
	}

	row, err := db.RecordInvite(h.db, models.ReviewInvite{
		CompanyID: req.CompanyID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RefCode:   req.RefCode,
		Language:  language,
		Delay:     req.Delay,
	})
	if err != nil {
		// The invitation went out; a failed audit row should not report
		// the send as failed.
		h.logger.Warn("recording invite failed",
			zap.String("company", req.CompanyID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"invite":  row,
	})
}

// HandleList returns the tenant's recent invitations, newest first.
func (h *InvitesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFrom(r)
	if companyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "companyId is required"})
		return
	}
	invites, err := db.RecentInvites(h.db, companyID, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites})
}
