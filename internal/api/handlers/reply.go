package handlers

import (
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/notify"
	"go.uber.org/zap"
)

// ReplyHandler publishes review replies.
type ReplyHandler struct {
	machine *notify.Machine
	logger  *zap.Logger
}

func NewReplyHandler(machine *notify.Machine, logger *zap.Logger) *ReplyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyHandler{machine: machine, logger: logger}
}

type replyRequest struct {
	CompanyID      string `json:"companyId"`
	NotificationID string `json:"notificationId"`
	Reply          string `json:"reply"`
}

// HandleReply publishes a reply for a pending notification. Equivalent to
// the approve action; the mobile client's reply screen calls this route.
func (h *ReplyHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CompanyID == "" {
		req.CompanyID = companyIDFrom(r)
	}
	if req.CompanyID == "" || req.NotificationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "companyId and notificationId are required"})
		return
	}

	n, err := h.machine.Approve(r.Context(), req.CompanyID, req.NotificationID, req.Reply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
