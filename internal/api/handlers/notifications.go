package handlers

import (
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/notify"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationsHandler serves the notification inbox and its transitions.
type NotificationsHandler struct {
	db      *gorm.DB
	machine *notify.Machine
	logger  *zap.Logger
}

func NewNotificationsHandler(database *gorm.DB, machine *notify.Machine, logger *zap.Logger) *NotificationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationsHandler{db: database, machine: machine, logger: logger}
}

// HandleList returns the tenant's non-archived notifications newest first,
// with unread and pending counts for badge rendering.
func (h *NotificationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFrom(r)
	if companyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "companyId is required"})
		return
	}

	notifications, err := db.ListNotifications(h.db, companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	unread, err := db.CountUnread(h.db, companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := db.CountPending(h.db, companyID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unreadCount":   unread,
		"pendingCount":  pending,
	})
}

type notificationUpdate struct {
	CompanyID string `json:"companyId"`
	Action    string `json:"action"`
	Reply     string `json:"reply,omitempty"`
}

// HandleUpdate applies one action to one notification: approve, dismiss,
// archive or read. Approve publishes the reply upstream before committing.
func (h *NotificationsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req notificationUpdate
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

	switch req.Action {
	case "approve":
		n, err := h.machine.Approve(r.Context(), req.CompanyID, id, req.Reply)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case "dismiss":
		n, err := h.machine.Dismiss(r.Context(), req.CompanyID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case "archive":
		n, err := h.machine.Archive(r.Context(), req.CompanyID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case "read":
		n, err := db.GetNotificationByID(h.db, req.CompanyID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.db.Model(n).Update("is_read", true).Error; err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action"})
	}
}

type bulkUpdate struct {
	CompanyID string `json:"companyId"`
	Action    string `json:"action"`
}

// HandleBulkUpdate applies a sweep action: mark_all_read or
// archive_processed.
func (h *NotificationsHandler) HandleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdate
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

	var err error
	switch req.Action {
	case "mark_all_read":
		err = h.machine.MarkAllRead(req.CompanyID)
	case "archive_processed":
		err = h.machine.ArchiveProcessed(req.CompanyID)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
