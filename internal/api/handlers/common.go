// Package handlers implements the JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Xeno9948/KiyohMobileUI/internal/db"
	"github.com/Xeno9948/KiyohMobileUI/internal/notify"
	"github.com/Xeno9948/KiyohMobileUI/internal/review"
	"github.com/Xeno9948/KiyohMobileUI/internal/sync"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto HTTP statuses. Unknown errors become
// an opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, db.ErrCompanyNotFound),
		errors.Is(err, db.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, review.ErrCredentialsMissing),
		errors.Is(err, review.ErrSetupIncomplete):
		status = http.StatusBadRequest
	case errors.Is(err, review.ErrAuthExpired),
		errors.Is(err, review.ErrRefreshFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, sync.ErrSyncInProgress),
		errors.Is(err, notify.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, review.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, review.ErrUnreachable):
		status = http.StatusBadGateway
	default:
		var upstream *review.UpstreamError
		if errors.As(err, &upstream) {
			status = http.StatusBadGateway
		} else {
			message = "internal server error"
		}
	}

	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// companyIDFrom reads the tenant id from the query string or, as a
// fallback, from a header set by the mobile client.
func companyIDFrom(r *http.Request) string {
	if id := r.URL.Query().Get("companyId"); id != "" {
		return id
	}
	return r.Header.Get("X-Company-ID")
}
