package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/repositories"
	pkghttp "github.com/connectcrm/auth-service/pkg/http"
)

// SecurityLogLister defines the audit listing the handler needs
type SecurityLogLister interface {
	List(ctx context.Context, filter repositories.SecurityLogFilter) ([]*models.SecurityLog, error)
}

// SecurityLogHandler serves the admin security log view
type SecurityLogHandler struct {
	audit SecurityLogLister
}

func NewSecurityLogHandler(audit SecurityLogLister) *SecurityLogHandler {
	return &SecurityLogHandler{audit: audit}
}

// List returns audit entries newest-first. Query parameters: event_type,
// account_id, limit, offset.
func (h *SecurityLogHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.SecurityLogFilter{
		EventType: r.URL.Query().Get("event_type"),
		AccountID: r.URL.Query().Get("account_id"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			pkghttp.WriteBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
