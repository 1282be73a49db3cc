package handlers

import (
	"context"
	"net/http"

	pkghttp "github.com/connectcrm/auth-service/pkg/http"
)

// BackupRunner triggers an immediate database backup
type BackupRunner interface {
	RunNow(ctx context.Context) (string, error)
}

// AdminHandler serves operator endpoints
type AdminHandler struct {
	backups BackupRunner
}

func NewAdminHandler(backups BackupRunner) *AdminHandler {
	return &AdminHandler{backups: backups}
}

// RunBackup runs a full database backup immediately and reports the
// resulting archive path.
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "backup_disabled", "Backups are not enabled")
		return
	}

	path, err := h.backups.RunNow(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Backup failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Backup completed",
		"path":    path,
	})
}
