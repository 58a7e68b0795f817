package handlers

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"redas-backend/internal/export"
	"redas-backend/internal/storage"
)

// FileHandler serves and removes archived exports in file storage.
type FileHandler struct {
	store storage.Store
	log   *zap.Logger
}

// NewFileHandler creates a FileHandler for the given storage backend.
func NewFileHandler(store storage.Store, log *zap.Logger) *FileHandler {
	return &FileHandler{store: store, log: log}
}

// ServeFile streams a stored file. For R2 storage it redirects to the
// public CDN URL instead.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filePath, ok := storedPath(w, r)
	if !ok {
		return
	}

	if url := h.store.URL(filePath); strings.HasPrefix(url, "https://") {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	f, err := h.store.Open(r.Context(), filePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.log.Warn("open stored file", zap.String("path", filePath), zap.Error(err))
		}
		JSONError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	if strings.HasSuffix(filePath, ".xlsx") {
		w.Header().Set("Content-Type", export.ContentType)
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+path.Base(filePath)+"\"")
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn("stream stored file", zap.String("path", filePath), zap.Error(err))
	}
}

// DeleteFile removes an archived export. Deleting a missing file succeeds.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	filePath, ok := storedPath(w, r)
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), filePath); err != nil {
		h.log.Error("delete stored file", zap.String("path", filePath), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}
	h.log.Info("stored file deleted", zap.String("path", filePath), zap.Int64("user_id", actor.ID))
	JSON(w, http.StatusOK, map[string]interface{}{"message": "File deleted successfully"})
}

func storedPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	filePath := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if filePath == "" || filePath == r.URL.Path {
		JSONError(w, http.StatusBadRequest, "File path required")
		return "", false
	}
	return filePath, true
}
