package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asakaze/anidex/internal/models"
	"github.com/sirupsen/logrus"
)

// FilesHandler lists indexed files
type FilesHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(db *models.Database, logger *logrus.Logger) *FilesHandler {
	return &FilesHandler{
		db:     db,
		logger: logger,
	}
}

// FileEntry is one indexed file in the listing
type FileEntry struct {
	Path     string  `json:"path"`
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Ed2k     string  `json:"ed2k"`
	FID      *uint32 `json:"fid"`
}

// ServeHTTP handles the file listing endpoint
func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	indexed, err := h.db.GetAllIndexedFiles()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list indexed files")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	entries := make([]FileEntry, 0, len(indexed))
	for _, row := range indexed {
		entries = append(entries, FileEntry{
			Path:     row.Path,
			Filename: row.Filename,
			Size:     row.Size,
			Ed2k:     row.Ed2k,
			FID:      row.FID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
