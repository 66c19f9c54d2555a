package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asakaze/anidex/internal/indexer"
	"github.com/asakaze/anidex/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	runner *indexer.Runner
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, runner *indexer.Runner, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		runner: runner,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	IndexedFiles int `json:"indexed_files"`
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`

	Anime    int `json:"anime"`
	Episodes int `json:"episodes"`
	Files    int `json:"files"`
	Groups   int `json:"groups"`

	ScanRunning bool           `json:"scan_running"`
	LastScan    *indexer.Stats `json:"last_scan,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	response := StatusResponse{
		IndexedFiles: len(indexed),
	}
	for _, row := range indexed {
		if row.FID != nil {
			response.Matched++
		} else {
			response.Unmatched++
		}
	}

	if response.Anime, err = h.db.CountAnime(); err == nil {
		if response.Episodes, err = h.db.CountEpisodes(); err == nil {
			if response.Files, err = h.db.CountFiles(); err == nil {
				response.Groups, err = h.db.CountGroups()
			}
		}
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to count cached entities")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	running, last, lastErr := h.runner.Status()
	response.ScanRunning = running
	response.LastScan = last
	if lastErr != nil {
		response.LastError = lastErr.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
