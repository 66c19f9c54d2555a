package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/asakaze/anidex/internal/indexer"
	"github.com/sirupsen/logrus"
)

// ScanHandler triggers index runs
type ScanHandler struct {
	runner *indexer.Runner
	logger *logrus.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(runner *indexer.Runner, logger *logrus.Logger) *ScanHandler {
	return &ScanHandler{
		runner: runner,
		logger: logger,
	}
}

// ServeHTTP handles POST /api/scan
func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := h.runner.Trigger()
	if !started {
		h.logger.Debug("Scan already running, trigger ignored")
	}

	w.Header().Set("Content-Type", "application/json")
	if !started {
		w.WriteHeader(http.StatusConflict)
	} else {
		w.WriteHeader(http.StatusAccepted)
	}
	json.NewEncoder(w).Encode(map[string]bool{"started": started})
}
