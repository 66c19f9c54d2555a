package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/asakaze/anidex/internal/models"
	"github.com/asakaze/anidex/internal/utils"
	"github.com/sirupsen/logrus"
)

// AnimeHandler serves one cached show with its episodes. It reads only the
// local store; an id the cache does not hold is a 404, not a remote lookup.
type AnimeHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewAnimeHandler creates a new anime handler
func NewAnimeHandler(db *models.Database, logger *logrus.Logger) *AnimeHandler {
	return &AnimeHandler{
		db:     db,
		logger: logger,
	}
}

// AnimeResponse is a show plus its cached episodes in episode-number order
type AnimeResponse struct {
	Anime    *models.Anime     `json:"anime"`
	Episodes []*models.Episode `json:"episodes"`
}

// ServeHTTP handles /api/anime/{id}
func (h *AnimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/anime/")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		http.Error(w, "Invalid anime id", http.StatusBadRequest)
		return
	}

	anime, err := h.db.GetAnime(uint32(id))
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "Anime not cached", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load anime")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	episodes, err := h.db.GetEpisodesByAnime(anime.AID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load episodes")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	sort.Slice(episodes, func(i, j int) bool {
		return utils.CompareEpisodeNumbers(episodes[i].EpNo, episodes[j].EpNo) < 0
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AnimeResponse{
		Anime:    anime,
		Episodes: episodes,
	})
}
