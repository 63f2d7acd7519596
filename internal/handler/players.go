package handler

import (
	"net/http"

	"github.com/arcade-progress/internal/domain"
	"github.com/go-chi/chi/v5"
)

type playerName struct {
	Name string `json:"name"`
}

// SubmitScore records a finished game for the player in the path
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := decodeBody(w, r, &submission); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	submission.PlayerID = chi.URLParam(r, "playerID")

	result, err := h.service.SubmitScore(r.Context(), submission)
	if err != nil {
		h.writeServiceError(w, "submit score", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    result,
	})
}

// GetAllScores returns every score of the player
func (h *Handler) GetAllScores(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetAllScores(r.Context(), chi.URLParam(r, "playerID")))
}

// GetRecentScores returns the player's latest scores
func (h *Handler) GetRecentScores(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetRecentScores(r.Context(), chi.URLParam(r, "playerID"), queryLimit(r)))
}

// GetAllBestScores returns the best entry per played game
func (h *Handler) GetAllBestScores(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetAllBestScores(r.Context(), chi.URLParam(r, "playerID")))
}

// ListGames returns the catalog with the player's favorites and play counts
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.ListGames(r.Context(), chi.URLParam(r, "playerID")))
}

// GetTopScores returns the player's best scores of a game
func (h *Handler) GetTopScores(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	game := chi.URLParam(r, "game")
	h.writeSuccess(w, h.service.GetTopScores(r.Context(), playerID, game, queryLimit(r)))
}

// GetBestScore returns the player's best entry of a game
func (h *Handler) GetBestScore(w http.ResponseWriter, r *http.Request) {
	best, err := h.service.GetBestScore(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "game"))
	if err != nil {
		h.writeServiceError(w, "get best score", err)
		return
	}
	h.writeSuccess(w, best)
}

// GetGameStats returns per-game play statistics
func (h *Handler) GetGameStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetGameStats(r.Context(), chi.URLParam(r, "playerID")))
}

// GetAchievements returns the player's unlocked achievements
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetAchievements(r.Context(), chi.URLParam(r, "playerID")))
}

// GetProfile returns the derived player dashboard
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetProfile(r.Context(), chi.URLParam(r, "playerID")))
}

// GetFavorites returns the player's favorite games
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.GetFavorites(r.Context(), chi.URLParam(r, "playerID")))
}

// IsFavorite reports whether a game is a favorite
func (h *Handler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")
	h.writeSuccess(w, map[string]any{
		"game":     game,
		"favorite": h.service.IsFavorite(r.Context(), chi.URLParam(r, "playerID"), game),
	})
}

// ToggleFavorite flips the favorite flag and returns the new state
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	game := chi.URLParam(r, "game")
	favorite, err := h.service.ToggleFavorite(r.Context(), chi.URLParam(r, "playerID"), game)
	if err != nil {
		h.writeServiceError(w, "toggle favorite", err)
		return
	}
	h.writeSuccess(w, map[string]any{
		"game":     game,
		"favorite": favorite,
	})
}

// GetPlayerName returns the player's display name
func (h *Handler) GetPlayerName(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, playerName{Name: h.service.GetPlayerName(r.Context(), chi.URLParam(r, "playerID"))})
}

// SetPlayerName updates the player's display name
func (h *Handler) SetPlayerName(w http.ResponseWriter, r *http.Request) {
	var req playerName
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	playerID := chi.URLParam(r, "playerID")
	if err := h.service.SetPlayerName(r.Context(), playerID, req.Name); err != nil {
		h.writeServiceError(w, "set player name", err)
		return
	}
	h.writeSuccess(w, playerName{Name: h.service.GetPlayerName(r.Context(), playerID)})
}
