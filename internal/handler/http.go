package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/metrics"
	"github.com/arcade-progress/internal/service"
	"github.com/arcade-progress/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Handler provides HTTP handlers for the progress API
type Handler struct {
	service *service.ProgressService
	hub     *websocket.Hub
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.ProgressService, hub *websocket.Hub, metrics *metrics.Recorder, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", h.ListCatalog)
		r.Get("/achievements", h.ListAchievements)
		r.Post("/scores/batch", h.SubmitScoreBatch)

		r.Route("/leaderboards/{game}", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/players/{playerID}", h.GetPlayerRank)
		})

		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Post("/scores", h.SubmitScore)
			r.Get("/scores", h.GetAllScores)
			r.Get("/scores/recent", h.GetRecentScores)
			r.Get("/scores/best", h.GetAllBestScores)

			r.Get("/games", h.ListGames)
			r.Get("/games/{game}/top", h.GetTopScores)
			r.Get("/games/{game}/best", h.GetBestScore)

			r.Get("/stats", h.GetGameStats)
			r.Get("/achievements", h.GetAchievements)
			r.Get("/profile", h.GetProfile)

			r.Get("/favorites", h.GetFavorites)
			r.Get("/favorites/{game}", h.IsFavorite)
			r.Post("/favorites/{game}/toggle", h.ToggleFavorite)

			r.Get("/name", h.GetPlayerName)
			r.Put("/name", h.SetPlayerName)
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error onto a status code
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case domain.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrSubmissionInFlight):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error("storage unavailable", "op", op, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrStorageUnavailable)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decodeBody reads a JSON body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// queryLimit parses ?limit=. Missing or malformed values yield 0, which the
// service replaces with its default.
func queryLimit(r *http.Request) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return 0
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]any{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports whether the backing store is reachable
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrStorageUnavailable)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListCatalog returns the game catalog
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, achievement.Games())
}

// ListAchievements returns every achievement definition
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, achievement.Defs())
}

// SubmitScoreBatch handles batch score submission
func (h *Handler) SubmitScoreBatch(w http.ResponseWriter, r *http.Request) {
	var batch domain.BatchScoreSubmission
	if err := decodeBody(w, r, &batch); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(batch.Scores) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	outcome, err := h.service.SubmitScoreBatch(r.Context(), batch)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrStorageUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, domain.ErrSubmissionInFlight):
			status = http.StatusConflict
		}
		h.logger.Warn("batch partially failed",
			"received", len(batch.Scores),
			"failed", outcome.Failed,
			"error", err,
		)
		h.writeJSON(w, status, APIResponse{
			Success: false,
			Data:    outcome,
			Error:   fmt.Sprintf("%d of %d scores failed and may be resubmitted", outcome.Failed, len(batch.Scores)),
		})
		return
	}

	h.writeSuccess(w, outcome)
}

// GetLeaderboard returns the global top players of a game
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GlobalLeaderboard(r.Context(), chi.URLParam(r, "game"), queryLimit(r))
	if err != nil {
		h.writeServiceError(w, "get leaderboard", err)
		return
	}
	h.writeSuccess(w, entries)
}

// GetPlayerRank returns a player's rank on the global board of a game
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GlobalRank(r.Context(), chi.URLParam(r, "game"), chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeServiceError(w, "get player rank", err)
		return
	}
	h.writeSuccess(w, entry)
}
