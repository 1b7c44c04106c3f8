package results

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/platform/respond"
	"github.com/mcdev12/gameroom/go/internal/room/identity"
	"github.com/mcdev12/gameroom/go/internal/room/store"
)

const maxBodyBytes = 1 << 16

// BearerVerifier validates a bearer credential and returns its user id.
type BearerVerifier interface {
	VerifyBearer(token string) (int64, error)
}

// RecordResponse is a stored result plus whether it predated the request.
type RecordResponse struct {
	store.GameResult
	AlreadyExists bool `json:"already_exists"`
}

// Handler serves the game results endpoints.
type Handler struct {
	service  *Service
	verifier BearerVerifier
}

// NewHandler creates a results handler.
func NewHandler(service *Service, verifier BearerVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// userFromRequest returns the caller's user id, nil for anonymous callers.
func (h *Handler) userFromRequest(r *http.Request) (*int64, error) {
	creds := identity.CredentialsFromRequest(r)
	if creds.Bearer == "" {
		return nil, nil
	}
	userID, err := h.verifier.VerifyBearer(creds.Bearer)
	if err != nil {
		return nil, err
	}
	return &userID, nil
}

// HandleRecord handles POST /api/game-results
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userFromRequest(r)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	var sub Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, existed, err := h.service.Record(r.Context(), userID, sub)
	switch {
	case errors.Is(err, ErrInvalidSubmission):
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Int64("game_id", sub.GameID).Msg("failed to record game result")
		respond.Error(w, http.StatusInternalServerError, "failed to record game result")
		return
	}
	respond.JSON(w, http.StatusOK, RecordResponse{GameResult: result, AlreadyExists: existed})
}

// HandleGet handles GET /api/game-results/{gameID} and /api/game-results/{gameID}/{roomID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	gameID, ok := respond.Int64Param(r, "gameID")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game id")
		return
	}

	var roomID *int64
	if chi.URLParam(r, "roomID") != "" {
		id, ok := respond.Int64Param(r, "roomID")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid room id")
			return
		}
		roomID = &id
	}

	userID, err := h.userFromRequest(r)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	result, err := h.service.Get(r.Context(), gameID, roomID, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Game result not found")
		return
	case err != nil:
		log.Error().Err(err).Int64("game_id", gameID).Msg("failed to load game result")
		respond.Error(w, http.StatusInternalServerError, "failed to load game result")
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

// RegisterRoutes registers the game results routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/game-results", func(r chi.Router) {
		r.Post("/", h.HandleRecord)
		r.Get("/{gameID}", h.HandleGet)
		r.Get("/{gameID}/{roomID}", h.HandleGet)
	})
}
