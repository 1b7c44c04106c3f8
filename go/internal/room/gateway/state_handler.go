package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/platform/respond"
	"github.com/mcdev12/gameroom/go/internal/room/identity"
	"github.com/mcdev12/gameroom/go/internal/room/presence"
	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// RoomStateStore is the persistence the state endpoints read and reset.
type RoomStateStore interface {
	LoadTimer(ctx context.Context, roomID int64) (store.RoomTimer, error)
	ListPlayerScores(ctx context.Context, roomID int64) ([]store.PlayerScore, error)
	ListFoundItems(ctx context.Context, roomID int64) ([]store.FoundItem, error)
	RoomOwner(ctx context.Context, roomID int64) (int64, error)
	ResetRoom(ctx context.Context, roomID int64) error
}

// BearerVerifier validates a bearer credential and returns its user id.
type BearerVerifier interface {
	VerifyBearer(token string) (int64, error)
}

// RoomStateResponse represents the live state of a room
type RoomStateResponse struct {
	RoomID         int64             `json:"room_id"`
	Participants   []ParticipantInfo `json:"participants"`
	Connections    int               `json:"connections"`
	StartedAt      *time.Time        `json:"started_at"`
	PausedAt       *time.Time        `json:"paused_at"`
	TotalPauseSec  int               `json:"total_pause_duration"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Running        bool              `json:"running"`
}

// StateHandler handles HTTP requests for room state
type StateHandler struct {
	hub      *Hub
	store    RoomStateStore
	verifier BearerVerifier
}

// NewStateHandler creates a new state handler
func NewStateHandler(hub *Hub, s RoomStateStore, verifier BearerVerifier) *StateHandler {
	return &StateHandler{
		hub:      hub,
		store:    s,
		verifier: verifier,
	}
}

// HandleGetRoomState handles GET /api/rooms/{roomID}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID, ok := respond.Int64Param(r, "roomID")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	timer, err := h.store.LoadTimer(r.Context(), roomID)
	if err != nil {
		h.storeError(w, err, roomID, "failed to load room timer")
		return
	}

	participants := h.hub.Registry().Snapshot(roomID)
	respond.JSON(w, http.StatusOK, RoomStateResponse{
		RoomID:         roomID,
		Participants:   participants,
		Connections:    len(participants),
		StartedAt:      timer.StartedAt,
		PausedAt:       timer.PausedAt,
		TotalPauseSec:  timer.TotalPauseSeconds,
		ElapsedSeconds: presence.EffectiveElapsed(timer, h.hub.clock.Now()),
		Running:        timer.StartedAt != nil && timer.PausedAt == nil,
	})
}

// HandleGetScores handles GET /api/rooms/{roomID}/scores
func (h *StateHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	roomID, ok := respond.Int64Param(r, "roomID")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	scores, err := h.store.ListPlayerScores(r.Context(), roomID)
	if err != nil {
		h.storeError(w, err, roomID, "failed to list player scores")
		return
	}
	if scores == nil {
		scores = []store.PlayerScore{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"room_id": roomID, "scores": scores})
}

// HandleGetFoundItems handles GET /api/rooms/{roomID}/found-items
func (h *StateHandler) HandleGetFoundItems(w http.ResponseWriter, r *http.Request) {
	roomID, ok := respond.Int64Param(r, "roomID")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	items, err := h.store.ListFoundItems(r.Context(), roomID)
	if err != nil {
		h.storeError(w, err, roomID, "failed to list found items")
		return
	}
	if items == nil {
		items = []store.FoundItem{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"room_id": roomID, "found_items": items})
}

// HandleResetRoom handles POST /api/rooms/{roomID}/reset. Only the room owner may reset.
func (h *StateHandler) HandleResetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := respond.Int64Param(r, "roomID")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	creds := identity.CredentialsFromRequest(r)
	if creds.Bearer == "" {
		respond.Error(w, http.StatusUnauthorized, identity.ErrNoCredentials.Error())
		return
	}
	userID, err := h.verifier.VerifyBearer(creds.Bearer)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	owner, err := h.store.RoomOwner(r.Context(), roomID)
	if err != nil {
		h.storeError(w, err, roomID, "failed to load room owner")
		return
	}
	if owner != userID {
		respond.Error(w, http.StatusForbidden, "only the room owner can reset the room")
		return
	}

	if err := h.store.ResetRoom(r.Context(), roomID); err != nil {
		h.storeError(w, err, roomID, "failed to reset room")
		return
	}

	h.hub.RoomReset(r.Context(), roomID, fmt.Sprintf("user_%d", userID))
	respond.JSON(w, http.StatusOK, map[string]any{"room_id": roomID, "message": "Room reset successfully"})
}

func (h *StateHandler) storeError(w http.ResponseWriter, err error, roomID int64, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "room not found")
		return
	}
	log.Error().Err(err).Int64("room_id", roomID).Msg(msg)
	respond.Error(w, http.StatusInternalServerError, msg)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Route("/api/rooms/{roomID}", func(r chi.Router) {
		r.Get("/state", h.HandleGetRoomState)
		r.Get("/scores", h.HandleGetScores)
		r.Get("/found-items", h.HandleGetFoundItems)
		r.Post("/reset", h.HandleResetRoom)
	})
}
