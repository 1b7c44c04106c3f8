package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/platform/respond"
	"github.com/mcdev12/gameroom/go/internal/room/identity"
)

// ParticipantResolver authenticates handshake credentials for a room.
type ParticipantResolver interface {
	Resolve(ctx context.Context, roomID int64, creds identity.Credentials) (identity.Participant, error)
}

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	hub      *Hub
	resolver ParticipantResolver
	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, resolver ParticipantResolver, config ConnectionConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// HandleRoomConnection handles GET /ws/rooms/{roomID}. Credentials are checked before the
// upgrade so a rejected client gets a plain 401.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID, ok := respond.Int64Param(r, "roomID")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid room id")
		return
	}

	participant, err := h.resolver.Resolve(r.Context(), roomID, identity.CredentialsFromRequest(r))
	if err != nil {
		log.Warn().Err(err).Int64("room_id", roomID).Msg("rejecting room connection")
		switch {
		case errors.Is(err, identity.ErrNoCredentials), errors.Is(err, identity.ErrInvalidCredentials):
			respond.Error(w, http.StatusUnauthorized, err.Error())
		default:
			respond.Error(w, http.StatusInternalServerError, "failed to resolve participant")
		}
		return
	}

	if !h.hub.track() {
		respond.Error(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer h.hub.untrack()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("failed to upgrade WebSocket connection")
		return
	}

	sess := h.hub.NewSession(roomID, participant)
	log.Info().
		Str("connection_id", sess.Conn().ID).
		Int64("room_id", roomID).
		Str("participant", participant.Key).
		Bool("anonymous", participant.Anonymous()).
		Msg("WebSocket connection established")

	serve(r.Context(), ws, sess, h.config)
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.hub.Registry().Stats())
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/rooms/{roomID}", h.HandleRoomConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
