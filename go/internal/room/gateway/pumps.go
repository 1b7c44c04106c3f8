package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/config"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// ConnectionConfigFrom builds a ConnectionConfig from the loaded settings.
func ConnectionConfigFrom(ws config.WebSocketConfig) ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.WriteTimeout = ws.WriteTimeout
	cfg.ReadTimeout = ws.ReadTimeout
	cfg.PingInterval = ws.PingInterval
	cfg.MaxMessageSize = ws.MaxMessageSize
	cfg.SendBuffer = ws.SendBuffer
	return cfg
}

// serve runs an activated session over ws until either side closes, then runs the exit
// action. It blocks for the lifetime of the connection.
func serve(ctx context.Context, ws *websocket.Conn, sess *Session, cfg ConnectionConfig) {
	sess.Activate(ctx)
	if sess.hub.isDraining() {
		sess.Conn().Shutdown("server shutting down")
	}
	go writePump(ws, sess.Conn(), cfg)
	readPump(ctx, ws, sess, cfg)
	sess.Close(ctx)
}

// writePump drains the outbound queue and keeps the connection alive with pings. It
// owns closing the socket.
func writePump(ws *websocket.Conn, conn *Connection, cfg ConnectionConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message := <-conn.Outbound():
			ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("failed to write message to WebSocket")
				conn.Shutdown("write failed")
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("failed to send ping")
				conn.Shutdown("ping failed")
				return
			}

		case <-conn.Done():
			ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, conn.Reason()))
			return
		}
	}
}

// readPump feeds inbound frames to the session in arrival order.
func readPump(ctx context.Context, ws *websocket.Conn, sess *Session, cfg ConnectionConfig) {
	conn := sess.Conn()
	defer conn.Shutdown("client disconnected")

	ws.SetReadLimit(cfg.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		sess.HandleFrame(ctx, message)
		ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
