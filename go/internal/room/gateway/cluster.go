package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// clusterEnvelope is the message exchanged between gateway instances.
type clusterEnvelope struct {
	Origin  string          `json:"origin"`
	RoomID  int64           `json:"room_id"`
	Payload json.RawMessage `json:"payload"`
}

// ClusterBus fans room broadcasts out to the other gateway instances over NATS. Each
// instance delivers to its local registry and publishes the frame on
// <prefix>.<room_id>.events; frames published by the instance itself are ignored on
// receipt.
type ClusterBus struct {
	nc     *nats.Conn
	local  *Registry
	origin string
	prefix string
	sub    *nats.Subscription
}

// ConnectCluster dials NATS and returns a bus over local. Call Start to receive.
func ConnectCluster(url, prefix string, local *Registry) (*ClusterBus, error) {
	opts := []nats.Option{
		nats.Name("room-gateway"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewClusterBus(nc, prefix, local), nil
}

// NewClusterBus creates a bus on an existing connection. A nil connection delivers
// locally only.
func NewClusterBus(nc *nats.Conn, prefix string, local *Registry) *ClusterBus {
	return &ClusterBus{
		nc:     nc,
		local:  local,
		origin: uuid.New().String(),
		prefix: prefix,
	}
}

func (b *ClusterBus) subject(roomID int64) string {
	return fmt.Sprintf("%s.%d.events", b.prefix, roomID)
}

// Start subscribes to the room events of every other instance.
func (b *ClusterBus) Start() error {
	if b.nc == nil {
		return nil
	}
	sub, err := b.nc.Subscribe(b.prefix+".*.events", func(msg *nats.Msg) {
		b.handleMessage(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to room events: %w", err)
	}
	b.sub = sub

	log.Info().
		Str("subject", sub.Subject).
		Str("origin", b.origin).
		Msg("cluster bus subscribed")
	return nil
}

// Broadcast delivers locally and publishes for the other instances. The returned count
// covers local deliveries only.
func (b *ClusterBus) Broadcast(roomID int64, frame []byte, exclude *Connection) int {
	delivered := b.local.Broadcast(roomID, frame, exclude)
	if b.nc == nil {
		return delivered
	}

	data, err := json.Marshal(clusterEnvelope{Origin: b.origin, RoomID: roomID, Payload: frame})
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("failed to marshal cluster envelope")
		return delivered
	}
	if err := b.nc.Publish(b.subject(roomID), data); err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("failed to publish room event")
	}
	return delivered
}

func (b *ClusterBus) handleMessage(data []byte) int {
	var env clusterEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal cluster envelope")
		return 0
	}
	if env.Origin == b.origin {
		return 0
	}
	return b.local.Broadcast(env.RoomID, env.Payload, nil)
}

// Close unsubscribes and drains the NATS connection.
func (b *ClusterBus) Close() error {
	if b.nc == nil {
		return nil
	}
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe from room events")
		}
	}
	return b.nc.Drain()
}
