package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/room/presence"
)

func TestClusterBusDeliversRemoteFrames(t *testing.T) {
	local := NewRegistry(presence.NewSequencer())
	a := newConn(4, "a")
	local.Register(a)
	bus := NewClusterBus(nil, "rooms", local)

	remote, err := json.Marshal(clusterEnvelope{
		Origin:  "other-instance",
		RoomID:  4,
		Payload: json.RawMessage(`{"type":"QuizAdvance","question_index":2}`),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, bus.handleMessage(remote))
	require.Len(t, a.Outbound(), 1)
	assert.JSONEq(t, `{"type":"QuizAdvance","question_index":2}`, string(<-a.Outbound()))
}

func TestClusterBusIgnoresOwnFrames(t *testing.T) {
	local := NewRegistry(presence.NewSequencer())
	a := newConn(4, "a")
	local.Register(a)
	bus := NewClusterBus(nil, "rooms", local)

	own, err := json.Marshal(clusterEnvelope{Origin: bus.origin, RoomID: 4, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 0, bus.handleMessage(own))
	assert.Equal(t, 0, bus.handleMessage([]byte(`not json`)))
	assert.Len(t, a.Outbound(), 0)
}

func TestClusterBusWithoutConnectionBroadcastsLocally(t *testing.T) {
	local := NewRegistry(presence.NewSequencer())
	a, b := newConn(4, "a"), newConn(4, "b")
	local.Register(a)
	local.Register(b)
	bus := NewClusterBus(nil, "rooms", local)

	require.NoError(t, bus.Start())
	assert.Equal(t, 1, bus.Broadcast(4, []byte(`{}`), a))
	assert.Equal(t, "rooms.4.events", bus.subject(4))
	assert.NoError(t, bus.Close())
}
