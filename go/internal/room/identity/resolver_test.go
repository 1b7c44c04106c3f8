package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/cache"
	"github.com/mcdev12/gameroom/go/internal/room/store"
)

var testSecret = []byte("test-secret")

type fakeParticipants struct {
	byUser    map[int64]store.Participant
	bySession map[string]store.Participant
	err       error
	lookups   int
}

func (f *fakeParticipants) LookupParticipant(_ context.Context, _ int64, q store.ParticipantQuery) (store.Participant, error) {
	f.lookups++
	if f.err != nil {
		return store.Participant{}, f.err
	}
	if q.UserID != nil {
		if p, ok := f.byUser[*q.UserID]; ok {
			return p, nil
		}
		return store.Participant{}, store.ErrNotFound
	}
	if p, ok := f.bySession[q.SessionToken]; ok {
		return p, nil
	}
	return store.Participant{}, store.ErrNotFound
}

func (f *fakeParticipants) RoomOwner(context.Context, int64) (int64, error) { return 0, nil }
func (f *fakeParticipants) RoomName(context.Context, int64) (string, error) { return "", nil }

func TestResolveBearer(t *testing.T) {
	t.Parallel()
	participants := &fakeParticipants{byUser: map[int64]store.Participant{
		42: {DisplayName: "Ada", Color: "#3B82F6", IsOwner: true},
	}}
	r := NewResolver(testSecret, participants, nil, time.Minute)

	token, err := IssueToken(42, testSecret, time.Hour)
	require.NoError(t, err)

	p, err := r.Resolve(context.Background(), 1, Credentials{Bearer: token, SessionToken: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, "user_42", p.Key)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.False(t, p.Anonymous())
	assert.True(t, p.IsPresenter())
}

func TestResolveSessionToken(t *testing.T) {
	t.Parallel()
	participants := &fakeParticipants{bySession: map[string]store.Participant{
		"abc-123": {DisplayName: "Guest", Color: "#EF4444"},
	}}
	r := NewResolver(testSecret, participants, nil, time.Minute)

	p, err := r.Resolve(context.Background(), 1, Credentials{SessionToken: "abc-123"})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", p.Key)
	assert.Equal(t, AnonymousID("abc-123"), p.ID)
	assert.True(t, p.Anonymous())
	assert.False(t, p.IsPresenter())
	assert.Equal(t, "Guest", p.DisplayName)
}

func TestResolveFallsBackToPlaceholder(t *testing.T) {
	t.Parallel()
	for name, participants := range map[string]*fakeParticipants{
		"not found":     {},
		"store failure": {err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			r := NewResolver(testSecret, participants, nil, time.Minute)
			p, err := r.Resolve(context.Background(), 1, Credentials{SessionToken: "nobody"})
			require.NoError(t, err)
			assert.Equal(t, PlaceholderName, p.DisplayName)
			assert.Equal(t, PlaceholderColor, p.Color)
		})
	}
}

func TestResolveRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	r := NewResolver(testSecret, &fakeParticipants{}, nil, time.Minute)
	ctx := context.Background()

	_, err := r.Resolve(ctx, 1, Credentials{})
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = r.Resolve(ctx, 1, Credentials{Bearer: "not-a-jwt"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	wrongKey, err := IssueToken(1, []byte("other"), time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, 1, Credentials{Bearer: wrongKey, SessionToken: "valid"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "an invalid bearer is not rescued by a session token")

	expired, err := IssueToken(1, testSecret, -time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, 1, Credentials{Bearer: expired})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	for _, tok := range []string{"has space", "user_7", "semi;colon", string(make([]byte, 200))} {
		_, err = r.Resolve(ctx, 1, Credentials{SessionToken: tok})
		assert.ErrorIs(t, err, ErrInvalidCredentials, "token %q", tok)
	}
}

func TestVerifyBearerClaims(t *testing.T) {
	t.Parallel()
	sign := func(claims jwt.MapClaims, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
		require.NoError(t, err)
		return s
	}

	id, err := VerifyBearer(sign(jwt.MapClaims{"sub": 9}, jwt.SigningMethodHS256), testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	id, err = VerifyBearer(sign(jwt.MapClaims{"user_id": "15"}, jwt.SigningMethodHS256), testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(15), id)

	_, err = VerifyBearer(sign(jwt.MapClaims{"sub": "alice"}, jwt.SigningMethodHS256), testSecret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = VerifyBearer(sign(jwt.MapClaims{"sub": 9}, jwt.SigningMethodHS512), testSecret)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "only HS256 is accepted")
}

func TestResolverCachesFoundParticipants(t *testing.T) {
	t.Parallel()
	c := cache.NewMemoryCache()
	defer c.Close()
	participants := &fakeParticipants{bySession: map[string]store.Participant{
		"s1": {DisplayName: "Cached", Color: "#000000"},
	}}
	r := NewResolver(testSecret, participants, c, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := r.Resolve(ctx, 5, Credentials{SessionToken: "s1"})
		require.NoError(t, err)
		assert.Equal(t, "Cached", p.DisplayName)
	}
	assert.Equal(t, 1, participants.lookups)

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(ctx, 5, Credentials{SessionToken: "missing"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, participants.lookups, "misses are not cached")
}

func TestCredentialsFromRequest(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest("GET", "/ws/rooms/1?token=q-token&session_id=s-1", nil)
	c := CredentialsFromRequest(req)
	assert.Equal(t, "q-token", c.Bearer)
	assert.Equal(t, "s-1", c.SessionToken)

	req.Header.Set("Authorization", "Bearer h-token")
	c = CredentialsFromRequest(req)
	assert.Equal(t, "h-token", c.Bearer)
}

func TestAnonymousIDRange(t *testing.T) {
	t.Parallel()
	for _, tok := range []string{"a", "b", "session-123", "ZZZZZZZZZZ"} {
		id := AnonymousID(tok)
		assert.GreaterOrEqual(t, id, int64(1))
		assert.LessOrEqual(t, id, int64(1000000))
		assert.Equal(t, id, AnonymousID(tok))
	}
}
