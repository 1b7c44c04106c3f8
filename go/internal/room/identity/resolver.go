// Package identity resolves who is behind a connecting socket: an authenticated user
// presenting a bearer credential, or an anonymous player presenting the session token
// handed out by the join step.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/cache"
	"github.com/mcdev12/gameroom/go/internal/room/store"
)

var (
	// ErrNoCredentials is returned when the handshake carries neither credential.
	ErrNoCredentials = errors.New("no credentials provided")
	// ErrInvalidCredentials is returned for a bad bearer or a malformed session token.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Placeholder identity used when a credential is valid but no participant row matches.
const (
	PlaceholderName  = "Unknown"
	PlaceholderColor = "#10B981"
)

const (
	userKeyPrefix   = "user_"
	maxSessionToken = 128
)

// Participant is the server-known identity of a connection.
type Participant struct {
	// ID is the user id, or a stable id derived from the session token.
	ID     int64
	UserID *int64
	// Key identifies the participant within a room: the session token, or user_<id>.
	Key         string
	DisplayName string
	Color       string
	IsOwner     bool
}

// Anonymous reports whether the participant connected with a session token.
func (p Participant) Anonymous() bool {
	return p.UserID == nil
}

// IsPresenter reports whether the participant may drive presenter-only events.
func (p Participant) IsPresenter() bool {
	return p.UserID != nil && p.IsOwner
}

// Credentials are the raw handshake credentials.
type Credentials struct {
	Bearer       string
	SessionToken string
}

// CredentialsFromRequest extracts credentials from the Authorization header or the token
// and session_id query parameters. Browsers cannot set headers on a socket handshake,
// hence the query fallback.
func CredentialsFromRequest(r *http.Request) Credentials {
	q := r.URL.Query()
	c := Credentials{SessionToken: q.Get("session_id")}

	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			c.Bearer = strings.TrimSpace(after)
		} else {
			c.Bearer = h
		}
	} else {
		c.Bearer = q.Get("token")
	}
	return c
}

// Resolver turns credentials into a Participant.
type Resolver struct {
	secret       []byte
	participants store.ParticipantStore
	cache        cache.Cache
	cacheTTL     time.Duration
}

// NewResolver creates a Resolver. c may be nil to disable caching.
func NewResolver(secret []byte, participants store.ParticipantStore, c cache.Cache, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		secret:       secret,
		participants: participants,
		cache:        c,
		cacheTTL:     cacheTTL,
	}
}

// VerifyBearer validates a bearer credential with the resolver's secret.
func (r *Resolver) VerifyBearer(token string) (int64, error) {
	return VerifyBearer(token, r.secret)
}

// Resolve authenticates creds for roomID. A bearer credential takes precedence over a
// session token. A valid credential without a participant row resolves to the
// placeholder identity.
func (r *Resolver) Resolve(ctx context.Context, roomID int64, creds Credentials) (Participant, error) {
	var (
		p Participant
		q store.ParticipantQuery
	)
	switch {
	case creds.Bearer != "":
		userID, err := r.VerifyBearer(creds.Bearer)
		if err != nil {
			return Participant{}, err
		}
		p = Participant{ID: userID, UserID: &userID, Key: fmt.Sprintf("%s%d", userKeyPrefix, userID)}
		q = store.ParticipantQuery{UserID: &userID}
	case creds.SessionToken != "":
		if !validSessionToken(creds.SessionToken) {
			return Participant{}, fmt.Errorf("%w: malformed session token", ErrInvalidCredentials)
		}
		p = Participant{ID: AnonymousID(creds.SessionToken), Key: creds.SessionToken}
		q = store.ParticipantQuery{SessionToken: creds.SessionToken}
	default:
		return Participant{}, ErrNoCredentials
	}

	stored, err := r.lookup(ctx, roomID, p.Key, q)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn().Int64("room_id", roomID).Str("participant", p.Key).Msg("participant not found, using placeholder identity")
	case err != nil:
		log.Error().Err(err).Int64("room_id", roomID).Str("participant", p.Key).Msg("participant lookup failed, using placeholder identity")
	}

	p.DisplayName = orDefault(stored.DisplayName, PlaceholderName)
	p.Color = orDefault(stored.Color, PlaceholderColor)
	p.IsOwner = stored.IsOwner
	return p, nil
}

func (r *Resolver) lookup(ctx context.Context, roomID int64, key string, q store.ParticipantQuery) (store.Participant, error) {
	cacheKey := fmt.Sprintf("participant:%d:%s", roomID, key)
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, cacheKey); err == nil {
			var p store.Participant
			if err := json.Unmarshal(data, &p); err == nil {
				return p, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("key", cacheKey).Msg("participant cache read failed")
		}
	}

	p, err := r.participants.LookupParticipant(ctx, roomID, q)
	if err != nil {
		return store.Participant{}, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			if err := r.cache.Set(ctx, cacheKey, data, r.cacheTTL); err != nil {
				log.Warn().Err(err).Str("key", cacheKey).Msg("participant cache write failed")
			}
		}
	}
	return p, nil
}

// AnonymousID derives a stable player id in [1, 1000000] from a session token.
func AnonymousID(sessionToken string) int64 {
	h := fnv.New32a()
	h.Write([]byte(sessionToken))
	return int64(h.Sum32()%1000000) + 1
}

// validSessionToken accepts opaque tokens of URL-safe characters. The user_ prefix is
// reserved for authenticated participant keys.
func validSessionToken(tok string) bool {
	if len(tok) > maxSessionToken || strings.HasPrefix(tok, userKeyPrefix) {
		return false
	}
	for _, c := range tok {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
