package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/room/identity"
)

var testSecret = []byte("results-secret")

type verifier struct{}

func (verifier) VerifyBearer(token string) (int64, error) {
	return identity.VerifyBearer(token, testSecret)
}

func newRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	NewHandler(f.service, verifier{}).RegisterRoutes(r)
	return r
}

func TestHandleRecordAndGet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	router := newRouter(f)

	token, err := identity.IssueToken(f.ownerID, testSecret, time.Hour)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"game_id":5,"room_id":%d,"time_seconds":61,"score":9999,"completed":true}`, f.roomID)
	req := httptest.NewRequest(http.MethodPost, "/api/game-results", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 99, created.Score, "client score is ignored")
	assert.False(t, created.AlreadyExists)
	require.NotNil(t, created.UserID)
	assert.Equal(t, f.ownerID, *created.UserID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game-results", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	var again RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.True(t, again.AlreadyExists)
	assert.Equal(t, created.ID, again.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/game-results/5/%d", f.roomID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestHandleGetSoloResultNeedsUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	router := newRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game-results/5", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	token, err := identity.IssueToken(f.ownerID, testSecret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/game-results", bytes.NewBufferString(`{"game_id":5,"time_seconds":30,"completed":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/game-results/5?token="+token, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 30, got.TimeSeconds)
	assert.Equal(t, 100, got.Score)
}

func TestHandleRecordRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	router := newRouter(f)

	tests := []struct {
		name   string
		body   string
		auth   string
		status int
	}{
		{"malformed json", `{"game_id":`, "", http.StatusBadRequest},
		{"missing game", `{"time_seconds":10}`, "", http.StatusBadRequest},
		{"invalid bearer", `{"game_id":1,"time_seconds":10}`, "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/game-results", bytes.NewBufferString(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
