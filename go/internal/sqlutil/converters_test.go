package sqlutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNullInt64RoundTrip(t *testing.T) {
	assert.False(t, ToNullInt64(nil).Valid)
	assert.Nil(t, FromNullInt64(sql.NullInt64{}))

	v := int64(42)
	got := FromNullInt64(ToNullInt64(&v))
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(42), *got)
	}
}

func TestFromSqlStringDefault(t *testing.T) {
	assert.Equal(t, "Unknown", FromSqlString(sql.NullString{}, "Unknown"))
	assert.Equal(t, "Unknown", FromSqlString(sql.NullString{Valid: true}, "Unknown"))
	assert.Equal(t, "Ada", FromSqlString(sql.NullString{String: "Ada", Valid: true}, "Unknown"))
}

func TestFromSqlTimeNormalisesToUTC(t *testing.T) {
	assert.Nil(t, FromSqlTime(sql.NullTime{}))

	loc := time.FixedZone("x", 3600)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, loc)
	got := FromSqlTime(ToSqlTime(&ts))
	if assert.NotNil(t, got) {
		assert.True(t, got.Equal(ts))
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestNullRawMessage(t *testing.T) {
	assert.False(t, ToNullRawMessage(nil).Valid)
	assert.False(t, ToNullRawMessage(json.RawMessage("null")).Valid)

	raw := json.RawMessage(`[{"row":1,"col":2}]`)
	assert.JSONEq(t, string(raw), string(FromNullRawMessage(ToNullRawMessage(raw))))
}
