package identity

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	id, err := Parse(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, KindNumeric, id.Kind())
	n, err := id.Uint()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
	assert.Equal(t, "n:42", id.Key())

	u := uuid.New()
	id, err = Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, KindOpaque, id.Kind())
	got, err := id.UUID()
	require.NoError(t, err)
	assert.Equal(t, u, got)

	for _, bad := range []string{"", "0", "abc", "12a"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidUserID, bad)
	}
}

func TestAccessorsRejectWrongKind(t *testing.T) {
	_, err := Numeric(7).UUID()
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = FromUUID(uuid.New()).Uint()
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestAdapterFailsLoudlyOnMismatch(t *testing.T) {
	users := NewAdapter(BackendUsers)
	profiles := NewAdapter(BackendProfiles)
	opaque := FromUUID(uuid.New())

	assert.NoError(t, users.Check(Numeric(1)))
	assert.ErrorIs(t, users.Check(opaque), ErrKindMismatch)
	assert.NoError(t, profiles.Check(opaque))
	assert.ErrorIs(t, profiles.Check(Numeric(1)), ErrKindMismatch)

	_, err := profiles.Parse("15")
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendUsers, b)

	b, err = ParseBackend("Profiles")
	require.NoError(t, err)
	assert.Equal(t, BackendProfiles, b)

	_, err = ParseBackend("mongo")
	assert.Error(t, err)
}

func TestJSONRoundTripKeepsKind(t *testing.T) {
	type wrapper struct {
		ID UserID `json:"id"`
	}

	data, err := json.Marshal(wrapper{ID: Numeric(9)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9}`, string(data))

	u := uuid.New()
	data, err = json.Marshal(wrapper{ID: FromUUID(u)})
	require.NoError(t, err)

	var w wrapper
	require.NoError(t, json.Unmarshal(data, &w))
	assert.True(t, w.ID.Equal(FromUUID(u)))
}
