package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		sessionID string
		want      Identity
		wantErr   error
	}{
		{name: "user", userID: "u-1", want: UserIdentity("u-1")},
		{name: "session", sessionID: " s-1 ", want: SessionIdentity("s-1")},
		{name: "both", userID: "u-1", sessionID: "s-1", wantErr: ErrMissingIdentity},
		{name: "neither", wantErr: ErrMissingIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IdentityFromRequest(tt.userID, tt.sessionID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
		})
	}
}

func TestIdentity_EqualDistinguishesKinds(t *testing.T) {
	assert.False(t, UserIdentity("abc").Equal(SessionIdentity("abc")))
	assert.True(t, UserIdentity("abc").Equal(UserIdentity("abc")))
	assert.False(t, Identity{}.Equal(Identity{}))
}

func TestIdentity_JSONRoundTrip(t *testing.T) {
	in := Verification{Identity: SessionIdentity("tok-42")}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"identity":"session:tok-42"`)

	var out Verification
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Identity.Equal(in.Identity))
}

func TestParseIdentity_RejectsHalfSetColumns(t *testing.T) {
	_, err := ParseIdentity("user", "")
	require.Error(t, err)

	id, err := ParseIdentity("", "")
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	kind, ref := id.NullableColumns()
	assert.Nil(t, kind)
	assert.Nil(t, ref)
}

func TestOutOfRangeError_MatchesSentinel(t *testing.T) {
	var err error = &OutOfRangeError{Distance: 812.4, Limit: 500}

	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.Contains(t, err.Error(), "812")

	var oor *OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, 500.0, oor.Limit)
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusVerified, StatusInvestigating, StatusResolved} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("closed").Valid())
	assert.False(t, Status("").Valid())
	assert.True(t, StatusResolved.Terminal())
	assert.False(t, StatusInvestigating.Terminal())
}
