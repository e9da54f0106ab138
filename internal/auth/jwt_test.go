package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gthanmon/gemini-account-manager/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret, "account-manager")

	token, err := v.Issue(model.Caller{UserID: "user-1", Role: model.RoleUser}, time.Hour)
	require.NoError(t, err)

	caller, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.UserID)
	assert.Equal(t, model.RoleUser, caller.Role)
	assert.False(t, caller.IsAdmin())
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(testSecret, "account-manager")

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue(model.Caller{UserID: "u", Role: model.RoleUser}, -time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier("another-secret-another-secret-xx", "account-manager")
		token, err := other.Issue(model.Caller{UserID: "u", Role: model.RoleUser}, time.Hour)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewVerifier(testSecret, "someone-else")
		token, err := other.Issue(model.Caller{UserID: "u", Role: model.RoleAdmin}, time.Hour)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := v.Issue(model.Caller{UserID: "u", Role: "root"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, ErrMissingRole)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			Role: model.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u",
				Issuer:    "account-manager",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Parse(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
