package jwtutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, key string, claims UserClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	assert.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	util := NewJWTUtil("test-key")

	t.Run("Valid", func(t *testing.T) {
		token := signToken(t, "test-key", UserClaims{
			Email:  "tenant@example.com",
			UserID: 7,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		claims, err := util.ValidateToken(token)
		assert.NoError(t, err)
		assert.Equal(t, uint(7), claims.UserID)
		assert.Equal(t, "tenant@example.com", claims.Email)
	})

	t.Run("Wrong Key", func(t *testing.T) {
		token := signToken(t, "other-key", UserClaims{UserID: 7})
		_, err := util.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		token := signToken(t, "test-key", UserClaims{
			UserID: 7,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		_, err := util.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := util.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}
