package utils

import (
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	secret := gofakeit.LetterN(16)
	userID := uint64(gofakeit.Number(1, 1<<30))

	tok, err := NewAccessToken(secret, userID, "ADMIN", 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 2*time.Second)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, jwt.SigningMethodHS256.Alg(), parsed.Method.Alg())

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(userID, 10), sub)
	assert.Equal(t, "ADMIN", claims["role"])
}
