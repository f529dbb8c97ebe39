package auth

import (
	"testing"
	"time"

	"textilemart/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptPasswordHasher(t *testing.T) {
	h := NewBcryptPasswordHasher(bcrypt.MinCost)

	hashed, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hashed)

	assert.True(t, h.Verify("correct horse", hashed))
	assert.False(t, h.Verify("wrong horse", hashed))
	assert.False(t, h.Verify("correct horse", "not-a-hash"))
}

func TestNewBcryptPasswordHasher_DefaultCost(t *testing.T) {
	h := NewBcryptPasswordHasher(0)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}

func TestJWTIssuer_Issue(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	iss := NewJWTIssuer("test-secret", time.Hour)

	token, exp, err := iss.Issue(model.User{ID: 42, Role: model.RoleDelivery, TokenVersion: 3}, now)
	require.NoError(t, err)
	assert.True(t, exp.Equal(now.Add(time.Hour)))

	parsed, err := jwt.Parse(token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, jwt.SigningMethodHS256, parsed.Method)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims[ClaimSubject])
	assert.Equal(t, "delivery", claims[ClaimRole])
	assert.Equal(t, float64(3), claims[ClaimTokenVersion])
	assert.Equal(t, float64(exp.Unix()), claims["exp"])
}

func TestJWTIssuer_RejectsMissingUser(t *testing.T) {
	_, _, err := NewJWTIssuer("s", time.Hour).Issue(model.User{}, time.Now())
	assert.Error(t, err)
}

func TestResetToken(t *testing.T) {
	plain, hash, err := NewResetToken()
	require.NoError(t, err)

	assert.Len(t, plain, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, plain, hash)
	assert.Equal(t, hash, HashResetToken(plain))

	other, _, err := NewResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
}
