package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wuwenbin0122/useradmin/internal/models"
	"github.com/wuwenbin0122/useradmin/internal/users/userstest"
)

func newBareService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService("super-secret", time.Hour, userstest.NewStore(), NewHasher(bcrypt.MinCost, 1))
	require.NoError(t, err)
	return svc
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := newBareService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.generateToken(models.Identity{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	svc := newBareService(t)
	other, err := NewService("other-secret", time.Hour, userstest.NewStore(), NewHasher(bcrypt.MinCost, 1))
	require.NoError(t, err)

	token, _, err := other.generateToken(models.Identity{ID: "u2"})
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsUnexpectedAlgorithm(t *testing.T) {
	svc := newBareService(t)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u3",
		Issuer:    defaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRequiresExpiry(t *testing.T) {
	svc := newBareService(t)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u4", Issuer: defaultIssuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateTokenCarriesIdentity(t *testing.T) {
	svc := newBareService(t)

	token, expiresAt, err := svc.generateToken(models.Identity{ID: "u5", Email: "u5@example.com"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: "u5", Email: "u5@example.com"}, claims.Identity())
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, defaultIssuer, claims.Issuer)
}
