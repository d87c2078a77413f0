package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeher/apiserver/types"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Issue(types.User{ID: 12, Role: types.RoleModerator})
	require.NoError(t, err)

	actor, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, types.Actor{ID: 12, Role: types.RoleModerator}, actor)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).Issue(types.User{ID: 1, Role: types.RoleUser})
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, err := m.Issue(types.User{ID: 1, Role: types.RoleUser})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Issue(types.User{ID: 1, Role: "root"})
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithm(t *testing.T) {
	claims := Claims{Role: types.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Verify(token)
	assert.Error(t, err)
}
