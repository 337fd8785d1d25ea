package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartplate/smartplate-api/internal/model"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestNewTokenManagerRejectsWeakSecrets(t *testing.T) {
	_, err := NewTokenManager("", "x", time.Minute, time.Hour)
	assert.Error(t, err)
	_, err = NewTokenManager("same", "same", time.Minute, time.Hour)
	assert.Error(t, err)
	_, err = NewTokenManager("a", "b", 0, time.Hour)
	assert.Error(t, err)
}

func TestAccessRoundTrip(t *testing.T) {
	m := newManager(t)
	sub := Subject{ID: "3f8b3c1e-1111-4c1a-9d43-aaaaaaaaaaaa", Role: model.RoleUser, FirstLogin: true, MustChangePassword: true}

	tok, err := m.IssueAccess(sub)
	require.NoError(t, err)
	assert.Empty(t, tok.ID)

	claims, err := m.Verify(tok.Token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, sub, claims.Holder())
	assert.Equal(t, KindAccess, claims.Kind)
	assert.WithinDuration(t, tok.Exp, claims.ExpiresAt.Time, time.Second)
}

func TestRefreshCarriesUniqueID(t *testing.T) {
	m := newManager(t)
	sub := Subject{ID: "u1", Role: model.RoleAdmin}

	a, err := m.IssueRefresh(sub)
	require.NoError(t, err)
	b, err := m.IssueRefresh(sub)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	claims, err := m.Verify(a.Token, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, a.ID, claims.ID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestKindsUseDistinctSecrets(t *testing.T) {
	m := newManager(t)
	sub := Subject{ID: "u1", Role: model.RoleUser}

	access, err := m.IssueAccess(sub)
	require.NoError(t, err)
	refresh, err := m.IssueRefresh(sub)
	require.NoError(t, err)

	_, err = m.Verify(access.Token, KindRefresh)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = m.Verify(refresh.Token, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyExpired(t *testing.T) {
	m := newManager(t)
	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return issuedAt }

	tok, err := m.IssueAccess(Subject{ID: "u1", Role: model.RoleUser})
	require.NoError(t, err)

	m.Now = func() time.Time { return issuedAt.Add(16 * time.Minute) }
	_, err = m.Verify(tok.Token, KindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	m := newManager(t)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]Claims{
		"no subject": {Role: model.RoleUser, Kind: KindAccess, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}},
		"no role":    {Kind: KindAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp}},
		"bad role":   {Role: "owner", Kind: KindAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp}},
		"wrong kind": {Role: model.RoleUser, Kind: KindRefresh, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp}},
		"no expiry":  {Role: model.RoleUser, Kind: KindAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}},
	}
	for name, c := range cases {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.accessSecret)
		require.NoError(t, err)
		_, err = m.Verify(raw, KindAccess)
		assert.ErrorIs(t, err, ErrMalformedToken, name)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	m := newManager(t)
	c := Claims{Role: model.RoleUser, Kind: KindAccess, RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(raw, KindAccess)
	assert.Error(t, err)

	_, err = m.Verify("not.a.jwt", KindAccess)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestIssueRejectsIncompleteSubject(t *testing.T) {
	m := newManager(t)
	_, err := m.IssueAccess(Subject{Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrMalformedToken)
	_, err = m.IssueRefresh(Subject{ID: "u1"})
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestHashRefreshRaw(t *testing.T) {
	h := HashRefreshRaw("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshRaw("abc"))
	assert.NotEqual(t, h, HashRefreshRaw("abd"))
}
