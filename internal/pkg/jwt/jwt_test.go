package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "mx-identity",
		Audience:      "mx-api",
	})
	require.NoError(t, err)
	return iss
}

var testIdentity = Identity{
	UserID:   "u-1",
	TenantID: "t-1",
	RoleID:   "admin",
	Email:    "owner@example.com",
}

func TestNewIssuerRejectsSharedSecret(t *testing.T) {
	_, err := NewIssuer(Config{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)

	_, err = NewIssuer(Config{AccessSecret: "", RefreshSecret: "x"})
	assert.Error(t, err)
}

func TestIssuePairRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)

	pair, err := iss.IssuePair(testIdentity)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.JTI)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	access, err := iss.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", access.UserID)
	assert.Equal(t, "t-1", access.TenantID)
	assert.Equal(t, "admin", access.RoleID)
	assert.Equal(t, "owner@example.com", access.Email)
	assert.Equal(t, TypeAccess, access.TokenType)
	assert.Equal(t, pair.JTI, access.ID)

	refresh, err := iss.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", refresh.UserID)
	assert.Equal(t, TypeRefresh, refresh.TokenType)
	assert.Empty(t, refresh.RoleID)
	assert.Equal(t, pair.JTI, refresh.ID)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	iss := newTestIssuer(t)
	pair, err := iss.IssuePair(testIdentity)
	require.NoError(t, err)

	_, err = iss.VerifyRefresh(pair.AccessToken)
	assert.Error(t, err)

	_, err = iss.VerifyAccess(pair.RefreshToken)
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	iss, err := NewIssuer(Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     -time.Minute,
	})
	require.NoError(t, err)

	token, err := iss.IssueAccess(testIdentity)
	require.NoError(t, err)

	_, err = iss.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	iss := newTestIssuer(t)
	other, err := NewIssuer(Config{
		AccessSecret:  "other-access-secret",
		RefreshSecret: "other-refresh-secret",
	})
	require.NoError(t, err)

	token, err := other.IssueAccess(testIdentity)
	require.NoError(t, err)

	_, err = iss.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss := newTestIssuer(t)
	_, err := iss.VerifyAccess("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDecodeUnverified(t *testing.T) {
	iss := newTestIssuer(t)
	token, err := iss.IssueAccess(testIdentity)
	require.NoError(t, err)

	claims, err := DecodeUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)

	// Tampered payloads still decode; only Verify* may gate trust.
	claims, err = DecodeUnverified(token + "tampered")
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}
