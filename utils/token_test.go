package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer() *TokenIssuer {
	return &TokenIssuer{
		AccessKey:     []byte("access"),
		RefreshKey:    []byte("refresh"),
		AccessExpire:  time.Minute,
		RefreshExpire: time.Hour,
	}
}

func TestGenerateAndCheckTokens(t *testing.T) {
	issuer := testIssuer()

	tokens, err := issuer.GenerateTokens(42, true)
	require.NoError(t, err)

	access, err := issuer.CheckAccess(tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), access.UserID)
	assert.True(t, access.Otp)
	assert.Greater(t, access.Exp, time.Now().Unix())

	refresh, err := issuer.CheckRefresh(tokens.Refresh)
	require.NoError(t, err)
	assert.Equal(t, uint(42), refresh.UserID)

	_, err = issuer.CheckAccess(tokens.Refresh)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	issuer := testIssuer()
	issuer.AccessExpire = -time.Minute

	tokens, err := issuer.GenerateTokens(1, false)
	require.NoError(t, err)

	_, err = issuer.CheckAccess(tokens.Access)
	assert.Error(t, err)
}

func TestMetadataFromClaimsRejectsMissingID(t *testing.T) {
	_, err := MetadataFromClaims(jwt.MapClaims{"otp": false})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = MetadataFromClaims(jwt.MapClaims{"id": "0"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
