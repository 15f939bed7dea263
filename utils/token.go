package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens struct to describe tokens object.
type Tokens struct {
	Access  string
	Refresh string
}

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	UserID uint
	Otp    bool
	Exp    int64
}

type TokenIssuer struct {
	AccessKey     []byte
	RefreshKey    []byte
	AccessExpire  time.Duration
	RefreshExpire time.Duration
}

// GenerateTokens creates a new access & refresh pair for the user.
// otp marks the pair as waiting for a second factor.
func (i *TokenIssuer) GenerateTokens(userID uint, otp bool) (*Tokens, error) {
	accessToken, err := generateToken(userID, otp, i.AccessExpire, i.AccessKey)
	if err != nil {
		return nil, err
	}

	refreshToken, err := generateToken(userID, otp, i.RefreshExpire, i.RefreshKey)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		Access:  accessToken,
		Refresh: refreshToken,
	}, nil
}

func (i *TokenIssuer) CheckAccess(token string) (*TokenMetadata, error) {
	return CheckAndExtractTokenMetadata(token, i.AccessKey)
}

func (i *TokenIssuer) CheckRefresh(token string) (*TokenMetadata, error) {
	return CheckAndExtractTokenMetadata(token, i.RefreshKey)
}

func generateToken(userID uint, otp bool, expire time.Duration, key []byte) (string, error) {
	claims := jwt.MapClaims{}

	claims["id"] = strconv.FormatUint(uint64(userID), 10)
	claims["otp"] = otp
	claims["exp"] = time.Now().Add(expire).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(key)
}

func CheckAndExtractTokenMetadata(token string, key []byte) (*TokenMetadata, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}

	return MetadataFromClaims(claims)
}

// MetadataFromClaims reads the claims written by generateToken.
func MetadataFromClaims(claims jwt.MapClaims) (*TokenMetadata, error) {
	rawID, _ := claims["id"].(string)
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	otp, _ := claims["otp"].(bool)
	exp, _ := claims["exp"].(float64)

	return &TokenMetadata{
		UserID: uint(id),
		Otp:    otp,
		Exp:    int64(exp),
	}, nil
}
