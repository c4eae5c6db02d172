package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// verifyPurpose はメール確認トークンの用途クレーム。
const verifyPurpose = "verify-email"

// ErrBadToken はトークンの署名・用途・期限のいずれかが不正であることを表す。
var ErrBadToken = errors.New("invalid token")

// VerifyClaims はメール確認トークンのクレーム。
type VerifyClaims struct {
	UserID  string `json:"uid"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// MakeVerifyToken はHS256で署名したメール確認トークンを発行する。
func MakeVerifyToken(userID, secret string, ttl time.Duration, now time.Time) (string, error) {
	c := VerifyClaims{
		UserID:  userID,
		Purpose: verifyPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// ParseVerifyToken はメール確認トークンを検証してクレームを返す。
func ParseVerifyToken(raw, secret string) (*VerifyClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &VerifyClaims{}, func(t *jwt.Token) (any, error) {
		// HMAC以外のアルゴリズムは受け付けない
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*VerifyClaims)
	if !ok || !tok.Valid || c.Purpose != verifyPurpose || c.UserID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}
