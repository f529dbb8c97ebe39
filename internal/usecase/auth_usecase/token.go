// Package auth holds the credential primitives: password hashing, access
// token signing and password-reset tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"textilemart/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// JWTのclaim名
const (
	ClaimSubject      = "sub"
	ClaimRole         = "role"
	ClaimTokenVersion = "tv"
)

// パスワード再設定トークンの有効期限
const ResetTokenTTL = 30 * time.Minute

// HS256でアクセストークンを発行する
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), ttl: ttl}
}

// jwt発行
func (i *JWTIssuer) Issue(user model.User, now time.Time) (string, time.Time, error) {
	if user.ID <= 0 {
		return "", time.Time{}, errors.New("user id required")
	}
	exp := now.Add(i.ttl)

	claims := jwt.MapClaims{
		ClaimSubject:      user.ID,
		ClaimRole:         string(user.Role),
		ClaimTokenVersion: user.TokenVersion,
		"iat":             now.Unix(),
		"exp":             exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// 再設定トークン生成（平文はメールへ、DBにはhashだけ）
func NewResetToken() (plain string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(b)
	return plain, HashResetToken(plain), nil
}

func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
