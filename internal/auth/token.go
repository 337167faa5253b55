package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	purposeSession       = "session"
	purposePasswordReset = "password_reset"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`

	// Stamp binds a reset token to the password hash it was issued against.
	Stamp string `json:"stamp,omitempty"`
}

func issueToken(secret []byte, purpose, id, subject string, issuedAt, expiresAt time.Time) (string, error) {
	return signClaims(secret, newClaims(purpose, id, subject, issuedAt, expiresAt))
}

func issueResetToken(secret []byte, id, subject, stamp string, issuedAt, expiresAt time.Time) (string, error) {
	claims := newClaims(purposePasswordReset, id, subject, issuedAt, expiresAt)
	claims.Stamp = stamp
	return signClaims(secret, claims)
}

func newClaims(purpose, id, subject string, issuedAt, expiresAt time.Time) tokenClaims {
	return tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Purpose: purpose,
	}
}

func signClaims(secret []byte, claims tokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// passwordStamp changes whenever the stored hash does, so a used reset token
// stops matching.
func passwordStamp(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func parseToken(tokenString string, secret []byte, purpose string) (tokenClaims, error) {
	claims := tokenClaims{}
	if strings.TrimSpace(tokenString) == "" {
		return claims, errors.New("missing token")
	}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return claims, err
	}
	if !token.Valid {
		return claims, errors.New("invalid token")
	}
	if claims.Purpose != purpose {
		return claims, errors.New("wrong token purpose")
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("missing subject")
	}
	return claims, nil
}
