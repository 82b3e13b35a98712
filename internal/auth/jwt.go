// Package auth issues and verifies the identity tokens jaTerm attaches to
// gateway calls.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"jaterm_gateway/internal/models"
)

// DefaultTokenTTL is the lifetime of tokens issued without an explicit ttl
const DefaultTokenTTL = 15 * time.Minute

const issuer = "jaterm"

var (
	// ErrInvalidToken covers bad signatures, expiry and malformed tokens
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidRole is returned when a token carries an unknown role
	ErrInvalidRole = errors.New("token carries an unknown role")
)

// IdentityClaims identify the jaTerm user behind a request
type IdentityClaims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueIdentityToken signs an HS256 token for userID. ttl <= 0 uses DefaultTokenTTL.
func IssueIdentityToken(secret []byte, userID string, role models.Role, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("signing secret is empty")
	}
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	if !role.IsValid() {
		return "", time.Time{}, ErrInvalidRole
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := IdentityClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseIdentityToken verifies signature, algorithm and expiry and returns the claims
func ParseIdentityToken(secret []byte, tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	role, ok := models.ParseRole(string(claims.Role))
	if !ok {
		return nil, ErrInvalidRole
	}
	claims.Role = role
	return claims, nil
}
