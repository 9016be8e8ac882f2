// internal/common/utils/jwt.go
// JWT token validation for the engine's protected endpoints.
// Token issuance lives in the auth collaborator; this engine only verifies.

package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTClaims carries the subset of token claims the engine cares about
type JWTClaims struct {
	UserID int64  `json:"user_id"`
	Type   string `json:"type"` // "access" or "refresh"
}

// GenerateJWT creates a signed access token. Used by tests and local tooling;
// production tokens come from the auth service.
func GenerateJWT(userID int64, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": fmt.Sprintf("%d", userID),
		"type":    "access",
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns claims
func ValidateJWT(tokenString string, secret string) (*JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid user_id in token")
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return nil, errors.New("invalid user_id format")
	}

	tokenType, _ := claims["type"].(string)

	return &JWTClaims{UserID: userID, Type: tokenType}, nil
}
