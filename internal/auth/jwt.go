package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const hasuraClaimsKey = "https://hasura.io/jwt/claims"

// GenerateJWT issues an HS256 token for the local backend. The token carries
// the same Hasura claims the hosted auth service issues so both backends
// read the user id the same way.
func GenerateJWT(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	claims[hasuraClaimsKey] = map[string]interface{}{
		"x-hasura-user-id":       userID,
		"x-hasura-default-role":  "user",
		"x-hasura-allowed-roles": []string{"user"},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateJWT(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return userIDFromClaims(claims)
	}
	return "", fmt.Errorf("invalid token")
}

// ParseClaims reads the user id and expiry of a token issued by the hosted
// auth service without verifying its signature; the GraphQL engine verifies
// it on every request.
func ParseClaims(tokenString string) (userID string, expiresAt time.Time, err error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, errors.New("unexpected claims type")
	}
	userID, err = userIDFromClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return userID, expiresAt, nil
}

func userIDFromClaims(claims jwt.MapClaims) (string, error) {
	if hasura, ok := claims[hasuraClaimsKey].(map[string]interface{}); ok {
		if id, ok := hasura["x-hasura-user-id"].(string); ok && id != "" {
			return id, nil
		}
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", errors.New("token carries no user id")
}
