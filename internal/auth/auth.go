package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Token errors
var (
	ErrMissingToken  = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrInvalidFormat = errors.New("invalid token format")
)

// IdentityProvider resolves a bearer token into the calling actor.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (models.Actor, error)
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidFormat
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrInvalidFormat
	}
	return token, nil
}
