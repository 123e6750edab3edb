package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chefmate-backend/internal/middleware"
	"chefmate-backend/internal/models"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// SessionService mints and rotates anonymous guest sessions: an access JWT
// plus an opaque refresh token held in Redis. Conversations and eval runs
// are owned by the session that created them.
type SessionService struct {
	redis *redis.Client
	jwt   *middleware.JWTAuth
}

func NewSessionService(redisClient *redis.Client, jwt *middleware.JWTAuth) *SessionService {
	return &SessionService{redis: redisClient, jwt: jwt}
}

// Create mints a fresh session.
func (s *SessionService) Create(ctx context.Context) (*models.SessionTokens, error) {
	return s.issueTokens(ctx, uuid.New())
}

// Refresh rotates a refresh token: the old token is deleted and a new pair
// is issued for the same session.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.SessionTokens, error) {
	if refreshToken == "" {
		return nil, &ValidationError{Fields: map[string]string{"refresh_token": "Refresh token is required"}}
	}

	sessionIDStr, err := s.redis.Get(ctx, "refresh:"+refreshToken).Result()
	if err != nil {
		return nil, &UnauthorizedError{Message: "Invalid or expired refresh token"}
	}

	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID in refresh token: %w", err)
	}

	// Delete old token (rotation)
	s.redis.Del(ctx, "refresh:"+refreshToken)

	return s.issueTokens(ctx, sessionID)
}

func (s *SessionService) issueTokens(ctx context.Context, sessionID uuid.UUID) (*models.SessionTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(64)
	if err != nil {
		return nil, err
	}

	// Store refresh token in Redis (7 days)
	err = s.redis.Set(ctx, "refresh:"+refreshToken, sessionID.String(), refreshTokenTTL).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.SessionTokens{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    900,
	}, nil
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }
