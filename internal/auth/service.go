package auth

import (
	"context"
	"errors"
	"fmt"

	"signin/internal/platform/metrics"
)

var (
	// ErrEmailNotVerified is returned for claims whose email Google has not verified.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrUserStore wraps user store failures.
	ErrUserStore = errors.New("user store failure")
)

// Service provides user business logic for the sign-in flow.
type Service struct {
	repo    Repository
	metrics metrics.Recorder
}

// NewService creates a new auth Service. A nil recorder disables metrics.
func NewService(repo Repository, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{
		repo:    repo,
		metrics: recorder,
	}
}

// CreateOrUpdateUser upserts the user described by verified claims. The
// returned value is built from the claims rather than re-read from storage.
func (s *Service) CreateOrUpdateUser(ctx context.Context, claims *GoogleClaims) (*User, error) {
	if claims == nil || !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	user := claims.User()
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		s.metrics.RecordUpsert(false)
		return nil, fmt.Errorf("%w: %w", ErrUserStore, err)
	}
	s.metrics.RecordUpsert(true)

	return &user, nil
}

// GetUser loads a user by subject identifier; it returns nil when unknown.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, nil
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
