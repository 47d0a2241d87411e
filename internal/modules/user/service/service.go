package service

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/repository"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Service authorizes bot operators and keeps their command history
type Service struct {
	repo    repository.Repository
	allowed []int64
	clock   clockwork.Clock
}

// New creates a new user service. An empty allow list admits everyone.
func New(repo repository.Repository, allowed []int64, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:    repo,
		allowed: allowed,
		clock:   clock,
	}
}

// IsAuthorized checks if a user may issue commands
func (s *Service) IsAuthorized(userID int64) bool {
	if len(s.allowed) == 0 {
		return true
	}
	return lo.Contains(s.allowed, userID)
}

// Authorize returns ErrUnauthorized for users outside the allow list
func (s *Service) Authorize(userID int64) error {
	if s.IsAuthorized(userID) {
		return nil
	}
	return oops.In("user").With("user_id", userID).Wrap(apperrors.ErrUnauthorized)
}

// RecordCommand stores that a user issued command and returns the
// updated record
func (s *Service) RecordCommand(userID int64, username, command string) (*domain.User, error) {
	now := s.clock.Now()

	user, err := s.repo.GetUser(userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		user = &domain.User{ID: userID, FirstSeen: now}
	}

	if username != "" {
		user.Username = username
	}
	user.LastSeen = now
	user.LastCommand = command
	user.Commands++
	user.Authorized = s.IsAuthorized(userID)

	if err := s.repo.SaveUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetAllUsers returns known operators, most recently active first
func (s *Service) GetAllUsers() ([]*domain.User, error) {
	return s.repo.ListUsers(time.Time{})
}
