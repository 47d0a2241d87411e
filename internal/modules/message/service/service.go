package service

import (
	"time"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/repository"
)

// Service keeps the archive of forwarded matches
type Service struct {
	repo repository.Repository
}

// New creates a new archive service
func New(repo repository.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// SaveMatch records a forwarded match
func (s *Service) SaveMatch(match *domain.Match) error {
	return s.repo.SaveMatch(match)
}

// RecentMatches returns the newest matches across all channels
func (s *Service) RecentMatches(limit int) ([]*domain.Match, error) {
	return s.repo.GetMatches(limit)
}

// ChannelMatches returns the newest matches of one channel
func (s *Service) ChannelMatches(channelID string, limit int) ([]*domain.Match, error) {
	return s.repo.GetChannelMatches(domain.NormalizeID(channelID), limit)
}

// MatchesSince returns matches forwarded after since
func (s *Service) MatchesSince(since time.Time) ([]*domain.Match, error) {
	return s.repo.GetMatchesSince(since)
}
