package repository

import (
	"time"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
)

// Repository defines the interface for forwarded match persistence
type Repository interface {
	SaveMatch(match *domain.Match) error
	GetMatches(limit int) ([]*domain.Match, error)
	GetChannelMatches(channelID string, limit int) ([]*domain.Match, error)
	GetMatchesSince(since time.Time) ([]*domain.Match, error)
}
