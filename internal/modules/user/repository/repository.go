package repository

import (
	"time"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/domain"
)

// Repository defines the interface for bot operator persistence
type Repository interface {
	SaveUser(user *domain.User) error
	GetUser(userID int64) (*domain.User, error)
	// ListUsers returns operators seen after since, most recently active
	// first. A zero since lists everyone.
	ListUsers(since time.Time) ([]*domain.User, error)
}
