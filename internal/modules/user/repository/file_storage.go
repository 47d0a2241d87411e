package repository

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/domain"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const registryFile = "operators.json"

// FileStorage keeps the operator registry in one JSON document. The registry
// is read once on open and rewritten through a temp file on every change.
type FileStorage struct {
	path      string
	operators map[int64]domain.User
	mu        sync.RWMutex
}

// NewFileStorage opens the registry under basePath/users, creating it on
// first use
func NewFileStorage(basePath string) (*FileStorage, error) {
	dir := filepath.Join(basePath, "users")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create users directory").Wrap(err)
	}

	s := &FileStorage{
		path:      filepath.Join(dir, registryFile),
		operators: make(map[int64]domain.User),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStorage) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return oops.With("path", s.path, "context", "failed to read operator registry").Wrap(err)
	}

	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return oops.With("path", s.path, "context", "operator registry is corrupt").Wrap(err)
	}
	for _, u := range users {
		s.operators[u.ID] = u
	}
	return nil
}

// SaveUser inserts or replaces an operator. The in-memory registry is left
// unchanged when the write fails.
func (s *FileStorage) SaveUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.operators[user.ID]
	s.operators[user.ID] = *user

	if err := s.persist(); err != nil {
		if existed {
			s.operators[user.ID] = previous
		} else {
			delete(s.operators, user.ID)
		}
		return oops.With("user_id", user.ID).Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetUser(userID int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.operators[userID]
	if !ok {
		return nil, oops.With("user_id", userID).Wrap(apperrors.ErrNotFound)
	}
	return &user, nil
}

func (s *FileStorage) ListUsers(since time.Time) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(since), nil
}

func (s *FileStorage) sorted(since time.Time) []*domain.User {
	users := lo.FilterMap(lo.Values(s.operators), func(u domain.User, _ int) (*domain.User, bool) {
		return &u, since.IsZero() || u.LastSeen.After(since)
	})
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastSeen.Equal(users[j].LastSeen) {
			return users[i].ID < users[j].ID
		}
		return users[i].LastSeen.After(users[j].LastSeen)
	})
	return users
}

func (s *FileStorage) persist() error {
	data, err := json.MarshalIndent(s.sorted(time.Time{}), "", "  ")
	if err != nil {
		return oops.With("context", "failed to marshal operator registry").Wrap(err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return oops.With("path", tmp, "context", "failed to write operator registry").Wrap(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return oops.With("path", s.path, "context", "failed to replace operator registry").Wrap(err)
	}
	return nil
}
