package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage implements Repository with one JSON file per match,
// grouped in per-channel directories
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based match repository
func NewFileStorage(basePath string) (*FileStorage, error) {
	matchPath := filepath.Join(basePath, "matches")
	if err := os.MkdirAll(matchPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create matches directory").Wrap(err)
	}

	return &FileStorage{basePath: matchPath}, nil
}

func (s *FileStorage) SaveMatch(match *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, channelDir(match.ChannelID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return oops.With("match_dir", dir, "context", "failed to create match directory").Wrap(err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.json", match.ID))
	data, err := json.MarshalIndent(match, "", "  ")
	if err != nil {
		return oops.With("channel_id", match.ChannelID, "message_id", match.ID, "context", "failed to marshal match").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return oops.With("path", path, "context", "failed to write match").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetMatches(limit int) ([]*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("base_path", s.basePath, "context", "failed to read matches directory").Wrap(err)
	}

	var matches []*domain.Match
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		channelMatches, err := s.readDir(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, err
		}
		matches = append(matches, channelMatches...)
	}

	return newestFirst(matches, limit), nil
}

func (s *FileStorage) GetChannelMatches(channelID string, limit int) ([]*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.readDir(filepath.Join(s.basePath, channelDir(channelID)))
	if err != nil {
		return nil, err
	}
	return newestFirst(matches, limit), nil
}

func (s *FileStorage) GetMatchesSince(since time.Time) ([]*domain.Match, error) {
	all, err := s.GetMatches(0)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(m *domain.Match, _ int) bool {
		return m.ForwardedAt.After(since)
	}), nil
}

func (s *FileStorage) readDir(dir string) ([]*domain.Match, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Match{}, nil
		}
		return nil, oops.With("match_dir", dir, "context", "failed to read match directory").Wrap(err)
	}

	var matches []*domain.Match
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}

		var match domain.Match
		if err := json.Unmarshal(data, &match); err != nil {
			continue
		}
		matches = append(matches, &match)
	}
	return matches, nil
}

// newestFirst sorts by forward time descending; limit <= 0 keeps everything
func newestFirst(matches []*domain.Match, limit int) []*domain.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ForwardedAt.Equal(matches[j].ForwardedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].ForwardedAt.After(matches[j].ForwardedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func channelDir(channelID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(channelID)
}
