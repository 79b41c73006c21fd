package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"math-race-service/internal/domain"
)

// HighScoreStore is an in-memory implementation of app.HighScoreStore.
type HighScoreStore struct {
	mu      sync.RWMutex
	entries map[string]domain.HighScoreEntry
}

func NewHighScoreStore() *HighScoreStore {
	return &HighScoreStore{
		entries: make(map[string]domain.HighScoreEntry),
	}
}

// UpsertIfHigher records the score only when it strictly exceeds the stored
// best, so entries never decrease.
func (s *HighScoreStore) UpsertIfHigher(_ context.Context, username string, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[username]; ok && existing.BestScore >= score {
		return nil
	}
	s.entries[username] = domain.HighScoreEntry{
		Username:  username,
		BestScore: score,
		UpdatedAt: at,
	}
	return nil
}

// Top returns up to n entries, best score first. Ties go to the entry that
// reached its score earlier, then username, so ordering is deterministic.
func (s *HighScoreStore) Top(_ context.Context, n int) ([]domain.HighScoreEntry, error) {
	s.mu.RLock()
	entries := make([]domain.HighScoreEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestScore != entries[j].BestScore {
			return entries[i].BestScore > entries[j].BestScore
		}
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
		}
		return entries[i].Username < entries[j].Username
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
