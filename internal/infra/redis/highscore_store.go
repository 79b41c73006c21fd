package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"math-race-service/internal/domain"
)

// HighScoreStore keeps best-per-username scores in Redis so they survive the
// quiz process itself. Layout:
//
//	HSET arena:highscores    {username} {bestScore}
//	HSET arena:highscores:at {username} {unix-ms of last improvement}
//
// All writes go through the arena's serialized event path, so the
// read-compare-write below does not race with itself.
type HighScoreStore struct {
	client *redis.Client
}

func NewHighScoreStore(client *redis.Client) *HighScoreStore {
	return &HighScoreStore{client: client}
}

func (s *HighScoreStore) UpsertIfHigher(ctx context.Context, username string, score int, at time.Time) error {
	current, err := s.client.HGet(ctx, s.scoresKey(), username).Int()
	switch {
	case err == redis.Nil:
		// no entry yet
	case err != nil:
		return fmt.Errorf("read high score: %w", err)
	case current >= score:
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.scoresKey(), username, score)
	pipe.HSet(ctx, s.updatedKey(), username, at.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write high score: %w", err)
	}
	return nil
}

func (s *HighScoreStore) Top(ctx context.Context, n int) ([]domain.HighScoreEntry, error) {
	scores, err := s.client.HGetAll(ctx, s.scoresKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read high scores: %w", err)
	}
	updated, err := s.client.HGetAll(ctx, s.updatedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read high score timestamps: %w", err)
	}

	entries := make([]domain.HighScoreEntry, 0, len(scores))
	for username, raw := range scores {
		score, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		var at time.Time
		if ms, err := strconv.ParseInt(updated[username], 10, 64); err == nil {
			at = time.UnixMilli(ms)
		}
		entries = append(entries, domain.HighScoreEntry{
			Username:  username,
			BestScore: score,
			UpdatedAt: at,
		})
	}

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

func (s *HighScoreStore) scoresKey() string {
	return "arena:highscores"
}

func (s *HighScoreStore) updatedKey() string {
	return "arena:highscores:at"
}
