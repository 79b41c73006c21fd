package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"math-race-service/internal/domain"
)

// SetLoader fetches question sets from a backing store (e.g., Postgres).
type SetLoader interface {
	LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// SetRepository caches question sets in Redis (two hashes per set) and falls
// back to a loader on cache miss.
// Answers are stored as:      HSET set:{setID}:answers    {prompt} {answer}
// Difficulties are stored as: HSET set:{setID}:difficulty {prompt} {difficulty}
type SetRepository struct {
	client *redis.Client
	loader SetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewSetRepository(client *redis.Client, loader SetLoader, ttl time.Duration) *SetRepository {
	return &SetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SetRepository) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	answersKey := r.answersKey(setID)
	difficultyKey := r.difficultyKey(setID)

	answers, err := r.client.HGetAll(ctx, answersKey).Result()
	if err == nil && len(answers) > 0 {
		difficulties, _ := r.client.HGetAll(ctx, difficultyKey).Result()
		return buildSetFromCache(setID, answers, difficulties), nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := r.client.HGetAll(ctx, answersKey).Result()
		if err == nil && len(answers) > 0 {
			difficulties, _ := r.client.HGetAll(ctx, difficultyKey).Result()
			return buildSetFromCache(setID, answers, difficulties), nil
		}

		set, err := r.loader.LoadSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, q := range set.Questions {
			difficulty := q.Difficulty
			if difficulty < 1 || difficulty > 3 {
				difficulty = 1
			}
			pipe.HSet(ctx, answersKey, q.Prompt, q.Answer)
			pipe.HSet(ctx, difficultyKey, q.Prompt, difficulty)
		}
		if ttl > 0 {
			pipe.Expire(ctx, answersKey, ttl)
			pipe.Expire(ctx, difficultyKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *SetRepository) answersKey(setID string) string {
	return "set:" + setID + ":answers"
}

func (r *SetRepository) difficultyKey(setID string) string {
	return "set:" + setID + ":difficulty"
}

func buildSetFromCache(setID string, answers map[string]string, difficulties map[string]string) domain.QuestionSet {
	questions := make([]domain.SeedQuestion, 0, len(answers))
	for prompt, rawAnswer := range answers {
		answer, err := strconv.ParseFloat(rawAnswer, 64)
		if err != nil {
			continue
		}
		difficulty := 1
		if dStr, ok := difficulties[prompt]; ok {
			if d, err := strconv.Atoi(dStr); err == nil && d >= 1 && d <= 3 {
				difficulty = d
			}
		}
		questions = append(questions, domain.SeedQuestion{
			Prompt:     prompt,
			Answer:     answer,
			Difficulty: difficulty,
		})
	}
	return domain.QuestionSet{ID: setID, Questions: questions}
}

func (r *SetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
