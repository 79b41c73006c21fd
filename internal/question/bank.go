package question

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"math-race-service/internal/domain"
)

// SetRepository fetches curated question sets (from cache/backing store).
type SetRepository interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// BankSource draws questions at random from a curated set instead of
// generating them. It shares the Generator's contract: strictly increasing IDs.
type BankSource struct {
	repo  SetRepository
	setID string

	mu      sync.Mutex
	rnd     *rand.Rand
	counter int64
}

func NewBankSource(repo SetRepository, setID string) *BankSource {
	return NewBankSourceWithRand(repo, setID, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBankSourceWithRand allows a deterministic draw order in tests.
func NewBankSourceWithRand(repo SetRepository, setID string, rnd *rand.Rand) *BankSource {
	return &BankSource{repo: repo, setID: setID, rnd: rnd}
}

func (s *BankSource) Next(ctx context.Context) (domain.Question, error) {
	set, err := s.repo.GetSet(ctx, s.setID)
	if err != nil {
		return domain.Question{}, err
	}
	if len(set.Questions) == 0 {
		return domain.Question{}, domain.ErrEmptyQuestionSet
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	seed := set.Questions[s.rnd.Intn(len(set.Questions))]
	difficulty := seed.Difficulty
	if difficulty < 1 || difficulty > 3 {
		difficulty = 1
	}
	return domain.Question{
		ID:         s.counter,
		Kind:       "bank",
		Prompt:     seed.Prompt,
		Difficulty: difficulty,
		Answer:     seed.Answer,
	}, nil
}
