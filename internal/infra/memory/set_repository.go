package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"math-race-service/internal/domain"
)

// SetLoader resolves a question set from its backing store.
type SetLoader interface {
	LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// SetRepository keeps loaded question sets in memory for a bounded time so the
// question loop does not hit the loader on every draw. Concurrent misses for
// the same set collapse into a single load.
type SetRepository struct {
	loader SetLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]setEntry
}

type setEntry struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewSetRepository(loader SetLoader, ttl time.Duration) *SetRepository {
	return &SetRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]setEntry),
	}
}

func (r *SetRepository) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.lookup(setID); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		return r.refresh(ctx, setID)
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// lookup returns the cached set when present and not yet expired.
func (r *SetRepository) lookup(setID string) (domain.QuestionSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[setID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.QuestionSet{}, false
	}
	return entry.set, true
}

// refresh re-checks the cache, then loads the set and stores it with a
// jittered expiry. Runs inside singleflight, one caller per set at a time.
func (r *SetRepository) refresh(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.lookup(setID); ok {
		return set, nil
	}

	set, err := r.loader.LoadSet(ctx, setID)
	if err != nil {
		return domain.QuestionSet{}, err
	}

	r.mu.Lock()
	r.cache[setID] = setEntry{set: set, expiresAt: r.clock().Add(r.jitteredTTL())}
	r.mu.Unlock()
	return set, nil
}

func (r *SetRepository) jitteredTTL() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// spread expirations by up to 10%
	spread := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(spread+1))
}
