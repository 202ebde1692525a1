package bank

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"serpukhov-quiz-bot/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Source loads question bank content from a backing store (file, Postgres).
type Source interface {
	Load(ctx context.Context) ([]domain.Question, error)
}

// Repository caches the validated question bank with TTL to avoid repeated
// source hits, and draws random samples for new attempts.
type Repository struct {
	source Source
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
}

func NewRepository(source Source, ttl time.Duration) *Repository {
	return &Repository{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewRepositoryWithRand fixes the sampling source for deterministic draws in tests.
func NewRepositoryWithRand(source Source, ttl time.Duration, rnd *rand.Rand) *Repository {
	r := NewRepository(source, ttl)
	r.rnd = rnd
	return r
}

// Questions returns the current bank snapshot, refreshing from the source when
// the cached copy has expired.
func (r *Repository) Questions(ctx context.Context) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if r.questions != nil && r.expiresAt.After(now) {
		qs := r.questions
		r.mu.RUnlock()
		return qs, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.questions != nil && r.expiresAt.After(now) {
			qs := r.questions
			r.mu.RUnlock()
			return qs, nil
		}
		r.mu.RUnlock()

		loaded, err := r.source.Load(ctx)
		if err != nil {
			return nil, err
		}
		valid, err := Validate(loaded)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.questions = valid
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return valid, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Draw samples n questions uniformly without replacement, order randomized.
func (r *Repository) Draw(ctx context.Context, n int) ([]domain.Question, error) {
	questions, err := r.Questions(ctx)
	if err != nil {
		return nil, err
	}
	if n > len(questions) {
		return nil, domain.ErrInsufficientQuestions
	}

	indices := make([]int, len(questions))
	for i := range indices {
		indices[i] = i
	}
	r.rndMu.Lock()
	r.rnd.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	r.rndMu.Unlock()

	drawn := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		drawn[i] = questions[indices[i]]
	}
	return drawn, nil
}

func (r *Repository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
