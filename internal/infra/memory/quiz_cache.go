package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
)

// QuizCache caches quizzes with TTL in front of a slower app.QuizRepository.
// Writes go through to the backend and replace the cached entry.
type QuizCache struct {
	backend app.QuizRepository
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group

	mu    sync.Mutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
	// gens has an entry only while a load for the quiz is in flight and counts
	// the writes made meanwhile; a load that raced a write is not cached.
	gens map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(backend app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedQuiz),
		gens:    make(map[string]uint64),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}

		// singleflight runs at most one load per quiz, so the entry is ours.
		c.mu.Lock()
		c.gens[quizID] = 0
		c.mu.Unlock()

		quiz, err := c.backend.GetQuiz(ctx, quizID)

		c.mu.Lock()
		defer c.mu.Unlock()
		raced := c.gens[quizID] != 0
		delete(c.gens, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if !raced {
			c.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: c.clock().Add(c.ttlWithJitter())}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

func (c *QuizCache) ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error) {
	return c.backend.ListQuizzes(ctx, courseID)
}

func (c *QuizCache) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.backend.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	c.mu.Lock()
	c.noteWrite(quiz.ID)
	c.cache[quiz.ID] = cachedQuiz{quiz: quiz.Clone(), expiresAt: c.clock().Add(c.ttlWithJitter())}
	c.mu.Unlock()
	return nil
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := c.backend.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	c.mu.Lock()
	c.noteWrite(quizID)
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

// noteWrite must be called with c.mu held.
func (c *QuizCache) noteWrite(quizID string) {
	if _, loading := c.gens[quizID]; loading {
		c.gens[quizID]++
	}
}

func (c *QuizCache) lookup(quizID string) (domain.Quiz, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz.Clone(), true
}

// ttlWithJitter must be called with c.mu held.
func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
