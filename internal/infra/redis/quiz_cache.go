package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
)

// tombstone marks a deleted quiz so a load racing the delete cannot re-cache it.
const tombstone = "-"

// QuizCache caches whole quizzes as JSON in Redis and falls back to the backend on a miss.
// Keys: quiz:{quizID} -> JSON document (or tombstone after delete).
// Loads fill the key with SETNX; writes overwrite it, so a slow load never
// replaces a newer write.
type QuizCache struct {
	client  *redis.Client
	backend app.QuizRepository
	ttl     time.Duration
	sf      singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizCache(client *redis.Client, backend app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok, err := c.lookup(ctx, quizID); ok || err != nil {
		return quiz, err
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok, err := c.lookup(ctx, quizID); ok || err != nil {
			return quiz, err
		}

		quiz, err := c.backend.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
		}
		// best-effort fill; a failed cache write only costs a reload
		_ = c.client.SetNX(ctx, c.key(quizID), data, c.ttlWithJitter()).Err()
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

// SaveQuiz writes through. A failed cache write is returned because a stale
// entry would keep serving the previous lifecycle state.
func (c *QuizCache) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.backend.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	if err := c.client.Set(ctx, c.key(quiz.ID), data, c.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache quiz: %w", err)
	}
	return nil
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := c.backend.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(quizID), tombstone, c.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache tombstone: %w", err)
	}
	return nil
}

func (c *QuizCache) lookup(ctx context.Context, quizID string) (domain.Quiz, bool, error) {
	raw, err := c.client.Get(ctx, c.key(quizID)).Result()
	if err != nil {
		// misses and cache outages both fall through to the backend
		return domain.Quiz{}, false, nil
	}
	if raw == tombstone {
		return domain.Quiz{}, false, domain.ErrQuizNotFound
	}
	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return domain.Quiz{}, false, nil
	}
	return quiz, true, nil
}

func (c *QuizCache) key(quizID string) string {
	return "quiz:" + quizID
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
