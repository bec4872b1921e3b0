package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"livequiz-service/internal/domain"
)

type countingLoader struct {
	loads   int
	quizzes map[string]domain.Quiz
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.loads++
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func TestQuizCacheServesFromCache(t *testing.T) {
	loader := &countingLoader{quizzes: map[string]domain.Quiz{
		"quiz-1": {ID: "quiz-1", Title: "Capitals"},
	}}
	cache := NewQuizCache(loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		quiz, err := cache.GetQuiz(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if quiz.Title != "Capitals" {
			t.Fatalf("unexpected quiz: %+v", quiz)
		}
	}
	if loader.loads != 1 {
		t.Fatalf("expected a single backing load, got %d", loader.loads)
	}
}

func TestQuizCacheExpires(t *testing.T) {
	loader := &countingLoader{quizzes: map[string]domain.Quiz{
		"quiz-1": {ID: "quiz-1"},
	}}
	cache := NewQuizCache(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	cache.clock = func() time.Time { return now }

	ctx := context.Background()
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Past the TTL plus the 10% jitter headroom.
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if loader.loads != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", loader.loads)
	}
}

func TestQuizCacheMissNotCached(t *testing.T) {
	loader := &countingLoader{quizzes: map[string]domain.Quiz{}}
	cache := NewQuizCache(loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.GetQuiz(ctx, "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected ErrQuizNotFound, got %v", err)
		}
	}
	if loader.loads != 2 {
		t.Fatalf("expected misses to hit the loader, got %d", loader.loads)
	}
}
