package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
	"teach-quiz-service/internal/infra/courses"
	"teach-quiz-service/internal/infra/memory"
)

type fixture struct {
	svc            *app.QuizService
	quizzes        *memory.QuizStore
	participations *memory.ParticipationStore
	roster         *courses.Roster
}

func newFixture(t *testing.T, opts ...app.Option) fixture {
	t.Helper()
	f := fixture{
		quizzes:        memory.NewQuizStore(),
		participations: memory.NewParticipationStore(),
		roster:         courses.NewRoster(true),
	}
	var mu sync.Mutex
	clock := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	opts = append([]app.Option{app.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})}, opts...)
	f.svc = app.NewQuizService(f.quizzes, f.participations, f.roster, nil, opts...)
	return f
}

// activeQuiz creates an active quiz with one question per correct option given.
func (f fixture) activeQuiz(t *testing.T, correct ...int) (domain.Quiz, []string) {
	t.Helper()
	quiz, ids := f.draftQuiz(t, correct...)
	quiz, err := f.svc.Activate(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	return quiz, ids
}

func (f fixture) draftQuiz(t *testing.T, correct ...int) (domain.Quiz, []string) {
	t.Helper()
	ctx := context.Background()
	quiz, err := f.svc.CreateQuiz(ctx, app.CreateQuizInput{Title: "Arithmetic", CourseID: "course-1"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	ids := make([]string, 0, len(correct))
	for _, c := range correct {
		q, err := f.svc.AddQuestion(ctx, quiz.ID, app.QuestionInput{
			Text:          "Pick one",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: c,
		})
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		ids = append(ids, q.ID)
	}
	return quiz, ids
}

func (f fixture) join(t *testing.T, quizID, email string) app.JoinResult {
	t.Helper()
	res, err := f.svc.Join(context.Background(), quizID, email)
	if err != nil {
		t.Fatalf("join %s: %v", email, err)
	}
	return res
}

func (f fixture) answer(t *testing.T, quizID, email, questionID string, selected int) app.AnswerResult {
	t.Helper()
	res, err := f.svc.SubmitAnswer(context.Background(), quizID, email, app.AnswerInput{QuestionID: questionID, SelectedOption: selected})
	if err != nil {
		t.Fatalf("answer %s: %v", questionID, err)
	}
	return res
}

// drain returns the events already buffered on sub.
func drain(sub *app.Subscription) []domain.MonitorEvent {
	var out []domain.MonitorEvent
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
