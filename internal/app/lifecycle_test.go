package app_test

import (
	"context"
	"errors"
	"testing"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
)

func TestCreateQuizValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateQuiz(ctx, app.CreateQuizInput{Title: "   ", CourseID: "course-1"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "title" {
		t.Fatalf("expected title field error, got %+v", verr.Fields)
	}

	desc := "  "
	quiz, err := f.svc.CreateQuiz(ctx, app.CreateQuizInput{Title: " Algebra ", CourseID: "course-1", Description: &desc})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if quiz.Title != "Algebra" || quiz.Description != nil || quiz.Status != domain.QuizDraft || len(quiz.Questions) != 0 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	f := newFixture(t)
	quiz, _ := f.draftQuiz(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   app.QuestionInput
	}{
		{"three options", app.QuestionInput{Text: "q", Options: []string{"a", "b", "c"}, CorrectOption: 0}},
		{"blank option", app.QuestionInput{Text: "q", Options: []string{"a", " ", "c", "d"}, CorrectOption: 0}},
		{"correct out of range", app.QuestionInput{Text: "q", Options: []string{"a", "b", "c", "d"}, CorrectOption: 4}},
		{"empty text", app.QuestionInput{Text: "", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.AddQuestion(ctx, quiz.ID, tc.in); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	stored, _ := f.svc.GetQuiz(ctx, quiz.ID)
	if len(stored.Questions) != 0 {
		t.Fatalf("invalid questions must not be stored, got %d", len(stored.Questions))
	}
}

func TestActivateWithoutQuestionsStaysDraft(t *testing.T) {
	f := newFixture(t)
	quiz, _ := f.draftQuiz(t)
	ctx := context.Background()

	if _, err := f.svc.Activate(ctx, quiz.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	stored, err := f.svc.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.QuizDraft {
		t.Fatalf("expected draft, got %s", stored.Status)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, ids := f.activeQuiz(t, 2)

	if _, err := f.svc.Activate(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}
	if _, err := f.svc.AddQuestion(ctx, quiz.ID, app.QuestionInput{Text: "q", Options: []string{"a", "b", "c", "d"}}); !errors.Is(err, domain.ErrQuizNotDraft) {
		t.Fatalf("expected questions frozen once active, got %v", err)
	}
	if err := f.svc.RemoveQuestion(ctx, quiz.ID, ids[0]); !errors.Is(err, domain.ErrQuizNotDraft) {
		t.Fatalf("expected questions frozen once active, got %v", err)
	}

	title := "Renamed"
	if _, err := f.svc.UpdateQuiz(ctx, quiz.ID, app.UpdateQuizInput{Title: &title}); err != nil {
		t.Fatalf("rename active quiz: %v", err)
	}

	finished, err := f.svc.Finish(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.Status != domain.QuizFinished || finished.Title != "Renamed" {
		t.Fatalf("unexpected finished quiz %+v", finished)
	}
	if _, err := f.svc.Finish(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
	if _, err := f.svc.Activate(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizFinished) {
		t.Fatalf("finished quiz must not reactivate, got %v", err)
	}
	if _, err := f.svc.UpdateQuiz(ctx, quiz.ID, app.UpdateQuizInput{Title: &title}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("finished quiz must not be edited, got %v", err)
	}
}

func TestUpdateQuizRejectsBlankTitle(t *testing.T) {
	f := newFixture(t)
	quiz, _ := f.draftQuiz(t)
	blank := "  "
	if _, err := f.svc.UpdateQuiz(context.Background(), quiz.ID, app.UpdateQuizInput{Title: &blank}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuestionEditing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, ids := f.draftQuiz(t, 0, 1, 2)

	correct := 3
	text := "Updated"
	q, err := f.svc.UpdateQuestion(ctx, quiz.ID, ids[1], app.QuestionPatch{Text: &text, CorrectOption: &correct})
	if err != nil {
		t.Fatalf("update question: %v", err)
	}
	if q.Text != "Updated" || q.CorrectOption != 3 || q.Options[0] != "a" {
		t.Fatalf("unexpected question %+v", q)
	}

	if err := f.svc.RemoveQuestion(ctx, quiz.ID, ids[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.svc.RemoveQuestion(ctx, quiz.ID, ids[0]); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}

	stored, _ := f.svc.GetQuiz(ctx, quiz.ID)
	if len(stored.Questions) != 2 || stored.Questions[0].ID != ids[1] || stored.Questions[1].ID != ids[2] {
		t.Fatalf("expected authored order preserved, got %+v", stored.Questions)
	}
}

func TestListAndDeleteQuizzes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, _ := f.activeQuiz(t, 1)
	if _, err := f.svc.CreateQuiz(ctx, app.CreateQuizInput{Title: "Other", CourseID: "course-2"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.join(t, quiz.ID, "a@x.com")

	list, err := f.svc.ListQuizzes(ctx, "course-1")
	if err != nil || len(list) != 1 || list[0].ID != quiz.ID {
		t.Fatalf("expected one quiz for course-1, got %v %+v", err, list)
	}
	all, _ := f.svc.ListQuizzes(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected two quizzes, got %d", len(all))
	}

	if err := f.svc.DeleteQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if recs, _ := f.participations.ListRecords(ctx, quiz.ID); len(recs) != 0 {
		t.Fatalf("expected records removed, got %d", len(recs))
	}
	if err := f.svc.DeleteQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
