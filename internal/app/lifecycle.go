package app

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"teach-quiz-service/internal/domain"
)

// CreateQuiz stores a new draft quiz with no questions.
func (s *QuizService) CreateQuiz(ctx context.Context, in CreateQuizInput) (domain.Quiz, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.Description = trimPtr(in.Description)
	if err := s.check(in); err != nil {
		return domain.Quiz{}, err
	}
	if in.Description != nil && *in.Description == "" {
		in.Description = nil
	}

	now := s.now()
	quiz := domain.Quiz{
		ID:          s.newID(),
		CourseID:    in.CourseID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.QuizDraft,
		Questions:   []domain.Question{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "course_id": quiz.CourseID}).Info("quiz created")
	return quiz, nil
}

// GetQuiz returns the teacher view of a quiz, answer key included.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

func (s *QuizService) ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error) {
	return s.quizzes.ListQuizzes(ctx, strings.TrimSpace(courseID))
}

// UpdateQuiz changes title or description of a quiz that has not finished.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID string, in UpdateQuizInput) (domain.Quiz, error) {
	in.Title = trimPtr(in.Title)
	in.Description = trimPtr(in.Description)
	if err := s.check(in); err != nil {
		return domain.Quiz{}, err
	}
	return s.mutateQuiz(ctx, quizID, func(quiz *domain.Quiz) error {
		if quiz.Status == domain.QuizFinished {
			return domain.ErrQuizFinished
		}
		if in.Title != nil {
			quiz.Title = *in.Title
		}
		if in.Description != nil {
			if *in.Description == "" {
				quiz.Description = nil
			} else {
				quiz.Description = in.Description
			}
		}
		return nil
	})
}

// AddQuestion appends a question to a draft quiz.
func (s *QuizService) AddQuestion(ctx context.Context, quizID string, in QuestionInput) (domain.Question, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.Options = trimAll(in.Options)
	if err := s.check(in); err != nil {
		return domain.Question{}, err
	}

	question := domain.Question{
		ID:            s.newID(),
		Text:          in.Text,
		Options:       toOptions(in.Options),
		CorrectOption: in.CorrectOption,
	}
	_, err := s.mutateQuiz(ctx, quizID, func(quiz *domain.Quiz) error {
		if quiz.Status != domain.QuizDraft {
			return domain.ErrQuizNotDraft
		}
		quiz.Questions = append(quiz.Questions, question)
		return nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

// UpdateQuestion patches a question of a draft quiz.
func (s *QuizService) UpdateQuestion(ctx context.Context, quizID, questionID string, in QuestionPatch) (domain.Question, error) {
	in.Text = trimPtr(in.Text)
	if in.Options != nil {
		in.Options = trimAll(in.Options)
	}
	if err := s.check(in); err != nil {
		return domain.Question{}, err
	}

	var updated domain.Question
	_, err := s.mutateQuiz(ctx, quizID, func(quiz *domain.Quiz) error {
		if quiz.Status != domain.QuizDraft {
			return domain.ErrQuizNotDraft
		}
		idx := quiz.QuestionIndex(questionID)
		if idx < 0 {
			return domain.ErrQuestionNotFound
		}
		q := quiz.Questions[idx]
		if in.Text != nil {
			q.Text = *in.Text
		}
		if in.Options != nil {
			q.Options = toOptions(in.Options)
		}
		if in.CorrectOption != nil {
			q.CorrectOption = *in.CorrectOption
		}
		quiz.Questions[idx] = q
		updated = q
		return nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return updated, nil
}

// RemoveQuestion deletes a question from a draft quiz.
func (s *QuizService) RemoveQuestion(ctx context.Context, quizID, questionID string) error {
	_, err := s.mutateQuiz(ctx, quizID, func(quiz *domain.Quiz) error {
		if quiz.Status != domain.QuizDraft {
			return domain.ErrQuizNotDraft
		}
		idx := quiz.QuestionIndex(questionID)
		if idx < 0 {
			return domain.ErrQuestionNotFound
		}
		quiz.Questions = append(quiz.Questions[:idx], quiz.Questions[idx+1:]...)
		return nil
	})
	return err
}

// Activate opens a draft quiz for participation.
func (s *QuizService) Activate(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.mutateQuiz(ctx, quizID, func(quiz *domain.Quiz) error {
		switch quiz.Status {
		case domain.QuizActive:
			return domain.ErrQuizAlreadyActive
		case domain.QuizFinished:
			return domain.ErrQuizFinished
		}
		if len(quiz.Questions) == 0 {
			return domain.ErrQuizHasNoQuestion
		}
		quiz.Status = domain.QuizActive
		return nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.WithField("quiz_id", quizID).Info("quiz activated")
	return quiz, nil
}

// Finish closes an active quiz. Once it returns, no join or answer is accepted
// and observers have been sent quiz_finished.
func (s *QuizService) Finish(ctx context.Context, quizID string) (domain.Quiz, error) {
	unlock := s.quizLocks.Lock(quizID)
	defer unlock()

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Status != domain.QuizActive {
		return domain.Quiz{}, domain.ErrQuizNotActive
	}
	quiz = quiz.Clone()
	quiz.Status = domain.QuizFinished
	quiz.UpdatedAt = s.now()
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}

	s.hub.Publish(domain.QuizFinishedEvent(quizID, quiz.UpdatedAt))
	s.log.WithField("quiz_id", quizID).Info("quiz finished")
	return quiz, nil
}

// DeleteQuiz removes a quiz in any state along with its participation records.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	unlock := s.quizLocks.Lock(quizID)
	defer unlock()

	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return err
	}
	if err := s.participations.DeleteRecords(ctx, quizID); err != nil {
		return err
	}
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.log.WithField("quiz_id", quizID).Info("quiz deleted")
	return nil
}

// mutateQuiz applies fn to a copy of the quiz under the quiz write lock and
// saves the result. Nothing is stored when fn fails.
func (s *QuizService) mutateQuiz(ctx context.Context, quizID string, fn func(*domain.Quiz) error) (domain.Quiz, error) {
	unlock := s.quizLocks.Lock(quizID)
	defer unlock()

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz = quiz.Clone()
	if err := fn(&quiz); err != nil {
		return domain.Quiz{}, err
	}
	quiz.UpdatedAt = s.now()
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
