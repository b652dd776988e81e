package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"teach-quiz-service/internal/domain"
)

// JoinResult is returned to a student joining (or resuming) a quiz.
type JoinResult struct {
	QuizID        string                     `json:"quiz_id"`
	QuizTitle     string                     `json:"quiz_title"`
	StudentEmail  string                     `json:"student_email"`
	QuestionCount int                        `json:"question_count"`
	Resumed       bool                       `json:"resumed"`
	Record        domain.ParticipationRecord `json:"record"`
}

// AnswerResult summarizes the outcome of a submission for a single student.
type AnswerResult struct {
	QuestionID        string `json:"question_id"`
	IsCorrect         bool   `json:"is_correct"`
	CorrectOption     *int   `json:"correct_option,omitempty"`
	RunningScore      int    `json:"running_score"`
	QuestionsAnswered int    `json:"questions_answered"`
	TotalQuestions    int    `json:"total_questions"`
	IsCompleted       bool   `json:"is_completed"`
}

// Join registers a student on an active quiz, or resumes an existing attempt.
func (s *QuizService) Join(ctx context.Context, quizID, email string) (JoinResult, error) {
	email = normalizeEmail(email)
	if err := s.check(emailInput{Email: email}); err != nil {
		return JoinResult{}, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return JoinResult{}, err
	}
	if quiz.Status != domain.QuizActive {
		return JoinResult{}, domain.ErrQuizNotActive
	}

	// The roster lookup is a remote call, so it runs before any lock is held.
	student, enrolled, err := s.enrollment.IsEnrolled(ctx, quiz.CourseID, email)
	if err != nil {
		s.log.WithFields(logrus.Fields{"quiz_id": quizID, "student_email": email}).WithError(err).Warn("enrollment check failed")
		return JoinResult{}, fmt.Errorf("%w: %w", domain.ErrEnrollmentUnavailable, err)
	}
	if !enrolled {
		return JoinResult{}, domain.ErrNotEnrolled
	}

	unlockQuiz := s.quizLocks.RLock(quizID)
	defer unlockQuiz()
	unlockStudent := s.studentLocks.Lock(studentKey(quizID, email))
	defer unlockStudent()

	quiz, err = s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return JoinResult{}, err
	}
	if quiz.Status != domain.QuizActive {
		return JoinResult{}, domain.ErrQuizNotActive
	}

	result := JoinResult{
		QuizID:        quiz.ID,
		QuizTitle:     quiz.Title,
		StudentEmail:  email,
		QuestionCount: len(quiz.Questions),
	}

	existing, err := s.participations.GetRecord(ctx, quizID, email)
	switch {
	case err == nil:
		result.Resumed = true
		result.Record = existing
		return result, nil
	case !errors.Is(err, domain.ErrParticipationNotFound):
		return JoinResult{}, err
	}

	rec := domain.ParticipationRecord{
		QuizID:         quizID,
		StudentEmail:   email,
		StudentName:    student.FullName,
		Answers:        []domain.Answer{},
		TotalQuestions: len(quiz.Questions),
		StartedAt:      s.now(),
		Version:        1,
	}
	if err := s.participations.InsertRecord(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrRecordExists) {
			return JoinResult{}, err
		}
		// Another instance sharing the store created it first.
		if existing, err = s.participations.GetRecord(ctx, quizID, email); err != nil {
			return JoinResult{}, err
		}
		result.Resumed = true
		result.Record = existing
		return result, nil
	}

	s.hub.Publish(domain.StudentJoinedEvent(rec, rec.StartedAt))
	s.log.WithFields(logrus.Fields{"quiz_id": quizID, "student_email": email}).Info("student joined")
	result.Record = rec
	return result, nil
}

// QuestionsForStudent returns the quiz questions in authored order without the answer key.
func (s *QuizService) QuestionsForStudent(ctx context.Context, quizID, email string) (domain.StudentQuiz, error) {
	email = normalizeEmail(email)
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.StudentQuiz{}, err
	}
	if _, err := s.participations.GetRecord(ctx, quizID, email); err != nil {
		if errors.Is(err, domain.ErrParticipationNotFound) {
			return domain.StudentQuiz{}, domain.ErrNotJoined
		}
		return domain.StudentQuiz{}, err
	}

	questions := make([]domain.StudentQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions = append(questions, domain.StudentQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
		})
	}
	return domain.StudentQuiz{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   questions,
	}, nil
}

// SubmitAnswer records one answer, scoring it against the stored question.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID, email string, in AnswerInput) (AnswerResult, error) {
	email = normalizeEmail(email)
	if err := s.check(in); err != nil {
		return AnswerResult{}, err
	}

	unlockQuiz := s.quizLocks.RLock(quizID)
	defer unlockQuiz()
	unlockStudent := s.studentLocks.Lock(studentKey(quizID, email))
	defer unlockStudent()

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AnswerResult{}, err
	}
	if quiz.Status != domain.QuizActive {
		return AnswerResult{}, domain.ErrQuizNotActive
	}

	for attempt := 0; attempt < maxRecordRetries; attempt++ {
		rec, err := s.participations.GetRecord(ctx, quizID, email)
		if err != nil {
			if errors.Is(err, domain.ErrParticipationNotFound) {
				return AnswerResult{}, domain.ErrNotJoined
			}
			return AnswerResult{}, err
		}
		if rec.IsCompleted {
			return AnswerResult{}, domain.ErrAlreadyComplete
		}
		idx := quiz.QuestionIndex(in.QuestionID)
		if idx < 0 {
			return AnswerResult{}, domain.ErrQuestionNotFound
		}
		if rec.HasAnswered(in.QuestionID) {
			return AnswerResult{}, domain.ErrAlreadyAnswered
		}

		question := quiz.Questions[idx]
		correct, next := applyAnswer(rec, question, in.SelectedOption, s.now())
		if err := s.participations.UpdateRecord(ctx, next); err != nil {
			if errors.Is(err, domain.ErrStaleRecord) {
				continue
			}
			return AnswerResult{}, err
		}

		s.hub.Publish(domain.StudentProgressEvent(next, correct, next.Answers[len(next.Answers)-1].AnsweredAt))
		if next.IsCompleted {
			s.hub.Publish(domain.StudentCompletedEvent(next, *next.CompletedAt))
			s.log.WithFields(logrus.Fields{"quiz_id": quizID, "student_email": email, "score": next.Score}).Info("student completed quiz")
		}

		result := AnswerResult{
			QuestionID:        question.ID,
			IsCorrect:         correct,
			RunningScore:      next.Score,
			QuestionsAnswered: len(next.Answers),
			TotalQuestions:    next.TotalQuestions,
			IsCompleted:       next.IsCompleted,
		}
		if s.reveal.reveals(correct) {
			c := question.CorrectOption
			result.CorrectOption = &c
		}
		return result, nil
	}
	return AnswerResult{}, domain.ErrStaleRecord
}

// applyAnswer returns the record with the answer appended. rec is not modified.
func applyAnswer(rec domain.ParticipationRecord, question domain.Question, selected int, at time.Time) (bool, domain.ParticipationRecord) {
	correct := selected == question.CorrectOption
	next := rec.Clone()
	next.Answers = append(next.Answers, domain.Answer{
		QuestionID:     question.ID,
		SelectedOption: selected,
		IsCorrect:      correct,
		AnsweredAt:     at,
	})
	if correct {
		next.Score++
	}
	if len(next.Answers) >= next.TotalQuestions {
		next.IsCompleted = true
		completedAt := at
		next.CompletedAt = &completedAt
	}
	next.Version++
	return correct, next
}

// Progress returns a student's record as stored.
func (s *QuizService) Progress(ctx context.Context, quizID, email string) (domain.ParticipationRecord, error) {
	return s.participations.GetRecord(ctx, quizID, normalizeEmail(email))
}

// Responses lists every participation record of a quiz.
func (s *QuizService) Responses(ctx context.Context, quizID string) ([]domain.ParticipationRecord, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return s.participations.ListRecords(ctx, quizID)
}
