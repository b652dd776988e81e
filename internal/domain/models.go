package domain

import "time"

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// QuizStatus is the lifecycle state of a quiz.
type QuizStatus string

const (
	QuizDraft    QuizStatus = "draft"
	QuizActive   QuizStatus = "active"
	QuizFinished QuizStatus = "finished"
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            string              `json:"id"`
	Text          string              `json:"text"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption int                 `json:"correct_option"`
}

// StudentQuestion is the student-facing view of a question. It has no answer key.
type StudentQuestion struct {
	ID      string              `json:"id"`
	Text    string              `json:"text"`
	Options [OptionCount]string `json:"options"`
}

// Quiz is a teacher-authored, ordered collection of questions.
type Quiz struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      QuizStatus `json:"status"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// QuestionIndex returns the position of a question in authored order, or -1.
func (q Quiz) QuestionIndex(questionID string) int {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

// Clone returns a copy whose question slice can be mutated independently.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = append([]Question(nil), q.Questions...)
	if q.Description != nil {
		d := *q.Description
		out.Description = &d
	}
	return out
}

// StudentQuiz is what a joined student may read: questions without correct options.
type StudentQuiz struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description *string           `json:"description,omitempty"`
	Questions   []StudentQuestion `json:"questions"`
}

// Student is the identity a course roster reports for an enrolled email.
type Student struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Answer is one recorded submission. It never changes after being stored.
type Answer struct {
	QuestionID     string    `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	IsCorrect      bool      `json:"is_correct"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// ParticipationRecord is one student's attempt at one quiz.
type ParticipationRecord struct {
	QuizID         string     `json:"quiz_id"`
	StudentEmail   string     `json:"student_email"`
	StudentName    string     `json:"student_name,omitempty"`
	Answers        []Answer   `json:"answers"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	IsCompleted    bool       `json:"is_completed"`
	// Version increases on every stored change; shared stores compare it on update.
	Version int `json:"version"`
}

// HasAnswered reports whether questionID already has a recorded answer.
func (r ParticipationRecord) HasAnswered(questionID string) bool {
	for _, a := range r.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own answers slice.
func (r ParticipationRecord) Clone() ParticipationRecord {
	out := r
	out.Answers = append([]Answer(nil), r.Answers...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// QuestionStatistics summarizes answers recorded for one question.
type QuestionStatistics struct {
	QuestionNumber  int    `json:"question_number"`
	QuestionID      string `json:"question_id"`
	Text            string `json:"text"`
	TotalAnswers    int    `json:"total_answers"`
	CorrectAnswers  int    `json:"correct_answers"`
	AccuracyPercent int    `json:"accuracy_percent"`
}

// Statistics is the derived report for a quiz.
type Statistics struct {
	QuizID                string               `json:"quiz_id"`
	Title                 string               `json:"title"`
	TotalParticipants     int                  `json:"total_participants"`
	CompletedParticipants int                  `json:"completed_participants"`
	AverageScore          float64              `json:"average_score"`
	HighestScore          int                  `json:"highest_score"`
	LowestScore           int                  `json:"lowest_score"`
	PerQuestion           []QuestionStatistics `json:"per_question"`
}
