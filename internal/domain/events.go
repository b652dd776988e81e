package domain

import "time"

// EventType discriminates MonitorEvent payloads.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventStudentJoined    EventType = "student_joined"
	EventStudentProgress  EventType = "student_progress"
	EventStudentCompleted EventType = "student_completed"
	EventQuizFinished     EventType = "quiz_finished"
	EventQuizStats        EventType = "quiz_stats"
)

// MonitorSnapshot is the aggregate a dashboard needs to render without history.
type MonitorSnapshot struct {
	ActiveStudents    int     `json:"active_students"`
	CompletedStudents int     `json:"completed_students"`
	AverageScore      float64 `json:"average_score"`
}

// MonitorEvent is pushed to observers of a quiz. Only the fields relevant to
// Event are set; the rest are omitted from the wire form.
type MonitorEvent struct {
	Event     EventType `json:"event"`
	QuizID    string    `json:"quiz_id"`
	Timestamp time.Time `json:"timestamp"`

	QuizTitle      string           `json:"quiz_title,omitempty"`
	QuizStatus     QuizStatus       `json:"quiz_status,omitempty"`
	TotalQuestions int              `json:"total_questions,omitempty"`
	CurrentStats   *MonitorSnapshot `json:"current_stats,omitempty"`

	StudentEmail   string `json:"student_email,omitempty"`
	StudentName    string `json:"student_name,omitempty"`
	QuestionNumber int    `json:"question_number,omitempty"`
	IsCorrect      *bool  `json:"is_correct,omitempty"`
	CurrentScore   *int   `json:"current_score,omitempty"`
	FinalScore     *int   `json:"final_score,omitempty"`
}

// ConnectedEvent greets a new observer with the current aggregate.
func ConnectedEvent(quiz Quiz, snapshot MonitorSnapshot, at time.Time) MonitorEvent {
	return MonitorEvent{
		Event:          EventConnected,
		QuizID:         quiz.ID,
		Timestamp:      at,
		QuizTitle:      quiz.Title,
		QuizStatus:     quiz.Status,
		TotalQuestions: len(quiz.Questions),
		CurrentStats:   &snapshot,
	}
}

// QuizStatsEvent answers an observer's on-demand stats request.
func QuizStatsEvent(quizID string, snapshot MonitorSnapshot, at time.Time) MonitorEvent {
	return MonitorEvent{
		Event:        EventQuizStats,
		QuizID:       quizID,
		Timestamp:    at,
		CurrentStats: &snapshot,
	}
}

func StudentJoinedEvent(rec ParticipationRecord, at time.Time) MonitorEvent {
	return MonitorEvent{
		Event:          EventStudentJoined,
		QuizID:         rec.QuizID,
		Timestamp:      at,
		StudentEmail:   rec.StudentEmail,
		StudentName:    rec.StudentName,
		TotalQuestions: rec.TotalQuestions,
	}
}

func StudentProgressEvent(rec ParticipationRecord, correct bool, at time.Time) MonitorEvent {
	score := rec.Score
	return MonitorEvent{
		Event:          EventStudentProgress,
		QuizID:         rec.QuizID,
		Timestamp:      at,
		StudentEmail:   rec.StudentEmail,
		StudentName:    rec.StudentName,
		QuestionNumber: len(rec.Answers),
		TotalQuestions: rec.TotalQuestions,
		IsCorrect:      &correct,
		CurrentScore:   &score,
	}
}

func StudentCompletedEvent(rec ParticipationRecord, at time.Time) MonitorEvent {
	score := rec.Score
	return MonitorEvent{
		Event:          EventStudentCompleted,
		QuizID:         rec.QuizID,
		Timestamp:      at,
		StudentEmail:   rec.StudentEmail,
		StudentName:    rec.StudentName,
		TotalQuestions: rec.TotalQuestions,
		FinalScore:     &score,
	}
}

func QuizFinishedEvent(quizID string, at time.Time) MonitorEvent {
	return MonitorEvent{
		Event:      EventQuizFinished,
		QuizID:     quizID,
		Timestamp:  at,
		QuizStatus: QuizFinished,
	}
}
