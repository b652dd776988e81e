package app

import (
	"context"
	"math"

	"teach-quiz-service/internal/domain"
)

const statsTextLimit = 50

// Statistics computes the report for a quiz from freshly loaded records.
func (s *QuizService) Statistics(ctx context.Context, quizID string) (domain.Statistics, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Statistics{}, err
	}
	records, err := s.participations.ListRecords(ctx, quizID)
	if err != nil {
		return domain.Statistics{}, err
	}
	return ComputeStatistics(quiz, records), nil
}

// ComputeStatistics derives quiz metrics. Scores are aggregated over completed
// records only; per-question counts include every recorded answer.
func ComputeStatistics(quiz domain.Quiz, records []domain.ParticipationRecord) domain.Statistics {
	scores := aggregateScores(records)

	type tally struct{ total, correct int }
	tallies := make(map[string]*tally, len(quiz.Questions))
	for _, q := range quiz.Questions {
		tallies[q.ID] = &tally{}
	}
	for _, rec := range records {
		for _, a := range rec.Answers {
			t, ok := tallies[a.QuestionID]
			if !ok {
				continue
			}
			t.total++
			if a.IsCorrect {
				t.correct++
			}
		}
	}

	perQuestion := make([]domain.QuestionStatistics, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		t := tallies[q.ID]
		perQuestion = append(perQuestion, domain.QuestionStatistics{
			QuestionNumber:  i + 1,
			QuestionID:      q.ID,
			Text:            truncate(q.Text, statsTextLimit),
			TotalAnswers:    t.total,
			CorrectAnswers:  t.correct,
			AccuracyPercent: percent(t.correct, t.total),
		})
	}

	return domain.Statistics{
		QuizID:                quiz.ID,
		Title:                 quiz.Title,
		TotalParticipants:     len(records),
		CompletedParticipants: scores.completed,
		AverageScore:          scores.average,
		HighestScore:          scores.highest,
		LowestScore:           scores.lowest,
		PerQuestion:           perQuestion,
	}
}

// Snapshot is the live aggregate sent to observers; it shares its numbers with ComputeStatistics.
func Snapshot(records []domain.ParticipationRecord) domain.MonitorSnapshot {
	scores := aggregateScores(records)
	return domain.MonitorSnapshot{
		ActiveStudents:    len(records),
		CompletedStudents: scores.completed,
		AverageScore:      scores.average,
	}
}

type scoreSummary struct {
	completed int
	average   float64
	highest   int
	lowest    int
}

func aggregateScores(records []domain.ParticipationRecord) scoreSummary {
	var out scoreSummary
	sum := 0
	for _, rec := range records {
		if !rec.IsCompleted {
			continue
		}
		if out.completed == 0 || rec.Score > out.highest {
			out.highest = rec.Score
		}
		if out.completed == 0 || rec.Score < out.lowest {
			out.lowest = rec.Score
		}
		out.completed++
		sum += rec.Score
	}
	if out.completed > 0 {
		// Integer sum divided once: the result does not depend on record order.
		out.average = math.Round(float64(sum)*100/float64(out.completed)) / 100
	}
	return out
}

// percent rounds correct/total*100 half up using integer arithmetic.
func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return (correct*200 + total) / (2 * total)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
