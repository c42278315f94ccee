package session

import (
	"sort"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

// AssembleSubmission builds the payload for every question in order_index order.
// Unanswered questions get an empty answer so grading can tell them from wrong ones.
// The time spent is read from the timer at assembly time.
func AssembleSubmission(attemptID uint, questions []models.QuestionRef, store *AnswerStore, timer *Timer) models.SubmissionPayload {
	ordered := make([]models.QuestionRef, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	answers := make([]models.SubmittedAnswer, len(ordered))
	for i, q := range ordered {
		answers[i] = models.SubmittedAnswer{
			QuestionID: q.ID,
			UserAnswer: store.Get(q.ID).RawAnswer,
		}
	}

	return models.SubmissionPayload{
		AttemptID:      attemptID,
		Answers:        answers,
		TotalTimeSpent: timer.ElapsedSeconds(),
	}
}
