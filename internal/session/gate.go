package session

import "github.com/SAP-F-2025/exam-session/internal/models"

// Summarize computes the pre-submit confirmation summary. It reads state only; the
// timer keeps running while the user decides. Unanswered questions raise a warning
// but never block submission.
func Summarize(store *AnswerStore, timer *Timer) models.SubmitSummary {
	total := store.Total()
	answered := store.AnsweredCount()
	return models.SubmitSummary{
		Total:            total,
		Answered:         answered,
		Unanswered:       total - answered,
		Marked:           store.MarkedCount(),
		ElapsedSeconds:   timer.ElapsedSeconds(),
		RemainingSeconds: timer.RemainingSeconds(),
		Warning:          total-answered > 0,
	}
}
