package session

import (
	"context"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

// SessionFetcher returns the authoritative attempt snapshot used to seed a session.
type SessionFetcher interface {
	FetchSession(ctx context.Context, attemptID uint) (*models.AttemptSnapshot, error)
}

// AnswerSubmitter receives the one bulk submission of an exam session.
// Implementations should be safe to call again after a transport failure.
type AnswerSubmitter interface {
	SubmitAnswers(ctx context.Context, payload models.SubmissionPayload) (*models.SubmitResult, error)
}

// QuestionSubmitter receives practice-mode answers one question at a time.
type QuestionSubmitter interface {
	SubmitQuestion(ctx context.Context, submission models.QuestionSubmission) (*models.QuestionSubmitResult, error)
}

// Dependencies groups the remote collaborators of a controller.
type Dependencies struct {
	Fetcher           SessionFetcher
	Submitter         AnswerSubmitter
	QuestionSubmitter QuestionSubmitter
}
