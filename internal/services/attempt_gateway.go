package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/SAP-F-2025/exam-session/internal/repositories"
	"github.com/SAP-F-2025/exam-session/internal/session"
)

const resumableListLimit = 50

// AttemptGateway serves the session collaborators straight from the attempt tables.
// It is used when the service runs without a remote attempt API.
type AttemptGateway struct {
	repo   repositories.AttemptRepository
	logger *slog.Logger
	clock  session.Clock
}

func NewAttemptGateway(repo repositories.AttemptRepository, logger *slog.Logger) *AttemptGateway {
	return &AttemptGateway{
		repo:   repo,
		logger: logger,
		clock:  time.Now,
	}
}

func (g *AttemptGateway) FetchSession(ctx context.Context, attemptID uint) (*models.AttemptSnapshot, error) {
	attempt, err := g.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	snap := &models.AttemptSnapshot{
		AttemptID:        attempt.ID,
		OwnerID:          attempt.UserID,
		Mode:             attempt.Mode,
		TimeLimitSeconds: attempt.TimeLimitSeconds,
		StartedAt:        attempt.StartedAt,
		CurrentIndex:     attempt.CurrentIndex,
		Status:           attempt.Status,
	}

	for _, q := range attempt.Questions {
		ref := models.QuestionRef{
			ID:         q.QuestionID,
			OrderIndex: q.OrderIndex,
			Type:       q.Type,
		}
		if len(q.Options) > 0 {
			if err := json.Unmarshal(q.Options, &ref.Options); err != nil {
				return nil, fmt.Errorf("failed to decode options of question %d: %w", q.QuestionID, err)
			}
		}
		snap.Questions = append(snap.Questions, ref)
	}

	for _, a := range attempt.Answers {
		snap.PriorAnswers = append(snap.PriorAnswers, models.AnswerRecord{
			QuestionID:       a.QuestionID,
			RawAnswer:        a.UserAnswer,
			IsMarked:         a.IsMarked,
			TimeSpentSeconds: a.TimeSpentSeconds,
		})
	}

	return snap, nil
}

// SubmitAnswers grades and stores the bulk submission. Submitting an attempt that is
// already submitted is accepted without writing anything, so retries are safe.
func (g *AttemptGateway) SubmitAnswers(ctx context.Context, payload models.SubmissionPayload) (*models.SubmitResult, error) {
	attempt, err := g.repo.GetByIDWithDetails(ctx, payload.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			g.logger.Warn("Rejecting submission for unknown attempt", "attempt_id", payload.AttemptID)
			return &models.SubmitResult{Accepted: false, AttemptID: payload.AttemptID}, nil
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Status == models.AttemptStatusSubmitted {
		return &models.SubmitResult{Accepted: true, AttemptID: attempt.ID}, nil
	}

	questions := questionsByID(attempt.Questions)
	answers := make([]models.AttemptAnswer, 0, len(payload.Answers))
	for _, a := range payload.Answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			g.logger.Warn("Rejecting submission with unknown question",
				"attempt_id", attempt.ID, "question_id", a.QuestionID)
			return &models.SubmitResult{Accepted: false, AttemptID: attempt.ID}, nil
		}
		correct := gradeAnswer(q, a.UserAnswer)
		answers = append(answers, models.AttemptAnswer{
			AttemptID:  attempt.ID,
			QuestionID: a.QuestionID,
			UserAnswer: a.UserAnswer,
			IsCorrect:  &correct,
		})
	}

	if _, err := g.repo.Submit(ctx, attempt.ID, answers, payload.TotalTimeSpent, g.clock()); err != nil {
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}

	g.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"answers", len(answers),
		"total_time_spent", payload.TotalTimeSpent)
	return &models.SubmitResult{Accepted: true, AttemptID: attempt.ID}, nil
}

// SubmitQuestion grades one practice answer. The attempt is closed once every question
// has been graded.
func (g *AttemptGateway) SubmitQuestion(ctx context.Context, submission models.QuestionSubmission) (*models.QuestionSubmitResult, error) {
	attempt, err := g.getAttempt(ctx, submission.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptStatusSubmitted {
		return nil, ErrAttemptAlreadySubmitted
	}
	q, ok := questionsByID(attempt.Questions)[submission.QuestionID]
	if !ok {
		return nil, ErrQuestionNotInAttempt
	}

	correct := gradeAnswer(q, submission.UserAnswer)
	if err := g.repo.SaveAnswer(ctx, &models.AttemptAnswer{
		AttemptID:        attempt.ID,
		QuestionID:       submission.QuestionID,
		UserAnswer:       submission.UserAnswer,
		TimeSpentSeconds: submission.TimeSpent,
		IsCorrect:        &correct,
	}); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	graded, err := g.repo.CountGraded(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count graded answers: %w", err)
	}
	total := len(attempt.Questions)
	completed := int(graded) >= total
	if completed {
		if _, err := g.repo.MarkSubmitted(ctx, attempt.ID, g.clock()); err != nil {
			return nil, fmt.Errorf("failed to close attempt: %w", err)
		}
	}

	return &models.QuestionSubmitResult{
		Result: models.QuestionResult{
			QuestionID:    submission.QuestionID,
			UserAnswer:    submission.UserAnswer,
			IsCorrect:     correct,
			CorrectAnswer: q.CorrectAnswer,
		},
		CompletedCount: int(graded),
		TotalQuestions: total,
		Completed:      completed,
	}, nil
}

func (g *AttemptGateway) ListResumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error) {
	attempts, _, err := g.repo.List(ctx, repositories.AttemptFilters{
		UserID:    userID,
		Status:    models.AttemptStatusInProgress,
		Mode:      mode,
		Limit:     resumableListLimit,
		SortBy:    "started_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	summaries := make([]models.AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		summaries = append(summaries, models.AttemptSummary{
			AttemptID:        a.ID,
			Mode:             a.Mode,
			Status:           a.Status,
			QuestionCount:    len(a.Questions),
			TimeLimitSeconds: a.TimeLimitSeconds,
			StartedAt:        a.StartedAt,
		})
	}
	return summaries, nil
}

func (g *AttemptGateway) getAttempt(ctx context.Context, attemptID uint) (*models.AttemptRecord, error) {
	attempt, err := g.repo.GetByIDWithDetails(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

func questionsByID(questions []models.AttemptQuestion) map[uint]models.AttemptQuestion {
	byID := make(map[uint]models.AttemptQuestion, len(questions))
	for _, q := range questions {
		byID[q.QuestionID] = q
	}
	return byID
}

// gradeAnswer compares canonical encodings, so "C,A" matches "A,C" for multiple choice.
// Free-text answers compare case-insensitively after trimming.
func gradeAnswer(q models.AttemptQuestion, answer string) bool {
	if answer == "" || q.CorrectAnswer == "" {
		return false
	}
	switch q.Type {
	case models.QuestionMultiple:
		return session.EncodeOptions(session.ParseOptions(answer)) == session.EncodeOptions(session.ParseOptions(q.CorrectAnswer))
	case models.QuestionOther:
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
	default:
		return strings.TrimSpace(answer) == strings.TrimSpace(q.CorrectAnswer)
	}
}
