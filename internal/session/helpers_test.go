package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/stretchr/testify/mock"
)

// fakeClock is a manually advanced clock safe for concurrent readers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// MockFetcher is a mock implementation of SessionFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchSession(ctx context.Context, attemptID uint) (*models.AttemptSnapshot, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttemptSnapshot), args.Error(1)
}

// MockSubmitter is a mock implementation of AnswerSubmitter
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitAnswers(ctx context.Context, payload models.SubmissionPayload) (*models.SubmitResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmitResult), args.Error(1)
}

// MockQuestionSubmitter is a mock implementation of QuestionSubmitter
type MockQuestionSubmitter struct {
	mock.Mock
}

func (m *MockQuestionSubmitter) SubmitQuestion(ctx context.Context, submission models.QuestionSubmission) (*models.QuestionSubmitResult, error) {
	args := m.Called(ctx, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionSubmitResult), args.Error(1)
}

func buildQuestions(n int, qType models.QuestionType) []models.QuestionRef {
	questions := make([]models.QuestionRef, n)
	for i := range questions {
		questions[i] = models.QuestionRef{
			ID:         uint(i + 1),
			OrderIndex: i,
			Type:       qType,
			Options:    []string{"A", "B", "C", "D"},
		}
	}
	return questions
}

func buildSnapshot(attemptID uint, n, limitSeconds int, startedAt time.Time) *models.AttemptSnapshot {
	return &models.AttemptSnapshot{
		AttemptID:        attemptID,
		Questions:        buildQuestions(n, models.QuestionSingle),
		TimeLimitSeconds: limitSeconds,
		StartedAt:        startedAt,
		Status:           models.AttemptStatusInProgress,
	}
}

func countNonEmpty(answers []models.SubmittedAnswer) int {
	n := 0
	for _, a := range answers {
		if a.UserAnswer != "" {
			n++
		}
	}
	return n
}

func questionIDs(from, to int) []uint {
	ids := make([]uint, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, uint(i))
	}
	return ids
}

func optionKey(i int) string {
	return fmt.Sprintf("%c", 'A'+rune(i%4))
}
