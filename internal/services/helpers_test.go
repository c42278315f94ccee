package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/cache"
	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/SAP-F-2025/exam-session/internal/repositories"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

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

// MockFetcher is a mock implementation of session.SessionFetcher
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

// MockSubmitter is a mock implementation of session.AnswerSubmitter
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

// MockQuestionSubmitter is a mock implementation of session.QuestionSubmitter
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

// MockResumableLister is a mock implementation of ResumableLister
type MockResumableLister struct {
	mock.Mock
}

func (m *MockResumableLister) ListResumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error) {
	args := m.Called(ctx, userID, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AttemptSummary), args.Error(1)
}

// MockAttemptRepository is a mock implementation of repositories.AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uint) (*models.AttemptRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttemptRecord), args.Error(1)
}

func (m *MockAttemptRepository) GetByIDWithDetails(ctx context.Context, id uint) (*models.AttemptRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttemptRecord), args.Error(1)
}

func (m *MockAttemptRepository) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.AttemptRecord, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.AttemptRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepository) SaveAnswer(ctx context.Context, answer *models.AttemptAnswer) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockAttemptRepository) CountGraded(ctx context.Context, attemptID uint) (int64, error) {
	args := m.Called(ctx, attemptID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) Submit(ctx context.Context, attemptID uint, answers []models.AttemptAnswer, totalTimeSpent int, at time.Time) (bool, error) {
	args := m.Called(ctx, attemptID, answers, totalTimeSpent, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptRepository) MarkSubmitted(ctx context.Context, attemptID uint, at time.Time) (bool, error) {
	args := m.Called(ctx, attemptID, at)
	return args.Bool(0), args.Error(1)
}

// memoryCache is an in-process cache.CacheService storing JSON like the redis one.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	data, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
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

func buildSnapshot(attemptID uint, owner string, n, limitSeconds int, startedAt time.Time) *models.AttemptSnapshot {
	return &models.AttemptSnapshot{
		AttemptID:        attemptID,
		OwnerID:          owner,
		Questions:        buildQuestions(n, models.QuestionSingle),
		TimeLimitSeconds: limitSeconds,
		StartedAt:        startedAt,
		Status:           models.AttemptStatusInProgress,
	}
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
