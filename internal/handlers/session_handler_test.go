package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/SAP-F-2025/exam-session/internal/services"
	"github.com/SAP-F-2025/exam-session/internal/session"
	"github.com/SAP-F-2025/exam-session/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Start(ctx context.Context, userID string, req *services.StartSessionRequest) (*models.Snapshot, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockSessionService) Get(ctx context.Context, userID string, attemptID uint) (*models.Snapshot, error) {
	args := m.Called(ctx, userID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockSessionService) Answer(ctx context.Context, userID string, attemptID uint, req *services.AnswerRequest) (*models.AnswerRecord, error) {
	args := m.Called(ctx, userID, attemptID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnswerRecord), args.Error(1)
}

func (m *MockSessionService) Mark(ctx context.Context, userID string, attemptID uint, req *services.MarkRequest) (*models.AnswerRecord, error) {
	args := m.Called(ctx, userID, attemptID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnswerRecord), args.Error(1)
}

func (m *MockSessionService) Navigate(ctx context.Context, userID string, attemptID uint, req *services.NavigateRequest) (*models.Snapshot, error) {
	args := m.Called(ctx, userID, attemptID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockSessionService) Summary(ctx context.Context, userID string, attemptID uint) (*models.SubmitSummary, error) {
	args := m.Called(ctx, userID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmitSummary), args.Error(1)
}

func (m *MockSessionService) Submit(ctx context.Context, userID string, attemptID uint) (*models.SessionResult, error) {
	args := m.Called(ctx, userID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionResult), args.Error(1)
}

func (m *MockSessionService) SubmitQuestion(ctx context.Context, userID string, attemptID, questionID uint) (*models.QuestionSubmitResult, error) {
	args := m.Called(ctx, userID, attemptID, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionSubmitResult), args.Error(1)
}

func (m *MockSessionService) Checkpoint(ctx context.Context, userID string, attemptID uint) (*models.Progress, error) {
	args := m.Called(ctx, userID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Progress), args.Error(1)
}

func (m *MockSessionService) Close(ctx context.Context, userID string, attemptID uint) error {
	return m.Called(ctx, userID, attemptID).Error(0)
}

func (m *MockSessionService) Resumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error) {
	args := m.Called(ctx, userID, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AttemptSummary), args.Error(1)
}

func (m *MockSessionService) Shutdown() {
	m.Called()
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportAnswerSheet(ctx context.Context, userID string, attemptID uint) ([]byte, error) {
	args := m.Called(ctx, userID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type stubParser map[string]string

func (p stubParser) ParseUserID(token string) (string, error) {
	if userID, ok := p[token]; ok {
		return userID, nil
	}
	return "", errors.New("token is expired")
}

type handlerFixture struct {
	router   *gin.Engine
	sessions *MockSessionService
	exports  *MockExportService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	f := &handlerFixture{
		router:   gin.New(),
		sessions: new(MockSessionService),
		exports:  new(MockExportService),
	}
	manager := NewHandlerManager(services.NewServiceManager(f.sessions, f.exports), logger)
	f.router.Use(utils.ContextLogger(logger))
	manager.SetupRoutes(f.router, AuthMiddleware(stubParser{"good-token": "user-9"}, true, logger))

	t.Cleanup(func() {
		f.sessions.AssertExpectations(t)
		f.exports.AssertExpectations(t)
	})
	return f
}

func (f *handlerFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func asUser(userID string) map[string]string {
	return map[string]string{userIDHeader: userID}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "exam-session", decodeBody(t, w)["service"])
}

func TestAuthMiddleware(t *testing.T) {
	snap := &models.Snapshot{AttemptID: 1, Status: models.SessionActive}

	t.Run("missing identity", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodGet, "/api/v1/sessions/1", "", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "User not authenticated", decodeBody(t, w)["message"])
	})

	t.Run("bearer token", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.sessions.On("Get", mock.Anything, "user-9", uint(1)).Return(snap, nil)

		w := f.do(http.MethodGet, "/api/v1/sessions/1", "", map[string]string{
			"Authorization": "Bearer good-token",
		})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bearer token wins over header", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.sessions.On("Get", mock.Anything, "user-9", uint(1)).Return(snap, nil)

		w := f.do(http.MethodGet, "/api/v1/sessions/1", "", map[string]string{
			"Authorization": "bearer good-token",
			userIDHeader:    "someone-else",
		})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodGet, "/api/v1/sessions/1", "", map[string]string{
			"Authorization": "Bearer stale",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid or expired token", decodeBody(t, w)["message"])
	})

	t.Run("request id echoed", func(t *testing.T) {
		f := newHandlerFixture(t)

		w := f.do(http.MethodGet, "/api/v1/sessions/1", "", map[string]string{
			utils.RequestIDHeader: "req-42",
		})

		assert.Equal(t, "req-42", w.Header().Get(utils.RequestIDHeader))
	})
}

func TestSessionHandler_StartSession(t *testing.T) {
	f := newHandlerFixture(t)
	snap := &models.Snapshot{AttemptID: 7, Mode: models.ModeExam, Status: models.SessionActive}
	f.sessions.On("Start", mock.Anything, "user-1", &services.StartSessionRequest{AttemptID: 7, Mode: models.ModeExam}).
		Return(snap, nil)

	w := f.do(http.MethodPost, "/api/v1/sessions", `{"attempt_id":7,"mode":"exam"}`, asUser("user-1"))

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Session started", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["attempt_id"])
	assert.Equal(t, "active", data["status"])
}

func TestSessionHandler_StartSessionBadPayload(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(http.MethodPost, "/api/v1/sessions", `{"attempt_id":`, asUser("user-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.sessions.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionHandler_InvalidID(t *testing.T) {
	f := newHandlerFixture(t)

	for _, path := range []string{"/api/v1/sessions/abc", "/api/v1/sessions/0"} {
		w := f.do(http.MethodGet, path, "", asUser("user-1"))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestSessionHandler_AnswerMarkNavigate(t *testing.T) {
	f := newHandlerFixture(t)
	f.sessions.On("Answer", mock.Anything, "user-1", uint(3), &services.AnswerRequest{QuestionID: 11, OptionKey: "B"}).
		Return(&models.AnswerRecord{QuestionID: 11, RawAnswer: "B"}, nil)
	f.sessions.On("Mark", mock.Anything, "user-1", uint(3), &services.MarkRequest{QuestionID: 11}).
		Return(&models.AnswerRecord{QuestionID: 11, RawAnswer: "B", IsMarked: true}, nil)
	f.sessions.On("Navigate", mock.Anything, "user-1", uint(3), mock.MatchedBy(func(req *services.NavigateRequest) bool {
		return req.Index == nil && req.Direction == "next"
	})).Return(&models.Snapshot{AttemptID: 3, CurrentIndex: 1}, nil)

	w := f.do(http.MethodPost, "/api/v1/sessions/3/answer", `{"question_id":11,"option_key":"B"}`, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "B", decodeBody(t, w)["data"].(map[string]interface{})["raw_answer"])

	w = f.do(http.MethodPost, "/api/v1/sessions/3/mark", `{"question_id":11}`, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["data"].(map[string]interface{})["is_marked"])

	w = f.do(http.MethodPost, "/api/v1/sessions/3/navigate", `{"direction":"next"}`, asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["data"].(map[string]interface{})["current_index"])
}

func TestSessionHandler_SubmitFlow(t *testing.T) {
	f := newHandlerFixture(t)
	f.sessions.On("Summary", mock.Anything, "user-1", uint(5)).
		Return(&models.SubmitSummary{Total: 4, Answered: 3, Unanswered: 1}, nil)
	f.sessions.On("Submit", mock.Anything, "user-1", uint(5)).
		Return(&models.SessionResult{AttemptID: 5, Trigger: models.TriggerManual}, nil)

	w := f.do(http.MethodGet, "/api/v1/sessions/5/summary", "", asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["data"].(map[string]interface{})["unanswered"])

	w = f.do(http.MethodPost, "/api/v1/sessions/5/submit", "", asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "manual", decodeBody(t, w)["data"].(map[string]interface{})["trigger"])
}

func TestSessionHandler_SubmitQuestion(t *testing.T) {
	f := newHandlerFixture(t)
	f.sessions.On("SubmitQuestion", mock.Anything, "user-1", uint(5), uint(12)).
		Return(&models.QuestionSubmitResult{
			Result:         models.QuestionResult{QuestionID: 12, IsCorrect: true},
			CompletedCount: 1,
			TotalQuestions: 3,
		}, nil)

	w := f.do(http.MethodPost, "/api/v1/sessions/5/questions/12/submit", "", asUser("user-1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/sessions/5/questions/x/submit", "", asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_CheckpointAndClose(t *testing.T) {
	f := newHandlerFixture(t)
	f.sessions.On("Checkpoint", mock.Anything, "user-1", uint(8)).
		Return(&models.Progress{AttemptID: 8, ElapsedSeconds: 30}, nil)
	f.sessions.On("Close", mock.Anything, "user-1", uint(8)).Return(nil)

	w := f.do(http.MethodPost, "/api/v1/sessions/8/checkpoint", "", asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(30), decodeBody(t, w)["data"].(map[string]interface{})["elapsed_seconds"])

	w = f.do(http.MethodDelete, "/api/v1/sessions/8", "", asUser("user-1"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandler_ExportAnswerSheet(t *testing.T) {
	f := newHandlerFixture(t)
	f.exports.On("ExportAnswerSheet", mock.Anything, "user-1", uint(4)).Return([]byte("PK-data"), nil)

	w := f.do(http.MethodGet, "/api/v1/sessions/4/export", "", asUser("user-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "answer-sheet-4.xlsx")
	assert.Equal(t, "PK-data", w.Body.String())
}

func TestSessionHandler_ListResumable(t *testing.T) {
	f := newHandlerFixture(t)
	f.sessions.On("Resumable", mock.Anything, "user-1", models.ModePractice).
		Return([]models.AttemptSummary{{AttemptID: 2, Mode: models.ModePractice}}, nil)

	w := f.do(http.MethodGet, "/api/v1/sessions/resumable?mode=practice", "", asUser("user-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["data"], 1)

	w = f.do(http.MethodGet, "/api/v1/sessions/resumable?mode=quiz", "", asUser("user-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"session not found", services.ErrSessionNotFound, http.StatusNotFound},
		{"attempt not found", &session.LoadError{AttemptID: 1, Err: services.ErrAttemptNotFound}, http.StatusNotFound},
		{"other owner", services.NewPermissionError("user-1", 1, "session", "access", "not the owner"), http.StatusForbidden},
		{"mode mismatch", services.NewBusinessRuleError("session_mode", "session is open in practice mode", nil), http.StatusUnprocessableEntity},
		{"invalid snapshot", &session.LoadError{AttemptID: 1, Err: fmt.Errorf("%w: no questions", session.ErrInvalidSnapshot)}, http.StatusBadGateway},
		{"validation", fmt.Errorf("%w: %w", services.ErrValidationFailed, services.ValidationErrors{{Field: "OptionKey", Message: "is required"}}), http.StatusBadRequest},
		{"unauthorized", services.ErrUnauthorized, http.StatusUnauthorized},
		{"resumable unsupported", services.ErrResumableUnsupported, http.StatusNotImplemented},
		{"invalid option", session.ErrInvalidOption, http.StatusUnprocessableEntity},
		{"session limit", services.ErrSessionLimitReached, http.StatusTooManyRequests},
		{"not active", session.ErrNotActive, http.StatusConflict},
		{"expired", session.ErrTimeExpired, http.StatusConflict},
		{"rejected submit", &session.SubmitError{AttemptID: 1, Rejected: true}, http.StatusConflict},
		{"transport submit", &session.SubmitError{AttemptID: 1, Trigger: models.TriggerManual, Err: errors.New("connection reset")}, http.StatusBadGateway},
		{"load transport", &session.LoadError{AttemptID: 1, Err: errors.New("dial tcp: timeout")}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.sessions.On("Get", mock.Anything, "user-1", uint(1)).Return(nil, tt.err)

			w := f.do(http.MethodGet, "/api/v1/sessions/1", "", asUser("user-1"))

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["message"])
		})
	}
}
