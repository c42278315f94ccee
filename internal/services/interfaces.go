package services

import (
	"context"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

// ===== SERVICE INTERFACES =====

// SessionService owns the live sessions of this process. Every call is scoped to the
// user that started the session.
type SessionService interface {
	Start(ctx context.Context, userID string, req *StartSessionRequest) (*models.Snapshot, error)
	Get(ctx context.Context, userID string, attemptID uint) (*models.Snapshot, error)
	Answer(ctx context.Context, userID string, attemptID uint, req *AnswerRequest) (*models.AnswerRecord, error)
	Mark(ctx context.Context, userID string, attemptID uint, req *MarkRequest) (*models.AnswerRecord, error)
	Navigate(ctx context.Context, userID string, attemptID uint, req *NavigateRequest) (*models.Snapshot, error)
	Summary(ctx context.Context, userID string, attemptID uint) (*models.SubmitSummary, error)
	Submit(ctx context.Context, userID string, attemptID uint) (*models.SessionResult, error)
	SubmitQuestion(ctx context.Context, userID string, attemptID, questionID uint) (*models.QuestionSubmitResult, error)
	Checkpoint(ctx context.Context, userID string, attemptID uint) (*models.Progress, error)
	Close(ctx context.Context, userID string, attemptID uint) error
	Resumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error)

	// Shutdown stops every tick loop. Sessions are not submitted.
	Shutdown()
}

// ExportService renders a session's answer sheet
type ExportService interface {
	ExportAnswerSheet(ctx context.Context, userID string, attemptID uint) ([]byte, error)
}

type ServiceManager interface {
	Session() SessionService
	Export() ExportService
}

// ResumableLister is implemented by attempt backends that can list a user's unfinished
// attempts.
type ResumableLister interface {
	ListResumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error)
}

// ===== REQUEST TYPES =====

type StartSessionRequest struct {
	AttemptID uint        `json:"attempt_id" validate:"required"`
	Mode      models.Mode `json:"mode" validate:"omitempty,session_mode"`
}

type AnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	OptionKey  string `json:"option_key" validate:"required,option_key"`
}

// MarkRequest sets the review flag; a nil Marked toggles it.
type MarkRequest struct {
	QuestionID uint  `json:"question_id" validate:"required"`
	Marked     *bool `json:"marked"`
}

// NavigateRequest moves to Index, or one step in Direction.
type NavigateRequest struct {
	Index     *int   `json:"index" validate:"required_without=Direction"`
	Direction string `json:"direction" validate:"omitempty,oneof=next prev"`
}

// ===== MANAGER =====

type serviceManager struct {
	session SessionService
	export  ExportService
}

func NewServiceManager(session SessionService, export ExportService) ServiceManager {
	return &serviceManager{session: session, export: export}
}

func (m *serviceManager) Session() SessionService { return m.session }
func (m *serviceManager) Export() ExportService   { return m.export }
