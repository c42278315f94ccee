package events

import (
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/google/uuid"
)

// EventType represents the session lifecycle events published by the engine
type EventType string

const (
	EventSessionStarted       EventType = "session.started"
	EventSessionTimeWarning   EventType = "session.time_warning"
	EventSessionAutoSubmitted EventType = "session.auto_submitted"
	EventSessionSubmitted     EventType = "session.submitted"
	EventSessionSubmitFailed  EventType = "session.submit_failed"
	EventQuestionSubmitted    EventType = "session.question_submitted"
	EventResumeDivergence     EventType = "session.resume_divergence"
)

const (
	eventSource  = "exam-session"
	eventVersion = "1.0"
)

// SessionEvent is the envelope for every session event
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type SessionStartedEvent struct {
	AttemptID        uint        `json:"attempt_id"`
	UserID           string      `json:"user_id"`
	Mode             models.Mode `json:"mode"`
	QuestionCount    int         `json:"question_count"`
	TimeLimitSeconds int         `json:"time_limit_seconds"`
	ElapsedSeconds   int         `json:"elapsed_seconds"`
	Resumed          bool        `json:"resumed"`
}

type SessionTimeWarningEvent struct {
	AttemptID        uint   `json:"attempt_id"`
	UserID           string `json:"user_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type SessionSubmittedEvent struct {
	AttemptID   uint                 `json:"attempt_id"`
	UserID      string               `json:"user_id"`
	Trigger     models.SubmitTrigger `json:"trigger"`
	Answered    int                  `json:"answered"`
	Total       int                  `json:"total"`
	Elapsed     int                  `json:"elapsed_seconds"`
	CompletedAt time.Time            `json:"completed_at"`
}

type SessionSubmitFailedEvent struct {
	AttemptID uint                 `json:"attempt_id"`
	UserID    string               `json:"user_id"`
	Trigger   models.SubmitTrigger `json:"trigger"`
	Rejected  bool                 `json:"rejected"`
	Error     string               `json:"error"`
}

type QuestionSubmittedEvent struct {
	AttemptID      uint   `json:"attempt_id"`
	UserID         string `json:"user_id"`
	QuestionID     uint   `json:"question_id"`
	IsCorrect      bool   `json:"is_correct"`
	CompletedCount int    `json:"completed_count"`
	TotalQuestions int    `json:"total_questions"`
}

type ResumeDivergenceEvent struct {
	AttemptID   uint                `json:"attempt_id"`
	UserID      string              `json:"user_id"`
	Divergences []models.Divergence `json:"divergences"`
}

// NewSessionEvent wraps a payload in an envelope with a fresh id and timestamp.
func NewSessionEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewSessionStartedEvent(snap models.Snapshot, userID string, resumed bool) *SessionEvent {
	return NewSessionEvent(EventSessionStarted, SessionStartedEvent{
		AttemptID:        snap.AttemptID,
		UserID:           userID,
		Mode:             snap.Mode,
		QuestionCount:    len(snap.Questions),
		TimeLimitSeconds: snap.TimeLimitSeconds,
		ElapsedSeconds:   snap.ElapsedSeconds,
		Resumed:          resumed,
	})
}

func NewTimeWarningEvent(attemptID uint, userID string, remaining int) *SessionEvent {
	return NewSessionEvent(EventSessionTimeWarning, SessionTimeWarningEvent{
		AttemptID:        attemptID,
		UserID:           userID,
		RemainingSeconds: remaining,
	})
}

// NewSessionSubmittedEvent builds session.submitted, or session.auto_submitted when the
// timer triggered the submission.
func NewSessionSubmittedEvent(snap models.Snapshot, userID string, result models.SessionResult) *SessionEvent {
	eventType := EventSessionSubmitted
	if result.Trigger == models.TriggerTimeout {
		eventType = EventSessionAutoSubmitted
	}
	return NewSessionEvent(eventType, SessionSubmittedEvent{
		AttemptID:   result.AttemptID,
		UserID:      userID,
		Trigger:     result.Trigger,
		Answered:    snap.AnsweredCount,
		Total:       len(snap.Questions),
		Elapsed:     snap.ElapsedSeconds,
		CompletedAt: result.CompletedAt,
	})
}

func NewSubmitFailedEvent(attemptID uint, userID string, trigger models.SubmitTrigger, rejected bool, err error) *SessionEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return NewSessionEvent(EventSessionSubmitFailed, SessionSubmitFailedEvent{
		AttemptID: attemptID,
		UserID:    userID,
		Trigger:   trigger,
		Rejected:  rejected,
		Error:     msg,
	})
}

func NewQuestionSubmittedEvent(attemptID uint, userID string, res models.QuestionSubmitResult) *SessionEvent {
	return NewSessionEvent(EventQuestionSubmitted, QuestionSubmittedEvent{
		AttemptID:      attemptID,
		UserID:         userID,
		QuestionID:     res.Result.QuestionID,
		IsCorrect:      res.Result.IsCorrect,
		CompletedCount: res.CompletedCount,
		TotalQuestions: res.TotalQuestions,
	})
}

func NewResumeDivergenceEvent(attemptID uint, userID string, divergences []models.Divergence) *SessionEvent {
	return NewSessionEvent(EventResumeDivergence, ResumeDivergenceEvent{
		AttemptID:   attemptID,
		UserID:      userID,
		Divergences: divergences,
	})
}
