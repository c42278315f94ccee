package models

import "time"

type SessionStatus string

const (
	SessionLoading    SessionStatus = "loading"
	SessionActive     SessionStatus = "active"
	SessionSubmitting SessionStatus = "submitting"
	SessionCompleted  SessionStatus = "completed"
	SessionError      SessionStatus = "error"
)

// Mode selects how answers leave the session: one bulk submission at the end (exam)
// or one submission per question (practice).
type Mode string

const (
	ModeExam     Mode = "exam"
	ModePractice Mode = "practice"
)

type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// Session is the aggregate owned by a single controller.
type Session struct {
	ID               uint          `json:"id"`
	Mode             Mode          `json:"mode"`
	QuestionRefs     []QuestionRef `json:"question_refs"`
	TimeLimitSeconds int           `json:"time_limit_seconds"`
	StartedAt        time.Time     `json:"started_at"`
	Status           SessionStatus `json:"status"`
}

// SessionResult is handed to the presentation layer once a session completes.
type SessionResult struct {
	AttemptID   uint          `json:"attempt_id"`
	Trigger     SubmitTrigger `json:"trigger,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}
