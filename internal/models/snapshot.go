package models

import "time"

// Remote attempt states reported by the fetch collaborator.
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusSubmitted  = "submitted"
)

// AttemptSnapshot is the authoritative state returned when a session is loaded or resumed.
type AttemptSnapshot struct {
	AttemptID        uint           `json:"attempt_id" validate:"required"`
	OwnerID          string         `json:"user_id,omitempty"`
	Mode             Mode           `json:"mode,omitempty" validate:"omitempty,session_mode"`
	Questions        []QuestionRef  `json:"questions" validate:"required,min=1,dive"`
	PriorAnswers     []AnswerRecord `json:"prior_answers" validate:"omitempty,dive"`
	TimeLimitSeconds int            `json:"time_limit_seconds" validate:"min=0"`
	StartedAt        time.Time      `json:"started_at"`
	CurrentIndex     int            `json:"current_index" validate:"min=0"`
	Status           string         `json:"status" validate:"omitempty,oneof=in_progress submitted"`
}

// Progress is a locally cached checkpoint of an in-flight session.
type Progress struct {
	AttemptID      uint           `json:"attempt_id"`
	CurrentIndex   int            `json:"current_index"`
	ElapsedSeconds int            `json:"elapsed_seconds"`
	Answers        []AnswerRecord `json:"answers"`
	SavedAt        time.Time      `json:"saved_at"`
}

// AttemptSummary lists an attempt that can be resumed.
type AttemptSummary struct {
	AttemptID        uint      `json:"attempt_id"`
	Mode             Mode      `json:"mode"`
	Status           string    `json:"status"`
	QuestionCount    int       `json:"question_count"`
	TimeLimitSeconds int       `json:"time_limit_seconds"`
	StartedAt        time.Time `json:"started_at"`
}

// Divergence records a cached answer that disagrees with the server snapshot.
// The server value always wins; divergences are only reported.
type Divergence struct {
	QuestionID   uint   `json:"question_id"`
	ServerAnswer string `json:"server_answer"`
	LocalAnswer  string `json:"local_answer"`
}

// Snapshot is the immutable view of a session given to the presentation layer.
type Snapshot struct {
	AttemptID        uint                    `json:"attempt_id"`
	Mode             Mode                    `json:"mode"`
	Status           SessionStatus           `json:"status"`
	CurrentIndex     int                     `json:"current_index"`
	Questions        []QuestionRef           `json:"questions"`
	Answers          []AnswerRecord          `json:"answers"`
	Results          map[uint]QuestionResult `json:"results,omitempty"`
	TimeLimitSeconds int                     `json:"time_limit_seconds"`
	ElapsedSeconds   int                     `json:"elapsed_seconds"`
	RemainingSeconds int                     `json:"remaining_seconds"`
	Warning          bool                    `json:"warning"`
	Expired          bool                    `json:"expired"`
	AnsweredCount    int                     `json:"answered_count"`
	MarkedCount      int                     `json:"marked_count"`
	Divergences      []Divergence            `json:"divergences,omitempty"`
	LastError        string                  `json:"last_error,omitempty"`
	Result           *SessionResult          `json:"result,omitempty"`
}
