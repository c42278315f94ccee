package session

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

var (
	ErrNotLoaded                = errors.New("session not loaded")
	ErrAlreadyStarted           = errors.New("session already started")
	ErrNotActive                = errors.New("session is not active")
	ErrSubmitInFlight           = errors.New("submission already in flight")
	ErrUnknownQuestion          = errors.New("question not in session")
	ErrInvalidOption            = errors.New("invalid option key for question")
	ErrTimeExpired              = errors.New("session time has expired")
	ErrWrongMode                = errors.New("operation not available in this session mode")
	ErrQuestionAlreadySubmitted = errors.New("question already submitted")
	ErrEmptyAnswer              = errors.New("question has no answer to submit")
	ErrInvalidSnapshot          = errors.New("invalid attempt snapshot")
)

// LoadError is returned when Start cannot obtain a usable attempt snapshot.
// The controller is left in the error state and Start may be called again.
type LoadError struct {
	AttemptID uint
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load attempt %d: %v", e.AttemptID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SubmitError wraps a failed submission. Transport failures leave the session active
// with local state untouched; Rejected submissions are terminal.
type SubmitError struct {
	AttemptID  uint
	QuestionID uint
	Trigger    models.SubmitTrigger
	Rejected   bool
	Err        error
}

func (e *SubmitError) Error() string {
	target := fmt.Sprintf("attempt %d", e.AttemptID)
	if e.QuestionID != 0 {
		target = fmt.Sprintf("attempt %d question %d", e.AttemptID, e.QuestionID)
	}
	if e.Rejected {
		return fmt.Sprintf("submit %s rejected", target)
	}
	return fmt.Sprintf("submit %s (%s): %v", target, e.Trigger, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the caller may invoke the failed operation again.
func IsRetryable(err error) bool {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return !errors.Is(err, ErrInvalidSnapshot)
	}
	var submitErr *SubmitError
	if errors.As(err, &submitErr) {
		return !submitErr.Rejected
	}
	return false
}
