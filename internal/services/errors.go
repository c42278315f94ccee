package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-session/internal/errors"
	"github.com/SAP-F-2025/exam-session/internal/session"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Session specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAccessDenied = errors.New("access denied to session")
	ErrSessionLimitReached = errors.New("too many open sessions")

	// Attempt specific errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrQuestionNotInAttempt    = errors.New("question not in attempt")

	ErrResumableUnsupported = errors.New("attempt backend cannot list resumable attempts")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrSessionAccessDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrBadRequest) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsRejectedInput checks if the engine refused the input itself, independent of state
func IsRejectedInput(err error) bool {
	return errors.Is(err, session.ErrUnknownQuestion) ||
		errors.Is(err, session.ErrInvalidOption) ||
		errors.Is(err, session.ErrEmptyAnswer) ||
		errors.Is(err, session.ErrWrongMode) ||
		errors.Is(err, session.ErrInvalidSnapshot) ||
		errors.Is(err, ErrQuestionNotInAttempt)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionLimitReached) ||
		errors.Is(err, ErrAttemptAlreadySubmitted) ||
		errors.Is(err, session.ErrAlreadyStarted) ||
		errors.Is(err, session.ErrNotActive) ||
		errors.Is(err, session.ErrNotLoaded) ||
		errors.Is(err, session.ErrSubmitInFlight) ||
		errors.Is(err, session.ErrTimeExpired) ||
		errors.Is(err, session.ErrQuestionAlreadySubmitted)
}

// IsUpstream checks if error came from a collaborator call that may succeed on retry
func IsUpstream(err error) bool {
	var loadErr *session.LoadError
	var submitErr *session.SubmitError
	return (errors.As(err, &loadErr) || errors.As(err, &submitErr)) && session.IsRetryable(err)
}
