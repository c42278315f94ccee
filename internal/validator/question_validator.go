package validator

import (
	"fmt"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

// QuestionValidator handles the cross-question rules struct tags cannot express
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestions checks that question ids are unique and that each question's
// options are unique. Multiple-choice questions need at least two options.
func (v *QuestionValidator) ValidateQuestions(questions []models.QuestionRef) ValidationErrors {
	var errs ValidationErrors
	seenIDs := make(map[uint]bool, len(questions))

	for i, q := range questions {
		field := fmt.Sprintf("questions[%d]", i)
		if seenIDs[q.ID] {
			errs = append(errs, *NewValidationErrorWithRule(field+".id", "must be unique within the attempt", "unique", q.ID))
		}
		seenIDs[q.ID] = true

		if err := v.validateOptions(field, q); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

func (v *QuestionValidator) validateOptions(field string, q models.QuestionRef) *ValidationError {
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if seen[opt] {
			return NewValidationErrorWithRule(field+".options", "must not contain duplicates", "unique", opt)
		}
		seen[opt] = true
	}
	if q.Type == models.QuestionMultiple && len(q.Options) == 1 {
		return NewValidationErrorWithRule(field+".options", "multiple choice needs at least 2 options", "min", len(q.Options))
	}
	return nil
}
