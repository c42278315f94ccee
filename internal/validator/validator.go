package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/go-playground/validator/v10"
)

const maxOptionKeyLength = 50

// Validator is the main validator instance that combines all validation types
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and, for attempt snapshots, the cross-field question
// rules. Tag failures are returned as ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return ToValidationErrors(err)
		}
		return err
	}

	if snap, ok := s.(*models.AttemptSnapshot); ok {
		if errs := v.questionValidator.ValidateQuestions(snap.Questions); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("session_mode", validateSessionMode)
	validate.RegisterValidation("option_key", validateOptionKey)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.QuestionSingle, models.QuestionMultiple, models.QuestionOther:
		return true
	}
	return false
}

func validateSessionMode(fl validator.FieldLevel) bool {
	switch models.Mode(fl.Field().String()) {
	case models.ModeExam, models.ModePractice:
		return true
	}
	return false
}

// validateOptionKey accepts keys that survive the comma-joined answer encoding.
func validateOptionKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if key == "" || len(key) > maxOptionKeyLength {
		return false
	}
	if strings.TrimSpace(key) != key {
		return false
	}
	return !strings.Contains(key, ",")
}
