package validator

import (
	"errors"
	"testing"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *models.AttemptSnapshot {
	return &models.AttemptSnapshot{
		AttemptID: 1,
		Questions: []models.QuestionRef{
			{ID: 1, OrderIndex: 0, Type: models.QuestionSingle, Options: []string{"A", "B"}},
			{ID: 2, OrderIndex: 1, Type: models.QuestionMultiple, Options: []string{"A", "B", "C"}},
			{ID: 3, OrderIndex: 2, Type: models.QuestionOther},
		},
		TimeLimitSeconds: 600,
		Status:           models.AttemptStatusInProgress,
	}
}

func TestValidator_ValidSnapshot(t *testing.T) {
	assert.NoError(t, New().Validate(validSnapshot()))
}

func TestValidator_SnapshotTagRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.AttemptSnapshot)
		field  string
		rule   string
	}{
		{
			name:   "no questions",
			mutate: func(s *models.AttemptSnapshot) { s.Questions = nil },
			field:  "questions",
			rule:   "required",
		},
		{
			name:   "unknown question type",
			mutate: func(s *models.AttemptSnapshot) { s.Questions[0].Type = "essay" },
			field:  "type",
			rule:   "question_type",
		},
		{
			name:   "option key with comma",
			mutate: func(s *models.AttemptSnapshot) { s.Questions[1].Options[0] = "A,B" },
			field:  "options[0]",
			rule:   "option_key",
		},
		{
			name:   "negative time limit",
			mutate: func(s *models.AttemptSnapshot) { s.TimeLimitSeconds = -1 },
			field:  "time_limit_seconds",
			rule:   "min",
		},
		{
			name:   "unknown status",
			mutate: func(s *models.AttemptSnapshot) { s.Status = "graded" },
			field:  "status",
			rule:   "oneof",
		},
		{
			name:   "unknown mode",
			mutate: func(s *models.AttemptSnapshot) { s.Mode = "quiz" },
			field:  "mode",
			rule:   "session_mode",
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := validSnapshot()
			tt.mutate(snap)

			err := v.Validate(snap)
			var errs ValidationErrors
			require.True(t, errors.As(err, &errs), "expected ValidationErrors, got %v", err)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.rule, errs[0].Rule)
		})
	}
}

func TestValidator_QuestionRules(t *testing.T) {
	v := New()

	t.Run("duplicate question ids", func(t *testing.T) {
		snap := validSnapshot()
		snap.Questions[2].ID = 1

		err := v.Validate(snap)
		var errs ValidationErrors
		require.ErrorAs(t, err, &errs)
		assert.Equal(t, "questions[2].id", errs[0].Field)
	})

	t.Run("duplicate options", func(t *testing.T) {
		snap := validSnapshot()
		snap.Questions[0].Options = []string{"A", "A"}

		err := v.Validate(snap)
		var errs ValidationErrors
		require.ErrorAs(t, err, &errs)
		assert.Equal(t, "questions[0].options", errs[0].Field)
	})

	t.Run("multiple choice with one option", func(t *testing.T) {
		snap := validSnapshot()
		snap.Questions[1].Options = []string{"A"}

		assert.Error(t, v.Validate(snap))
	})
}

func TestValidator_RequestStruct(t *testing.T) {
	type answerRequest struct {
		QuestionID uint   `json:"question_id" validate:"required"`
		OptionKey  string `json:"option_key" validate:"required,option_key"`
	}
	v := New()

	assert.NoError(t, v.Validate(&answerRequest{QuestionID: 1, OptionKey: "B"}))

	err := v.Validate(&answerRequest{OptionKey: " B"})
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 2)
}
