package models

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionOther    QuestionType = "other"
)

// QuestionRef is the engine's view of a question: identity, position and option keys.
// It never carries the correct answer.
type QuestionRef struct {
	ID         uint         `json:"id" validate:"required"`
	OrderIndex int          `json:"order_index" validate:"min=0"`
	Type       QuestionType `json:"type" validate:"required,question_type"`
	Options    []string     `json:"options" validate:"omitempty,dive,required,option_key"`
}

// HasOption reports whether key is one of the question's option keys.
// Questions without declared options accept any key.
func (q QuestionRef) HasOption(key string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, opt := range q.Options {
		if opt == key {
			return true
		}
	}
	return false
}
