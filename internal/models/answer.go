package models

// AnswerRecord is the per-question state kept by the answer store.
// For multiple-choice questions RawAnswer is the sorted, comma-joined set of option keys.
type AnswerRecord struct {
	QuestionID       uint   `json:"question_id" validate:"required"`
	RawAnswer        string `json:"raw_answer"`
	IsMarked         bool   `json:"is_marked"`
	TimeSpentSeconds int    `json:"time_spent_seconds" validate:"min=0"`
}

func (r AnswerRecord) IsAnswered() bool {
	return r.RawAnswer != ""
}
