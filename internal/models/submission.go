package models

type SubmittedAnswer struct {
	QuestionID uint   `json:"question_id"`
	UserAnswer string `json:"user_answer"`
}

// SubmissionPayload covers every question of the attempt in order, answered or not.
type SubmissionPayload struct {
	AttemptID      uint              `json:"attempt_id"`
	Answers        []SubmittedAnswer `json:"answers"`
	TotalTimeSpent int               `json:"total_time_spent"`
}

type SubmitResult struct {
	Accepted  bool `json:"accepted"`
	AttemptID uint `json:"attempt_id"`
}

// QuestionSubmission is the practice-mode payload for a single question.
type QuestionSubmission struct {
	AttemptID  uint   `json:"attempt_id"`
	QuestionID uint   `json:"question_id"`
	UserAnswer string `json:"user_answer"`
	TimeSpent  int    `json:"time_spent"`
}

type QuestionResult struct {
	QuestionID    uint   `json:"question_id"`
	UserAnswer    string `json:"user_answer"`
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

type QuestionSubmitResult struct {
	Result         QuestionResult `json:"result"`
	CompletedCount int            `json:"completed_count"`
	TotalQuestions int            `json:"total_questions"`
	Completed      bool           `json:"completed"`
}

// SubmitSummary is what the confirmation step shows before a bulk submit.
type SubmitSummary struct {
	Total            int  `json:"total"`
	Answered         int  `json:"answered"`
	Unanswered       int  `json:"unanswered"`
	Marked           int  `json:"marked"`
	ElapsedSeconds   int  `json:"elapsed"`
	RemainingSeconds int  `json:"remaining"`
	Warning          bool `json:"warning"`
}
