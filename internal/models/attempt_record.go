package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptRecord backs the standalone attempt gateway. The engine itself never reads it;
// the gateway converts it into an AttemptSnapshot.
type AttemptRecord struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	UserID           string         `json:"user_id" gorm:"size:100;index"`
	Mode             Mode           `json:"mode" gorm:"size:20;default:exam"`
	Status           string         `json:"status" gorm:"size:20;default:in_progress;index"`
	TimeLimitSeconds int            `json:"time_limit_seconds" gorm:"not null;default:0"`
	StartedAt        time.Time      `json:"started_at"`
	SubmittedAt      *time.Time     `json:"submitted_at"`
	TotalTimeSpent   int            `json:"total_time_spent" gorm:"default:0"`
	CurrentIndex     int            `json:"current_index" gorm:"default:0"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []AttemptQuestion `json:"questions" gorm:"foreignKey:AttemptID"`
	Answers   []AttemptAnswer   `json:"answers" gorm:"foreignKey:AttemptID"`
}

func (AttemptRecord) TableName() string {
	return "session_attempts"
}

type AttemptQuestion struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	AttemptID     uint           `json:"attempt_id" gorm:"not null;index"`
	QuestionID    uint           `json:"question_id" gorm:"not null"`
	OrderIndex    int            `json:"order_index" gorm:"not null"`
	Type          QuestionType   `json:"type" gorm:"size:20;not null"`
	Options       datatypes.JSON `json:"options" gorm:"type:jsonb"` // []string
	CorrectAnswer string         `json:"-" gorm:"size:200"`
}

func (AttemptQuestion) TableName() string {
	return "session_attempt_questions"
}

type AttemptAnswer struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	AttemptID        uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID       uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	UserAnswer       string    `json:"user_answer" gorm:"size:200"`
	IsMarked         bool      `json:"is_marked" gorm:"default:false"`
	TimeSpentSeconds int       `json:"time_spent_seconds" gorm:"default:0"`
	IsCorrect        *bool     `json:"is_correct"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (AttemptAnswer) TableName() string {
	return "session_attempt_answers"
}
