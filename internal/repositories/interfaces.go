package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"gorm.io/gorm"
)

// IsNotFoundError reports whether a repository lookup found no row
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

type AttemptFilters struct {
	UserID    string      `json:"user_id"`
	Status    string      `json:"status"`
	Mode      models.Mode `json:"mode"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
	SortBy    string      `json:"sort_by"`    // "started_at", "submitted_at", "id"
	SortOrder string      `json:"sort_order"` // "asc", "desc"
}

// AttemptRepository persists attempts for the database-backed session gateway
type AttemptRepository interface {
	GetByID(ctx context.Context, id uint) (*models.AttemptRecord, error)
	// GetByIDWithDetails preloads questions in order and all saved answers.
	GetByIDWithDetails(ctx context.Context, id uint) (*models.AttemptRecord, error)
	List(ctx context.Context, filters AttemptFilters) ([]*models.AttemptRecord, int64, error)

	// SaveAnswer inserts or replaces the answer for (attempt, question).
	SaveAnswer(ctx context.Context, answer *models.AttemptAnswer) error
	CountGraded(ctx context.Context, attemptID uint) (int64, error)

	// Submit moves an in-progress attempt to submitted and stores the answers in one
	// transaction. It reports false without writing anything when the attempt was not
	// in progress.
	Submit(ctx context.Context, attemptID uint, answers []models.AttemptAnswer, totalTimeSpent int, at time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, attemptID uint, at time.Time) (bool, error)
}
