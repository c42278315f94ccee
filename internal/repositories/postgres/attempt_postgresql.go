package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/SAP-F-2025/exam-session/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AttemptRecord, error) {
	var attempt models.AttemptRecord
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, id uint) (*models.AttemptRecord, error) {
	var attempt models.AttemptRecord
	if err := a.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Preload("Answers").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.AttemptRecord, int64, error) {
	var attempts []*models.AttemptRecord
	var total int64

	query := a.db.WithContext(ctx).Model(&models.AttemptRecord{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.applyPaginationAndSort(query, filters)
	if err := query.Preload("Questions").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a AttemptPostgreSQL) SaveAnswer(ctx context.Context, answer *models.AttemptAnswer) error {
	return a.upsertAnswers(a.db.WithContext(ctx), []models.AttemptAnswer{*answer})
}

func (a AttemptPostgreSQL) CountGraded(ctx context.Context, attemptID uint) (int64, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.AttemptAnswer{}).
		Where("attempt_id = ? AND is_correct IS NOT NULL", attemptID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (a AttemptPostgreSQL) Submit(ctx context.Context, attemptID uint, answers []models.AttemptAnswer, totalTimeSpent int, at time.Time) (bool, error) {
	transitioned := false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AttemptRecord{}).
			Where("id = ? AND status = ?", attemptID, models.AttemptStatusInProgress).
			Updates(map[string]interface{}{
				"status":           models.AttemptStatusSubmitted,
				"submitted_at":     at,
				"total_time_spent": totalTimeSpent,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update attempt status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		transitioned = true

		if len(answers) == 0 {
			return nil
		}
		if err := a.upsertAnswers(tx, answers); err != nil {
			return fmt.Errorf("failed to save answers: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

func (a AttemptPostgreSQL) MarkSubmitted(ctx context.Context, attemptID uint, at time.Time) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("id = ? AND status = ?", attemptID, models.AttemptStatusInProgress).
		Updates(map[string]interface{}{
			"status":       models.AttemptStatusSubmitted,
			"submitted_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (a AttemptPostgreSQL) upsertAnswers(tx *gorm.DB, answers []models.AttemptAnswer) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_answer", "is_marked", "time_spent_seconds", "is_correct", "updated_at",
		}),
	}).Create(&answers).Error
}

func (a AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Mode != "" {
		query = query.Where("mode = ?", filters.Mode)
	}
	return query
}

func (a AttemptPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	sortBy := "started_at"
	switch filters.SortBy {
	case "started_at", "submitted_at", "id":
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	query = query.Order(sortBy + " " + sortOrder)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
