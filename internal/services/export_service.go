package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	answerSheetName  = "Answers"
	summarySheetName = "Summary"
)

type exportService struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewExportService(sessions SessionService, logger *slog.Logger) ExportService {
	return &exportService{
		sessions: sessions,
		logger:   logger,
	}
}

// ExportAnswerSheet renders the session's answers in question order, one row per
// question, plus a summary sheet.
func (s *exportService) ExportAnswerSheet(ctx context.Context, userID string, attemptID uint) ([]byte, error) {
	snap, err := s.sessions.Get(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exporting answer sheet", "attempt_id", attemptID, "user_id", userID, "status", snap.Status)

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(answerSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []interface{}{"#", "Question ID", "Type", "Answer", "Marked", "Time Spent (s)"}
	if snap.Mode == models.ModePractice {
		headers = append(headers, "Result", "Correct Answer")
	}
	if err := f.SetSheetRow(answerSheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	answers := make(map[uint]models.AnswerRecord, len(snap.Answers))
	for _, a := range snap.Answers {
		answers[a.QuestionID] = a
	}

	for i, q := range snap.Questions {
		rec := answers[q.ID]
		row := []interface{}{i + 1, q.ID, string(q.Type), rec.RawAnswer, yesNo(rec.IsMarked), rec.TimeSpentSeconds}
		if snap.Mode == models.ModePractice {
			if result, ok := snap.Results[q.ID]; ok {
				row = append(row, correctness(result.IsCorrect), result.CorrectAnswer)
			} else {
				row = append(row, "", "")
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(answerSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := s.writeSummary(f, snap); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *exportService) writeSummary(f *excelize.File, snap *models.Snapshot) error {
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Attempt", snap.AttemptID},
		{"Mode", string(snap.Mode)},
		{"Status", string(snap.Status)},
		{"Questions", len(snap.Questions)},
		{"Answered", snap.AnsweredCount},
		{"Marked", snap.MarkedCount},
		{"Elapsed (s)", snap.ElapsedSeconds},
	}
	if snap.TimeLimitSeconds > 0 {
		rows = append(rows, []interface{}{"Time Limit (s)", snap.TimeLimitSeconds})
	}
	if snap.Result != nil {
		rows = append(rows, []interface{}{"Completed At", snap.Result.CompletedAt.UTC().Format("2006-01-02 15:04:05")})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func correctness(v bool) string {
	if v {
		return "correct"
	}
	return "incorrect"
}
