package study

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/studysage/backend/internal/models"
)

const exportSheet = "Sheet1"

var exportHeader = []interface{}{"Completed At", "Type", "Reference ID", "Items", "Correct", "Accuracy %", "XP Earned"}

// ExportStudySessions writes the user's full study history as an xlsx
// workbook, newest first, with a totals row at the end.
func (s *Service) ExportStudySessions(ctx context.Context, userID uuid.UUID, w io.Writer) error {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	events, err := s.store.ListStudyEvents(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("list study events: %w", err)
	}

	f, err := buildWorkbook(events, s.loc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(events []models.StudyEvent, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(exportSheet, "A1", "G1", bold)
	}
	_ = f.SetColWidth(exportSheet, "A", "A", 20)

	var (
		totalXP      int64
		totalItems   int
		totalCorrect int
	)
	for i, e := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{
			e.CompletedAt.In(loc).Format("2006-01-02 15:04"),
			string(e.Type),
			e.ReferenceID,
			e.CardsStudied,
			e.CorrectAnswers,
			accuracy(e.CorrectAnswers, e.CardsStudied),
			e.XPEarned,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
		totalXP += e.XPEarned
		totalItems += e.CardsStudied
		totalCorrect += e.CorrectAnswers
	}

	cell, err := excelize.CoordinatesToCellName(1, len(events)+2)
	if err != nil {
		f.Close()
		return nil, err
	}
	totals := []interface{}{"Total", "", "", totalItems, totalCorrect, accuracy(totalCorrect, totalItems), totalXP}
	if err := f.SetSheetRow(exportSheet, cell, &totals); err != nil {
		f.Close()
		return nil, fmt.Errorf("write totals: %w", err)
	}
	return f, nil
}

// accuracy is correct/items as a whole percentage, 0 when items is 0.
func accuracy(correct, items int) int {
	if items <= 0 {
		return 0
	}
	return correct * 100 / items
}
