package httpapi

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/harshith-99/meat-shop/internal/domain"
)

var reconciliationHeader = []string{
	"Category", "Opening", "Purchased", "Sold", "Closing",
	"Total Live Available", "Live Bird Closing", "Live Used", "Live Closing",
	"Expected", "Actual", "Loss", "Loss %",
}

// reconciliationToXLSX renders a reconciliation report as a spreadsheet,
// one row per category summary.
func reconciliationToXLSX(report domain.ReconciliationReport) (*excelize.File, error) {
	file := excelize.NewFile()
	const sheet = "Reconciliation"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := file.SetCellValue(sheet, "A1", fmt.Sprintf("Daily Reconciliation %s / %s", report.BranchID, report.Date)); err != nil {
		return nil, err
	}
	for col, title := range reconciliationHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}

	for i, summary := range report.Categories {
		lossLabel := summary.LossPercent
		if summary.Surplus {
			lossLabel += " (surplus)"
		}
		values := []any{
			summary.CategoryName,
			summary.Opening.String(),
			summary.Purchased.String(),
			summary.Sold.String(),
			summary.Closing.String(),
			summary.TotalLiveAvailable.String(),
			summary.LiveBirdClosing.String(),
			summary.LiveUsed.String(),
			summary.LiveClosing.String(),
			summary.Expected.String(),
			summary.Actual.String(),
			summary.Loss.String(),
			lossLabel,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+3)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	return file, nil
}
