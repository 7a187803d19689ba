// Package xlsx renders reports as Excel workbooks.
package xlsx

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pscheid92/stockpulse/internal/domain"
)

const turnoverSheet = "Turnover"

var turnoverHeader = []any{
	"Material", "Unit", "Income", "Usage", "Start stock", "End stock", "Average stock", "Turnover",
}

// TurnoverReport renders report as a single-sheet workbook. Rows without a
// turnover ratio leave the last column empty.
func TurnoverReport(report domain.TurnoverReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), turnoverSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("Turnover %s to %s (%d days)",
		report.From.Format("2006-01-02"), report.To.Format("2006-01-02"), report.Days)
	if err := f.SetCellValue(turnoverSheet, "A1", title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	if err := f.SetSheetRow(turnoverSheet, "A3", &turnoverHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range report.Rows {
		row := []any{r.Name, r.Unit.Label(), r.Income, r.Usage, r.StartStock, r.EndStock, r.AvgStock, nil}
		if r.Turnover != nil {
			row[7] = *r.Turnover
		}
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(turnoverSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := styleTurnoverSheet(f, len(report.Rows)); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func styleTurnoverSheet(f *excelize.File, rows int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(turnoverSheet, "A1", "A1", bold); err != nil {
		return fmt.Errorf("style title: %w", err)
	}
	if err := f.SetCellStyle(turnoverSheet, "A3", "H3", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if rows > 0 {
		numFmt := "0.00"
		numbers, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			return fmt.Errorf("create number style: %w", err)
		}
		if err := f.SetCellStyle(turnoverSheet, "C4", fmt.Sprintf("H%d", rows+3), numbers); err != nil {
			return fmt.Errorf("style numbers: %w", err)
		}
	}

	if err := f.SetColWidth(turnoverSheet, "A", "A", 32); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(turnoverSheet, "C", "H", 14); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetPanes(turnoverSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      3,
		TopLeftCell: "A4",
		ActivePane:  "bottomLeft",
	})
}

// Exporter adapts TurnoverReport to domain.ReportExporter.
type Exporter struct{}

var _ domain.ReportExporter = Exporter{}

func (Exporter) TurnoverReport(report domain.TurnoverReport) ([]byte, error) {
	return TurnoverReport(report)
}
