// Package export renders report listings as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

const (
	ReportsSheet = "Reports"
	SummarySheet = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reportHeaders = []string{
	"ID", "Report Type", "Interval", "Report Date", "Passport Count", "Visa Count",
	"Status", "Submitted By", "Vetted By", "Vetted At", "Vet Comments",
	"Approved By", "Approved At", "Approval Comments", "Remarks", "Submitted At",
}

var columnWidths = []float64{8, 18, 12, 14, 15, 12, 16, 24, 24, 20, 30, 24, 20, 30, 40, 20}

// FileName returns the download name for an export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("reports_%s.xlsx", t.UTC().Format("20060102_150405"))
}

// Workbook builds the Reports and Summary sheets and returns the file bytes.
func Workbook(reports []models.ReportWithRelations, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReportsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, ReportsSheet, 1, toRow(reportHeaders)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
	if err := f.SetCellStyle(ReportsSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(ReportsSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	stats := models.NewReportStatistics()
	for i, r := range reports {
		stats.Add(&r.Report)
		if err := writeRow(f, ReportsSheet, i+2, reportRow(r)); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(ReportsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	if err := writeSummary(f, stats, generatedAt, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, stats *models.ReportStatistics, generatedAt time.Time, headerStyle int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]any{
		{"Generated At", generatedAt.UTC().Format("2006-01-02 15:04:05")},
		{},
		{"Status", "Count"},
		{"Total", stats.Total},
	}
	for _, s := range workflow.Statuses {
		rows = append(rows, []any{s.Label(), statusCount(stats, s)})
	}
	rows = append(rows, []any{}, []any{"Interval", "Count"})
	for _, k := range []string{models.IntervalDaily, models.IntervalMonthly, models.IntervalQuarterly} {
		rows = append(rows, []any{models.IntervalLabel(k), stats.ByInterval[k]})
	}
	rows = append(rows, []any{}, []any{"Report Type", "Count"})
	for _, k := range []string{models.ReportTypePassportReturns, models.ReportTypeVisaReturns} {
		rows = append(rows, []any{models.ReportTypeLabel(k), stats.ByType[k]})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := writeRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
		if row[1] == "Count" {
			cell := fmt.Sprintf("B%d", i+1)
			if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", i+1), cell, headerStyle); err != nil {
				return fmt.Errorf("style summary header: %w", err)
			}
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 22)
}

func statusCount(s *models.ReportStatistics, st workflow.Status) int {
	switch st {
	case workflow.StatusPending:
		return s.Pending
	case workflow.StatusVetted:
		return s.Vetted
	case workflow.StatusApproved:
		return s.Approved
	case workflow.StatusRejected:
		return s.Rejected
	}
	return 0
}

func reportRow(r models.ReportWithRelations) []any {
	return []any{
		r.ID,
		r.ReportTypeLabel,
		r.IntervalLabel,
		r.ReportDate,
		intOrBlank(r.PassportCount),
		intOrBlank(r.VisaCount),
		r.StatusLabel,
		userName(r.User),
		userName(r.Vetter),
		timeOrBlank(r.VettedAt),
		strOrBlank(r.VetComments),
		userName(r.Approver),
		timeOrBlank(r.ApprovedAt),
		strOrBlank(r.ApprovalComments),
		strOrBlank(r.Remarks),
		r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func userName(u *models.UserSummary) string {
	if u == nil {
		return ""
	}
	return u.FullName()
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func strOrBlank(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
