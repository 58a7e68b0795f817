package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"redas-backend/internal/models"
	"redas-backend/internal/workflow"
)

func TestWorkbook(t *testing.T) {
	ten, three := 10, 3
	comment := "ok"
	vettedAt := time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC)
	vetter := int64(2)

	reports := []models.ReportWithRelations{
		models.Report{
			ID: 1, UserID: 1, ReportType: models.ReportTypePassportReturns, IntervalType: models.IntervalMonthly,
			ReportDate: "2026-10-01", PassportCount: &ten, Status: workflow.StatusVetted,
			VettedBy: &vetter, VettedAt: &vettedAt, VetComments: &comment,
			CreatedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
		}.WithRelations(map[int64]models.UserSummary{
			1: {ID: 1, FirstName: "Ada", LastName: "Obi"},
			2: {ID: 2, FirstName: "Sola", LastName: "Ade"},
		}),
		models.Report{
			ID: 2, UserID: 1, ReportType: models.ReportTypeVisaReturns, IntervalType: models.IntervalDaily,
			ReportDate: "2026-09-30", VisaCount: &three, Status: workflow.StatusPending,
			CreatedAt: time.Date(2026, 9, 30, 8, 0, 0, 0, time.UTC),
		}.WithRelations(nil),
	}

	data, err := Workbook(reports, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ReportsSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ReportsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Report Type", rows[0][1])
	assert.Equal(t, "Passport Returns", rows[1][1])
	assert.Equal(t, "10", rows[1][4])
	assert.Equal(t, "Vetted", rows[1][6])
	assert.Equal(t, "Ada Obi", rows[1][7])
	assert.Equal(t, "Sola Ade", rows[1][8])
	assert.Equal(t, "2026-10-02 09:30:00", rows[1][9])
	assert.Equal(t, "ok", rows[1][10])
	assert.Equal(t, "Pending Review", rows[2][6])

	total, err := f.GetCellValue(SummarySheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	pending, err := f.GetCellValue(SummarySheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "1", pending)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "reports_20261018_120000.xlsx", FileName(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)))
}
