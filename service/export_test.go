package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"rendiconto/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportService_ExportXLSX(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	b := ts.createBeneficiary(t, 1, "BNCGLI40E52L219K")

	r, err := ts.reports.Create(ctx, 1, ReportInput{
		BeneficiaryID: b.ID,
		PeriodStart:   date(2024, time.January, 1),
		PeriodEnd:     date(2024, time.December, 31),
		CaseRef:       "45/2024",
		Ledger: &models.Ledger{
			Income:  []models.LedgerEntry{{Category: "PENSIONE", Description: "INPS", Amount: 10}},
			Expense: []models.LedgerEntry{{Category: "SALUTE", Description: "Farmacia", Amount: 5}},
		},
	})
	require.NoError(t, err)

	data, fileName, err := ts.reports.ExportXLSX(ctx, r.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "rendiconto_45_2024_2024.xlsx", fileName)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	ref, err := f.GetCellValue(sheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "45/2024", ref)

	name, err := f.GetCellValue(sheetSummary, "B5")
	require.NoError(t, err)
	assert.Equal(t, "Giulia Bianchi", name)

	rows, err := f.GetRows(sheetLedger)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)
	assert.Equal(t, []string{"Tipo", "Categoria", "Descrizione", "Importo"}, rows[0])
	assert.Equal(t, "PENSIONE", rows[1][1])
	assert.Equal(t, "Farmacia", rows[2][2])
	assert.Equal(t, "Differenza", rows[len(rows)-1][2])

	_, _, err = ts.reports.ExportXLSX(ctx, r.ID, 2)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestExportFileName(t *testing.T) {
	r := &models.FinancialReport{ID: 3, Header: models.ReportHeader{CaseRef: "45/2024", Year: 2024}}
	assert.Equal(t, "rendiconto_45_2024_2024.xlsx", ExportFileName(r))

	r.Header.CaseRef = ""
	assert.Equal(t, "rendiconto_3_2024.xlsx", ExportFileName(r))
}
