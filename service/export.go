package service

import (
	"bytes"
	"context"
	"fmt"

	"rendiconto/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetSummary = "Rendiconto"
	sheetLedger  = "Conto economico"
	dateLayout   = "02/01/2006"
)

// ExportXLSX renders one report as a workbook: a summary sheet with header, beneficiary and
// totals, and a ledger sheet with every income and expense line. It also returns the download name.
func (s *ReportService) ExportXLSX(ctx context.Context, id, userID uint) ([]byte, string, error) {
	r, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, "", ErrInternal("Errore generazione file", err)
	}
	if _, err := f.NewSheet(sheetLedger); err != nil {
		return nil, "", ErrInternal("Errore generazione file", err)
	}

	if err := writeSummarySheet(f, r); err != nil {
		return nil, "", ErrInternal("Errore generazione file", err)
	}
	if err := writeLedgerSheet(f, r); err != nil {
		return nil, "", ErrInternal("Errore generazione file", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", ErrInternal("Errore generazione file", err)
	}
	s.log.Info("rendiconto esportato", zap.Uint("report_id", r.ID), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), ExportFileName(r), nil
}

// ExportFileName rendiconto_<rg>_<anno>.xlsx, falling back to the id when R.G. is empty
func ExportFileName(r *models.FinancialReport) string {
	ref := r.Header.CaseRef
	if ref == "" {
		ref = fmt.Sprintf("%d", r.ID)
	}
	return fmt.Sprintf("rendiconto_%s_%d.xlsx", sanitizeFileName(ref), r.Header.Year)
}

func writeSummarySheet(f *excelize.File, r *models.FinancialReport) error {
	beneficiary := ""
	fiscalCode := ""
	if r.Beneficiary != nil {
		beneficiary = r.Beneficiary.FullName
		fiscalCode = r.Beneficiary.FiscalCode
	}
	signDate := ""
	if r.Signature.Date != nil {
		signDate = r.Signature.Date.Format(dateLayout)
	}
	totals := ComputeTotals(r)

	rows := [][]interface{}{
		{"R.G.", r.Header.CaseRef},
		{"Anno", r.Header.Year},
		{"Periodo dal", r.Header.PeriodStart.Format(dateLayout)},
		{"Periodo al", r.Header.PeriodEnd.Format(dateLayout)},
		{"Beneficiario", beneficiary},
		{"Codice fiscale", fiscalCode},
		{"Stato", r.State},
		{},
		{"Totale entrate", totals.Income},
		{"Totale uscite", totals.Expense},
		{"Differenza", totals.Net},
		{},
		{"Condizioni personali", r.PersonalConditions},
		{"Luogo", r.Signature.Place},
		{"Data", signDate},
		{"Note", r.Notes},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "A", 24)
}

func writeLedgerSheet(f *excelize.File, r *models.FinancialReport) error {
	header := []interface{}{"Tipo", "Categoria", "Descrizione", "Importo"}
	if err := f.SetSheetRow(sheetLedger, "A1", &header); err != nil {
		return err
	}

	row := 2
	write := func(kind string, entries []models.LedgerEntry) error {
		for _, e := range entries {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{kind, e.Category, e.Description, e.Amount}
			if err := f.SetSheetRow(sheetLedger, cell, &values); err != nil {
				return err
			}
			row++
		}
		return nil
	}
	if err := write("Entrata", r.Ledger.Income); err != nil {
		return err
	}
	if err := write("Uscita", r.Ledger.Expense); err != nil {
		return err
	}

	totals := ComputeTotals(r)
	footer := [][]interface{}{
		{"", "", "Totale entrate", totals.Income},
		{"", "", "Totale uscite", totals.Expense},
		{"", "", "Differenza", totals.Net},
	}
	row++
	for _, values := range footer {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetLedger, cell, &values); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(sheetLedger, "B", "C", 30)
}

func sanitizeFileName(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
