package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"rendiconto/models"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func (e *testEnv) reportRouter(userID uint) *gin.Engine {
	h := NewReportHandler(e.reports, e.log)
	r := gin.New()
	g := r.Group("/rendiconti", setUserIDMiddleware(userID))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/stato", h.SetState)
	g.GET("/:id/completezza", h.Completeness)
	g.POST("/:id/firma", h.ApplySignature)
	g.GET("/:id/export", h.Export)
	return r
}

func (e *testEnv) beneficiary(t *testing.T, userID uint) *models.Beneficiary {
	t.Helper()
	b, err := e.beneficiaries.Create(context.Background(), userID, service.BeneficiaryInput{
		FirstName:  "Giulia",
		LastName:   "Bianchi",
		FiscalCode: "BNCGLI40E52L219X",
		BirthDate:  mustDate("1940-05-12"),
	})
	require.NoError(t, err)
	return b
}

func reportBody(beneficiaryID uint, start, end string) map[string]interface{} {
	return map[string]interface{}{
		"beneficiarioId": beneficiaryID,
		"datiGenerali":   map[string]string{"dataInizio": start, "dataFine": end, "rg_numero": "1234/2023"},
		"contoEconomico": map[string]interface{}{
			"entrate": []map[string]interface{}{
				{"categoria": "PENSIONE", "descrizione": "Pensione INPS", "importo": 1200.50},
			},
			"uscite": []map[string]interface{}{
				{"categoria": "SALUTE", "descrizione": "Farmaci", "importo": 200.25},
			},
		},
	}
}

func TestReportHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "anna@example.com", "BNCNNA80A41L219K")
	b := env.beneficiary(t, u.ID)
	r := env.reportRouter(u.ID)

	w := doJSON(r, "POST", "/rendiconti", reportBody(b.ID, "2024-01-01", "2024-12-31"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rep models.FinancialReport
	decodeData(t, w, &rep)
	assert.Equal(t, models.ReportStateDraft, rep.State)
	assert.Equal(t, 2024, rep.Header.Year)
	assert.Equal(t, models.Totals{Income: 1200.5, Expense: 200.25, Net: 1000.25}, rep.Totals)
	require.NotNil(t, rep.Beneficiary)
	assert.Equal(t, b.ID, rep.Beneficiary.ID)

	// overlapping period for the same beneficiary
	w = doJSON(r, "POST", "/rendiconti", reportBody(b.ID, "2024-06-01", "2025-05-31"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodePeriodOverlap, decode(t, w).Code)

	w = doJSON(r, "POST", "/rendiconti", reportBody(9999, "2023-01-01", "2023-12-31"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	path := fmt.Sprintf("/rendiconti/%d", rep.ID)

	w = doJSON(r, "GET", path+"/completezza", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var comp service.Completeness
	decodeData(t, w, &comp)
	assert.False(t, comp.Complete)
	assert.Contains(t, comp.Missing, models.MissingConditions)
	assert.Contains(t, comp.Missing, models.MissingSignatureDate)

	w = doJSON(r, "PATCH", path+"/stato", map[string]string{"stato": models.ReportStateCompleted})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, string(decode(t, w).Details), models.MissingConditions)

	w = doJSON(r, "PATCH", path+"/stato", map[string]string{"stato": "archiviato"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, "PUT", path, map[string]interface{}{
		"condizioniPersonali": "Vive in RSA",
		"firma": map[string]interface{}{
			"dichiarazioneVeridicita": true,
			"consensoTrattamento":     true,
			"luogo":                   "Torino",
			"data":                    "2025-01-15",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &rep)
	assert.Equal(t, "Vive in RSA", rep.PersonalConditions)
	assert.Equal(t, "1234/2023", rep.Header.CaseRef)

	w = doJSON(r, "PATCH", path+"/stato", map[string]string{"stato": models.ReportStateCompleted})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, "GET", path+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=rendiconto_1234_2023_2024.xlsx", w.Header().Get("Content-Disposition"))
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Conto economico")

	w = doJSON(r, "PATCH", path+"/stato", map[string]string{"stato": models.ReportStateSubmitted})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// submitted reports are frozen
	w = doJSON(r, "PUT", path, map[string]interface{}{"note": "ritocco"})
	assert.Equal(t, http.StatusLocked, w.Code)
	w = doJSON(r, "DELETE", path, nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	w = doJSON(r, "PATCH", path+"/stato", map[string]string{"stato": models.ReportStateDraft})
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestReportHandler_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "anna@example.com", "BNCNNA80A41L219K")
	b := env.beneficiary(t, u.ID)
	r := env.reportRouter(u.ID)

	for _, year := range []int{2022, 2023, 2024} {
		w := doJSON(r, "POST", "/rendiconti", reportBody(b.ID, fmt.Sprintf("%d-01-01", year), fmt.Sprintf("%d-12-31", year)))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(r, "GET", "/rendiconti?anno=2023", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []models.FinancialReport
	decodeData(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, 2023, items[0].Header.Year)

	w = doJSON(r, "GET", "/rendiconti?search=bianchi&limit=2", nil)
	env2 := decode(t, w)
	assert.Equal(t, int64(3), env2.Pagination.TotalItems)
	assert.Equal(t, 2, env2.Pagination.TotalPages)

	w = doJSON(r, "GET", "/rendiconti?anno=duemila", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, "GET", "/rendiconti?stato=archiviato", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// other users see nothing
	w = doJSON(env.reportRouter(u.ID+100), "GET", "/rendiconti", nil)
	assert.Equal(t, int64(0), decode(t, w).Pagination.TotalItems)
	w = doJSON(env.reportRouter(u.ID+100), "GET", fmt.Sprintf("/rendiconti/%d", items[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, "DELETE", fmt.Sprintf("/rendiconti/%d", items[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, "GET", "/rendiconti", nil)
	assert.Equal(t, int64(2), decode(t, w).Pagination.TotalItems)
}

func TestReportHandler_ApplySignature(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "anna@example.com", "BNCNNA80A41L219K")
	b := env.beneficiary(t, u.ID)
	r := env.reportRouter(u.ID)

	w := doJSON(r, "POST", "/rendiconti", reportBody(b.ID, "2024-01-01", "2024-12-31"))
	require.Equal(t, http.StatusCreated, w.Code)
	var rep models.FinancialReport
	decodeData(t, w, &rep)
	path := fmt.Sprintf("/rendiconti/%d/firma", rep.ID)

	w = doJSON(r, "POST", path, map[string]string{"password": "segreta123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeMissingSignature, decode(t, w).Code)

	_, err := env.users.SetSignature(context.Background(), u.ID, "segreta123", pngHeader)
	require.NoError(t, err)

	w = doJSON(r, "POST", path, map[string]string{"password": "sbagliata"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "POST", path, map[string]string{"password": "segreta123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &rep)
	assert.True(t, rep.Signature.Applied)
	assert.NotEmpty(t, rep.Signature.Image)
	assert.NotNil(t, rep.Signature.AppliedAt)
}
