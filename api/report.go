package api

import (
	"fmt"
	"strconv"

	"rendiconto/middleware"
	"rendiconto/models"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReportHandler financial reports of the caller
type ReportHandler struct {
	reports *service.ReportService
	log     *zap.Logger
}

// NewReportHandler creates the report handler
func NewReportHandler(reports *service.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, log: log}
}

// ReportHeaderRequest period and case reference
type ReportHeaderRequest struct {
	PeriodStart *Date   `json:"dataInizio" swaggertype:"string" example:"2024-01-01"`
	PeriodEnd   *Date   `json:"dataFine" swaggertype:"string" example:"2024-12-31"`
	CaseRef     *string `json:"rg_numero" example:"1234/2023"`
}

// SignatureRequest signature block fields a client may set
type SignatureRequest struct {
	Truthfulness    *bool   `json:"dichiarazioneVeridicita"`
	DataConsent     *bool   `json:"consensoTrattamento"`
	Place           *string `json:"luogo" example:"Torino"`
	Date            *Date   `json:"data" swaggertype:"string" example:"2025-01-15"`
	AdditionalNotes *string `json:"noteAggiuntive"`
	SaveMode        *string `json:"tipoSalvataggio" example:"completo"`
}

// ReportRequest create payload
type ReportRequest struct {
	BeneficiaryID      uint                `json:"beneficiarioId" example:"1"`
	Header             ReportHeaderRequest `json:"datiGenerali"`
	PersonalConditions string              `json:"condizioniPersonali"`
	Ledger             *models.Ledger      `json:"contoEconomico"`
	Signature          *SignatureRequest   `json:"firma"`
	Notes              string              `json:"note"`
}

// ReportUpdateRequest patch; owner, beneficiary and state are not accepted here
type ReportUpdateRequest struct {
	Header             *ReportHeaderRequest `json:"datiGenerali"`
	PersonalConditions *string              `json:"condizioniPersonali"`
	Ledger             *models.Ledger       `json:"contoEconomico"`
	Signature          *SignatureRequest    `json:"firma"`
	Notes              *string              `json:"note"`
}

// StateRequest target state
type StateRequest struct {
	State string `json:"stato" binding:"required" example:"completato"`
}

func (r *SignatureRequest) input() *service.SignatureInput {
	if r == nil {
		return nil
	}
	return &service.SignatureInput{
		Truthfulness:    r.Truthfulness,
		DataConsent:     r.DataConsent,
		Place:           r.Place,
		Date:            datePtr(r.Date),
		AdditionalNotes: r.AdditionalNotes,
		SaveMode:        r.SaveMode,
	}
}

// List the caller's reports, newest first
// @Summary Elenco rendiconti
// @Tags Rendiconti
// @Produce json
// @Security BearerAuth
// @Param page query int false "Pagina" default(1)
// @Param limit query int false "Elementi per pagina" default(10)
// @Param stato query string false "bozza, completato o inviato"
// @Param anno query int false "Anno del periodo"
// @Param search query string false "Nome beneficiario o R.G."
// @Success 200 {object} Response{data=[]models.FinancialReport}
// @Failure 400 {object} ErrorResponse "Filtro non valido"
// @Router /api/rendiconti [get]
func (h *ReportHandler) List(c *gin.Context) {
	h.list(c, middleware.GetCurrentUserID(c))
}

// ListForUser same listing addressed by user id; RequireOwnership guards the path
// @Summary Rendiconti di un utente
// @Tags Rendiconti
// @Produce json
// @Security BearerAuth
// @Param userId path int true "ID utente"
// @Param page query int false "Pagina" default(1)
// @Param limit query int false "Elementi per pagina" default(10)
// @Success 200 {object} Response{data=[]models.FinancialReport}
// @Failure 403 {object} ErrorResponse "Ruolo non ammesso o utente diverso"
// @Router /api/users/{userId}/rendiconti [get]
func (h *ReportHandler) ListForUser(c *gin.Context) {
	h.list(c, middleware.GetCurrentUserID(c))
}

func (h *ReportHandler) list(c *gin.Context, userID uint) {
	page, limit := pageParams(c)
	q := service.ReportQuery{
		Page:     page,
		PageSize: limit,
		State:    c.Query("stato"),
		Search:   c.Query("search"),
	}
	if raw := c.Query("anno"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(c, "Anno non valido")
			return
		}
		q.Year = year
	}
	result, err := h.reports.List(c.Request.Context(), userID, q)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Paginated(c, result)
}

// Get one report with its beneficiary and totals
// @Summary Dettaglio rendiconto
// @Tags Rendiconti
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Success 200 {object} Response{data=models.FinancialReport}
// @Failure 404 {object} ErrorResponse
// @Router /api/rendiconti/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := h.reports.Get(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, r)
}

// Create opens a draft report
// @Summary Crea rendiconto
// @Tags Rendiconti
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ReportRequest true "Rendiconto"
// @Success 201 {object} Response{data=models.FinancialReport}
// @Failure 400 {object} ErrorResponse "Dati non validi"
// @Failure 404 {object} ErrorResponse "Beneficiario non trovato o non attivo"
// @Failure 409 {object} ErrorResponse "Periodo sovrapposto"
// @Router /api/rendiconti [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	in := service.ReportInput{
		BeneficiaryID:      req.BeneficiaryID,
		Ledger:             req.Ledger,
		PersonalConditions: req.PersonalConditions,
		Notes:              req.Notes,
		Signature:          req.Signature.input(),
	}
	if req.Header.PeriodStart != nil {
		in.PeriodStart = req.Header.PeriodStart.Time
	}
	if req.Header.PeriodEnd != nil {
		in.PeriodEnd = req.Header.PeriodEnd.Time
	}
	if req.Header.CaseRef != nil {
		in.CaseRef = *req.Header.CaseRef
	}
	r, err := h.reports.Create(c.Request.Context(), middleware.GetCurrentUserID(c), in)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Created(c, "Rendiconto creato con successo", r)
}

// Update patches an unlocked report
// @Summary Aggiorna rendiconto
// @Tags Rendiconti
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Param request body ReportUpdateRequest true "Campi da aggiornare"
// @Success 200 {object} Response{data=models.FinancialReport}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Periodo sovrapposto"
// @Failure 423 {object} ErrorResponse "Rendiconto inviato, non modificabile"
// @Router /api/rendiconti/{id} [put]
func (h *ReportHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ReportUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	patch := service.ReportPatch{
		Ledger:             req.Ledger,
		PersonalConditions: req.PersonalConditions,
		Notes:              req.Notes,
		Signature:          req.Signature.input(),
	}
	if req.Header != nil {
		patch.PeriodStart = datePtr(req.Header.PeriodStart)
		patch.PeriodEnd = datePtr(req.Header.PeriodEnd)
		patch.CaseRef = req.Header.CaseRef
	}
	r, err := h.reports.Update(c.Request.Context(), id, middleware.GetCurrentUserID(c), patch)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Rendiconto aggiornato con successo", r)
}

// SetState moves the report to another state
// @Summary Cambia stato
// @Tags Rendiconti
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Param request body StateRequest true "Nuovo stato"
// @Success 200 {object} Response{data=models.FinancialReport}
// @Failure 400 {object} ErrorResponse "Stato non valido"
// @Failure 422 {object} ErrorResponse "Rendiconto incompleto"
// @Failure 423 {object} ErrorResponse "Rendiconto inviato"
// @Router /api/rendiconti/{id}/stato [patch]
func (h *ReportHandler) SetState(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Lo stato è obbligatorio")
		return
	}
	r, err := h.reports.SetState(c.Request.Context(), id, middleware.GetCurrentUserID(c), req.State)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, fmt.Sprintf("Stato aggiornato a %s", r.State), r)
}

// Completeness lists what is still missing before the report can be completed
// @Summary Verifica completezza
// @Tags Rendiconti
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Success 200 {object} Response{data=service.Completeness}
// @Failure 404 {object} ErrorResponse
// @Router /api/rendiconti/{id}/completezza [get]
func (h *ReportHandler) Completeness(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := h.reports.CheckCompleteness(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, res)
}

// ApplySignature copies the caller's stored signature onto the report
// @Summary Applica firma
// @Tags Rendiconti
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Param request body PasswordRequest true "Password"
// @Success 200 {object} Response{data=models.FinancialReport}
// @Failure 400 {object} ErrorResponse "Nessuna firma nel profilo"
// @Failure 401 {object} ErrorResponse "Password non corretta"
// @Failure 423 {object} ErrorResponse "Rendiconto inviato"
// @Router /api/rendiconti/{id}/firma [post]
func (h *ReportHandler) ApplySignature(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "La password è obbligatoria")
		return
	}
	r, err := h.reports.ApplySignature(c.Request.Context(), id, middleware.GetCurrentUserID(c), req.Password)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Firma applicata con successo", r)
}

// Delete removes an unlocked report
// @Summary Elimina rendiconto
// @Tags Rendiconti
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse "Rendiconto inviato"
// @Router /api/rendiconti/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), id, middleware.GetCurrentUserID(c)); err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Rendiconto eliminato con successo", nil)
}
