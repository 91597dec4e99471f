package api

import (
	"fmt"

	"rendiconto/middleware"
	"rendiconto/models"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BeneficiaryHandler registry of the people the caller administers
type BeneficiaryHandler struct {
	beneficiaries *service.BeneficiaryService
	log           *zap.Logger
}

// NewBeneficiaryHandler creates the beneficiary handler
func NewBeneficiaryHandler(beneficiaries *service.BeneficiaryService, log *zap.Logger) *BeneficiaryHandler {
	return &BeneficiaryHandler{beneficiaries: beneficiaries, log: log}
}

// BeneficiaryRequest create payload
type BeneficiaryRequest struct {
	FirstName          string          `json:"nome" example:"Giulia"`
	LastName           string          `json:"cognome" example:"Bianchi"`
	FiscalCode         string          `json:"codiceFiscale" example:"BNCGLI40A41L219X"`
	BirthDate          Date            `json:"dataNascita" swaggertype:"string" example:"1940-01-01"`
	BirthPlace         string          `json:"luogoNascita" example:"Torino"`
	Address            AddressRequest  `json:"indirizzo"`
	Notes              string          `json:"note"`
	PersonalConditions string          `json:"condizioniPersonali"`
	NetWorth           models.NetWorth `json:"situazionePatrimoniale"`
}

// BeneficiaryUpdateRequest patch; omitted fields are unchanged
type BeneficiaryUpdateRequest struct {
	FirstName          *string          `json:"nome"`
	LastName           *string          `json:"cognome"`
	FiscalCode         *string          `json:"codiceFiscale"`
	BirthDate          *Date            `json:"dataNascita" swaggertype:"string"`
	BirthPlace         *string          `json:"luogoNascita"`
	Address            *AddressRequest  `json:"indirizzo"`
	Notes              *string          `json:"note"`
	PersonalConditions *string          `json:"condizioniPersonali"`
	NetWorth           *models.NetWorth `json:"situazionePatrimoniale"`
}

// List the caller's beneficiaries sorted by name
// @Summary Elenco beneficiari
// @Tags Beneficiari
// @Produce json
// @Security BearerAuth
// @Param page query int false "Pagina" default(1)
// @Param limit query int false "Elementi per pagina" default(10)
// @Param search query string false "Nome, cognome o codice fiscale"
// @Param attivi query bool false "Solo beneficiari attivi"
// @Success 200 {object} Response{data=[]models.Beneficiary}
// @Router /api/beneficiari [get]
func (h *BeneficiaryHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.beneficiaries.List(c.Request.Context(), middleware.GetCurrentUserID(c), service.BeneficiaryQuery{
		Page:       page,
		PageSize:   limit,
		Search:     c.Query("search"),
		ActiveOnly: c.Query("attivi") == "true",
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Paginated(c, result)
}

// Get one beneficiary
// @Summary Dettaglio beneficiario
// @Tags Beneficiari
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID beneficiario"
// @Success 200 {object} Response{data=models.Beneficiary}
// @Failure 404 {object} ErrorResponse
// @Router /api/beneficiari/{id} [get]
func (h *BeneficiaryHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.beneficiaries.Get(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, b)
}

// Create registers a beneficiary
// @Summary Crea beneficiario
// @Tags Beneficiari
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BeneficiaryRequest true "Beneficiario"
// @Success 201 {object} Response{data=models.Beneficiary}
// @Failure 400 {object} ErrorResponse "Dati non validi"
// @Failure 409 {object} ErrorResponse "Codice fiscale già presente"
// @Router /api/beneficiari [post]
func (h *BeneficiaryHandler) Create(c *gin.Context) {
	var req BeneficiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	b, err := h.beneficiaries.Create(c.Request.Context(), middleware.GetCurrentUserID(c), service.BeneficiaryInput{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		FiscalCode:         req.FiscalCode,
		BirthDate:          req.BirthDate.Time,
		BirthPlace:         req.BirthPlace,
		Address:            req.Address.model(),
		Notes:              req.Notes,
		PersonalConditions: req.PersonalConditions,
		NetWorth:           req.NetWorth,
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Created(c, "Beneficiario creato con successo", b)
}

// Update patches a beneficiary
// @Summary Aggiorna beneficiario
// @Tags Beneficiari
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID beneficiario"
// @Param request body BeneficiaryUpdateRequest true "Campi da aggiornare"
// @Success 200 {object} Response{data=models.Beneficiary}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Codice fiscale già presente"
// @Router /api/beneficiari/{id} [put]
func (h *BeneficiaryHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req BeneficiaryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	b, err := h.beneficiaries.Update(c.Request.Context(), id, middleware.GetCurrentUserID(c), service.BeneficiaryPatch{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		FiscalCode:         req.FiscalCode,
		BirthDate:          datePtr(req.BirthDate),
		BirthPlace:         req.BirthPlace,
		Address:            req.Address.modelPtr(),
		Notes:              req.Notes,
		PersonalConditions: req.PersonalConditions,
		NetWorth:           req.NetWorth,
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Beneficiario aggiornato con successo", b)
}

// Delete removes an unreferenced beneficiary or deactivates a referenced one
// @Summary Elimina beneficiario
// @Tags Beneficiari
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID beneficiario"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/beneficiari/{id} [delete]
func (h *BeneficiaryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	out, err := h.beneficiaries.Delete(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	if out.SoftDeleted {
		SuccessWithMessage(c,
			fmt.Sprintf("Beneficiario disattivato: ha %d rendiconti associati", out.ReferencingReports),
			gin.H{"softDelete": true, "rendiconti": out.ReferencingReports})
		return
	}
	SuccessWithMessage(c, "Beneficiario eliminato con successo", gin.H{"softDelete": false})
}

// Reactivate turns a deactivated beneficiary back on
// @Summary Riattiva beneficiario
// @Tags Beneficiari
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID beneficiario"
// @Success 200 {object} Response{data=models.Beneficiary}
// @Failure 409 {object} ErrorResponse "Codice fiscale già in uso da un beneficiario attivo"
// @Router /api/beneficiari/{id}/attiva [put]
func (h *BeneficiaryHandler) Reactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.beneficiaries.Reactivate(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Beneficiario riattivato con successo", b)
}

// ListReports reports of one beneficiary, newest period first
// @Summary Rendiconti del beneficiario
// @Tags Beneficiari
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID beneficiario"
// @Param page query int false "Pagina" default(1)
// @Param limit query int false "Elementi per pagina" default(10)
// @Success 200 {object} Response{data=[]models.FinancialReport}
// @Failure 404 {object} ErrorResponse
// @Router /api/beneficiari/{id}/rendiconti [get]
func (h *BeneficiaryHandler) ListReports(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.beneficiaries.ListReports(c.Request.Context(), id, middleware.GetCurrentUserID(c), page, limit)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Paginated(c, result)
}
