package api

import (
	"fmt"

	"rendiconto/middleware"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CategoryHandler global and private ledger categories
type CategoryHandler struct {
	categories *service.CategoryService
	log        *zap.Logger
}

// NewCategoryHandler creates the category handler
func NewCategoryHandler(categories *service.CategoryService, log *zap.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, log: log}
}

// CategoryCreateRequest private category payload
type CategoryCreateRequest struct {
	Name        string `json:"nome" binding:"required" example:"Badante"`
	Type        string `json:"tipo" example:"USCITE"`
	Description string `json:"descrizione" example:"Assistenza domiciliare"`
	Color       string `json:"colore" example:"#0d6efd"`
}

// CategoryUpdateRequest private category patch; omitted fields are unchanged
type CategoryUpdateRequest struct {
	Name        *string `json:"nome"`
	Type        *string `json:"tipo"`
	Description *string `json:"descrizione"`
	Color       *string `json:"colore"`
}

// List active globals plus the caller's private categories
// @Summary Elenco categorie
// @Description Categorie default attive seguite dalle categorie personalizzate dell'utente
// @Tags Categorie
// @Produce json
// @Security BearerAuth
// @Param tipo query string false "ENTRATE o USCITE"
// @Success 200 {object} Response{data=[]models.Category}
// @Router /api/categorie [get]
func (h *CategoryHandler) List(c *gin.Context) {
	cats, err := h.categories.ListForUser(c.Request.Context(), middleware.GetCurrentUserID(c), c.Query("tipo"))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, cats)
}

// ListDefault active global categories
// @Summary Categorie default
// @Tags Categorie
// @Produce json
// @Security BearerAuth
// @Param tipo query string false "ENTRATE o USCITE"
// @Success 200 {object} Response{data=[]models.Category}
// @Router /api/categorie/default [get]
func (h *CategoryHandler) ListDefault(c *gin.Context) {
	cats, err := h.categories.ListGlobal(c.Request.Context(), c.Query("tipo"))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, cats)
}

// ListPrivate the caller's active private categories
// @Summary Categorie personalizzate
// @Tags Categorie
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Category}
// @Router /api/categorie/personalizzate [get]
func (h *CategoryHandler) ListPrivate(c *gin.Context) {
	cats, err := h.categories.ListPrivate(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, cats)
}

// Create adds a private category
// @Summary Crea categoria
// @Tags Categorie
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "Categoria"
// @Success 201 {object} Response{data=models.Category}
// @Failure 400 {object} ErrorResponse "Dati non validi"
// @Failure 409 {object} ErrorResponse "Nome già in uso"
// @Router /api/categorie [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Il nome della categoria è obbligatorio")
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), middleware.GetCurrentUserID(c), service.CategoryInput{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Created(c, "Categoria creata con successo", cat)
}

// Update changes a private category
// @Summary Aggiorna categoria
// @Tags Categorie
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID categoria"
// @Param request body CategoryUpdateRequest true "Campi da aggiornare"
// @Success 200 {object} Response{data=models.Category}
// @Failure 404 {object} ErrorResponse "Categoria non trovata o non modificabile"
// @Failure 409 {object} ErrorResponse "Nome già in uso"
// @Router /api/categorie/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), id, middleware.GetCurrentUserID(c), service.CategoryPatch{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Categoria aggiornata con successo", cat)
}

// Delete removes a private category, or deactivates it while reports still use it
// @Summary Elimina categoria
// @Tags Categorie
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID categoria"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /api/categorie/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	out, err := h.categories.Delete(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	if out.Deactivated {
		SuccessWithMessage(c,
			fmt.Sprintf("Categoria disattivata: è utilizzata in %d rendiconti", out.ReferencingReports),
			gin.H{"disattivata": true, "rendiconti": out.ReferencingReports})
		return
	}
	SuccessWithMessage(c, "Categoria eliminata con successo", gin.H{"disattivata": false})
}

// Reactivate turns a deactivated private category back on
// @Summary Riattiva categoria
// @Tags Categorie
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID categoria"
// @Success 200 {object} Response{data=models.Category}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Nome già in uso da un'altra categoria attiva"
// @Router /api/categorie/{id}/attiva [patch]
func (h *CategoryHandler) Reactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cat, err := h.categories.Reactivate(c.Request.Context(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Categoria riattivata con successo", cat)
}
