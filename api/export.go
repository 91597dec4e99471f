package api

import (
	"fmt"
	"net/http"

	"rendiconto/middleware"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export downloads the report as an Excel workbook
// @Summary Esporta rendiconto
// @Description Foglio "Rendiconto" con intestazione e totali, foglio "Conto economico" con tutte le voci
// @Tags Rendiconti
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "ID rendiconto"
// @Success 200 {file} file "File xlsx"
// @Failure 404 {object} ErrorResponse
// @Router /api/rendiconti/{id}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID := middleware.GetCurrentUserID(c)
	data, name, err := h.reports.ExportXLSX(c.Request.Context(), id, userID)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.Header("Content-Length", fmt.Sprintf("%d", len(data)))
	c.Data(http.StatusOK, xlsxContentType, data)
}
