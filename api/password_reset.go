package api

import (
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PasswordResetHandler password recovery by email
type PasswordResetHandler struct {
	users *service.UserService
	log   *zap.Logger
}

// NewPasswordResetHandler creates the password recovery handler
func NewPasswordResetHandler(users *service.UserService, log *zap.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{users: users, log: log}
}

// RequestResetRequest email of the account to recover
type RequestResetRequest struct {
	Email string `json:"email" binding:"required,email" example:"mario.rossi@example.com"`
}

// ResetPasswordRequest reset token and the new password
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RequestPasswordReset sends a reset link
// @Summary Richiesta reset password
// @Description Invia un link di reimpostazione. La risposta è la stessa anche se l'email non è registrata.
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Param request body RequestResetRequest true "Email"
// @Success 200 {object} Response "Richiesta accettata"
// @Failure 400 {object} ErrorResponse "Email non valida"
// @Router /api/auth/password/request-reset [post]
func (h *PasswordResetHandler) RequestPasswordReset(c *gin.Context) {
	var req RequestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Inserisci un indirizzo email valido")
		return
	}
	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Se l'email è registrata riceverai un link per reimpostare la password", nil)
}

// ResetPassword sets a new password using a reset token
// @Summary Reset password
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Token e nuova password"
// @Success 200 {object} Response "Password reimpostata"
// @Failure 401 {object} ErrorResponse "Token non valido, usato o scaduto"
// @Router /api/auth/password/reset [post]
func (h *PasswordResetHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Token e nuova password sono obbligatori")
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Password reimpostata con successo, effettua il login", nil)
}
