package api

import (
	"errors"
	"io"
	"net/http"

	"rendiconto/config"
	"rendiconto/middleware"
	"rendiconto/models"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler account, profile and signature endpoints
type AuthHandler struct {
	users  *service.UserService
	upload config.UploadConfig
	log    *zap.Logger
}

// NewAuthHandler creates the auth handler
func NewAuthHandler(users *service.UserService, upload config.UploadConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, upload: upload, log: log}
}

// RegisterRequest registration payload
type RegisterRequest struct {
	FirstName  string         `json:"nome" binding:"required" example:"Mario"`
	LastName   string         `json:"cognome" binding:"required" example:"Rossi"`
	Email      string         `json:"email" binding:"required" example:"mario.rossi@example.com"`
	Password   string         `json:"password" binding:"required" example:"password123"`
	FiscalCode string         `json:"codiceFiscale" binding:"required" example:"RSSMRA80A01H501U"`
	Phone      string         `json:"telefono" example:"+39 011 1234567"`
	Address    AddressRequest `json:"indirizzo"`
	Role       string         `json:"ruolo" example:"amministratore"`
}

// LoginRequest credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"mario.rossi@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// AuthResponse token plus the account
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ProfileRequest basic profile patch; omitted fields are unchanged
type ProfileRequest struct {
	FirstName *string         `json:"nome"`
	LastName  *string         `json:"cognome"`
	Phone     *string         `json:"telefono"`
	Address   *AddressRequest `json:"indirizzo"`
}

// FullProfileRequest profile patch including professional data
type FullProfileRequest struct {
	ProfileRequest
	BirthDate      *Date   `json:"dataNascita" swaggertype:"string" example:"1970-06-01"`
	BirthPlace     *string `json:"luogoNascita"`
	Profession     *string `json:"professione"`
	RegisterNumber *string `json:"numeroAlbo"`
	PEC            *string `json:"pec"`
}

// ChangePasswordRequest current and new password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// PasswordRequest password re-confirmation
type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// SignatureUploadRequest base64 data URL signature
type SignatureUploadRequest struct {
	Signature string `json:"firma" binding:"required" example:"data:image/png;base64,iVBORw0KGgo..."`
	Password  string `json:"password" binding:"required"`
}

func (r ProfileRequest) patch() service.ProfilePatch {
	return service.ProfilePatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Address:   r.Address.modelPtr(),
	}
}

// Register creates an account
// @Summary Registrazione
// @Description Crea un account amministratore o tutore e restituisce il token di accesso
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Dati di registrazione"
// @Success 201 {object} Response{data=AuthResponse} "Registrazione completata"
// @Failure 400 {object} ErrorResponse "Dati non validi"
// @Failure 409 {object} ErrorResponse "Email o codice fiscale già registrati"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	u, token, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		FiscalCode: req.FiscalCode,
		Phone:      req.Phone,
		Address:    req.Address.model(),
		Role:       req.Role,
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Created(c, "Registrazione completata", AuthResponse{Token: token, User: u})
}

// Login authenticates with email and password
// @Summary Login
// @Description Verifica le credenziali e restituisce il token JWT
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credenziali"
// @Success 200 {object} Response{data=AuthResponse} "Login effettuato"
// @Failure 401 {object} ErrorResponse "Email o password errati"
// @Failure 429 {object} ErrorResponse "Troppi tentativi"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Email e password sono obbligatori")
		return
	}
	u, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Login effettuato con successo", AuthResponse{Token: token, User: u})
}

// Logout tokens are stateless; the client discards its copy
// @Summary Logout
// @Tags Autenticazione
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "Logout effettuato"
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	SuccessWithMessage(c, "Logout effettuato con successo", nil)
}

// Me current account
// @Summary Utente corrente
// @Tags Autenticazione
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, u)
}

// UpdateProfile name, phone and address
// @Summary Aggiorna profilo
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfileRequest true "Campi da aggiornare"
// @Success 200 {object} Response{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Router /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetCurrentUserID(c), req.patch())
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Profilo aggiornato con successo", u)
}

// UpdateFullProfile basic profile plus birth data, profession, register number and PEC
// @Summary Aggiorna profilo completo
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body FullProfileRequest true "Campi da aggiornare"
// @Success 200 {object} Response{data=models.User}
// @Failure 400 {object} ErrorResponse
// @Router /api/auth/profile-completo [put]
func (h *AuthHandler) UpdateFullProfile(c *gin.Context) {
	var req FullProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Dati non validi: "+err.Error())
		return
	}
	u, err := h.users.UpdateFullProfile(c.Request.Context(), middleware.GetCurrentUserID(c), service.FullProfilePatch{
		ProfilePatch:   req.ProfileRequest.patch(),
		BirthDate:      datePtr(req.BirthDate),
		BirthPlace:     req.BirthPlace,
		Profession:     req.Profession,
		RegisterNumber: req.RegisterNumber,
		PEC:            req.PEC,
	})
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Profilo aggiornato con successo", u)
}

// ChangePassword replaces the password
// @Summary Cambia password
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Password attuale e nuova"
// @Success 200 {object} Response
// @Failure 401 {object} ErrorResponse "Password attuale errata"
// @Router /api/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Password attuale e nuova password sono obbligatorie")
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), middleware.GetCurrentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Password aggiornata con successo", nil)
}

// VerifyPassword checks the caller's password without changing anything
// @Summary Verifica password
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PasswordRequest true "Password"
// @Success 200 {object} Response{data=map[string]bool}
// @Router /api/auth/verify-password [post]
func (h *AuthHandler) VerifyPassword(c *gin.Context) {
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "La password è obbligatoria")
		return
	}
	ok, err := h.users.VerifyPassword(c.Request.Context(), middleware.GetCurrentUserID(c), req.Password)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	Success(c, gin.H{"valid": ok})
}

// UploadSignature stores a signature sent as a base64 data URL
// @Summary Carica firma (base64)
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SignatureUploadRequest true "Firma e password"
// @Success 200 {object} Response{data=models.User}
// @Failure 400 {object} ErrorResponse "Formato non supportato"
// @Failure 401 {object} ErrorResponse "Password non corretta"
// @Router /api/auth/upload-firma [post]
func (h *AuthHandler) UploadSignature(c *gin.Context) {
	var req SignatureUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Firma e password sono obbligatorie")
		return
	}
	data, err := service.DecodeDataURL(req.Signature, h.upload.MaxBase64Bytes)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.storeSignature(c, req.Password, data)
}

// UploadSignatureFile stores a signature sent as multipart field "firma"
// @Summary Carica firma (file)
// @Tags Autenticazione
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param firma formData file true "Immagine PNG o JPEG, max 2MB"
// @Param password formData string true "Password"
// @Success 200 {object} Response{data=models.User}
// @Failure 400 {object} ErrorResponse "File mancante, troppo grande o non supportato"
// @Router /api/auth/upload-firma-file [post]
func (h *AuthHandler) UploadSignatureFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.upload.MaxFileBytes+1<<20)
	fh, err := c.FormFile("firma")
	if err != nil {
		BadRequest(c, "Nessun file caricato")
		return
	}
	if fh.Size > h.upload.MaxFileBytes {
		BadRequest(c, service.ErrImageTooLarge.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		InternalError(c, "Lettura file non riuscita")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.upload.MaxFileBytes+1))
	if err != nil {
		InternalError(c, "Lettura file non riuscita")
		return
	}
	if int64(len(data)) > h.upload.MaxFileBytes {
		BadRequest(c, service.ErrImageTooLarge.Error())
		return
	}
	h.storeSignature(c, c.PostForm("password"), data)
}

func (h *AuthHandler) storeSignature(c *gin.Context, password string, data []byte) {
	u, err := h.users.SetSignature(c.Request.Context(), middleware.GetCurrentUserID(c), password, data)
	if err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Firma caricata con successo", u)
}

// DeleteSignature removes the stored signature
// @Summary Elimina firma
// @Tags Autenticazione
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PasswordRequest true "Password"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse "Nessuna firma"
// @Router /api/auth/delete-firma [delete]
func (h *AuthHandler) DeleteSignature(c *gin.Context) {
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, "Dati non validi")
		return
	}
	if err := h.users.DeleteSignature(c.Request.Context(), middleware.GetCurrentUserID(c), req.Password); err != nil {
		ServiceError(c, h.log, err)
		return
	}
	SuccessWithMessage(c, "Firma eliminata con successo", nil)
}
