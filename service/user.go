package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"rendiconto/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	userNotFoundMsg       = "Utente non trovato"
	invalidCredentialsMsg = "Email o password errati"
	wrongPasswordMsg      = "Password non corretta"
	duplicateUserMsg      = "Email o codice fiscale già registrati"
	minPasswordLen        = 6
)

// TokenIssuer signs an access token for a user
type TokenIssuer func(userID uint, role string) (string, error)

// RegisterInput fields accepted at registration
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	FiscalCode string
	Phone      string
	Address    models.Address
	Role       string
}

// ProfilePatch basic profile fields; nil means unchanged
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *models.Address
}

// FullProfilePatch basic profile plus the professional data printed on reports
type FullProfilePatch struct {
	ProfilePatch
	BirthDate      *time.Time
	BirthPlace     *string
	Profession     *string
	RegisterNumber *string
	PEC            *string
}

// UserService credential store
type UserService struct {
	db         *gorm.DB
	log        *zap.Logger
	bcryptCost int
	issue      TokenIssuer
	mailer     ResetMailer
	resetLink  func(token string) string
	signatures SignatureStore
	now        func() time.Time
}

// UserServiceConfig collaborators of the credential store
type UserServiceConfig struct {
	BcryptCost int
	Issuer     TokenIssuer
	Mailer     ResetMailer
	ResetLink  func(token string) string
	Signatures SignatureStore
}

// NewUserService creates the credential store
func NewUserService(db *gorm.DB, log *zap.Logger, cfg UserServiceConfig) *UserService {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &UserService{
		db:         db,
		log:        log,
		bcryptCost: cost,
		issue:      cfg.Issuer,
		mailer:     cfg.Mailer,
		resetLink:  cfg.ResetLink,
		signatures: cfg.Signatures,
		now:        time.Now,
	}
}

// HashPassword bcrypt hash at the configured cost
func (s *UserService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Register creates an account and returns it with an access token
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	u := &models.User{
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Email:      normalizeEmail(in.Email),
		FiscalCode: NormalizeFiscalCode(in.FiscalCode),
		Phone:      strings.TrimSpace(in.Phone),
		Address:    normalizeAddress(in.Address),
		Role:       strings.TrimSpace(in.Role),
		IsActive:   true,
	}
	if u.Role == "" {
		u.Role = models.RoleAdministrator
	}

	var fe fieldErrors
	if fe.required("nome", u.FirstName, "Il nome deve essere tra 2 e 50 caratteri") {
		nameLength(&fe, "nome", u.FirstName, "Il nome deve essere tra 2 e 50 caratteri")
	}
	if fe.required("cognome", u.LastName, "Il cognome deve essere tra 2 e 50 caratteri") {
		nameLength(&fe, "cognome", u.LastName, "Il cognome deve essere tra 2 e 50 caratteri")
	}
	if fe.required("email", u.Email, "Inserisci un'email valida") {
		fe.email("email", u.Email)
	}
	if len(in.Password) < minPasswordLen {
		fe.add("password", "La password deve essere di almeno 6 caratteri")
	}
	if fe.required("codiceFiscale", u.FiscalCode, "Inserisci un codice fiscale valido") {
		fe.match("codiceFiscale", u.FiscalCode, fiscalCodePattern, "Inserisci un codice fiscale valido")
	}
	fe.match("telefono", u.Phone, phonePattern, "Inserisci un numero di telefono valido")
	validateAddress(&fe, "indirizzo", u.Address)
	if !models.ValidRole(u.Role) {
		fe.add("ruolo", "Ruolo non valido")
	}
	if err := fe.err(); err != nil {
		return nil, "", err
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR fiscal_code = ?", u.Email, u.FiscalCode).
		Count(&count).Error
	if err != nil {
		return nil, "", storeError(err, "", "", "")
	}
	if count > 0 {
		return nil, "", ErrConflict(CodeDuplicateEmail, duplicateUserMsg)
	}

	hashed, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, "", ErrInternal("Errore durante la registrazione", err)
	}
	u.Password = hashed

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, "", storeError(err, "", CodeDuplicateEmail, duplicateUserMsg)
	}

	token, err := s.issue(u.ID, u.Role)
	if err != nil {
		return nil, "", ErrInternal("Errore generazione token", err)
	}
	s.log.Info("utente registrato", zap.Uint("user_id", u.ID), zap.String("role", u.Role))
	return u, token, nil
}

// Login checks credentials of an active account, refreshes last login and returns a token
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", normalizeEmail(email), true).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrUnauthorized(CodeInvalidCredentials, invalidCredentialsMsg)
	}
	if err != nil {
		return nil, "", storeError(err, "", "", "")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		s.log.Warn("login fallito", zap.Uint("user_id", u.ID))
		return nil, "", ErrUnauthorized(CodeInvalidCredentials, invalidCredentialsMsg)
	}

	now := s.now()
	u.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&u).Update("last_login_at", now).Error; err != nil {
		return nil, "", storeError(err, userNotFoundMsg, "", "")
	}

	token, err := s.issue(u.ID, u.Role)
	if err != nil {
		return nil, "", ErrInternal("Errore generazione token", err)
	}
	return &u, token, nil
}

// Get loads a user by id
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, storeError(err, userNotFoundMsg, "", "")
	}
	return &u, nil
}

// UpdateProfile changes name, phone and address
func (s *UserService) UpdateProfile(ctx context.Context, id uint, patch ProfilePatch) (*models.User, error) {
	return s.UpdateFullProfile(ctx, id, FullProfilePatch{ProfilePatch: patch})
}

// UpdateFullProfile changes the basic profile and the professional fields
func (s *UserService) UpdateFullProfile(ctx context.Context, id uint, patch FullProfilePatch) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var fe fieldErrors
	if patch.FirstName != nil {
		u.FirstName = strings.TrimSpace(*patch.FirstName)
		nameLength(&fe, "nome", u.FirstName, "Il nome deve essere tra 2 e 50 caratteri")
	}
	if patch.LastName != nil {
		u.LastName = strings.TrimSpace(*patch.LastName)
		nameLength(&fe, "cognome", u.LastName, "Il cognome deve essere tra 2 e 50 caratteri")
	}
	if patch.Phone != nil {
		u.Phone = strings.TrimSpace(*patch.Phone)
		fe.match("telefono", u.Phone, phonePattern, "Inserisci un numero di telefono valido")
	}
	if patch.Address != nil {
		u.Address = normalizeAddress(*patch.Address)
		validateAddress(&fe, "indirizzo", u.Address)
	}
	if patch.BirthDate != nil {
		d := *patch.BirthDate
		u.BirthDate = &d
	}
	if patch.BirthPlace != nil {
		u.BirthPlace = strings.TrimSpace(*patch.BirthPlace)
		fe.maxLen("luogoNascita", u.BirthPlace, 100, "Il luogo di nascita non può superare i 100 caratteri")
	}
	if patch.Profession != nil {
		u.Profession = strings.TrimSpace(*patch.Profession)
		fe.maxLen("professione", u.Profession, 100, "La professione non può superare i 100 caratteri")
	}
	if patch.RegisterNumber != nil {
		u.RegisterNumber = strings.TrimSpace(*patch.RegisterNumber)
		fe.maxLen("numeroAlbo", u.RegisterNumber, 50, "Il numero albo non può superare i 50 caratteri")
	}
	if patch.PEC != nil {
		u.PEC = normalizeEmail(*patch.PEC)
		fe.email("pec", u.PEC)
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return nil, storeError(err, userNotFoundMsg, "", "")
	}
	return u, nil
}

// VerifyPassword reports whether password matches the user's hash
func (s *UserService) VerifyPassword(ctx context.Context, id uint, password string) (bool, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil, nil
}

// ChangePassword replaces the password after checking the current one
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrValidation(FieldError{Field: "newPassword", Message: "La password deve essere di almeno 6 caratteri"})
	}
	if err := s.checkPassword(ctx, id, oldPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, id, newPassword)
}

// SetSignature stores a PNG/JPEG signature for the user after re-checking the password.
// A previously stored image is removed unless a signed report references it.
func (s *UserService) SetSignature(ctx context.Context, id uint, password string, data []byte) (*models.User, error) {
	if err := s.checkPassword(ctx, id, password); err != nil {
		return nil, err
	}
	mime, err := DetectSignatureImage(data)
	if err != nil {
		return nil, ErrValidation(FieldError{Field: "firma", Message: err.Error()})
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := s.signatures.Save(ctx, id, data, mime)
	if err != nil {
		return nil, ErrInternal("Errore durante il caricamento della firma", err)
	}

	old := u.SignatureImage
	if err := s.db.WithContext(ctx).Model(u).Update("signature_image", ref).Error; err != nil {
		_ = s.signatures.Remove(ctx, ref)
		return nil, storeError(err, userNotFoundMsg, "", "")
	}
	u.SignatureImage = ref
	if old != "" && old != ref {
		s.releaseSignature(ctx, id, old)
	}
	s.log.Info("firma caricata", zap.Uint("user_id", id), zap.String("mime", mime.String()))
	return u, nil
}

// DeleteSignature removes the stored signature after re-checking the password
func (s *UserService) DeleteSignature(ctx context.Context, id uint, password string) error {
	if err := s.checkPassword(ctx, id, password); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !u.HasSignature() {
		return ErrNotFound("Nessuna firma da eliminare")
	}
	ref := u.SignatureImage
	if err := s.db.WithContext(ctx).Model(u).Update("signature_image", "").Error; err != nil {
		return storeError(err, userNotFoundMsg, "", "")
	}
	s.releaseSignature(ctx, id, ref)
	return nil
}

// releaseSignature removes a profile signature file unless a signed report still points at it
func (s *UserService) releaseSignature(ctx context.Context, userID uint, ref string) {
	if strings.HasPrefix(ref, "data:") {
		return
	}
	var refs int64
	if err := s.db.WithContext(ctx).Model(&models.FinancialReport{}).
		Where("signature_image = ?", ref).Count(&refs).Error; err != nil {
		s.log.Warn("verifica riferimenti firma fallita", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	if refs > 0 {
		s.log.Info("firma mantenuta, usata da rendiconti", zap.Uint("user_id", userID), zap.Int64("rendiconti", refs))
		return
	}
	if err := s.signatures.Remove(ctx, ref); err != nil {
		s.log.Warn("rimozione file firma fallita", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// RequestPasswordReset issues a 30 minute token and mails the link. Unknown or inactive
// addresses succeed silently so the endpoint does not reveal which emails exist.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", normalizeEmail(email), true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("richiesta reset per email sconosciuta")
		return nil
	}
	if err != nil {
		return storeError(err, "", "", "")
	}

	reset, err := models.NewPasswordReset(&u, s.now())
	if err != nil {
		return ErrInternal("Errore generazione token", err)
	}
	if err := s.db.WithContext(ctx).Create(reset).Error; err != nil {
		return storeError(err, "", "", "")
	}

	if err := s.mailer.SendPasswordResetEmail(u.Email, u.FullName(), s.resetLink(reset.Token)); err != nil {
		return ErrInternal("Invio email non riuscito", err)
	}
	s.log.Info("email reset password inviata", zap.Uint("user_id", u.ID))
	return nil
}

// ResetPassword consumes a valid token and sets the new password
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrValidation(FieldError{Field: "password", Message: "La password deve essere di almeno 6 caratteri"})
	}

	var reset models.PasswordReset
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !reset.IsValid()) {
		return ErrUnauthorized(CodeInvalidResetToken, "Link di reimpostazione non valido o scaduto")
	}
	if err != nil {
		return storeError(err, "", "", "")
	}

	if err := s.setPassword(ctx, reset.UserID, newPassword); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&reset).Update("used", true).Error; err != nil {
		return storeError(err, "", "", "")
	}
	s.log.Info("password reimpostata", zap.Uint("user_id", reset.UserID))
	return nil
}

func (s *UserService) checkPassword(ctx context.Context, id uint, password string) error {
	if password == "" {
		return ErrValidation(FieldError{Field: "password", Message: "La password è obbligatoria"})
	}
	ok, err := s.VerifyPassword(ctx, id, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized(CodeInvalidCredentials, wrongPasswordMsg)
	}
	return nil
}

func (s *UserService) setPassword(ctx context.Context, id uint, password string) error {
	hashed, err := s.HashPassword(password)
	if err != nil {
		return ErrInternal("Errore aggiornamento password", err)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hashed)
	if res.Error != nil {
		return storeError(res.Error, userNotFoundMsg, "", "")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound(userNotFoundMsg)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nameLength(fe *fieldErrors, field, v, msg string) {
	if n := len([]rune(v)); n < 2 || n > 50 {
		fe.add(field, msg)
	}
}
