package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rendiconto/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	beneficiaryNotFoundMsg = "Beneficiario non trovato"
	duplicateFiscalCodeMsg = "Esiste già un beneficiario attivo con questo codice fiscale"
	inactiveBeneficiaryMsg = "Beneficiario non trovato o non attivo"
)

// BeneficiaryInput fields accepted on create
type BeneficiaryInput struct {
	FirstName          string
	LastName           string
	FiscalCode         string
	BirthDate          time.Time
	BirthPlace         string
	Address            models.Address
	Notes              string
	PersonalConditions string
	NetWorth           models.NetWorth
}

// BeneficiaryPatch fields accepted on update; nil means unchanged
type BeneficiaryPatch struct {
	FirstName          *string
	LastName           *string
	FiscalCode         *string
	BirthDate          *time.Time
	BirthPlace         *string
	Address            *models.Address
	Notes              *string
	PersonalConditions *string
	NetWorth           *models.NetWorth
}

// BeneficiaryQuery list filters
type BeneficiaryQuery struct {
	Page       int
	PageSize   int
	Search     string
	ActiveOnly bool
}

// BeneficiaryDeleteOutcome result of a beneficiary delete
type BeneficiaryDeleteOutcome struct {
	SoftDeleted        bool
	ReferencingReports int64
}

// reportReader read side of the report aggregate used by the registry
type reportReader interface {
	CountForBeneficiary(ctx context.Context, userID, beneficiaryID uint) (int64, error)
	ListForBeneficiary(ctx context.Context, userID, beneficiaryID uint, page, size int) (Page[models.FinancialReport], error)
}

// BeneficiaryService registry of the people each user administers
type BeneficiaryService struct {
	db      *gorm.DB
	log     *zap.Logger
	reports reportReader
}

// NewBeneficiaryService creates the registry. The report reader is attached by NewReportService.
func NewBeneficiaryService(db *gorm.DB, log *zap.Logger) *BeneficiaryService {
	return &BeneficiaryService{db: db, log: log}
}

// List owner-scoped page sorted by last name then first name
func (s *BeneficiaryService) List(ctx context.Context, userID uint, q BeneficiaryQuery) (Page[models.Beneficiary], error) {
	page, size := normalizePage(q.Page, q.PageSize)

	tx := s.db.WithContext(ctx).Model(&models.Beneficiary{}).Where("user_id = ?", userID)
	if q.ActiveOnly {
		tx = tx.Where("is_active = ?", true)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		like := "%" + search + "%"
		tx = tx.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(fiscal_code) LIKE ?", like, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[models.Beneficiary]{}, storeError(err, "", "", "")
	}

	items := []models.Beneficiary{}
	err := tx.Order("last_name ASC").Order("first_name ASC").
		Offset(offset(page, size)).Limit(size).
		Find(&items).Error
	if err != nil {
		return Page[models.Beneficiary]{}, storeError(err, "", "", "")
	}
	return Page[models.Beneficiary]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// Get one beneficiary of userID, active or not
func (s *BeneficiaryService) Get(ctx context.Context, id, userID uint) (*models.Beneficiary, error) {
	var b models.Beneficiary
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&b).Error; err != nil {
		return nil, storeError(err, beneficiaryNotFoundMsg, "", "")
	}
	return &b, nil
}

// GetActive like Get but inactive records count as missing
func (s *BeneficiaryService) GetActive(ctx context.Context, id, userID uint) (*models.Beneficiary, error) {
	var b models.Beneficiary
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		First(&b).Error
	if err != nil {
		err = storeError(err, inactiveBeneficiaryMsg, "", "")
		if se, ok := err.(*Error); ok && se.Kind == KindNotFound {
			se.Code = CodeBeneficiaryNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Create registers a beneficiary for userID
func (s *BeneficiaryService) Create(ctx context.Context, userID uint, in BeneficiaryInput) (*models.Beneficiary, error) {
	b := &models.Beneficiary{
		UserID:             userID,
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		FiscalCode:         NormalizeFiscalCode(in.FiscalCode),
		BirthDate:          in.BirthDate,
		BirthPlace:         strings.TrimSpace(in.BirthPlace),
		Address:            normalizeAddress(in.Address),
		Notes:              strings.TrimSpace(in.Notes),
		PersonalConditions: strings.TrimSpace(in.PersonalConditions),
		NetWorth:           normalizeNetWorth(in.NetWorth),
		IsActive:           true,
	}
	if err := validateBeneficiary(b); err != nil {
		return nil, err
	}
	if err := s.ensureFiscalCodeFree(ctx, userID, b.FiscalCode, 0); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, storeError(err, "", CodeDuplicateFiscalCode, duplicateFiscalCodeMsg)
	}
	s.log.Info("beneficiario creato", zap.Uint("user_id", userID), zap.Uint("beneficiary_id", b.ID))
	return b, nil
}

// Update applies a patch; the fiscal code is re-checked only when it changes
func (s *BeneficiaryService) Update(ctx context.Context, id, userID uint, patch BeneficiaryPatch) (*models.Beneficiary, error) {
	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	oldCF := b.FiscalCode
	if patch.FirstName != nil {
		b.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		b.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.FiscalCode != nil {
		b.FiscalCode = NormalizeFiscalCode(*patch.FiscalCode)
	}
	if patch.BirthDate != nil {
		b.BirthDate = *patch.BirthDate
	}
	if patch.BirthPlace != nil {
		b.BirthPlace = strings.TrimSpace(*patch.BirthPlace)
	}
	if patch.Address != nil {
		b.Address = normalizeAddress(*patch.Address)
	}
	if patch.Notes != nil {
		b.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.PersonalConditions != nil {
		b.PersonalConditions = strings.TrimSpace(*patch.PersonalConditions)
	}
	if patch.NetWorth != nil {
		b.NetWorth = normalizeNetWorth(*patch.NetWorth)
	}

	if err := validateBeneficiary(b); err != nil {
		return nil, err
	}
	if b.FiscalCode != oldCF && b.IsActive {
		if err := s.ensureFiscalCodeFree(ctx, userID, b.FiscalCode, b.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Save(b).Error; err != nil {
		return nil, storeError(err, beneficiaryNotFoundMsg, CodeDuplicateFiscalCode, duplicateFiscalCodeMsg)
	}
	return b, nil
}

// Delete hard-deletes an unreferenced beneficiary, otherwise deactivates it
func (s *BeneficiaryService) Delete(ctx context.Context, id, userID uint) (BeneficiaryDeleteOutcome, error) {
	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return BeneficiaryDeleteOutcome{}, err
	}

	refs, err := s.reports.CountForBeneficiary(ctx, userID, b.ID)
	if err != nil {
		return BeneficiaryDeleteOutcome{}, err
	}

	if refs > 0 {
		b.IsActive = false
		if err := s.db.WithContext(ctx).Save(b).Error; err != nil {
			return BeneficiaryDeleteOutcome{}, storeError(err, beneficiaryNotFoundMsg, "", "")
		}
		s.log.Info("beneficiario disattivato", zap.Uint("beneficiary_id", b.ID), zap.Int64("reports", refs))
		return BeneficiaryDeleteOutcome{SoftDeleted: true, ReferencingReports: refs}, nil
	}

	if err := s.db.WithContext(ctx).Delete(&models.Beneficiary{}, b.ID).Error; err != nil {
		return BeneficiaryDeleteOutcome{}, storeError(err, beneficiaryNotFoundMsg, "", "")
	}
	s.log.Info("beneficiario eliminato", zap.Uint("beneficiary_id", b.ID))
	return BeneficiaryDeleteOutcome{}, nil
}

// Reactivate flips the active flag back on
func (s *BeneficiaryService) Reactivate(ctx context.Context, id, userID uint) (*models.Beneficiary, error) {
	b, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if b.IsActive {
		return b, nil
	}
	if err := s.ensureFiscalCodeFree(ctx, userID, b.FiscalCode, b.ID); err != nil {
		return nil, err
	}
	b.IsActive = true
	if err := s.db.WithContext(ctx).Save(b).Error; err != nil {
		return nil, storeError(err, beneficiaryNotFoundMsg, CodeDuplicateFiscalCode, duplicateFiscalCodeMsg)
	}
	return b, nil
}

// ListReports reports of one owned beneficiary, newest period first
func (s *BeneficiaryService) ListReports(ctx context.Context, id, userID uint, page, size int) (Page[models.FinancialReport], error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return Page[models.FinancialReport]{}, err
	}
	return s.reports.ListForBeneficiary(ctx, userID, id, page, size)
}

func (s *BeneficiaryService) ensureFiscalCodeFree(ctx context.Context, userID uint, cf string, excludeID uint) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Beneficiary{}).
		Where("user_id = ? AND fiscal_code = ? AND is_active = ?", userID, cf, true)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return storeError(err, "", "", "")
	}
	if count > 0 {
		return ErrConflict(CodeDuplicateFiscalCode, duplicateFiscalCodeMsg)
	}
	return nil
}

func normalizeAddress(a models.Address) models.Address {
	return models.Address{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Province:   strings.ToUpper(strings.TrimSpace(a.Province)),
	}
}

func normalizeAssets(items []models.Asset) datatypes.JSONSlice[models.Asset] {
	out := make(datatypes.JSONSlice[models.Asset], 0, len(items))
	for _, it := range items {
		out = append(out, models.Asset{Description: strings.TrimSpace(it.Description), Value: it.Value})
	}
	return out
}

func normalizeNetWorth(n models.NetWorth) models.NetWorth {
	return models.NetWorth{
		RealEstate: normalizeAssets(n.RealEstate),
		Movable:    normalizeAssets(n.Movable),
		Financial:  normalizeAssets(n.Financial),
	}
}

func validateAddress(fe *fieldErrors, prefix string, a models.Address) {
	fe.maxLen(prefix+".via", a.Street, 200, "La via non può superare i 200 caratteri")
	fe.maxLen(prefix+".citta", a.City, 100, "La città non può superare i 100 caratteri")
	fe.match(prefix+".cap", a.PostalCode, postalCodePattern, "Il CAP deve essere di 5 cifre")
	fe.match(prefix+".provincia", a.Province, provincePattern, "La provincia deve essere di 2 caratteri")
}

func validateAssets(fe *fieldErrors, field string, items []models.Asset) {
	for i, it := range items {
		name := fmt.Sprintf("situazionePatrimoniale.%s[%d]", field, i)
		if fe.required(name+".descrizione", it.Description, "La descrizione è obbligatoria") {
			fe.maxLen(name+".descrizione", it.Description, 500, "La descrizione non può superare i 500 caratteri")
		}
		fe.nonNegative(name+".valore", it.Value, "Il valore non può essere negativo")
	}
}

func validateBeneficiary(b *models.Beneficiary) error {
	var fe fieldErrors
	if fe.required("nome", b.FirstName, "Il nome è obbligatorio") {
		fe.maxLen("nome", b.FirstName, 50, "Il nome non può superare i 50 caratteri")
	}
	if fe.required("cognome", b.LastName, "Il cognome è obbligatorio") {
		fe.maxLen("cognome", b.LastName, 50, "Il cognome non può superare i 50 caratteri")
	}
	if fe.required("codiceFiscale", b.FiscalCode, "Il codice fiscale è obbligatorio") {
		fe.match("codiceFiscale", b.FiscalCode, fiscalCodePattern, "Inserisci un codice fiscale valido")
	}
	if b.BirthDate.IsZero() {
		fe.add("dataNascita", "La data di nascita è obbligatoria")
	}
	fe.maxLen("luogoNascita", b.BirthPlace, 100, "Il luogo di nascita non può superare i 100 caratteri")
	validateAddress(&fe, "indirizzo", b.Address)
	fe.maxLen("note", b.Notes, 1000, "Le note non possono superare i 1000 caratteri")
	fe.maxLen("condizioniPersonali", b.PersonalConditions, 5000, "Le condizioni personali non possono superare i 5000 caratteri")
	validateAssets(&fe, "beniImmobili", b.NetWorth.RealEstate)
	validateAssets(&fe, "beniMobili", b.NetWorth.Movable)
	validateAssets(&fe, "titoliConti", b.NetWorth.Financial)
	return fe.err()
}
