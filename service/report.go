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
	reportNotFoundMsg = "Rendiconto non trovato"
	periodOverlapMsg  = "Esiste già un rendiconto per questo beneficiario nel periodo specificato"
)

// SignatureInput signature block fields a client may set; nil means unchanged
type SignatureInput struct {
	Truthfulness    *bool
	DataConsent     *bool
	Place           *string
	Date            *time.Time
	AdditionalNotes *string
	SaveMode        *string
}

// ReportInput fields accepted on create
type ReportInput struct {
	BeneficiaryID      uint
	PeriodStart        time.Time
	PeriodEnd          time.Time
	CaseRef            string
	Ledger             *models.Ledger
	PersonalConditions string
	Notes              string
	Signature          *SignatureInput
}

// ReportPatch fields accepted on update. Owner and beneficiary are not patchable.
type ReportPatch struct {
	PeriodStart        *time.Time
	PeriodEnd          *time.Time
	CaseRef            *string
	Ledger             *models.Ledger
	PersonalConditions *string
	Notes              *string
	Signature          *SignatureInput
}

// ReportQuery list filters
type ReportQuery struct {
	Page     int
	PageSize int
	State    string
	Year     int
	Search   string
}

// Completeness result of the completeness check
type Completeness struct {
	Complete bool          `json:"completezza"`
	Missing  []string      `json:"errori"`
	Totals   models.Totals `json:"totali"`
}

// beneficiaryReader read side of the registry used by reports
type beneficiaryReader interface {
	GetActive(ctx context.Context, id, userID uint) (*models.Beneficiary, error)
}

// signerReader credential checks needed to apply a stored signature
type signerReader interface {
	VerifyPassword(ctx context.Context, id uint, password string) (bool, error)
	Get(ctx context.Context, id uint) (*models.User, error)
}

// ReportService financial report aggregate
type ReportService struct {
	db            *gorm.DB
	log           *zap.Logger
	beneficiaries beneficiaryReader
	signers       signerReader
	now           func() time.Time
}

// NewReportService creates the aggregate and attaches it as the registry's report reader
func NewReportService(db *gorm.DB, log *zap.Logger, beneficiaries *BeneficiaryService, signers signerReader) *ReportService {
	s := &ReportService{db: db, log: log, beneficiaries: beneficiaries, signers: signers, now: time.Now}
	beneficiaries.reports = s
	return s
}

// ComputeTotals ledger sums: income, expense and income minus expense
func ComputeTotals(r *models.FinancialReport) models.Totals {
	return r.Ledger.Totals()
}

// Create opens a draft report for an active beneficiary of userID
func (s *ReportService) Create(ctx context.Context, userID uint, in ReportInput) (*models.FinancialReport, error) {
	r := &models.FinancialReport{
		UserID:        userID,
		BeneficiaryID: in.BeneficiaryID,
		Header: models.ReportHeader{
			PeriodStart: in.PeriodStart,
			PeriodEnd:   in.PeriodEnd,
			CaseRef:     strings.TrimSpace(in.CaseRef),
		},
		PersonalConditions: strings.TrimSpace(in.PersonalConditions),
		Notes:              strings.TrimSpace(in.Notes),
		State:              models.ReportStateDraft,
	}
	if in.Ledger != nil {
		r.Ledger = normalizeLedger(*in.Ledger)
	}
	applySignatureInput(&r.Signature, in.Signature)

	var fe fieldErrors
	if in.BeneficiaryID == 0 {
		fe.add("beneficiarioId", "ID beneficiario non valido")
	}
	validateReport(&fe, r)
	if err := fe.err(); err != nil {
		return nil, err
	}

	if _, err := s.beneficiaries.GetActive(ctx, in.BeneficiaryID, userID); err != nil {
		return nil, err
	}
	if err := s.ensureNoOverlap(ctx, userID, in.BeneficiaryID, r.Header.PeriodStart, r.Header.PeriodEnd, 0); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, storeError(err, "", "", "")
	}
	s.log.Info("rendiconto creato",
		zap.Uint("user_id", userID),
		zap.Uint("report_id", r.ID),
		zap.Uint("beneficiary_id", r.BeneficiaryID),
		zap.Int("year", r.Header.Year))
	return s.Get(ctx, r.ID, userID)
}

// Get one report of userID with its beneficiary
func (s *ReportService) Get(ctx context.Context, id, userID uint) (*models.FinancialReport, error) {
	var r models.FinancialReport
	err := s.db.WithContext(ctx).
		Preload("Beneficiary").
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, storeError(err, reportNotFoundMsg, "", "")
	}
	return &r, nil
}

// Update applies a whitelisted patch to an unlocked report
func (s *ReportService) Update(ctx context.Context, id, userID uint, patch ReportPatch) (*models.FinancialReport, error) {
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r.Locked() {
		return nil, ErrReportLocked()
	}

	periodChanged := false
	if patch.PeriodStart != nil {
		periodChanged = periodChanged || !patch.PeriodStart.Equal(r.Header.PeriodStart)
		r.Header.PeriodStart = *patch.PeriodStart
	}
	if patch.PeriodEnd != nil {
		periodChanged = periodChanged || !patch.PeriodEnd.Equal(r.Header.PeriodEnd)
		r.Header.PeriodEnd = *patch.PeriodEnd
	}
	if patch.CaseRef != nil {
		r.Header.CaseRef = strings.TrimSpace(*patch.CaseRef)
	}
	if patch.Ledger != nil {
		r.Ledger = normalizeLedger(*patch.Ledger)
	}
	if patch.PersonalConditions != nil {
		r.PersonalConditions = strings.TrimSpace(*patch.PersonalConditions)
	}
	if patch.Notes != nil {
		r.Notes = strings.TrimSpace(*patch.Notes)
	}
	applySignatureInput(&r.Signature, patch.Signature)

	var fe fieldErrors
	validateReport(&fe, r)
	if err := fe.err(); err != nil {
		return nil, err
	}
	if periodChanged {
		if err := s.ensureNoOverlap(ctx, userID, r.BeneficiaryID, r.Header.PeriodStart, r.Header.PeriodEnd, r.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Omit("Beneficiary").Save(r).Error; err != nil {
		return nil, storeError(err, reportNotFoundMsg, "", "")
	}
	return s.Get(ctx, r.ID, userID)
}

// SetState moves the report through bozza -> completato -> inviato.
// Entering completato or inviato requires a complete report; inviato is terminal.
func (s *ReportService) SetState(ctx context.Context, id, userID uint, target string) (*models.FinancialReport, error) {
	if !models.ValidReportState(target) {
		return nil, ErrValidation(FieldError{Field: "stato", Message: "Stato non valido"})
	}
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r.Locked() {
		return nil, ErrReportLocked()
	}
	if target == models.ReportStateCompleted || target == models.ReportStateSubmitted {
		if missing := r.MissingFields(); len(missing) > 0 {
			return nil, ErrIncomplete(missing)
		}
	}

	from := r.State
	r.State = target
	if err := s.db.WithContext(ctx).Model(r).Update("state", target).Error; err != nil {
		return nil, storeError(err, reportNotFoundMsg, "", "")
	}
	s.log.Info("stato rendiconto aggiornato", zap.Uint("report_id", r.ID), zap.String("from", from), zap.String("to", target))
	return s.Get(ctx, r.ID, userID)
}

// CheckCompleteness pure read of what is still missing, plus the totals
func (s *ReportService) CheckCompleteness(ctx context.Context, id, userID uint) (Completeness, error) {
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return Completeness{}, err
	}
	missing := r.MissingFields()
	return Completeness{Complete: len(missing) == 0, Missing: missing, Totals: ComputeTotals(r)}, nil
}

// ApplySignature copies the caller's stored signature image onto the report after
// re-checking the caller's password
func (s *ReportService) ApplySignature(ctx context.Context, id, userID uint, password string) (*models.FinancialReport, error) {
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r.Locked() {
		return nil, ErrReportLocked()
	}

	ok, err := s.signers.VerifyPassword(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized(CodeInvalidCredentials, "Password non corretta")
	}
	u, err := s.signers.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasSignature() {
		e := ErrValidation(FieldError{Field: "firmaImmagine", Message: "Nessuna firma caricata nel profilo"})
		e.Code = CodeMissingSignature
		return nil, e
	}

	now := s.now()
	r.Signature.Image = u.SignatureImage
	r.Signature.Applied = true
	r.Signature.AppliedAt = &now
	if err := s.db.WithContext(ctx).Omit("Beneficiary").Save(r).Error; err != nil {
		return nil, storeError(err, reportNotFoundMsg, "", "")
	}
	s.log.Info("firma applicata al rendiconto", zap.Uint("report_id", r.ID), zap.Uint("user_id", userID))
	return s.Get(ctx, r.ID, userID)
}

// Delete removes an unlocked report
func (s *ReportService) Delete(ctx context.Context, id, userID uint) error {
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return err
	}
	if r.Locked() {
		return ErrReportLocked()
	}
	if err := s.db.WithContext(ctx).Delete(&models.FinancialReport{}, r.ID).Error; err != nil {
		return storeError(err, reportNotFoundMsg, "", "")
	}
	s.log.Info("rendiconto eliminato", zap.Uint("report_id", r.ID))
	return nil
}

// List owner-scoped page, newest first, filtered by state, year and free text over
// beneficiary name and case reference
func (s *ReportService) List(ctx context.Context, userID uint, q ReportQuery) (Page[models.FinancialReport], error) {
	page, size := normalizePage(q.Page, q.PageSize)
	if q.State != "" && !models.ValidReportState(q.State) {
		return Page[models.FinancialReport]{}, ErrValidation(FieldError{Field: "stato", Message: "Stato non valido"})
	}

	tx := s.db.WithContext(ctx).Model(&models.FinancialReport{}).Where("financial_reports.user_id = ?", userID)
	if q.State != "" {
		tx = tx.Where("financial_reports.state = ?", q.State)
	}
	if q.Year != 0 {
		tx = tx.Where("financial_reports.year = ?", q.Year)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		like := "%" + search + "%"
		tx = tx.Joins("LEFT JOIN beneficiaries ON beneficiaries.id = financial_reports.beneficiary_id").
			Where("LOWER(beneficiaries.first_name) LIKE ? OR LOWER(beneficiaries.last_name) LIKE ? OR LOWER(financial_reports.case_ref) LIKE ?", like, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[models.FinancialReport]{}, storeError(err, "", "", "")
	}

	items := []models.FinancialReport{}
	err := tx.Preload("Beneficiary").
		Order("financial_reports.created_at DESC").Order("financial_reports.id DESC").
		Offset(offset(page, size)).Limit(size).
		Find(&items).Error
	if err != nil {
		return Page[models.FinancialReport]{}, storeError(err, "", "", "")
	}
	return Page[models.FinancialReport]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// ListForBeneficiary reports of one beneficiary, newest period first
func (s *ReportService) ListForBeneficiary(ctx context.Context, userID, beneficiaryID uint, page, size int) (Page[models.FinancialReport], error) {
	page, size = normalizePage(page, size)
	tx := s.db.WithContext(ctx).Model(&models.FinancialReport{}).
		Where("user_id = ? AND beneficiary_id = ?", userID, beneficiaryID)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[models.FinancialReport]{}, storeError(err, "", "", "")
	}
	items := []models.FinancialReport{}
	err := tx.Order("period_start DESC").Offset(offset(page, size)).Limit(size).Find(&items).Error
	if err != nil {
		return Page[models.FinancialReport]{}, storeError(err, "", "", "")
	}
	return Page[models.FinancialReport]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// CountForBeneficiary number of reports of userID that reference the beneficiary
func (s *ReportService) CountForBeneficiary(ctx context.Context, userID, beneficiaryID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.FinancialReport{}).
		Where("user_id = ? AND beneficiary_id = ?", userID, beneficiaryID).
		Count(&n).Error
	if err != nil {
		return 0, storeError(err, "", "", "")
	}
	return n, nil
}

func (s *ReportService) owned(ctx context.Context, id, userID uint) (*models.FinancialReport, error) {
	var r models.FinancialReport
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		return nil, storeError(err, reportNotFoundMsg, "", "")
	}
	return &r, nil
}

// ensureNoOverlap rejects a period intersecting (inclusively) another report of the same
// owner and beneficiary
func (s *ReportService) ensureNoOverlap(ctx context.Context, userID, beneficiaryID uint, start, end time.Time, excludeID uint) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.FinancialReport{}).
		Where("user_id = ? AND beneficiary_id = ?", userID, beneficiaryID).
		Where("period_start <= ? AND period_end >= ?", end, start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return storeError(err, "", "", "")
	}
	if count > 0 {
		return ErrConflict(CodePeriodOverlap, periodOverlapMsg)
	}
	return nil
}

func applySignatureInput(sig *models.SignatureBlock, in *SignatureInput) {
	if in == nil {
		return
	}
	if in.Truthfulness != nil {
		sig.Truthfulness = *in.Truthfulness
	}
	if in.DataConsent != nil {
		sig.DataConsent = *in.DataConsent
	}
	if in.Place != nil {
		sig.Place = strings.TrimSpace(*in.Place)
	}
	if in.Date != nil {
		d := *in.Date
		sig.Date = &d
	}
	if in.AdditionalNotes != nil {
		sig.AdditionalNotes = strings.TrimSpace(*in.AdditionalNotes)
	}
	if in.SaveMode != nil {
		sig.SaveMode = strings.TrimSpace(*in.SaveMode)
	}
}

func normalizeEntries(entries []models.LedgerEntry) datatypes.JSONSlice[models.LedgerEntry] {
	out := make(datatypes.JSONSlice[models.LedgerEntry], 0, len(entries))
	for _, e := range entries {
		out = append(out, models.LedgerEntry{
			Category:    strings.ToUpper(strings.TrimSpace(e.Category)),
			Description: strings.TrimSpace(e.Description),
			Amount:      e.Amount,
		})
	}
	return out
}

func normalizeLedger(l models.Ledger) models.Ledger {
	return models.Ledger{Income: normalizeEntries(l.Income), Expense: normalizeEntries(l.Expense)}
}

func validateEntries(fe *fieldErrors, field string, entries []models.LedgerEntry, descRequired bool) {
	for i, e := range entries {
		name := fmt.Sprintf("contoEconomico.%s[%d]", field, i)
		fe.required(name+".categoria", e.Category, "La categoria è obbligatoria")
		if descRequired {
			fe.required(name+".descrizione", e.Description, "La descrizione è obbligatoria")
		}
		fe.maxLen(name+".descrizione", e.Description, 300, "La descrizione non può superare i 300 caratteri")
		fe.nonNegative(name+".importo", e.Amount, "L'importo non può essere negativo")
	}
}

func validateReport(fe *fieldErrors, r *models.FinancialReport) {
	h := r.Header
	if h.PeriodStart.IsZero() {
		fe.add("datiGenerali.dataInizio", "Data di inizio non valida")
	}
	if h.PeriodEnd.IsZero() {
		fe.add("datiGenerali.dataFine", "Data di fine non valida")
	}
	if !h.PeriodStart.IsZero() && !h.PeriodEnd.IsZero() && !h.PeriodEnd.After(h.PeriodStart) {
		fe.add("datiGenerali.dataFine", "La data di fine deve essere successiva alla data di inizio")
	}
	if fe.required("datiGenerali.rg_numero", h.CaseRef, "Numero R.G. obbligatorio (max 50 caratteri)") {
		fe.maxLen("datiGenerali.rg_numero", h.CaseRef, 50, "Numero R.G. obbligatorio (max 50 caratteri)")
	}
	validateEntries(fe, "entrate", r.Ledger.Income, true)
	validateEntries(fe, "uscite", r.Ledger.Expense, false)
	fe.maxLen("condizioniPersonali", r.PersonalConditions, 5000, "Le condizioni personali non possono superare i 5000 caratteri")
	fe.maxLen("note", r.Notes, 1000, "Le note non possono superare i 1000 caratteri")
	fe.maxLen("firma.luogo", r.Signature.Place, 100, "Il luogo non può superare i 100 caratteri")
	fe.maxLen("firma.noteAggiuntive", r.Signature.AdditionalNotes, 1000, "Le note non possono superare i 1000 caratteri")
	if r.Signature.SaveMode != "" && !models.ValidSaveMode(r.Signature.SaveMode) {
		fe.add("firma.tipoSalvataggio", "Tipo di salvataggio non valido")
	}
}
