package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Report states
const (
	ReportStateDraft     = "bozza"
	ReportStateCompleted = "completato"
	ReportStateSubmitted = "inviato"
)

// Save modes recorded in the signature block
const (
	SaveModeDraft = "bozza"
	SaveModeFinal = "definitivo"
	SaveModePDF   = "pdf"
)

// ValidReportState reports whether s is a known state
func ValidReportState(s string) bool {
	switch s {
	case ReportStateDraft, ReportStateCompleted, ReportStateSubmitted:
		return true
	}
	return false
}

// ValidSaveMode reports whether m is a known save mode
func ValidSaveMode(m string) bool {
	switch m {
	case SaveModeDraft, SaveModeFinal, SaveModePDF:
		return true
	}
	return false
}

// Missing-field reasons returned by the completeness check
const (
	MissingPeriodStart    = "Data inizio mancante"
	MissingPeriodEnd      = "Data fine mancante"
	MissingCaseRef        = "R.G. mancante"
	MissingBeneficiary    = "Beneficiario non selezionato"
	MissingConditions     = "Condizioni personali mancanti"
	MissingTruthfulness   = "Dichiarazione di veridicità mancante"
	MissingDataConsent    = "Consenso trattamento dati mancante"
	MissingSignaturePlace = "Luogo firma mancante"
	MissingSignatureDate  = "Data firma mancante"
)

// ReportHeader reporting period and case reference. Year is derived from PeriodStart.
type ReportHeader struct {
	PeriodStart time.Time `json:"dataInizio" gorm:"index"`
	PeriodEnd   time.Time `json:"dataFine"`
	CaseRef     string    `json:"rg_numero" gorm:"size:50"`
	Year        int       `json:"anno" gorm:"index"`
}

// Overlaps inclusive interval intersection
func (h ReportHeader) Overlaps(start, end time.Time) bool {
	return !h.PeriodStart.After(end) && !h.PeriodEnd.Before(start)
}

// LedgerEntry one income or expense line; Category is the category name
type LedgerEntry struct {
	Category    string  `json:"categoria"`
	Description string  `json:"descrizione"`
	Amount      float64 `json:"importo"`
}

// Ledger income and expense lists
type Ledger struct {
	Income  datatypes.JSONSlice[LedgerEntry] `json:"entrate"`
	Expense datatypes.JSONSlice[LedgerEntry] `json:"uscite"`
}

// References reports whether any entry uses the category name
func (l Ledger) References(category string) bool {
	for _, e := range l.Income {
		if e.Category == category {
			return true
		}
	}
	for _, e := range l.Expense {
		if e.Category == category {
			return true
		}
	}
	return false
}

func (l *Ledger) normalize() {
	if l.Income == nil {
		l.Income = datatypes.JSONSlice[LedgerEntry]{}
	}
	if l.Expense == nil {
		l.Expense = datatypes.JSONSlice[LedgerEntry]{}
	}
}

// Totals ledger sums. Net may be negative.
type Totals struct {
	Income  float64 `json:"totaleEntrate"`
	Expense float64 `json:"totaleUscite"`
	Net     float64 `json:"differenza"`
}

// Totals sums entry amounts with decimal arithmetic
func (l Ledger) Totals() Totals {
	in := sumEntries(l.Income)
	out := sumEntries(l.Expense)
	return Totals{
		Income:  in.InexactFloat64(),
		Expense: out.InexactFloat64(),
		Net:     in.Sub(out).InexactFloat64(),
	}
}

func sumEntries(entries []LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(decimal.NewFromFloat(e.Amount))
	}
	return sum
}

// SignatureBlock attestations, signer place/date and the applied signature
type SignatureBlock struct {
	Truthfulness    bool       `json:"dichiarazioneVeridicita" gorm:"not null"`
	DataConsent     bool       `json:"consensoTrattamento" gorm:"not null"`
	Applied         bool       `json:"firmaAmministratore" gorm:"not null"`
	Place           string     `json:"luogo" gorm:"size:100"`
	Date            *time.Time `json:"data"`
	AdditionalNotes string     `json:"noteAggiuntive" gorm:"size:1000"`
	Image           string     `json:"firmaImmagine,omitempty" gorm:"type:mediumtext"`
	AppliedAt       *time.Time `json:"firmaApplicataIl,omitempty"`
	SaveMode        string     `json:"tipoSalvataggio,omitempty" gorm:"size:20"`
}

// FinancialReport one reporting-period statement for one beneficiary
type FinancialReport struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	UserID             uint           `json:"userId" gorm:"not null;index:idx_report_owner_beneficiary,priority:1"`
	BeneficiaryID      uint           `json:"beneficiarioId" gorm:"not null;index:idx_report_owner_beneficiary,priority:2"`
	Beneficiary        *Beneficiary   `json:"beneficiario,omitempty" gorm:"foreignKey:BeneficiaryID"`
	Header             ReportHeader   `json:"datiGenerali" gorm:"embedded"`
	PersonalConditions string         `json:"condizioniPersonali" gorm:"type:text"`
	Ledger             Ledger         `json:"contoEconomico" gorm:"embedded;embeddedPrefix:ledger_"`
	Signature          SignatureBlock `json:"firma" gorm:"embedded;embeddedPrefix:signature_"`
	State              string         `json:"stato" gorm:"size:20;not null;index"`
	Notes              string         `json:"note" gorm:"size:1000"`
	CreatedAt          time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt          time.Time      `json:"updatedAt"`

	Totals Totals `json:"totali" gorm:"-"`
}

// TableName table name
func (FinancialReport) TableName() string {
	return "financial_reports"
}

// BeforeSave derives the year and fills empty ledger lists
func (r *FinancialReport) BeforeSave(tx *gorm.DB) error {
	if !r.Header.PeriodStart.IsZero() {
		r.Header.Year = r.Header.PeriodStart.Year()
	}
	r.Ledger.normalize()
	return nil
}

// AfterSave refreshes totals
func (r *FinancialReport) AfterSave(tx *gorm.DB) error {
	r.Derive()
	return nil
}

// AfterFind refreshes totals
func (r *FinancialReport) AfterFind(tx *gorm.DB) error {
	r.Derive()
	return nil
}

// Derive fills computed fields
func (r *FinancialReport) Derive() {
	r.Ledger.normalize()
	r.Totals = r.Ledger.Totals()
}

// Locked reports whether the report can no longer be modified
func (r *FinancialReport) Locked() bool {
	return r.State == ReportStateSubmitted
}

// MissingFields lists what prevents the report from being complete, in a fixed order
func (r *FinancialReport) MissingFields() []string {
	missing := []string{}
	if r.Header.PeriodStart.IsZero() {
		missing = append(missing, MissingPeriodStart)
	}
	if r.Header.PeriodEnd.IsZero() {
		missing = append(missing, MissingPeriodEnd)
	}
	if strings.TrimSpace(r.Header.CaseRef) == "" {
		missing = append(missing, MissingCaseRef)
	}
	if r.BeneficiaryID == 0 {
		missing = append(missing, MissingBeneficiary)
	}
	if strings.TrimSpace(r.PersonalConditions) == "" {
		missing = append(missing, MissingConditions)
	}
	if !r.Signature.Truthfulness {
		missing = append(missing, MissingTruthfulness)
	}
	if !r.Signature.DataConsent {
		missing = append(missing, MissingDataConsent)
	}
	if strings.TrimSpace(r.Signature.Place) == "" {
		missing = append(missing, MissingSignaturePlace)
	}
	if r.Signature.Date == nil || r.Signature.Date.IsZero() {
		missing = append(missing, MissingSignatureDate)
	}
	return missing
}
