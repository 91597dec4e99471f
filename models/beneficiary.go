package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Asset one item of a net-worth declaration
type Asset struct {
	Description string  `json:"descrizione"`
	Value       float64 `json:"valore"`
}

// NetWorth itemized net-worth declaration
type NetWorth struct {
	RealEstate datatypes.JSONSlice[Asset] `json:"beniImmobili"`
	Movable    datatypes.JSONSlice[Asset] `json:"beniMobili"`
	Financial  datatypes.JSONSlice[Asset] `json:"titoliConti"`
}

// NetWorthTotals per-list and overall sums
type NetWorthTotals struct {
	RealEstate float64 `json:"totaleImmobili"`
	Movable    float64 `json:"totaleMobili"`
	Financial  float64 `json:"totaleTitoli"`
	Total      float64 `json:"totalePatrimonio"`
}

// SumAssets exact sum of item values
func SumAssets(items []Asset) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Value))
	}
	return sum
}

// Totals sums every list of the declaration
func (n NetWorth) Totals() NetWorthTotals {
	re := SumAssets(n.RealEstate)
	mv := SumAssets(n.Movable)
	fi := SumAssets(n.Financial)
	return NetWorthTotals{
		RealEstate: re.InexactFloat64(),
		Movable:    mv.InexactFloat64(),
		Financial:  fi.InexactFloat64(),
		Total:      re.Add(mv).Add(fi).InexactFloat64(),
	}
}

func (n *NetWorth) normalize() {
	if n.RealEstate == nil {
		n.RealEstate = datatypes.JSONSlice[Asset]{}
	}
	if n.Movable == nil {
		n.Movable = datatypes.JSONSlice[Asset]{}
	}
	if n.Financial == nil {
		n.Financial = datatypes.JSONSlice[Asset]{}
	}
}

// Beneficiary person under administration, owned by one user.
// Unique index (user_id, fiscal_code, active_slot) keeps fiscal codes distinct among active rows.
type Beneficiary struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	UserID             uint      `json:"userId" gorm:"not null;uniqueIndex:idx_beneficiary_owner_cf,priority:1"`
	FirstName          string    `json:"nome" gorm:"size:50;not null"`
	LastName           string    `json:"cognome" gorm:"size:50;not null;index"`
	FiscalCode         string    `json:"codiceFiscale" gorm:"size:16;not null;uniqueIndex:idx_beneficiary_owner_cf,priority:2"`
	BirthDate          time.Time `json:"dataNascita" gorm:"not null"`
	BirthPlace         string    `json:"luogoNascita" gorm:"size:100"`
	Address            Address   `json:"indirizzo" gorm:"embedded;embeddedPrefix:address_"`
	Notes              string    `json:"note" gorm:"type:text"`
	PersonalConditions string    `json:"condizioniPersonali" gorm:"type:text"`
	NetWorth           NetWorth  `json:"situazionePatrimoniale" gorm:"embedded;embeddedPrefix:net_worth_"`
	IsActive           bool      `json:"isActive" gorm:"not null;index"`
	ActiveSlot         *int8     `json:"-" gorm:"uniqueIndex:idx_beneficiary_owner_cf,priority:3"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	FullName         string `json:"nomeCompleto" gorm:"-"`
	FormattedAddress string `json:"indirizzoCompleto" gorm:"-"`
	Age              int    `json:"eta" gorm:"-"`
	NetWorthTotals   `gorm:"-"`
}

// TableName table name
func (Beneficiary) TableName() string {
	return "beneficiaries"
}

// BeforeSave syncs the index helper column
func (b *Beneficiary) BeforeSave(tx *gorm.DB) error {
	b.ActiveSlot = activeSlot(b.IsActive)
	b.NetWorth.normalize()
	return nil
}

// AfterSave refreshes derived fields
func (b *Beneficiary) AfterSave(tx *gorm.DB) error {
	b.Derive(time.Now())
	return nil
}

// AfterFind refreshes derived fields
func (b *Beneficiary) AfterFind(tx *gorm.DB) error {
	b.Derive(time.Now())
	return nil
}

// Derive fills the read-only fields computed from stored data
func (b *Beneficiary) Derive(now time.Time) {
	b.NetWorth.normalize()
	b.FullName = b.FirstName + " " + b.LastName
	b.FormattedAddress = b.Address.Formatted()
	b.Age = AgeAt(b.BirthDate, now)
	b.NetWorthTotals = b.NetWorth.Totals()
}

// AgeAt completed years between birth and now
func AgeAt(birth, now time.Time) int {
	if birth.IsZero() {
		return 0
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}
