package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// DefaultCategoryColor used when a category is created without a color
const DefaultCategoryColor = "#6c757d"

// Category types
const (
	CategoryTypeIncome  = "ENTRATE"
	CategoryTypeExpense = "USCITE"
)

// ValidCategoryType reports whether t is ENTRATE or USCITE
func ValidCategoryType(t string) bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// ErrCategoryScope a category must be either global (no owner) or private (one owner)
var ErrCategoryScope = errors.New("categoria: isDefault e proprietario incoerenti")

// Category ledger classification, global (IsDefault, no owner) or private to one user.
//
// ScopeKey and ActiveSlot back the unique index: ScopeKey is the owner id (0 for globals),
// ActiveSlot is 1 while active and NULL once deactivated, so only active rows collide.
type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"nome" gorm:"size:50;not null;uniqueIndex:idx_category_scope_name,priority:2"`
	Type        string    `json:"tipo" gorm:"size:10;not null;index"`
	Description string    `json:"descrizione" gorm:"size:200"`
	Color       string    `json:"colore" gorm:"size:7;not null"`
	IsDefault   bool      `json:"isDefault" gorm:"not null;index"`
	UserID      *uint     `json:"userId,omitempty" gorm:"index"`
	IsActive    bool      `json:"isActive" gorm:"not null;index"`
	ScopeKey    uint      `json:"-" gorm:"not null;uniqueIndex:idx_category_scope_name,priority:1"`
	ActiveSlot  *int8     `json:"-" gorm:"uniqueIndex:idx_category_scope_name,priority:3"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName table name
func (Category) TableName() string {
	return "categories"
}

// BeforeSave keeps the scope invariant and the index helper columns in sync
func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.IsDefault != (c.UserID == nil) {
		return ErrCategoryScope
	}
	c.ScopeKey = 0
	if c.UserID != nil {
		c.ScopeKey = *c.UserID
	}
	c.ActiveSlot = activeSlot(c.IsActive)
	return nil
}

// OwnedBy reports whether the category is private to userID
func (c *Category) OwnedBy(userID uint) bool {
	return !c.IsDefault && c.UserID != nil && *c.UserID == userID
}

func activeSlot(active bool) *int8 {
	if !active {
		return nil
	}
	one := int8(1)
	return &one
}
