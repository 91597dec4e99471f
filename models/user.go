package models

import (
	"strings"
	"time"
)

const (
	// RoleAdministrator amministratore di sostegno
	RoleAdministrator = "amministratore"
	// RoleGuardian tutore
	RoleGuardian = "tutore"
)

// ValidRole reports whether r is one of the supported roles
func ValidRole(r string) bool {
	return r == RoleAdministrator || r == RoleGuardian
}

// Address postal address shared by users and beneficiaries
type Address struct {
	Street     string `json:"via" gorm:"size:200"`
	City       string `json:"citta" gorm:"size:100"`
	PostalCode string `json:"cap" gorm:"size:5"`
	Province   string `json:"provincia" gorm:"size:2"`
}

// Formatted renders "via, cap citta, (PR)" skipping missing parts
func (a Address) Formatted() string {
	parts := make([]string, 0, 3)
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	switch {
	case a.PostalCode != "" && a.City != "":
		parts = append(parts, a.PostalCode+" "+a.City)
	case a.City != "":
		parts = append(parts, a.City)
	}
	if a.Province != "" {
		parts = append(parts, "("+a.Province+")")
	}
	return strings.Join(parts, ", ")
}

// User administrator or guardian account
type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	FirstName      string     `json:"nome" gorm:"size:50;not null"`
	LastName       string     `json:"cognome" gorm:"size:50;not null"`
	Email          string     `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password       string     `json:"-" gorm:"size:255;not null"`
	FiscalCode     string     `json:"codiceFiscale" gorm:"uniqueIndex;size:16;not null"`
	Phone          string     `json:"telefono" gorm:"size:20"`
	BirthDate      *time.Time `json:"dataNascita,omitempty"`
	BirthPlace     string     `json:"luogoNascita" gorm:"size:100"`
	Profession     string     `json:"professione" gorm:"size:100"`
	RegisterNumber string     `json:"numeroAlbo" gorm:"size:50"`
	PEC            string     `json:"pec" gorm:"size:100"`
	Address        Address    `json:"indirizzo" gorm:"embedded;embeddedPrefix:address_"`
	SignatureImage string     `json:"firmaImmagine,omitempty" gorm:"type:mediumtext"` // file path or data URL
	Role           string     `json:"ruolo" gorm:"size:20;not null;index"`
	IsActive       bool       `json:"isActive" gorm:"not null;index"`
	LastLoginAt    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// TableName table name
func (User) TableName() string {
	return "users"
}

// FullName "nome cognome"
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasSignature reports whether a signature image is on file
func (u *User) HasSignature() bool {
	return u.SignatureImage != ""
}
