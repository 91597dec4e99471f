package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	validate          = validator.New()
	fiscalCodePattern = regexp.MustCompile(`^[A-Z]{6}[0-9]{2}[A-Z][0-9]{2}[A-Z][0-9]{3}[A-Z]$`)
	colorPattern      = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	postalCodePattern = regexp.MustCompile(`^[0-9]{5}$`)
	provincePattern   = regexp.MustCompile(`^[A-Za-z]{2}$`)
	phonePattern      = regexp.MustCompile(`^[\+]?[0-9\s\-\(\)]{8,15}$`)
)

// NormalizeFiscalCode trims and uppercases
func NormalizeFiscalCode(cf string) string {
	return strings.ToUpper(strings.TrimSpace(cf))
}

// ValidFiscalCode checks the Italian fiscal code shape
func ValidFiscalCode(cf string) bool {
	return fiscalCodePattern.MatchString(cf)
}

// fieldErrors collects every offending field before any write
type fieldErrors []FieldError

func (f *fieldErrors) add(field, msg string) {
	*f = append(*f, FieldError{Field: field, Message: msg})
}

func (f *fieldErrors) required(field, value, msg string) bool {
	if strings.TrimSpace(value) == "" {
		f.add(field, msg)
		return false
	}
	return true
}

func (f *fieldErrors) maxLen(field, value string, max int, msg string) {
	if utf8.RuneCountInString(value) > max {
		f.add(field, msg)
	}
}

func (f *fieldErrors) match(field, value string, re *regexp.Regexp, msg string) {
	if value != "" && !re.MatchString(value) {
		f.add(field, msg)
	}
}

func (f *fieldErrors) nonNegative(field string, v float64, msg string) {
	if v < 0 {
		f.add(field, msg)
	}
}

func (f *fieldErrors) email(field, value string) {
	if value == "" {
		return
	}
	if err := validate.Var(value, "email"); err != nil {
		f.add(field, "Inserisci un indirizzo email valido")
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return ErrValidation(f...)
}
