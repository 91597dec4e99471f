package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"rendiconto/models"

	"github.com/gin-gonic/gin"
)

// Date accepts "2006-01-02" or RFC 3339 in JSON and renders as "2006-01-02"
type Date struct {
	time.Time
}

// UnmarshalJSON parses a date or timestamp string; null and "" leave the zero time
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("data non valida: %w", err)
	}
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("data non valida %q, formato atteso AAAA-MM-GG", s)
	}
	d.Time = t.UTC()
	return nil
}

// MarshalJSON renders the calendar date
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// AddressRequest address as sent by clients
type AddressRequest struct {
	Street     string `json:"via" example:"Via Roma 1"`
	City       string `json:"citta" example:"Torino"`
	PostalCode string `json:"cap" example:"10100"`
	Province   string `json:"provincia" example:"TO"`
}

func (a AddressRequest) model() models.Address {
	return models.Address{Street: a.Street, City: a.City, PostalCode: a.PostalCode, Province: a.Province}
}

func (a *AddressRequest) modelPtr() *models.Address {
	if a == nil {
		return nil
	}
	m := a.model()
	return &m
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "ID non valido")
		return 0, false
	}
	return uint(id), true
}

// pageParams reads ?page= and ?limit=; services clamp the values
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}
