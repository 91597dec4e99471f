package api

import (
	"errors"
	"net/http"

	"rendiconto/config"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response success envelope
type Response struct {
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination page metadata of list responses
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// ErrorResponse failure envelope
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success 200 with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: "OK", Data: data})
}

// SuccessWithMessage 200 with message and data
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: message, Data: data})
}

// Created 201 with message and data
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{Message: message, Data: data})
}

// Paginated 200 with one page of items
func Paginated[T any](c *gin.Context, page service.Page[T]) {
	c.JSON(http.StatusOK, Response{
		Message: "OK",
		Data:    page.Items,
		Pagination: &Pagination{
			CurrentPage:  page.Page,
			TotalPages:   page.TotalPages(),
			TotalItems:   page.Total,
			ItemsPerPage: page.PageSize,
		},
	})
}

// Error failure response
func Error(c *gin.Context, status int, kind, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: kind, Message: message, Details: details})
}

// BadRequest 400 for malformed input that never reached a service
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, string(service.KindValidationFailed), message, nil)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, string(service.KindUnauthorized), message, nil)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, string(service.KindNotFound), message, nil)
}

// InternalError 500
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, string(service.KindInternal), message, nil)
}

// statusFor HTTP status of a service error kind
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidationFailed:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindIncompleteReport:
		return http.StatusUnprocessableEntity
	case service.KindReportLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError writes the envelope for an error returned by a service.
// Internal failures are logged and their detail hidden outside debug mode.
func ServiceError(c *gin.Context, log *zap.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = service.ErrInternal("Errore interno del server", err)
	}

	resp := ErrorResponse{Error: string(se.Kind), Code: se.Code, Message: se.Message}
	switch {
	case len(se.Fields) > 0:
		resp.Details = se.Fields
	case len(se.Missing) > 0:
		resp.Details = se.Missing
	}

	status := statusFor(se.Kind)
	if status == http.StatusInternalServerError {
		log.Error("errore interno",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		resp.Message = config.SafeErrorMessage(err, se.Message)
	}
	c.JSON(status, resp)
}
