// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Generic codes are lowercase snake_case and mirror HTTP semantics. Domain
// codes (N001..N006) are stable identifiers clients can branch on; they map
// one-to-one to service sentinel errors through writeServiceError.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "N001",
//	  "message": "notification not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-notification-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeNotificationNotFound = "N001"
	ErrCodeEmptyIDs             = "N002"
	ErrCodeInvalidInput         = "N003"
	ErrCodeWrongOwner           = "N004"
	ErrCodeTemplateNotFound     = "N005"
	ErrCodeTemplateExists       = "N006"
)

// serviceErrors maps service sentinels to status and code.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrNotificationNotFound, http.StatusNotFound, ErrCodeNotificationNotFound},
	{services.ErrEmptyIDs, http.StatusBadRequest, ErrCodeEmptyIDs},
	{services.ErrInvalidTemplate, http.StatusBadRequest, ErrCodeInvalidInput},
	{services.ErrInvalidCategory, http.StatusBadRequest, ErrCodeInvalidInput},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeInvalidInput},
	{services.ErrWrongOwner, http.StatusForbidden, ErrCodeWrongOwner},
	{services.ErrTemplateNotFound, http.StatusNotFound, ErrCodeTemplateNotFound},
	{services.ErrTemplateExists, http.StatusConflict, ErrCodeTemplateExists},
}

// writeServiceError fails the request with the code mapped from err, or a 500
// when err is not a known sentinel.
func writeServiceError(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
