package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Server errors are attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a malformed request body or query.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrPayoutNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidDeliveryID),
		errors.Is(err, service.ErrInvalidRiderName),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidAvailability),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidOrderTotal),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPeriod),
		errors.Is(err, service.ErrInvalidGranularity),
		errors.Is(err, service.ErrInvalidPayoutMethod),
		errors.Is(err, service.ErrInvalidPayoutReference):
		return http.StatusBadRequest

	// Forbidden
	case errors.Is(err, service.ErrNotAuthorized),
		errors.Is(err, service.ErrRiderInactive):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrRiderNotAvailable),
		errors.Is(err, service.ErrOrderAlreadyAssigned),
		errors.Is(err, service.ErrInvalidStateTransition),
		errors.Is(err, service.ErrDeliveryAlreadyTerminal),
		errors.Is(err, service.ErrRiderAlreadyRegistered),
		errors.Is(err, service.ErrDeliveryNotDelivered),
		errors.Is(err, service.ErrAlreadyRated),
		errors.Is(err, service.ErrStaleDelivery),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrNoPendingEarnings):
		return http.StatusUnprocessableEntity

	// Retryable by the client
	case errors.Is(err, service.ErrAssignmentOutcomeUnknown),
		errors.Is(err, repository.ErrTransient),
		errors.Is(err, repository.ErrCommitUnknown):
		return http.StatusServiceUnavailable

	// Default to internal server error, including ErrInconsistentAssignmentState
	default:
		return http.StatusInternalServerError
	}
}
