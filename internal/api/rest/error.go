package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest       ErrorCode = "bad_request"
	errCodeNotFound         ErrorCode = "not_found"
	errCodeValidationFailed ErrorCode = "validation_failed"
	errCodeForbidden        ErrorCode = "forbidden"
	errCodePaymentRequired  ErrorCode = "payment_required"

	// Server errors (5xx)
	errCodeInternalError ErrorCode = "internal_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// respondDomainError maps the ledger's typed errors to HTTP statuses; anything
// untyped is a 500
func respondDomainError(c *gin.Context, err error, message string) {
	var (
		authErr     *domain.AuthorizationError
		approvalErr *domain.NotApprovedError
		ownedErr    *domain.NotOwnedError
		listedErr   *domain.NotListedError
		fundsErr    *domain.InsufficientFundsError
		lengthErr   *domain.LengthMismatchError
		royaltyErr  *domain.InvalidRoyaltyError
		expiredErr  *domain.ExpiredSubscriptionError
	)

	switch {
	case errors.As(err, &authErr):
		respondWithError(c, http.StatusForbidden, errCodeForbidden, message, err.Error())
	case errors.As(err, &approvalErr):
		respondWithError(c, http.StatusForbidden, errCodeForbidden, message, err.Error())
	case errors.As(err, &ownedErr):
		respondWithError(c, http.StatusForbidden, errCodeForbidden, message, err.Error())
	case errors.As(err, &listedErr):
		respondWithError(c, http.StatusNotFound, errCodeNotFound, message, err.Error())
	case errors.As(err, &fundsErr):
		respondWithError(c, http.StatusPaymentRequired, errCodePaymentRequired, message, err.Error())
	case errors.As(err, &lengthErr):
		respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, err.Error())
	case errors.As(err, &royaltyErr):
		respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, err.Error())
	case errors.As(err, &expiredErr):
		respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, err.Error())
	default:
		respondInternalError(c, err, message)
	}
}
