package xresponse

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response represents standard API response format
type Response struct {
	Code      int         `json:"code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorResponse represents error response format
type ErrorResponse struct {
	Code      int         `json:"code"`
	Status    string      `json:"status"`
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Common error codes
const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidValue         = "INVALID_VALUE"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeAccountFrozen        = "ACCOUNT_FROZEN"
	ErrCodeNotFrozen            = "ACCOUNT_NOT_FROZEN"
	ErrCodeSubmissionLimit      = "SUBMISSION_LIMIT_REACHED"
	ErrCodeBelowMinimumBalance  = "BELOW_MINIMUM_BALANCE"
	ErrCodeInvalidPremiumConfig = "INVALID_PREMIUM_CONFIG"
	ErrCodeReferralCycle        = "REFERRAL_CYCLE"
	ErrCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// Success sends success response
func Success(c *gin.Context, message string, data interface{}) {
	response := Response{
		Code:      http.StatusOK,
		Status:    "success",
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	c.JSON(http.StatusOK, response)
}

// Created sends created response (201)
func Created(c *gin.Context, message string, data interface{}) {
	response := Response{
		Code:      http.StatusCreated,
		Status:    "success",
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	c.JSON(http.StatusCreated, response)
}

// Error sends error response
func Error(c *gin.Context, statusCode int, errorCode, message string) {
	response := ErrorResponse{
		Code:      statusCode,
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	c.JSON(statusCode, response)
}

// ErrorWithDetails sends error response with details
func ErrorWithDetails(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	response := ErrorResponse{
		Code:      statusCode,
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}
	c.JSON(statusCode, response)
}

// BadRequest sends 400 Bad Request response
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, ErrCodeValidationFailed, message)
}

// Unauthorized sends 401 Unauthorized response
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends 403 Forbidden response
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound sends 404 Not Found response
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict sends 409 Conflict response
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, ErrCodeConflict, message)
}

// InternalServerError sends 500 Internal Server Error response
func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// InsufficientBalance sends 422 Insufficient Balance error response
func InsufficientBalance(c *gin.Context, message string) {
	Error(c, http.StatusUnprocessableEntity, ErrCodeInsufficientBalance, message)
}

// UserNotFound sends 404 User Not Found error response
func UserNotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, ErrCodeUserNotFound, message)
}

// AccountFrozen sends 423 Account Frozen error response
func AccountFrozen(c *gin.Context, message string) {
	Error(c, http.StatusLocked, ErrCodeAccountFrozen, message)
}

// ServiceUnavailable sends 503 error response
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// ValidationError sends validation error response with field details
func ValidationError(c *gin.Context, details interface{}) {
	ErrorWithDetails(c, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", details)
}
