package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/internal/logger"
)

// APIError is the error envelope returned by every endpoint
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Common error codes
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeInvalidGrant      = "invalid_grant"
	ErrCodeWalletNotVerified = "wallet_not_verified"
	ErrCodeUserExists        = "user_already_exists"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternalError     = "internal_error"
)

var errorTable = []struct {
	target error
	apiErr APIError
}{
	{core.ErrInvalidCredentials, APIError{ErrCodeInvalidGrant, "Invalid login credentials", http.StatusBadRequest}},
	{core.ErrWalletNotVerified, APIError{ErrCodeWalletNotVerified, "Wallet signature has not been verified", http.StatusUnauthorized}},
	{core.ErrUserExists, APIError{ErrCodeUserExists, "User already registered", http.StatusUnprocessableEntity}},
	{core.ErrTokenExpired, APIError{ErrCodeUnauthorized, "Token expired", http.StatusUnauthorized}},
	{core.ErrTokenInvalidated, APIError{ErrCodeUnauthorized, "Token has been revoked", http.StatusUnauthorized}},
	{core.ErrInvalidToken, APIError{ErrCodeUnauthorized, "Invalid token", http.StatusUnauthorized}},
	{core.ErrForbidden, APIError{ErrCodeForbidden, "Access denied", http.StatusForbidden}},
	{core.ErrUserNotFound, APIError{ErrCodeNotFound, "User not found", http.StatusNotFound}},
	{core.ErrChatNotFound, APIError{ErrCodeNotFound, "Chat not found", http.StatusNotFound}},
	{core.ErrInvalidRole, APIError{ErrCodeBadRequest, "Invalid role", http.StatusBadRequest}},
	{core.ErrInvalidAddress, APIError{ErrCodeBadRequest, "Invalid wallet address", http.StatusBadRequest}},
	{core.ErrInvalidChallenge, APIError{ErrCodeBadRequest, "Invalid or expired challenge", http.StatusBadRequest}},
	{core.ErrInvalidSignature, APIError{ErrCodeBadRequest, "Invalid signature", http.StatusBadRequest}},
	{core.ErrInvalidArgument, APIError{ErrCodeBadRequest, "Invalid argument", http.StatusBadRequest}},
}

// toAPIError maps a service error onto its public representation
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, entry := range errorTable {
		if errors.Is(err, entry.target) {
			e := entry.apiErr
			return &e
		}
	}
	return &APIError{Code: ErrCodeInternalError, Message: "Internal server error", StatusCode: http.StatusInternalServerError}
}

func abortWithError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
}

func badRequest(message string) *APIError {
	return &APIError{Code: ErrCodeBadRequest, Message: message, StatusCode: http.StatusBadRequest}
}
