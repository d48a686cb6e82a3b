package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/service"
)

// AuthHandlers contains HTTP handlers for the wallet challenge and session endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type rpcResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Nonce   string `json:"nonce,omitempty"`
	Error   string `json:"error,omitempty"`
}

// verificationFailure reports whether err is a rejected proof rather than a server fault
func verificationFailure(err error) bool {
	return errors.Is(err, core.ErrInvalidAddress) ||
		errors.Is(err, core.ErrInvalidChallenge) ||
		errors.Is(err, core.ErrInvalidSignature)
}

// CreateWalletChallenge handles create_wallet_challenge
func (h *AuthHandlers) CreateWalletChallenge(c *gin.Context) {
	var req struct {
		WalletAddr string `json:"wallet_addr"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.WalletAddr)
	if err != nil {
		if verificationFailure(err) {
			c.JSON(http.StatusOK, rpcResult{Error: toAPIError(err).Message})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rpcResult{Success: true, Message: challenge.Message, Nonce: challenge.Nonce})
}

// AuthenticateWallet handles authenticate_wallet
func (h *AuthHandlers) AuthenticateWallet(c *gin.Context) {
	var req struct {
		WalletAddr    string `json:"wallet_addr"`
		SignatureMsg  string `json:"signature_msg"`
		UserSignature string `json:"user_signature"`
		NonceValue    string `json:"nonce_value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	err := h.authService.AuthenticateWallet(c.Request.Context(), req.WalletAddr, req.SignatureMsg, req.UserSignature, req.NonceValue)
	if err != nil {
		if verificationFailure(err) {
			c.JSON(http.StatusOK, rpcResult{Error: toAPIError(err).Message})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rpcResult{Success: true})
}

// Token handles both the password and refresh_token grants
func (h *AuthHandlers) Token(c *gin.Context) {
	switch grant := c.Query("grant_type"); grant {
	case "password":
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, badRequest("Invalid request"))
			return
		}

		session, err := h.authService.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)

	case "refresh_token":
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, badRequest("Invalid request"))
			return
		}

		session, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)

	default:
		abortWithError(c, badRequest("Unsupported grant_type "+grant))
	}
}

// SignUp handles account creation for a verified wallet
func (h *AuthHandlers) SignUp(c *gin.Context) {
	var req struct {
		Email    string         `json:"email" binding:"required"`
		Password string         `json:"password" binding:"required"`
		Data     map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	session, err := h.authService.SignUp(c.Request.Context(), req.Email, req.Password, req.Data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout revokes the caller's session
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		abortWithError(c, core.ErrInvalidToken)
		return
	}

	err := h.authService.Logout(c.Request.Context(), token)
	if err != nil && !errors.Is(err, core.ErrTokenExpired) && !errors.Is(err, core.ErrTokenInvalidated) {
		abortWithError(c, err)
		return
	}

	// An expired or already revoked session counts as logged out.
	c.Status(http.StatusNoContent)
}

// AuthUID returns the caller's user id, or null when the caller is anonymous
func (h *AuthHandlers) AuthUID(c *gin.Context) {
	uid := h.authService.AuthUID(c.Request.Context(), bearerToken(c))
	if uid == "" {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, uid)
}
