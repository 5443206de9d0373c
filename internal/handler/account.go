package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/venuebook/backend/internal/constants"
	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/middleware"
	"github.com/venuebook/backend/internal/service"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type AccountHandler struct {
	accountService *service.AccountService
	tokenService   *service.TokenService
}

func NewAccountHandler(accountService *service.AccountService, tokenService *service.TokenService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		tokenService:   tokenService,
	}
}

// ChangePassword replaces the caller's password
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ChangePassword")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	claims := middleware.ClaimsFromGin(c)
	if err := h.accountService.ChangePassword(ctx, userID, &req, claims); err != nil {
		logger.WarnWithContext(ctx, "Password change failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Password change failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Password changed"))
}

// DeactivateAccount disables the caller's account
func (h *AccountHandler) DeactivateAccount(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "DeactivateAccount")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req dto.DeactivateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	claims := middleware.ClaimsFromGin(c)
	if err := h.accountService.DeactivateAccount(ctx, userID, &req, claims); err != nil {
		logger.WarnWithContext(ctx, "Account deactivation failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Deactivation failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Account deactivated"))
}

// ListSessions returns the caller's sessions for the device view
func (h *AccountHandler) ListSessions(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ListSessions")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	sessions, err := h.tokenService.ListSessions(ctx, userID)
	if err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Failed to list sessions", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildListResponse(int64(len(sessions)), sessions))
}

// RevokeSession revokes one of the caller's sessions by id
func (h *AccountHandler) RevokeSession(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "RevokeSession")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	sessionID, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid session id", err.Error()))
		return
	}

	if err := h.tokenService.RevokeSession(ctx, userID, uint(sessionID)); err != nil {
		logger.WarnWithContext(ctx, "Session revocation failed").
			Uint("session_id", uint(sessionID)).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Revocation failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Session revoked"))
}

// LogoutAll revokes every session the caller holds
func (h *AccountHandler) LogoutAll(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "LogoutAll")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromGin(c)
	revoked, err := h.tokenService.RevokeAllUserTokens(ctx, userID, claims)
	if err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Logout failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Logged out everywhere",
		"sessions_revoked": revoked,
	})
}

// authenticatedUserID reads the identity the auth guard stored; answers
// 401 itself when the guard was bypassed.
func authenticatedUserID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get(middleware.GinKeyUserID); exists {
		if id, ok := v.(uint); ok {
			return id, true
		}
	}
	c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
	c.Abort()
	return 0, false
}
