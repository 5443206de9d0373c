package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/venuebook/backend/internal/constants"
	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/middleware"
	"github.com/venuebook/backend/internal/service"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type AuthHandler struct {
	tokenService *service.TokenService
}

func NewAuthHandler(tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
	}
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "Login")

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid login request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	logger.InfoWithContext(ctx, "User login attempt").
		String("email", req.Email).
		Log()

	response, err := h.tokenService.Login(ctx, &req, deviceInfo(c, req.DeviceName, req.DeviceType))
	if err != nil {
		logger.WarnWithContext(ctx, "Login failed").
			String("email", req.Email).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Authentication failed", apperrors.GetErrorMessage(err)))
		return
	}

	logger.InfoWithContext(ctx, "User logged in successfully").
		String("email", req.Email).
		Int("user_id", int(response.User.ID)).
		Log()

	c.JSON(http.StatusOK, response)
}

// RefreshToken exchanges a refresh token for a new pair
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "RefreshToken")

	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid refresh token request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	response, err := h.tokenService.RefreshTokens(ctx, &req, deviceInfo(c, req.DeviceName, req.DeviceType))
	if err != nil {
		logger.WarnWithContext(ctx, "Token refresh failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Token refresh failed", apperrors.GetErrorMessage(err)))
		return
	}

	logger.InfoWithContext(ctx, "Token refreshed successfully").
		Int("user_id", int(response.User.ID)).
		Log()

	c.JSON(http.StatusOK, response)
}

// Logout revokes the presented refresh token's session and kills the
// caller's access token
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "Logout")

	var req dto.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid logout request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	claims := middleware.ClaimsFromGin(c)
	if err := h.tokenService.Logout(ctx, req.RefreshToken, claims); err != nil {
		logger.ErrorWithContext(ctx, "Logout failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Logout failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Logout successful"))
}

// ValidateToken runs the validation pipeline for other services. Invalid
// tokens answer 200 with valid=false; only infrastructure faults are
// non-200.
func (h *AuthHandler) ValidateToken(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ValidateToken")

	var req dto.ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	response, err := h.tokenService.ValidateToken(ctx, &req)
	if err != nil {
		logger.ErrorWithContext(ctx, "Token validation errored").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Validation unavailable", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, response)
}

// deviceInfo assembles session device metadata from the request.
func deviceInfo(c *gin.Context, name, deviceType string) service.DeviceInfo {
	return service.DeviceInfo{
		Name:      name,
		Type:      deviceType,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}
