package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/venuebook/backend/internal/constants"
	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/service"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

type VerificationHandler struct {
	verificationService *service.VerificationService
}

func NewVerificationHandler(verificationService *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
	}
}

// SendCode dispatches a verification code to the caller
func (h *VerificationHandler) SendCode(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "SendCode")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req dto.SendVerificationCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.verificationService.SendVerificationCode(ctx, userID, &req); err != nil {
		h.respondSendError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Verification code sent"))
}

// VerifyAccount confirms a channel with a submitted code
func (h *VerificationHandler) VerifyAccount(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "VerifyAccount")

	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req dto.VerifyAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.verificationService.VerifyAccount(ctx, userID, &req); err != nil {
		logger.WarnWithContext(ctx, "Account verification failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Verification failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Account verified"))
}

// ForgotPassword starts the unauthenticated reset flow
func (h *VerificationHandler) ForgotPassword(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ForgotPassword")

	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.verificationService.ForgotPassword(ctx, req.Email, req.Method); err != nil {
		h.respondSendError(c, ctx, err)
		return
	}

	// Same body whether or not the email exists
	c.JSON(http.StatusOK, constants.BuildSuccessResponse("If the account exists, a reset code was sent"))
}

// ResetPassword completes the reset flow with a code
func (h *VerificationHandler) ResetPassword(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ResetPassword")

	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.verificationService.ResetPassword(ctx, &req); err != nil {
		logger.WarnWithContext(ctx, "Password reset failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Password reset failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Password reset"))
}

func (h *VerificationHandler) respondSendError(c *gin.Context, ctx context.Context, err error) {
	logger.WarnWithContext(ctx, "Verification code dispatch failed").
		Err(err).
		Log()

	status := apperrors.ToHTTPStatus(err)

	var rateErr *apperrors.RateLimitError
	if errors.As(err, &rateErr) {
		retryAfter := int(rateErr.RetryAfter.Seconds()) + 1
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(status, constants.BuildErrorResponse("Too many requests", gin.H{
			"retry_after_seconds": retryAfter,
		}))
		return
	}

	c.JSON(status, constants.BuildErrorResponse("Failed to send code", apperrors.GetErrorMessage(err)))
}
