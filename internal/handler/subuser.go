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

type SubUserHandler struct {
	subUserService *service.SubUserService
}

func NewSubUserHandler(subUserService *service.SubUserService) *SubUserHandler {
	return &SubUserHandler{
		subUserService: subUserService,
	}
}

// Login authenticates a sub-user against a venue
func (h *SubUserHandler) Login(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "SubUserLogin")

	venueID, ok := pathVenueID(c)
	if !ok {
		return
	}

	var req dto.SubUserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	device := service.DeviceInfo{
		Name:      req.DeviceName,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}

	response, err := h.subUserService.Authenticate(ctx, venueID, &req, device)
	if err != nil {
		logger.WarnWithContext(ctx, "Sub-user login failed").
			Uint("venue_id", venueID).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Authentication failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, response)
}

// Logout ends the calling sub-user's sessions
func (h *SubUserHandler) Logout(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "SubUserLogout")

	subUserID, ok := authenticatedSubUserID(c)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromGin(c)
	if err := h.subUserService.Logout(ctx, subUserID, claims); err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Logout failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Logout successful"))
}

// CreateFirstAdmin provisions the venue's bootstrap admin. Caller is the
// venue owner (primary user token); the venue comes from their claims.
func (h *SubUserHandler) CreateFirstAdmin(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "CreateFirstAdmin")

	venueID, ok := authenticatedVenueID(c)
	if !ok {
		return
	}

	var req dto.CreateFirstAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	response, err := h.subUserService.CreateFirstAdmin(ctx, venueID, &req)
	if err != nil {
		logger.WarnWithContext(ctx, "First admin provisioning failed").
			Uint("venue_id", venueID).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Provisioning failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusCreated, response)
}

// Create adds a sub-user to the caller's venue
func (h *SubUserHandler) Create(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "CreateSubUser")

	venueID, subUserID, ok := authenticatedScope(c)
	if !ok {
		return
	}

	var req dto.CreateSubUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	response, err := h.subUserService.CreateSubUser(ctx, venueID, subUserID, &req)
	if err != nil {
		logger.WarnWithContext(ctx, "Sub-user creation failed").
			Uint("venue_id", venueID).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Creation failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusCreated, response)
}

// List returns the caller venue's sub-users
func (h *SubUserHandler) List(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ListSubUsers")

	venueID, _, ok := authenticatedScope(c)
	if !ok {
		return
	}

	subUsers, err := h.subUserService.List(ctx, venueID)
	if err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Failed to list sub-users", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildListResponse(int64(len(subUsers)), subUsers))
}

// UpdatePermissions edits a sub-user's role or bitmask
func (h *SubUserHandler) UpdatePermissions(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "UpdateSubUserPermissions")

	venueID, actorID, ok := authenticatedScope(c)
	if !ok {
		return
	}
	targetID, ok := pathSubUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateSubUserPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.subUserService.UpdatePermissions(ctx, venueID, actorID, targetID, &req); err != nil {
		logger.WarnWithContext(ctx, "Permission update failed").
			Uint("target_id", targetID).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Update failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Permissions updated"))
}

// ResetPassword lets an admin set a sub-user's password
func (h *SubUserHandler) ResetPassword(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "ResetSubUserPassword")

	venueID, actorID, ok := authenticatedScope(c)
	if !ok {
		return
	}
	targetID, ok := pathSubUserID(c)
	if !ok {
		return
	}

	var req dto.ResetSubUserPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.subUserService.ResetPassword(ctx, venueID, actorID, targetID, &req); err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Password reset failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Password reset"))
}

// ChangePassword lets a sub-user change their own password
func (h *SubUserHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "SubUserChangePassword")

	subUserID, ok := authenticatedSubUserID(c)
	if !ok {
		return
	}

	var req dto.SubUserChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid request format", err.Error()))
		return
	}

	if err := h.subUserService.ChangePassword(ctx, subUserID, &req); err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Password change failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Password changed"))
}

// Deactivate disables a sub-user
func (h *SubUserHandler) Deactivate(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "DeactivateSubUser")

	venueID, actorID, ok := authenticatedScope(c)
	if !ok {
		return
	}
	targetID, ok := pathSubUserID(c)
	if !ok {
		return
	}

	if err := h.subUserService.Deactivate(ctx, venueID, actorID, targetID); err != nil {
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Deactivation failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Sub-user deactivated"))
}

// Delete removes a sub-user
func (h *SubUserHandler) Delete(c *gin.Context) {
	ctx := ctxutil.WithOperation(c.Request.Context(), "handler", "DeleteSubUser")

	venueID, actorID, ok := authenticatedScope(c)
	if !ok {
		return
	}
	targetID, ok := pathSubUserID(c)
	if !ok {
		return
	}

	if err := h.subUserService.Delete(ctx, venueID, actorID, targetID); err != nil {
		logger.WarnWithContext(ctx, "Sub-user deletion failed").
			Uint("target_id", targetID).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Deletion failed", apperrors.GetErrorMessage(err)))
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Sub-user deleted"))
}

func pathVenueID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("venue_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid venue id", err.Error()))
		return 0, false
	}
	return uint(id), true
}

func pathSubUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("sub_user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Invalid sub-user id", err.Error()))
		return 0, false
	}
	return uint(id), true
}

func authenticatedSubUserID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get(middleware.GinKeySubUserID); exists {
		if id, ok := v.(uint); ok {
			return id, true
		}
	}
	c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
	c.Abort()
	return 0, false
}

func authenticatedVenueID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get(middleware.GinKeyVenueID); exists {
		if id, ok := v.(uint); ok {
			return id, true
		}
	}
	c.JSON(http.StatusForbidden, constants.BuildErrorResponse(constants.MsgForbidden, "No venue linked to account"))
	c.Abort()
	return 0, false
}

// authenticatedScope returns the venue and sub-user ids from an operational
// token's claims.
func authenticatedScope(c *gin.Context) (venueID, subUserID uint, ok bool) {
	subUserID, ok = authenticatedSubUserID(c)
	if !ok {
		return 0, 0, false
	}
	venueID, ok = authenticatedVenueID(c)
	if !ok {
		return 0, 0, false
	}
	return venueID, subUserID, true
}
