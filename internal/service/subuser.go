package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/model"
	"github.com/venuebook/backend/internal/permission"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

// Audit action names for sub-user administration.
const (
	auditFirstAdminCreated  = "sub_user.first_admin_created"
	auditSubUserCreated     = "sub_user.created"
	auditPermissionsUpdated = "sub_user.permissions_updated"
	auditPasswordReset      = "sub_user.password_reset"
	auditSubUserDeactivated = "sub_user.deactivated"
	auditSubUserDeleted     = "sub_user.deleted"
)

// SubUserService manages venue operator accounts: authentication with
// permission snapshots, the one-time first-admin bootstrap, and the
// administrative lifecycle. Administrative writes that touch more than one
// aggregate run through a TxRunner so they commit or roll back together.
type SubUserService struct {
	subUserRepo SubUserStore
	sessionRepo SubUserSessionStore
	venueRepo   VenueStore
	auditRepo   AuditStore
	blacklist   TokenBlacklist
	jwt         *JWTService
	runTx       TxRunner
	refreshTTL  time.Duration
}

func NewSubUserService(
	subUserRepo SubUserStore,
	sessionRepo SubUserSessionStore,
	venueRepo VenueStore,
	auditRepo AuditStore,
	blacklist TokenBlacklist,
	jwt *JWTService,
	runTx TxRunner,
	refreshTTL time.Duration,
) *SubUserService {
	return &SubUserService{
		subUserRepo: subUserRepo,
		sessionRepo: sessionRepo,
		venueRepo:   venueRepo,
		auditRepo:   auditRepo,
		blacklist:   blacklist,
		jwt:         jwt,
		runTx:       runTx,
		refreshTTL:  refreshTTL,
	}
}

// Authenticate logs a sub-user into a venue. Username lookup is
// case-insensitive. On success the current permission bitmask is
// snapshotted into both the session row and the operational token, so the
// authorization layer never needs a database round-trip; later permission
// edits take effect at the next login.
func (s *SubUserService) Authenticate(ctx context.Context, venueID uint, req *dto.SubUserLoginRequest, device DeviceInfo) (*dto.SubUserLoginResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "subuser", "Authenticate")

	subUser, err := s.subUserRepo.FindByUsername(ctx, venueID, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithContext(ctx, "Sub-user login for unknown username").
				Uint("venue_id", venueID).
				Log()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(subUser.Password), []byte(req.Password)); err != nil {
		logger.WarnWithContext(ctx, "Sub-user login with wrong password").
			Uint("sub_user_id", subUser.ID).
			Uint("venue_id", venueID).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !subUser.Active {
		logger.WarnWithContext(ctx, "Sub-user login on deactivated account").
			Uint("sub_user_id", subUser.ID).
			Log()
		return nil, apperrors.ErrAccountInactive
	}

	claims := &Claims{
		TokenType:   TokenTypeVenueOperational,
		SubUserID:   &subUser.ID,
		VenueID:     &subUser.VenueID,
		Permissions: &subUser.Permissions,
		Roles:       []string{string(subUser.Role)},
	}
	claims.Subject = strconv.FormatUint(uint64(subUser.ID), 10)

	accessToken, _, err := s.jwt.SignClaims(claims)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	sessionToken, err := s.jwt.GenerateRefreshToken()
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	session := &model.SubUserSession{
		SubUserID:           subUser.ID,
		VenueID:             subUser.VenueID,
		Permissions:         subUser.Permissions,
		RefreshToken:        sessionToken,
		RefreshTokenExpires: time.Now().Add(s.refreshTTL),
		Active:              true,
		DeviceName:          device.Name,
		UserAgent:           device.UserAgent,
		IPAddress:           device.IPAddress,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.subUserRepo.UpdateLastLogin(ctx, subUser.ID); err != nil {
		logger.WarnWithContext(ctx, "Failed to stamp sub-user last login").
			Uint("sub_user_id", subUser.ID).
			Err(err).
			Log()
	}

	logger.InfoWithContext(ctx, "Sub-user logged in").
		Uint("sub_user_id", subUser.ID).
		Uint("venue_id", subUser.VenueID).
		Log()

	return &dto.SubUserLoginResponse{
		AccessToken:        accessToken,
		ExpiresIn:          int(s.jwt.AccessTokenTTL().Seconds()),
		SubUserID:          subUser.ID,
		VenueID:            subUser.VenueID,
		Role:               subUser.Role,
		Permissions:        subUser.Permissions,
		MustChangePassword: subUser.MustChangePassword,
	}, nil
}

// Logout deactivates all of the sub-user's sessions and blacklists the
// presented operational token.
func (s *SubUserService) Logout(ctx context.Context, subUserID uint, accessClaims *Claims) error {
	ctx = ctxutil.WithOperation(ctx, "subuser", "Logout")

	if _, err := s.sessionRepo.DeactivateAllForSubUser(ctx, subUserID); err != nil {
		return err
	}

	if accessClaims != nil && accessClaims.ExpiresAt != nil {
		if err := s.blacklist.Blacklist(ctx, accessClaims.ID, accessClaims.ExpiresAt.Time); err != nil {
			logger.ErrorWithContext(ctx, "Failed to blacklist operational token on logout").
				String("jti", accessClaims.ID).
				Err(err).
				Log()
			return apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
		}
	}

	logger.InfoWithContext(ctx, "Sub-user logged out").
		Uint("sub_user_id", subUserID).
		Log()

	return nil
}

// CreateFirstAdmin provisions the venue's bootstrap sub-user. The path is a
// one-time gate: it requires zero existing sub-users for the venue, active
// or not. The created account is a founder admin with every permission and
// no forced password change, and the venue's setup flag flips off in the
// same transaction.
func (s *SubUserService) CreateFirstAdmin(ctx context.Context, venueID uint, req *dto.CreateFirstAdminRequest) (*dto.SubUserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "subuser", "CreateFirstAdmin")

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	subUser := &model.VenueSubUser{
		VenueID:            venueID,
		Username:           req.Username,
		Password:           string(hashed),
		Role:               permission.RoleAdmin,
		Permissions:        permission.All,
		Active:             true,
		FounderAdmin:       true,
		MustChangePassword: false,
	}

	err = s.runTx(ctx, func(stores TxStores) error {
		count, err := stores.SubUsers.CountForVenue(ctx, venueID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrSubUsersAlreadyExist
		}

		if err := stores.SubUsers.Create(ctx, subUser); err != nil {
			return err
		}
		if err := stores.Venues.SetRequiresSubUserSetup(ctx, venueID, false); err != nil {
			return err
		}
		return stores.Audit.Record(ctx, venueID, subUser.ID, model.ActorSubUser, auditFirstAdminCreated, map[string]interface{}{
			"username": subUser.Username,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "First admin provisioned").
		Uint("venue_id", venueID).
		Uint("sub_user_id", subUser.ID).
		Log()

	resp := buildSubUserResponse(subUser)
	return &resp, nil
}

// CreateSubUser adds an operator account to the venue. When the request
// carries no explicit bitmask the role's defaults apply; an explicit
// bitmask is authoritative regardless of role.
func (s *SubUserService) CreateSubUser(ctx context.Context, venueID, actorID uint, req *dto.CreateSubUserRequest) (*dto.SubUserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "subuser", "CreateSubUser")

	if !req.Role.Valid() {
		return nil, apperrors.ErrInvalidInput
	}

	perms := permission.DefaultsFor(req.Role)
	if req.Permissions != nil {
		perms = *req.Permissions
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	subUser := &model.VenueSubUser{
		VenueID:            venueID,
		Username:           req.Username,
		Password:           string(hashed),
		Role:               req.Role,
		Permissions:        perms,
		Active:             true,
		MustChangePassword: true,
	}

	err = s.runTx(ctx, func(stores TxStores) error {
		if existing, err := stores.SubUsers.FindByUsername(ctx, venueID, req.Username); err == nil && existing != nil {
			return apperrors.ErrUsernameExists
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := stores.SubUsers.Create(ctx, subUser); err != nil {
			return err
		}
		return stores.Audit.Record(ctx, venueID, actorID, model.ActorSubUser, auditSubUserCreated, map[string]interface{}{
			"username":    subUser.Username,
			"role":        string(subUser.Role),
			"permissions": uint32(subUser.Permissions),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "Sub-user created").
		Uint("venue_id", venueID).
		Uint("sub_user_id", subUser.ID).
		String("role", string(subUser.Role)).
		Log()

	resp := buildSubUserResponse(subUser)
	return &resp, nil
}

// UpdatePermissions edits a sub-user's role and/or bitmask. Founder admins
// are immutable through this path. Edits take effect at the target's next
// login; live sessions keep their snapshot.
func (s *SubUserService) UpdatePermissions(ctx context.Context, venueID, actorID, subUserID uint, req *dto.UpdateSubUserPermissionsRequest) error {
	ctx = ctxutil.WithOperation(ctx, "subuser", "UpdatePermissions")

	subUser, err := s.getScoped(ctx, venueID, subUserID)
	if err != nil {
		return err
	}
	if subUser.FounderAdmin {
		logger.WarnWithContext(ctx, "Permission edit blocked on founder admin").
			Uint("sub_user_id", subUserID).
			Log()
		return apperrors.ErrFounderAdmin
	}

	updates := map[string]interface{}{}
	details := map[string]interface{}{}
	if req.Role != nil {
		if !req.Role.Valid() {
			return apperrors.ErrInvalidInput
		}
		updates["role"] = string(*req.Role)
		details["role"] = string(*req.Role)
		// A role change without an explicit bitmask resets to the new
		// role's defaults.
		if req.Permissions == nil {
			updates["permissions"] = uint32(permission.DefaultsFor(*req.Role))
			details["permissions"] = uint32(permission.DefaultsFor(*req.Role))
		}
	}
	if req.Permissions != nil {
		updates["permissions"] = uint32(*req.Permissions)
		details["permissions"] = uint32(*req.Permissions)
	}
	if len(updates) == 0 {
		return apperrors.ErrInvalidInput
	}

	err = s.runTx(ctx, func(stores TxStores) error {
		if err := stores.SubUsers.Updates(ctx, subUserID, updates); err != nil {
			return err
		}
		return stores.Audit.Record(ctx, venueID, actorID, model.ActorSubUser, auditPermissionsUpdated, details)
	})
	if err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Sub-user permissions updated").
		Uint("sub_user_id", subUserID).
		Uint("venue_id", venueID).
		Log()

	return nil
}

// ResetPassword lets an administrator set a new password for a sub-user.
// The target must change it at next login.
func (s *SubUserService) ResetPassword(ctx context.Context, venueID, actorID, subUserID uint, req *dto.ResetSubUserPasswordRequest) error {
	ctx = ctxutil.WithOperation(ctx, "subuser", "ResetSubUserPassword")

	if _, err := s.getScoped(ctx, venueID, subUserID); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	err = s.runTx(ctx, func(stores TxStores) error {
		if err := stores.SubUsers.Updates(ctx, subUserID, map[string]interface{}{
			"password":             string(hashed),
			"must_change_password": true,
		}); err != nil {
			return err
		}
		if _, err := stores.Sessions.DeactivateAllForSubUser(ctx, subUserID); err != nil {
			return err
		}
		return stores.Audit.Record(ctx, venueID, actorID, model.ActorSubUser, auditPasswordReset, nil)
	})
	if err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Sub-user password reset").
		Uint("sub_user_id", subUserID).
		Log()

	return nil
}

// ChangePassword lets a sub-user replace their own password. Clears the
// forced-change flag.
func (s *SubUserService) ChangePassword(ctx context.Context, subUserID uint, req *dto.SubUserChangePasswordRequest) error {
	ctx = ctxutil.WithOperation(ctx, "subuser", "ChangeSubUserPassword")

	subUser, err := s.subUserRepo.GetByID(ctx, subUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrSubUserNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(subUser.Password), []byte(req.CurrentPassword)); err != nil {
		return apperrors.ErrIncorrectPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.subUserRepo.Updates(ctx, subUserID, map[string]interface{}{
		"password":             string(hashed),
		"must_change_password": false,
	}); err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Sub-user changed password").
		Uint("sub_user_id", subUserID).
		Log()

	return nil
}

// Deactivate disables a sub-user and terminates its sessions. Founder
// admins cannot be deactivated.
func (s *SubUserService) Deactivate(ctx context.Context, venueID, actorID, subUserID uint) error {
	ctx = ctxutil.WithOperation(ctx, "subuser", "DeactivateSubUser")

	subUser, err := s.getScoped(ctx, venueID, subUserID)
	if err != nil {
		return err
	}
	if subUser.FounderAdmin {
		return apperrors.ErrFounderAdmin
	}

	err = s.runTx(ctx, func(stores TxStores) error {
		if err := stores.SubUsers.Updates(ctx, subUserID, map[string]interface{}{"active": false}); err != nil {
			return err
		}
		if _, err := stores.Sessions.DeactivateAllForSubUser(ctx, subUserID); err != nil {
			return err
		}
		return stores.Audit.Record(ctx, venueID, actorID, model.ActorSubUser, auditSubUserDeactivated, map[string]interface{}{
			"username": subUser.Username,
		})
	})
	if err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Sub-user deactivated").
		Uint("sub_user_id", subUserID).
		Log()

	return nil
}

// Delete removes a sub-user permanently. Deletion, session termination and
// the audit write land in one transaction: a partial failure rolls back
// everything. Founder admins cannot be deleted.
func (s *SubUserService) Delete(ctx context.Context, venueID, actorID, subUserID uint) error {
	ctx = ctxutil.WithOperation(ctx, "subuser", "DeleteSubUser")

	subUser, err := s.getScoped(ctx, venueID, subUserID)
	if err != nil {
		return err
	}
	if subUser.FounderAdmin {
		logger.WarnWithContext(ctx, "Delete blocked on founder admin").
			Uint("sub_user_id", subUserID).
			Log()
		return apperrors.ErrFounderAdmin
	}

	err = s.runTx(ctx, func(stores TxStores) error {
		if err := stores.SubUsers.Delete(ctx, subUserID); err != nil {
			return err
		}
		if _, err := stores.Sessions.DeactivateAllForSubUser(ctx, subUserID); err != nil {
			return err
		}
		return stores.Audit.Record(ctx, venueID, actorID, model.ActorSubUser, auditSubUserDeleted, map[string]interface{}{
			"username": subUser.Username,
		})
	})
	if err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Sub-user deleted").
		Uint("sub_user_id", subUserID).
		Uint("venue_id", venueID).
		Log()

	return nil
}

// List returns the venue's sub-users in creation order.
func (s *SubUserService) List(ctx context.Context, venueID uint) ([]dto.SubUserResponse, error) {
	subUsers, err := s.subUserRepo.ListForVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SubUserResponse, 0, len(subUsers))
	for i := range subUsers {
		out = append(out, buildSubUserResponse(&subUsers[i]))
	}
	return out, nil
}

// getScoped loads a sub-user and verifies venue ownership. A scope
// mismatch reports not-found so one venue cannot probe another's accounts.
func (s *SubUserService) getScoped(ctx context.Context, venueID, subUserID uint) (*model.VenueSubUser, error) {
	subUser, err := s.subUserRepo.GetByID(ctx, subUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSubUserNotFound
		}
		return nil, err
	}
	if subUser.VenueID != venueID {
		return nil, apperrors.ErrSubUserNotFound
	}
	return subUser, nil
}

func buildSubUserResponse(subUser *model.VenueSubUser) dto.SubUserResponse {
	return dto.SubUserResponse{
		ID:                 subUser.ID,
		VenueID:            subUser.VenueID,
		Username:           subUser.Username,
		Role:               subUser.Role,
		Permissions:        subUser.Permissions,
		Active:             subUser.Active,
		FounderAdmin:       subUser.FounderAdmin,
		MustChangePassword: subUser.MustChangePassword,
		LastLogin:          subUser.LastLogin,
		CreatedAt:          subUser.CreatedAt,
	}
}
