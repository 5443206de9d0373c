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
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

// DeviceInfo captures request metadata recorded on the session row.
type DeviceInfo struct {
	Name      string
	Type      string
	UserAgent string
	IPAddress string
}

// TokenService issues, refreshes, validates and revokes primary user tokens.
// Access tokens are stateless JWTs; refresh tokens are opaque and bound to a
// session row, so revocation is immediate for refresh and takes effect for
// access tokens through the jti blacklist.
type TokenService struct {
	userRepo    UserStore
	sessionRepo SessionStore
	venueRepo   VenueStore
	blacklist   TokenBlacklist
	jwt         *JWTService
	refreshTTL  time.Duration
}

func NewTokenService(
	userRepo UserStore,
	sessionRepo SessionStore,
	venueRepo VenueStore,
	blacklist TokenBlacklist,
	jwt *JWTService,
	refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		venueRepo:   venueRepo,
		blacklist:   blacklist,
		jwt:         jwt,
		refreshTTL:  refreshTTL,
	}
}

// Login authenticates by email and password and issues a fresh token pair.
// Credential failures and unknown emails collapse to a single error so the
// response does not leak which accounts exist.
func (s *TokenService) Login(ctx context.Context, req *dto.LoginRequest, device DeviceInfo) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "token", "Login")

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithContext(ctx, "Login attempt for unknown email").Log()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.WarnWithContext(ctx, "Login attempt with wrong password").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.Active {
		logger.WarnWithContext(ctx, "Login attempt on deactivated account").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrAccountInactive
	}

	if !user.EmailVerified && !user.PhoneVerified {
		logger.WarnWithContext(ctx, "Login attempt on unverified account").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrAccountUnverified
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.WarnWithContext(ctx, "Failed to stamp last login").
			Uint("user_id", user.ID).
			Err(err).
			Log()
	}

	pair, err := s.IssueTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "User logged in").
		Uint("user_id", user.ID).
		String("device_type", device.Type).
		Log()

	return pair, nil
}

// IssueTokens mints an access/refresh pair for the user and records the
// refresh token in a new session row. Each call creates a new session, so
// multiple devices hold independent sessions.
func (s *TokenService) IssueTokens(ctx context.Context, user *model.User, device DeviceInfo) (*dto.TokenPairResponse, error) {
	claims, err := s.buildUserClaims(ctx, user)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := s.jwt.SignClaims(claims)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken()
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	session := &model.Session{
		UserID:              user.ID,
		RefreshToken:        refreshToken,
		RefreshTokenExpires: time.Now().Add(s.refreshTTL),
		Active:              true,
		DeviceName:          device.Name,
		DeviceType:          device.Type,
		UserAgent:           device.UserAgent,
		IPAddress:           device.IPAddress,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &dto.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwt.AccessTokenTTL().Seconds()),
		UserType:     TokenTypeUser,
		User:         buildUserResponse(user),
	}, nil
}

// RefreshTokens exchanges a usable refresh token for a fresh pair. The old
// token is consumed atomically: when two requests race on the same token,
// exactly one wins and the other fails with ErrInvalidRefreshToken. The
// session row is reused, new refresh token in place of the old.
func (s *TokenService) RefreshTokens(ctx context.Context, req *dto.RefreshTokenRequest, device DeviceInfo) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "token", "RefreshTokens")

	session, err := s.sessionRepo.FindUsable(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithContext(ctx, "Refresh with unknown or inactive token").Log()
			return nil, apperrors.ErrInvalidRefreshToken
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidRefreshToken
		}
		return nil, err
	}

	// Account state is re-checked on every rotation so deactivation or a
	// lost phone verification cuts off refresh even while the session row
	// is still active. Rotation demands a verified phone, which is stricter
	// than the either-channel gate at login.
	if !user.Active {
		logger.WarnWithContext(ctx, "Refresh attempt on deactivated account").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrAccountInactive
	}
	if !user.PhoneVerified {
		logger.WarnWithContext(ctx, "Refresh attempt without verified phone").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrAccountUnverified
	}

	newRefreshToken, err := s.jwt.GenerateRefreshToken()
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	deviceName := device.Name
	deviceType := device.Type
	if deviceName == "" {
		deviceName = session.DeviceName
	}
	if deviceType == "" {
		deviceType = session.DeviceType
	}

	rotated, err := s.sessionRepo.Rotate(ctx, req.RefreshToken, newRefreshToken,
		time.Now().Add(s.refreshTTL), deviceName, deviceType, device.UserAgent, device.IPAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race: another request consumed the token between
			// FindUsable and the conditional update.
			logger.WarnWithContext(ctx, "Refresh token already consumed").
				Uint("user_id", user.ID).
				Log()
			return nil, apperrors.ErrInvalidRefreshToken
		}
		return nil, err
	}

	claims, err := s.buildUserClaims(ctx, user)
	if err != nil {
		return nil, err
	}
	accessToken, _, err := s.jwt.SignClaims(claims)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Tokens refreshed").
		Uint("user_id", user.ID).
		Uint("session_id", rotated.ID).
		Log()

	return &dto.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: rotated.RefreshToken,
		ExpiresIn:    int(s.jwt.AccessTokenTTL().Seconds()),
		UserType:     TokenTypeUser,
		User:         buildUserResponse(user),
	}, nil
}

// Logout deactivates the session behind the refresh token and, when the
// caller's access token claims are known, blacklists its jti so the access
// token dies with the session instead of riding out its remaining lifetime.
func (s *TokenService) Logout(ctx context.Context, refreshToken string, accessClaims *Claims) error {
	ctx = ctxutil.WithOperation(ctx, "token", "Logout")

	rows, err := s.sessionRepo.Deactivate(ctx, refreshToken)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Already logged out or never existed. Treated as success so
		// logout stays idempotent.
		logger.InfoWithContext(ctx, "Logout for unknown refresh token").Log()
	}

	if accessClaims != nil && accessClaims.ExpiresAt != nil {
		if err := s.blacklist.Blacklist(ctx, accessClaims.ID, accessClaims.ExpiresAt.Time); err != nil {
			logger.ErrorWithContext(ctx, "Failed to blacklist access token on logout").
				String("jti", accessClaims.ID).
				Err(err).
				Log()
			return apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
		}
	}

	logger.InfoWithContext(ctx, "User logged out").Log()
	return nil
}

// RevokeAllUserTokens deactivates every session the user holds and
// blacklists the caller's current access token. Returns the number of
// sessions revoked.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID uint, accessClaims *Claims) (int64, error) {
	ctx = ctxutil.WithOperation(ctx, "token", "RevokeAllUserTokens")

	rows, err := s.sessionRepo.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	if accessClaims != nil && accessClaims.ExpiresAt != nil {
		if err := s.blacklist.Blacklist(ctx, accessClaims.ID, accessClaims.ExpiresAt.Time); err != nil {
			logger.ErrorWithContext(ctx, "Failed to blacklist access token on revoke-all").
				String("jti", accessClaims.ID).
				Err(err).
				Log()
			return rows, apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
		}
	}

	logger.InfoWithContext(ctx, "All sessions revoked").
		Uint("user_id", userID).
		Int64("sessions", rows).
		Log()

	return rows, nil
}

// RevokeSession deactivates one session by id, scoped to the owning user so
// a caller cannot revoke another user's session.
func (s *TokenService) RevokeSession(ctx context.Context, userID, sessionID uint) error {
	ctx = ctxutil.WithOperation(ctx, "token", "RevokeSession")

	rows, err := s.sessionRepo.DeactivateByID(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.ErrSessionNotFound
	}

	logger.InfoWithContext(ctx, "Session revoked").
		Uint("user_id", userID).
		Uint("session_id", sessionID).
		Log()

	return nil
}

// ListSessions returns the user's sessions, newest first, for the device
// management view.
func (s *TokenService) ListSessions(ctx context.Context, userID uint) ([]dto.SessionResponse, error) {
	sessions, err := s.sessionRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		out = append(out, dto.SessionResponse{
			ID:         sess.ID,
			DeviceName: sess.DeviceName,
			DeviceType: sess.DeviceType,
			UserAgent:  sess.UserAgent,
			IPAddress:  sess.IPAddress,
			Active:     sess.Active,
			ExpiresAt:  sess.RefreshTokenExpires,
			CreatedAt:  sess.CreatedAt,
		})
	}
	return out, nil
}

// Validation failure codes reported to calling services.
const (
	FailureCodeInvalid  = "invalid"
	FailureCodeExpired  = "expired"
	FailureCodeRevoked  = "revoked"
	FailureCodeInactive = "account_inactive"
)

// ValidateToken runs the full pipeline: signature, expiry, blacklist, and
// optionally a database check of the account behind the token. The checks
// run strictly in that order and the first failure is the one reported.
// Validation failures come back as a non-valid response, not an error;
// errors are reserved for infrastructure faults.
func (s *TokenService) ValidateToken(ctx context.Context, req *dto.ValidateTokenRequest) (*dto.ValidateTokenResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "token", "ValidateToken")

	claims, err := s.jwt.ParseToken(req.Token)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenExpired) {
			return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeExpired}, nil
		}
		return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeInvalid}, nil
	}

	blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		// Fail closed: an unreachable blacklist must not let revoked
		// tokens through.
		logger.ErrorWithContext(ctx, "Blacklist check failed").
			String("jti", claims.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrServiceUnavailable, err)
	}
	if blacklisted {
		return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeRevoked}, nil
	}

	resp := &dto.ValidateTokenResponse{
		Valid:   true,
		Email:   claims.Email,
		Roles:   claims.Roles,
		VenueID: claims.VenueID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	if userID, err := claims.UserID(); err == nil {
		resp.UserID = userID
	}

	if !req.IncludeUserDetails {
		return resp, nil
	}

	// Enriched validation consults the database: the account must still
	// exist, be active, and hold at least one live session.
	userID, err := claims.UserID()
	if err != nil {
		return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeInvalid}, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeInvalid}, nil
		}
		return nil, err
	}
	if !user.Active {
		return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeInactive}, nil
	}

	hasSession, err := s.sessionRepo.HasActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !hasSession {
		return &dto.ValidateTokenResponse{Valid: false, FailureCode: FailureCodeRevoked}, nil
	}

	userResp := buildUserResponse(user)
	resp.User = &userResp
	return resp, nil
}

// buildUserClaims assembles the access token claim set, folding in venue
// details when the account is venue-linked.
func (s *TokenService) buildUserClaims(ctx context.Context, user *model.User) (*Claims, error) {
	claims := &Claims{
		TokenType: TokenTypeUser,
		Email:     user.Email,
		Roles:     []string{"user"},
	}
	claims.Subject = uintToString(user.ID)

	if user.VenueID != nil {
		venue, err := s.venueRepo.GetByID(ctx, *user.VenueID)
		if err != nil {
			logger.ErrorWithContext(ctx, "Failed to load venue for claims").
				Uint("venue_id", *user.VenueID).
				Err(err).
				Log()
			return nil, err
		}
		claims.Roles = append(claims.Roles, "venue-owner")
		claims.VenueID = user.VenueID
		claims.VenueName = venue.Name
		claims.VenueType = venue.Type
		profileComplete := venue.ProfileComplete
		claims.ProfileComplete = &profileComplete
	}

	return claims, nil
}

func buildUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            user.ID,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Phone:         user.Phone,
		EmailVerified: user.EmailVerified,
		PhoneVerified: user.PhoneVerified,
		VenueID:       user.VenueID,
		LastLogin:     user.LastLogin,
		CreatedAt:     user.CreatedAt,
	}
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
