package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/venuebook/backend/internal/constants"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/permission"
	"github.com/venuebook/backend/internal/service"
	ctxutil "github.com/venuebook/backend/pkg/context"
	"github.com/venuebook/backend/pkg/logger"
)

// Gin context keys for authenticated identity, consumed by handlers.
const (
	GinKeyClaims    = "auth_claims"
	GinKeyUserID    = "auth_user_id"
	GinKeySubUserID = "auth_sub_user_id"
	GinKeyVenueID   = "auth_venue_id"
)

// AuthMiddleware guards routes with access tokens. Every guard runs the
// same pipeline: bearer extraction, signature and expiry check, blacklist
// lookup, then a token-type gate. Failures all answer 401 with the same
// body; the reason lands in the logs only.
type AuthMiddleware struct {
	jwtService *service.JWTService
	blacklist  service.TokenBlacklist
}

func NewAuthMiddleware(jwtService *service.JWTService, blacklist service.TokenBlacklist) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		blacklist:  blacklist,
	}
}

// RequireUser admits primary user tokens only.
func (m *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c, service.TokenTypeUser)
		if !ok {
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			m.reject(c, "Token subject is not a user id", err)
			return
		}

		ctx := ctxutil.WithUserID(c.Request.Context(), userID)
		if claims.VenueID != nil {
			ctx = ctxutil.WithVenueID(ctx, *claims.VenueID)
			c.Set(GinKeyVenueID, *claims.VenueID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Set(GinKeyClaims, claims)
		c.Set(GinKeyUserID, userID)

		c.Next()
	}
}

// RequireSubUser admits venue operational tokens only. The permission
// snapshot travels in the claims; no database round-trip happens here.
func (m *AuthMiddleware) RequireSubUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c, service.TokenTypeVenueOperational)
		if !ok {
			return
		}

		if claims.SubUserID == nil || claims.VenueID == nil || claims.Permissions == nil {
			m.reject(c, "Operational token missing scope claims", nil)
			return
		}

		ctx := ctxutil.WithSubUserID(c.Request.Context(), *claims.SubUserID)
		ctx = ctxutil.WithVenueID(ctx, *claims.VenueID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(GinKeyClaims, claims)
		c.Set(GinKeySubUserID, *claims.SubUserID)
		c.Set(GinKeyVenueID, *claims.VenueID)

		c.Next()
	}
}

// RequirePermission gates a route on permission bits from the operational
// token's snapshot. Must be chained after RequireSubUser. The required and
// held bitmasks go to the logs, never to the response body.
func (m *AuthMiddleware) RequirePermission(required permission.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromGin(c)
		if claims == nil || claims.Permissions == nil {
			c.JSON(http.StatusForbidden, gin.H{"message": constants.MsgForbidden})
			c.Abort()
			return
		}

		if !permission.Has(*claims.Permissions, required) {
			logger.WarnWithContext(c.Request.Context(), "Permission denied").
				Any("required", uint32(required)).
				Any("held", uint32(*claims.Permissions)).
				String("path", c.Request.URL.Path).
				Log()
			c.JSON(http.StatusForbidden, gin.H{"message": constants.MsgForbidden})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context, wantType string) (*service.Claims, bool) {
	authHeader := c.GetHeader(constants.HeaderAuthorization)
	if authHeader == "" {
		m.reject(c, "Missing Authorization header", nil)
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		m.reject(c, "Malformed Authorization header", nil)
		return nil, false
	}

	claims, err := m.jwtService.ParseToken(parts[1])
	if err != nil {
		m.reject(c, "Token rejected", err)
		return nil, false
	}

	blacklisted, err := m.blacklist.IsTokenBlacklisted(c.Request.Context(), claims.ID)
	if err != nil {
		logger.ErrorWithContext(c.Request.Context(), "Blacklist lookup failed").
			String("jti", claims.ID).
			Err(err).
			Log()
		c.JSON(apperrors.ToHTTPStatus(apperrors.ErrServiceUnavailable), gin.H{
			"message": constants.MsgServiceUnavailable,
		})
		c.Abort()
		return nil, false
	}
	if blacklisted {
		m.reject(c, "Token is blacklisted", nil)
		return nil, false
	}

	if claims.TokenType != wantType {
		m.reject(c, "Wrong token type for route", nil)
		return nil, false
	}

	return claims, true
}

func (m *AuthMiddleware) reject(c *gin.Context, reason string, err error) {
	logger.WarnWithContext(c.Request.Context(), reason).
		String("path", c.Request.URL.Path).
		String("method", c.Request.Method).
		Err(err).
		Log()
	c.JSON(http.StatusUnauthorized, gin.H{"message": constants.MsgUnauthorized})
	c.Abort()
}

// ClaimsFromGin pulls the authenticated claims a guard stored earlier.
func ClaimsFromGin(c *gin.Context) *service.Claims {
	if v, exists := c.Get(GinKeyClaims); exists {
		if claims, ok := v.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}
