package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/permission"
)

// Token types carried in the typ claim.
const (
	TokenTypeUser             = "user"
	TokenTypeVenueOperational = "venue-operational"
)

// Claims is the typed claim set for both user access tokens and venue
// operational tokens. Optional fields stay nil/empty for token types that
// do not carry them; consumers use the typed accessors instead of map
// lookups.
type Claims struct {
	jwt.RegisteredClaims
	TokenType       string                 `json:"typ"`
	Email           string                 `json:"email,omitempty"`
	Roles           []string               `json:"roles,omitempty"`
	VenueID         *uint                  `json:"venue_id,omitempty"`
	VenueName       string                 `json:"venue_name,omitempty"`
	VenueType       string                 `json:"venue_type,omitempty"`
	ProfileComplete *bool                  `json:"profile_complete,omitempty"`
	SubUserID       *uint                  `json:"sub_user_id,omitempty"`
	Permissions     *permission.Permission `json:"permissions,omitempty"`
}

// UserID parses the subject claim back into a numeric id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject claim: %w", err)
	}
	return uint(id), nil
}

type JWTService struct {
	secretKey      string
	accessTokenTTL time.Duration
}

func NewJWTService(secretKey string, accessTokenTTL time.Duration) *JWTService {
	return &JWTService{
		secretKey:      secretKey,
		accessTokenTTL: accessTokenTTL,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *JWTService) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

// SignClaims stamps registered claims (jti, iat, exp) onto the given claim
// set and signs it. The jti is unique per issuance for blacklist correlation.
func (s *JWTService) SignClaims(claims *Claims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTokenTTL)

	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ParseToken verifies signature and structure and returns the typed claims.
// Expired tokens are reported as ErrTokenExpired with claims still parsed,
// so callers can log the jti; any other defect maps to ErrInvalidToken.
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(s.secretKey), nil
	})

	if err != nil {
		// Signature and structural defects win over expiry: a forged token
		// is invalid, never merely expired.
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, apperrors.WrapError(apperrors.ErrInvalidToken, err)
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, apperrors.ErrTokenExpired
		}
		return nil, apperrors.WrapError(apperrors.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	return claims, nil
}

// GenerateRefreshToken creates an opaque refresh token: 32 random bytes,
// URL-safe base64. Collision-resistant and unpredictable on every call.
func (s *JWTService) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return base64.URLEncoding.EncodeToString(bytes), nil
}

// GenerateVerificationCode produces a fixed-length 6-digit numeric code
// from a cryptographically sound source.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
