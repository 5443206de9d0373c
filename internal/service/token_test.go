package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/model"
)

type tokenFixture struct {
	svc       *TokenService
	users     *fakeUserStore
	sessions  *fakeSessionStore
	venues    *fakeVenueStore
	blacklist *fakeBlacklist
	jwt       *JWTService
}

func newTokenFixture(t *testing.T, users ...*model.User) *tokenFixture {
	t.Helper()
	f := &tokenFixture{
		users:     newFakeUserStore(users...),
		sessions:  newFakeSessionStore(),
		venues:    newFakeVenueStore(),
		blacklist: newFakeBlacklist(),
		jwt:       NewJWTService("test-secret", time.Hour),
	}
	f.svc = NewTokenService(f.users, f.sessions, f.venues, f.blacklist, f.jwt, 30*24*time.Hour)
	return f
}

func verifiedUser(t *testing.T, id uint, email, password string) *model.User {
	t.Helper()
	return &model.User{
		Model:         gorm.Model{ID: id},
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         email,
		Password:      hashPassword(t, password),
		EmailVerified: true,
		PhoneVerified: true,
		Active:        true,
	}
}

func TestTokenService_Login(t *testing.T) {
	ctx := context.Background()
	device := DeviceInfo{Name: "Pixel", Type: "mobile", UserAgent: "test-agent", IPAddress: "10.0.0.1"}

	t.Run("success", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))

		pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, device)
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if pair.AccessToken == "" || pair.RefreshToken == "" {
			t.Fatal("expected both tokens in the pair")
		}
		if pair.UserType != TokenTypeUser {
			t.Errorf("UserType = %q, want %q", pair.UserType, TokenTypeUser)
		}
		if pair.ExpiresIn != 3600 {
			t.Errorf("ExpiresIn = %d, want 3600", pair.ExpiresIn)
		}
		if pair.User.Email != "ada@example.com" {
			t.Errorf("User.Email = %q", pair.User.Email)
		}

		sess, ok := f.sessions.sessions[pair.RefreshToken]
		if !ok {
			t.Fatal("expected a session row for the refresh token")
		}
		if sess.UserID != 1 || !sess.Active || sess.DeviceName != "Pixel" {
			t.Errorf("unexpected session: %+v", sess)
		}

		claims, err := f.jwt.ParseToken(pair.AccessToken)
		if err != nil {
			t.Fatalf("ParseToken() error = %v", err)
		}
		if claims.TokenType != TokenTypeUser {
			t.Errorf("claims.TokenType = %q", claims.TokenType)
		}
		if len(claims.Roles) != 1 || claims.Roles[0] != "user" {
			t.Errorf("claims.Roles = %v, want [user]", claims.Roles)
		}
	})

	t.Run("venue owner claims", func(t *testing.T) {
		user := verifiedUser(t, 1, "owner@example.com", "secret-pw1")
		venueID := uint(9)
		user.VenueID = &venueID

		f := newTokenFixture(t, user)
		f.venues.venues[venueID] = &model.Venue{
			Model:           gorm.Model{ID: venueID},
			Name:            "Grand Hall",
			Type:            "event_space",
			ProfileComplete: true,
		}

		pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "owner@example.com", Password: "secret-pw1"}, device)
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}

		claims, err := f.jwt.ParseToken(pair.AccessToken)
		if err != nil {
			t.Fatalf("ParseToken() error = %v", err)
		}
		if len(claims.Roles) != 2 || claims.Roles[1] != "venue-owner" {
			t.Errorf("claims.Roles = %v, want [user venue-owner]", claims.Roles)
		}
		if claims.VenueID == nil || *claims.VenueID != venueID {
			t.Errorf("claims.VenueID = %v, want %d", claims.VenueID, venueID)
		}
		if claims.VenueName != "Grand Hall" {
			t.Errorf("claims.VenueName = %q", claims.VenueName)
		}
		if claims.ProfileComplete == nil || !*claims.ProfileComplete {
			t.Error("expected profile_complete true in claims")
		}
	})

	t.Run("failures", func(t *testing.T) {
		inactive := verifiedUser(t, 2, "off@example.com", "secret-pw1")
		inactive.Active = false
		unverified := verifiedUser(t, 3, "new@example.com", "secret-pw1")
		unverified.EmailVerified = false
		unverified.PhoneVerified = false

		f := newTokenFixture(t,
			verifiedUser(t, 1, "ada@example.com", "secret-pw1"),
			inactive,
			unverified,
		)

		tests := []struct {
			name     string
			email    string
			password string
			wantErr  error
		}{
			{"unknown email", "nobody@example.com", "secret-pw1", apperrors.ErrInvalidCredentials},
			{"wrong password", "ada@example.com", "wrong", apperrors.ErrInvalidCredentials},
			{"deactivated account", "off@example.com", "secret-pw1", apperrors.ErrAccountInactive},
			{"unverified account", "new@example.com", "secret-pw1", apperrors.ErrAccountUnverified},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Login(ctx, &dto.LoginRequest{Email: tt.email, Password: tt.password}, device)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("last login stamp failure is not fatal", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		f.users.lastLoginErr = errUnavailable

		if _, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, device); err != nil {
			t.Errorf("Login() error = %v, want nil", err)
		}
	})

	t.Run("phone-only verification is enough", func(t *testing.T) {
		user := verifiedUser(t, 1, "ada@example.com", "secret-pw1")
		user.EmailVerified = false
		user.PhoneVerified = true
		f := newTokenFixture(t, user)

		if _, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, device); err != nil {
			t.Errorf("Login() error = %v, want nil", err)
		}
	})
}

func TestTokenService_RefreshTokens(t *testing.T) {
	ctx := context.Background()
	device := DeviceInfo{Name: "Pixel", Type: "mobile"}

	login := func(t *testing.T, f *tokenFixture) *dto.TokenPairResponse {
		t.Helper()
		pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, device)
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		return pair
	}

	t.Run("rotates in place", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair := login(t, f)

		refreshed, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: pair.RefreshToken}, DeviceInfo{})
		if err != nil {
			t.Fatalf("RefreshTokens() error = %v", err)
		}
		if refreshed.RefreshToken == pair.RefreshToken {
			t.Error("expected a new refresh token")
		}
		if len(f.sessions.sessions) != 1 {
			t.Errorf("expected the session row reused, have %d rows", len(f.sessions.sessions))
		}

		// Device metadata survives a refresh that does not restate it.
		sess := f.sessions.sessions[refreshed.RefreshToken]
		if sess.DeviceName != "Pixel" || sess.DeviceType != "mobile" {
			t.Errorf("device fields not preserved: %+v", sess)
		}
	})

	t.Run("consumed token loses", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair := login(t, f)

		if _, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: pair.RefreshToken}, device); err != nil {
			t.Fatalf("first refresh error = %v", err)
		}
		_, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: pair.RefreshToken}, device)
		if !errors.Is(err, apperrors.ErrInvalidRefreshToken) {
			t.Errorf("second refresh error = %v, want ErrInvalidRefreshToken", err)
		}
	})

	t.Run("concurrent refresh has one winner", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair := login(t, f)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: pair.RefreshToken}, device)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var wins, losses int
		for err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperrors.ErrInvalidRefreshToken):
				losses++
			default:
				t.Fatalf("unexpected refresh error: %v", err)
			}
		}
		if wins != 1 || losses != 1 {
			t.Errorf("got %d winners and %d losers, want exactly one of each", wins, losses)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))

		_, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: "never-issued"}, device)
		if !errors.Is(err, apperrors.ErrInvalidRefreshToken) {
			t.Errorf("RefreshTokens() error = %v, want ErrInvalidRefreshToken", err)
		}
	})

	t.Run("deactivated account cannot refresh", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair := login(t, f)

		f.users.users[1].Active = false

		_, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: pair.RefreshToken}, device)
		if !errors.Is(err, apperrors.ErrAccountInactive) {
			t.Errorf("RefreshTokens() error = %v, want ErrAccountInactive", err)
		}
	})

	t.Run("phone-unverified account cannot refresh", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair := login(t, f)

		// Email verification alone admits a login but never a rotation.
		f.users.users[1].EmailVerified = true
		f.users.users[1].PhoneVerified = false

		_, err := f.svc.RefreshTokens(ctx, &dto.RefreshTokenRequest{RefreshToken: pair.RefreshToken}, device)
		if !errors.Is(err, apperrors.ErrAccountUnverified) {
			t.Errorf("RefreshTokens() error = %v, want ErrAccountUnverified", err)
		}
	})
}

func TestTokenService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))

	pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, DeviceInfo{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := f.jwt.ParseToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if err := f.svc.Logout(ctx, pair.RefreshToken, claims); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if f.sessions.sessions[pair.RefreshToken].Active {
		t.Error("expected session deactivated")
	}
	if _, ok := f.blacklist.entries[claims.ID]; !ok {
		t.Error("expected access token jti blacklisted")
	}

	// Logging out again is a no-op, not an error.
	if err := f.svc.Logout(ctx, pair.RefreshToken, nil); err != nil {
		t.Errorf("repeat Logout() error = %v, want nil", err)
	}
}

func TestTokenService_RevokeAllUserTokens(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))

	var last *dto.TokenPairResponse
	for i := 0; i < 3; i++ {
		pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, DeviceInfo{})
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		last = pair
	}
	claims, _ := f.jwt.ParseToken(last.AccessToken)

	revoked, err := f.svc.RevokeAllUserTokens(ctx, 1, claims)
	if err != nil {
		t.Fatalf("RevokeAllUserTokens() error = %v", err)
	}
	if revoked != 3 {
		t.Errorf("revoked = %d, want 3", revoked)
	}
	for token, sess := range f.sessions.sessions {
		if sess.Active {
			t.Errorf("session %s still active", token)
		}
	}
}

func TestTokenService_RevokeSession(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))

	pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, DeviceInfo{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	sessionID := f.sessions.sessions[pair.RefreshToken].ID

	// Another user cannot revoke it.
	if err := f.svc.RevokeSession(ctx, 2, sessionID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("cross-user revoke error = %v, want ErrSessionNotFound", err)
	}

	if err := f.svc.RevokeSession(ctx, 1, sessionID); err != nil {
		t.Fatalf("RevokeSession() error = %v", err)
	}
	if err := f.svc.RevokeSession(ctx, 1, sessionID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("repeat revoke error = %v, want ErrSessionNotFound", err)
	}
}

func TestTokenService_ValidateToken(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, f *tokenFixture) (*dto.TokenPairResponse, *Claims) {
		t.Helper()
		pair, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ada@example.com", Password: "secret-pw1"}, DeviceInfo{})
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		claims, err := f.jwt.ParseToken(pair.AccessToken)
		if err != nil {
			t.Fatalf("ParseToken() error = %v", err)
		}
		return pair, claims
	}

	t.Run("valid token", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, _ := issue(t, f)

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if !resp.Valid {
			t.Fatalf("Valid = false, failure %q", resp.FailureCode)
		}
		if resp.UserID != 1 || resp.Email != "ada@example.com" {
			t.Errorf("unexpected identity: %+v", resp)
		}
		if resp.User != nil {
			t.Error("basic validation must not include user details")
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: "garbage"})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if resp.Valid || resp.FailureCode != FailureCodeInvalid {
			t.Errorf("got valid=%v code=%q, want invalid", resp.Valid, resp.FailureCode)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		expired := NewJWTService("test-secret", -time.Minute)
		claims := &Claims{TokenType: TokenTypeUser, Email: "ada@example.com"}
		claims.Subject = "1"
		token, _, err := expired.SignClaims(claims)
		if err != nil {
			t.Fatalf("SignClaims() error = %v", err)
		}

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: token})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if resp.Valid || resp.FailureCode != FailureCodeExpired {
			t.Errorf("got valid=%v code=%q, want expired", resp.Valid, resp.FailureCode)
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, claims := issue(t, f)
		f.blacklist.entries[claims.ID] = claims.ExpiresAt.Time

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if resp.Valid || resp.FailureCode != FailureCodeRevoked {
			t.Errorf("got valid=%v code=%q, want revoked", resp.Valid, resp.FailureCode)
		}
	})

	t.Run("blacklist outage fails closed", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, _ := issue(t, f)
		f.blacklist.failing = true

		_, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken})
		if !errors.Is(err, apperrors.ErrServiceUnavailable) {
			t.Errorf("ValidateToken() error = %v, want ErrServiceUnavailable", err)
		}
	})

	t.Run("enriched validation", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, _ := issue(t, f)

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken, IncludeUserDetails: true})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if !resp.Valid {
			t.Fatalf("Valid = false, failure %q", resp.FailureCode)
		}
		if resp.User == nil || resp.User.Email != "ada@example.com" {
			t.Errorf("expected user details, got %+v", resp.User)
		}
	})

	t.Run("enriched validation checks account state", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, _ := issue(t, f)
		f.users.users[1].Active = false

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken, IncludeUserDetails: true})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if resp.Valid || resp.FailureCode != FailureCodeInactive {
			t.Errorf("got valid=%v code=%q, want account_inactive", resp.Valid, resp.FailureCode)
		}
	})

	t.Run("enriched validation requires a live session", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, _ := issue(t, f)
		if _, err := f.sessions.DeactivateAllForUser(ctx, 1); err != nil {
			t.Fatal(err)
		}

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken, IncludeUserDetails: true})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if resp.Valid || resp.FailureCode != FailureCodeRevoked {
			t.Errorf("got valid=%v code=%q, want revoked", resp.Valid, resp.FailureCode)
		}
	})

	t.Run("enriched validation on a deleted account", func(t *testing.T) {
		f := newTokenFixture(t, verifiedUser(t, 1, "ada@example.com", "secret-pw1"))
		pair, _ := issue(t, f)
		delete(f.users.users, 1)

		resp, err := f.svc.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: pair.AccessToken, IncludeUserDetails: true})
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if resp.Valid || resp.FailureCode != FailureCodeInvalid {
			t.Errorf("got valid=%v code=%q, want invalid", resp.Valid, resp.FailureCode)
		}
	})
}
