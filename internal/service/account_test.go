package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/dto"
	apperrors "github.com/venuebook/backend/internal/errors"
	"github.com/venuebook/backend/internal/model"
)

type accountFixture struct {
	svc       *AccountService
	users     *fakeUserStore
	sessions  *fakeSessionStore
	blacklist *fakeBlacklist
}

func newAccountFixture(t *testing.T, users ...*model.User) *accountFixture {
	t.Helper()
	f := &accountFixture{
		users:     newFakeUserStore(users...),
		sessions:  newFakeSessionStore(),
		blacklist: newFakeBlacklist(),
	}
	f.svc = NewAccountService(f.users, f.sessions, f.blacklist)
	return f
}

func (f *accountFixture) addSession(userID uint, token string) *model.Session {
	sess := &model.Session{
		Model:               gorm.Model{ID: uint(len(f.sessions.sessions) + 1)},
		UserID:              userID,
		RefreshToken:        token,
		RefreshTokenExpires: time.Now().Add(time.Hour),
		Active:              true,
	}
	f.sessions.sessions[token] = sess
	return sess
}

func TestAccountService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success keeps sessions by default", func(t *testing.T) {
		f := newAccountFixture(t, verifiedUser(t, 1, "ada@example.com", "old-pass1"))
		f.addSession(1, "rt-1")

		err := f.svc.ChangePassword(ctx, 1, &dto.ChangePasswordRequest{
			CurrentPassword: "old-pass1",
			NewPassword:     "new-pass1",
			ConfirmPassword: "new-pass1",
		}, nil)
		if err != nil {
			t.Fatalf("ChangePassword() error = %v", err)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(f.users.users[1].Password), []byte("new-pass1")); err != nil {
			t.Error("password not replaced")
		}
		if !f.sessions.sessions["rt-1"].Active {
			t.Error("sessions must survive unless logout_all_devices is set")
		}
	})

	t.Run("logout all devices revokes and blacklists", func(t *testing.T) {
		f := newAccountFixture(t, verifiedUser(t, 1, "ada@example.com", "old-pass1"))
		f.addSession(1, "rt-1")
		f.addSession(1, "rt-2")

		claims := &Claims{TokenType: TokenTypeUser}
		claims.ID = "jti-1"
		claims.ExpiresAt = numericDate(time.Now().Add(time.Hour))

		err := f.svc.ChangePassword(ctx, 1, &dto.ChangePasswordRequest{
			CurrentPassword:  "old-pass1",
			NewPassword:      "new-pass1",
			ConfirmPassword:  "new-pass1",
			LogoutAllDevices: true,
		}, claims)
		if err != nil {
			t.Fatalf("ChangePassword() error = %v", err)
		}

		for token, sess := range f.sessions.sessions {
			if sess.Active {
				t.Errorf("session %s still active", token)
			}
		}
		if _, ok := f.blacklist.entries["jti-1"]; !ok {
			t.Error("expected caller's jti blacklisted")
		}
	})

	t.Run("rejections", func(t *testing.T) {
		f := newAccountFixture(t, verifiedUser(t, 1, "ada@example.com", "old-pass1"))

		tests := []struct {
			name    string
			req     *dto.ChangePasswordRequest
			wantErr error
		}{
			{"confirmation mismatch", &dto.ChangePasswordRequest{
				CurrentPassword: "old-pass1", NewPassword: "new-pass1", ConfirmPassword: "other",
			}, apperrors.ErrPasswordMismatch},
			{"wrong current password", &dto.ChangePasswordRequest{
				CurrentPassword: "wrong", NewPassword: "new-pass1", ConfirmPassword: "new-pass1",
			}, apperrors.ErrIncorrectPassword},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := f.svc.ChangePassword(ctx, 1, tt.req, nil); !errors.Is(err, tt.wantErr) {
					t.Errorf("ChangePassword() error = %v, want %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newAccountFixture(t)

		err := f.svc.ChangePassword(ctx, 99, &dto.ChangePasswordRequest{
			CurrentPassword: "old-pass1",
			NewPassword:     "new-pass1",
			ConfirmPassword: "new-pass1",
		}, nil)
		if !errors.Is(err, apperrors.ErrUserNotFound) {
			t.Errorf("ChangePassword() error = %v, want ErrUserNotFound", err)
		}
	})
}

func TestAccountService_DeactivateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("success goes dark immediately", func(t *testing.T) {
		f := newAccountFixture(t, verifiedUser(t, 1, "ada@example.com", "old-pass1"))
		f.addSession(1, "rt-1")

		claims := &Claims{TokenType: TokenTypeUser}
		claims.ID = "jti-1"
		claims.ExpiresAt = numericDate(time.Now().Add(time.Hour))

		err := f.svc.DeactivateAccount(ctx, 1, &dto.DeactivateAccountRequest{Password: "old-pass1"}, claims)
		if err != nil {
			t.Fatalf("DeactivateAccount() error = %v", err)
		}

		if f.users.users[1].Active {
			t.Error("expected account inactive")
		}
		if f.sessions.sessions["rt-1"].Active {
			t.Error("expected sessions revoked")
		}
		if _, ok := f.blacklist.entries["jti-1"]; !ok {
			t.Error("expected caller's jti blacklisted")
		}
	})

	t.Run("wrong password leaves the account alone", func(t *testing.T) {
		f := newAccountFixture(t, verifiedUser(t, 1, "ada@example.com", "old-pass1"))

		err := f.svc.DeactivateAccount(ctx, 1, &dto.DeactivateAccountRequest{Password: "wrong"}, nil)
		if !errors.Is(err, apperrors.ErrIncorrectPassword) {
			t.Fatalf("DeactivateAccount() error = %v, want ErrIncorrectPassword", err)
		}
		if !f.users.users[1].Active {
			t.Error("account must stay active")
		}
	})
}
