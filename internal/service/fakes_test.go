package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/venuebook/backend/internal/model"
	"github.com/venuebook/backend/internal/permission"
)

var errUnavailable = errors.New("store unavailable")

func numericDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}

// permissionRole and permissionBits undo the column typing used by the
// Updates maps the services build.
func permissionRole(v interface{}) permission.Role {
	return permission.Role(v.(string))
}

func permissionBits(v interface{}) permission.Permission {
	return permission.Permission(v.(uint32))
}

// In-memory fakes for the store interfaces. Each keeps just enough state
// for the services under test and returns gorm.ErrRecordNotFound exactly
// like the real repositories do.

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return string(hashed)
}

type fakeUserStore struct {
	users map[uint]*model.User

	lastLoginErr error
}

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uint]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id uint, hashedPassword string) error {
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Password = hashedPassword
	return nil
}

func (s *fakeUserStore) UpdateLastLogin(_ context.Context, id uint) error {
	if s.lastLoginErr != nil {
		return s.lastLoginErr
	}
	if u, ok := s.users[id]; ok {
		u.LastLogin = time.Now()
	}
	return nil
}

func (s *fakeUserStore) SetActive(_ context.Context, id uint, active bool) error {
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Active = active
	return nil
}

func (s *fakeUserStore) SetVerificationCode(_ context.Context, id uint, channel, code string, expiresAt time.Time) error {
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if channel == "phone" {
		u.PhoneCode = code
		u.PhoneCodeExpiresAt = &expiresAt
	} else {
		u.EmailCode = code
		u.EmailCodeExpiresAt = &expiresAt
	}
	return nil
}

func (s *fakeUserStore) MarkVerified(_ context.Context, id uint, channel string) error {
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if channel == "phone" {
		u.PhoneVerified = true
		u.PhoneCode = ""
		u.PhoneCodeExpiresAt = nil
	} else {
		u.EmailVerified = true
		u.EmailCode = ""
		u.EmailCodeExpiresAt = nil
	}
	return nil
}

func (s *fakeUserStore) SetResetCode(_ context.Context, id uint, code string, expiresAt, requestedAt time.Time) error {
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.ResetCode = code
	u.ResetCodeExpiresAt = &expiresAt
	u.ResetCodeUsed = false
	u.LastResetRequestAt = &requestedAt
	return nil
}

func (s *fakeUserStore) ConsumeResetCode(_ context.Context, id uint) error {
	u, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.ResetCodeUsed = true
	return nil
}

// fakeSessionStore serializes access with a mutex so rotation keeps the
// single-winner behavior the conditional UPDATE gives the real store.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	nextID   uint

	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (s *fakeSessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	session.ID = s.nextID
	session.CreatedAt = time.Now()
	s.sessions[session.RefreshToken] = session
	return nil
}

func (s *fakeSessionStore) FindUsable(_ context.Context, refreshToken string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[refreshToken]
	if !ok || !sess.Usable(time.Now()) {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *fakeSessionStore) Rotate(_ context.Context, oldToken, newToken string, expiresAt time.Time, deviceName, deviceType, userAgent, ipAddress string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[oldToken]
	if !ok || !sess.Usable(time.Now()) {
		return nil, gorm.ErrRecordNotFound
	}
	delete(s.sessions, oldToken)
	sess.RefreshToken = newToken
	sess.RefreshTokenExpires = expiresAt
	sess.DeviceName = deviceName
	sess.DeviceType = deviceType
	sess.UserAgent = userAgent
	sess.IPAddress = ipAddress
	s.sessions[newToken] = sess
	copied := *sess
	return &copied, nil
}

func (s *fakeSessionStore) Deactivate(_ context.Context, refreshToken string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[refreshToken]
	if !ok || !sess.Active {
		return 0, nil
	}
	sess.Active = false
	return 1, nil
}

func (s *fakeSessionStore) DeactivateByID(_ context.Context, userID, sessionID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == sessionID && sess.UserID == userID && sess.Active {
			sess.Active = false
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeSessionStore) DeactivateAllForUser(_ context.Context, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Active {
			sess.Active = false
			n++
		}
	}
	return n, nil
}

func (s *fakeSessionStore) HasActiveSession(_ context.Context, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Usable(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSessionStore) ListForUser(_ context.Context, userID uint) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

type fakeVenueStore struct {
	venues map[uint]*model.Venue
}

func newFakeVenueStore(venues ...*model.Venue) *fakeVenueStore {
	s := &fakeVenueStore{venues: make(map[uint]*model.Venue)}
	for _, v := range venues {
		s.venues[v.ID] = v
	}
	return s
}

func (s *fakeVenueStore) GetByID(_ context.Context, id uint) (*model.Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *fakeVenueStore) SetRequiresSubUserSetup(_ context.Context, id uint, requires bool) error {
	v, ok := s.venues[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	v.RequiresSubUserSetup = requires
	return nil
}

type fakeBlacklist struct {
	entries map[string]time.Time

	failing bool
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: make(map[string]time.Time)}
}

func (b *fakeBlacklist) Blacklist(_ context.Context, jti string, expiresAt time.Time) error {
	if b.failing {
		return errUnavailable
	}
	b.entries[jti] = expiresAt
	return nil
}

func (b *fakeBlacklist) IsTokenBlacklisted(_ context.Context, jti string) (bool, error) {
	if b.failing {
		return false, errUnavailable
	}
	_, ok := b.entries[jti]
	return ok, nil
}

type fakeSubUserStore struct {
	subUsers map[uint]*model.VenueSubUser
	nextID   uint
}

func newFakeSubUserStore(subUsers ...*model.VenueSubUser) *fakeSubUserStore {
	s := &fakeSubUserStore{subUsers: make(map[uint]*model.VenueSubUser)}
	for _, su := range subUsers {
		if su.UsernameLower == "" {
			su.UsernameLower = strings.ToLower(su.Username)
		}
		s.subUsers[su.ID] = su
		if su.ID > s.nextID {
			s.nextID = su.ID
		}
	}
	return s
}

func (s *fakeSubUserStore) Create(_ context.Context, subUser *model.VenueSubUser) error {
	s.nextID++
	subUser.ID = s.nextID
	subUser.CreatedAt = time.Now()
	if subUser.UsernameLower == "" {
		subUser.UsernameLower = strings.ToLower(subUser.Username)
	}
	s.subUsers[subUser.ID] = subUser
	return nil
}

func (s *fakeSubUserStore) GetByID(_ context.Context, id uint) (*model.VenueSubUser, error) {
	su, ok := s.subUsers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *su
	return &copied, nil
}

func (s *fakeSubUserStore) FindByUsername(_ context.Context, venueID uint, username string) (*model.VenueSubUser, error) {
	lower := strings.ToLower(username)
	for _, su := range s.subUsers {
		if su.VenueID == venueID && su.UsernameLower == lower {
			copied := *su
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeSubUserStore) CountForVenue(_ context.Context, venueID uint) (int64, error) {
	var n int64
	for _, su := range s.subUsers {
		if su.VenueID == venueID {
			n++
		}
	}
	return n, nil
}

func (s *fakeSubUserStore) ListForVenue(_ context.Context, venueID uint) ([]model.VenueSubUser, error) {
	var out []model.VenueSubUser
	for _, su := range s.subUsers {
		if su.VenueID == venueID {
			out = append(out, *su)
		}
	}
	return out, nil
}

func (s *fakeSubUserStore) Updates(_ context.Context, id uint, updates map[string]interface{}) error {
	su, ok := s.subUsers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for column, value := range updates {
		switch column {
		case "role":
			su.Role = permissionRole(value)
		case "permissions":
			su.Permissions = permissionBits(value)
		case "password":
			su.Password = value.(string)
		case "must_change_password":
			su.MustChangePassword = value.(bool)
		case "active":
			su.Active = value.(bool)
		}
	}
	return nil
}

func (s *fakeSubUserStore) UpdateLastLogin(_ context.Context, id uint) error {
	if su, ok := s.subUsers[id]; ok {
		now := time.Now()
		su.LastLogin = &now
	}
	return nil
}

func (s *fakeSubUserStore) Delete(_ context.Context, id uint) error {
	if _, ok := s.subUsers[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.subUsers, id)
	return nil
}

type fakeSubUserSessionStore struct {
	sessions []*model.SubUserSession
	nextID   uint
}

func (s *fakeSubUserSessionStore) Create(_ context.Context, session *model.SubUserSession) error {
	s.nextID++
	session.ID = s.nextID
	s.sessions = append(s.sessions, session)
	return nil
}

func (s *fakeSubUserSessionStore) DeactivateAllForSubUser(_ context.Context, subUserID uint) (int64, error) {
	var n int64
	for _, sess := range s.sessions {
		if sess.SubUserID == subUserID && sess.Active {
			sess.Active = false
			n++
		}
	}
	return n, nil
}

func (s *fakeSubUserSessionStore) HasActiveSession(_ context.Context, subUserID uint) (bool, error) {
	now := time.Now()
	for _, sess := range s.sessions {
		if sess.SubUserID == subUserID && sess.Usable(now) {
			return true, nil
		}
	}
	return false, nil
}

type auditEntry struct {
	VenueID   uint
	ActorID   uint
	ActorType string
	Action    string
	Details   map[string]interface{}
}

type fakeAuditStore struct {
	entries []auditEntry
}

func (s *fakeAuditStore) Record(_ context.Context, venueID, actorID uint, actorType, action string, details map[string]interface{}) error {
	s.entries = append(s.entries, auditEntry{
		VenueID:   venueID,
		ActorID:   actorID,
		ActorType: actorType,
		Action:    action,
		Details:   details,
	})
	return nil
}

// fakeTxRunner runs fn against the same fakes without transactional
// semantics. Tests that exercise rollback assert on the returned error,
// not on store state.
func fakeTxRunner(stores TxStores) TxRunner {
	return func(_ context.Context, fn func(stores TxStores) error) error {
		return fn(stores)
	}
}
