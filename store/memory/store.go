package memory

import (
	"context"
	"sync"
	"time"

	"github.com/workhub/authcore"
)

// Store implements authcore.UserStore, authcore.RefreshTokenStore and
// authcore.ResetTokenStore.
type Store struct {
	mu sync.Mutex

	users        map[string]*authcore.User
	usersByEmail map[string]string

	refresh       map[string]*authcore.RefreshTokenRecord
	refreshByHash map[string]string

	resets       map[string]*authcore.ResetTokenRecord
	resetsByHash map[string]string

	now func() time.Time
}

var (
	_ authcore.UserStore         = (*Store)(nil)
	_ authcore.RefreshTokenStore = (*Store)(nil)
	_ authcore.ResetTokenStore   = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[string]*authcore.User),
		usersByEmail:  make(map[string]string),
		refresh:       make(map[string]*authcore.RefreshTokenRecord),
		refreshByHash: make(map[string]string),
		resets:        make(map[string]*authcore.ResetTokenRecord),
		resetsByHash:  make(map[string]string),
		now:           time.Now,
	}
}

// WithClock sets the clock used for CreatedAt and UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

/* ==== USERS ==== */

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyUser(u), nil
}

func (s *Store) CreateUser(_ context.Context, in authcore.CreateUserInput) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByEmail[in.Email]; taken {
		return nil, authcore.ErrDuplicateRecord
	}
	if _, taken := s.users[in.ID]; taken {
		return nil, authcore.ErrDuplicateRecord
	}

	now := s.now()
	u := &authcore.User{
		ID:               in.ID,
		Email:            in.Email,
		Role:             in.Role,
		PasswordHash:     in.PasswordHash,
		PasswordTemporal: in.PasswordTemporal,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return copyUser(u), nil
}

func (s *Store) UpdateLockoutState(_ context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	return s.updateUser(userID, func(u *authcore.User) {
		u.FailedLoginAttempts = failedAttempts
		u.LockedUntil = copyTime(lockedUntil)
	})
}

func (s *Store) SetPassword(_ context.Context, userID, passwordHash string, temporal bool) error {
	return s.updateUser(userID, func(u *authcore.User) {
		u.PasswordHash = passwordHash
		u.PasswordTemporal = temporal
	})
}

func (s *Store) SaveMFASecret(_ context.Context, userID, envelope string) error {
	return s.updateUser(userID, func(u *authcore.User) {
		u.MFASecret = &envelope
	})
}

func (s *Store) EnableMFA(_ context.Context, userID string) error {
	return s.updateUser(userID, func(u *authcore.User) {
		u.MFAEnabled = true
	})
}

// DeleteUser soft-deletes a user. It is not part of authcore.UserStore.
func (s *Store) DeleteUser(_ context.Context, userID string) error {
	return s.updateUser(userID, func(u *authcore.User) {
		at := s.now()
		u.DeletedAt = &at
	})
}

// PutUser inserts or replaces a user verbatim. Tests use it to seed rows
// that CreateUser cannot produce (temporary passwords, legacy hashes).
func (s *Store) PutUser(u authcore.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.users[u.ID]; ok {
		delete(s.usersByEmail, old.Email)
	}
	s.users[u.ID] = copyUser(&u)
	s.usersByEmail[u.Email] = u.ID
}

func (s *Store) updateUser(userID string, mutate func(*authcore.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	mutate(u)
	u.UpdatedAt = s.now()
	return nil
}

/* ==== REFRESH TOKENS ==== */

func (s *Store) CreateRefreshToken(_ context.Context, rec authcore.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.refreshByHash[rec.TokenHash]; taken {
		return authcore.ErrDuplicateRecord
	}
	if _, taken := s.refresh[rec.ID]; taken {
		return authcore.ErrDuplicateRecord
	}
	s.refresh[rec.ID] = copyRefresh(&rec)
	s.refreshByHash[rec.TokenHash] = rec.ID
	return nil
}

func (s *Store) FindRefreshToken(_ context.Context, tokenHash string) (*authcore.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.refreshByHash[tokenHash]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyRefresh(s.refresh[id]), nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refresh[id]
	if !ok || rec.RevokedAt != nil {
		return false, nil
	}
	rec.RevokedAt = &at
	return true, nil
}

func (s *Store) RevokeUserRefreshTokens(_ context.Context, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.refresh {
		if rec.UserID == userID && rec.RevokedAt == nil {
			revokedAt := at
			rec.RevokedAt = &revokedAt
			n++
		}
	}
	return n, nil
}

/* ==== RESET TOKENS ==== */

func (s *Store) CreateResetToken(_ context.Context, rec authcore.ResetTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.resetsByHash[rec.TokenHash]; taken {
		return authcore.ErrDuplicateRecord
	}
	s.resets[rec.ID] = copyReset(&rec)
	s.resetsByHash[rec.TokenHash] = rec.ID
	return nil
}

func (s *Store) FindResetToken(_ context.Context, tokenHash string) (*authcore.ResetTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.resetsByHash[tokenHash]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyReset(s.resets[id]), nil
}

func (s *Store) MarkResetTokenUsed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[id]
	if !ok || rec.UsedAt != nil {
		return false, nil
	}
	rec.UsedAt = &at
	return true, nil
}

func copyUser(u *authcore.User) *authcore.User {
	out := *u
	if u.MFASecret != nil {
		secret := *u.MFASecret
		out.MFASecret = &secret
	}
	out.LockedUntil = copyTime(u.LockedUntil)
	out.DeletedAt = copyTime(u.DeletedAt)
	return &out
}

func copyRefresh(r *authcore.RefreshTokenRecord) *authcore.RefreshTokenRecord {
	out := *r
	out.RevokedAt = copyTime(r.RevokedAt)
	return &out
}

func copyReset(r *authcore.ResetTokenRecord) *authcore.ResetTokenRecord {
	out := *r
	out.UsedAt = copyTime(r.UsedAt)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
