package services

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"github.com/lexia-platform/auth-service/internal/repository"
)

// In-memory store fakes. Each mimics the conditional-update semantics of the
// real repositories, including the at-most-once guarantees.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) Create(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *fakeUserStore) FindByID(id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) FindByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeUserStore) Update(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *fakeUserStore) UpdatePassword(id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (s *fakeUserStore) VerifyEmail(id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailVerified = true
	u.EmailVerifiedAt = &at
	return nil
}

func (s *fakeUserStore) IncrementFailedAttempts(id uuid.UUID, threshold int, lockedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		until := lockedUntil
		u.LockedUntil = &until
	}
	return nil
}

func (s *fakeUserStore) ResetFailedAttempts(id uuid.UUID, ip *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginIP = ip
	at2 := at
	u.LastLoginAt = &at2
	return nil
}

func (s *fakeUserStore) SetTwoFactorEnabled(id uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.TwoFactorEnabled = enabled
	return nil
}

type fakeRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newFakeRefreshTokenStore() *fakeRefreshTokenStore {
	return &fakeRefreshTokenStore{tokens: make(map[string]*models.RefreshToken)}
}

func (s *fakeRefreshTokenStore) Create(token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token.TokenHash]; ok {
		return repository.ErrDuplicate
	}
	cp := *token
	s.tokens[token.TokenHash] = &cp
	return nil
}

func (s *fakeRefreshTokenStore) Claim(tokenHash string, now time.Time) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[tokenHash]
	if !ok || row.Revoked || !row.ExpiresAt.After(now) {
		return nil, repository.ErrNotFound
	}
	row.Revoked = true
	at := now
	row.RevokedAt = &at
	cp := *row
	return &cp, nil
}

func (s *fakeRefreshTokenStore) Revoke(tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[tokenHash]
	if !ok {
		return repository.ErrNotFound
	}
	row.Revoked = true
	at := now
	row.RevokedAt = &at
	return nil
}

func (s *fakeRefreshTokenStore) RevokeAllForUser(userID uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.tokens {
		if row.UsuarioID == userID && !row.Revoked {
			row.Revoked = true
			at := now
			row.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (s *fakeRefreshTokenStore) ActiveSessions(userID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RefreshToken
	for _, row := range s.tokens {
		if row.UsuarioID == userID && !row.Revoked && row.ExpiresAt.After(now) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeRefreshTokenStore) CountActive(userID uuid.UUID, now time.Time) (int64, error) {
	sessions, _ := s.ActiveSessions(userID, now)
	return int64(len(sessions)), nil
}

func (s *fakeRefreshTokenStore) PurgeExpired(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, row := range s.tokens {
		if row.ExpiresAt.Before(before) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

type fakeVerificationStore struct {
	mu     sync.Mutex
	tokens map[string]*models.VerificationToken
}

func newFakeVerificationStore() *fakeVerificationStore {
	return &fakeVerificationStore{tokens: make(map[string]*models.VerificationToken)}
}

func (s *fakeVerificationStore) Create(token *models.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.Token] = &cp
	return nil
}

func (s *fakeVerificationStore) FindValid(token string, now time.Time) (*models.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	if !ok || row.UsedAt != nil || !row.ExpiresAt.After(now) {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *fakeVerificationStore) MarkUsed(token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	if !ok || row.UsedAt != nil || !row.ExpiresAt.After(now) {
		return repository.ErrNotFound
	}
	at := now
	row.UsedAt = &at
	return nil
}

func (s *fakeVerificationStore) InvalidateForUser(userID uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.tokens {
		if row.UsuarioID == userID && row.UsedAt == nil {
			at := now
			row.UsedAt = &at
			n++
		}
	}
	return n, nil
}

func (s *fakeVerificationStore) PurgeExpired(before time.Time) (int64, error) {
	return 0, nil
}

type fakeResetStore struct {
	mu     sync.Mutex
	tokens map[string]*models.PasswordResetToken
	now    func() time.Time
}

func newFakeResetStore(now func() time.Time) *fakeResetStore {
	return &fakeResetStore{tokens: make(map[string]*models.PasswordResetToken), now: now}
}

func (s *fakeResetStore) Create(token *models.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	// Mirror GORM, which fills CreatedAt on insert when it is zero.
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.tokens[token.Token] = &cp
	return nil
}

func (s *fakeResetStore) FindValid(token string, now time.Time) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	if !ok || row.UsedAt != nil || !row.ExpiresAt.After(now) {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *fakeResetStore) MarkUsed(token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	if !ok || row.UsedAt != nil || !row.ExpiresAt.After(now) {
		return repository.ErrNotFound
	}
	at := now
	row.UsedAt = &at
	return nil
}

func (s *fakeResetStore) InvalidateForUser(userID uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.tokens {
		if row.UsuarioID == userID && row.UsedAt == nil {
			at := now
			row.UsedAt = &at
			n++
		}
	}
	return n, nil
}

func (s *fakeResetStore) HasRecentToken(userID uuid.UUID, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.tokens {
		if row.UsuarioID == userID && row.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeResetStore) IncrementAttempts(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.tokens[token]; ok {
		row.Attempts++
	}
	return nil
}

func (s *fakeResetStore) PurgeExpired(before time.Time) (int64, error) {
	return 0, nil
}

type fakeTwoFactorStore struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*models.TwoFactorAuth
	codes   map[uuid.UUID][]*models.TwoFactorBackupCode
}

func newFakeTwoFactorStore() *fakeTwoFactorStore {
	return &fakeTwoFactorStore{
		configs: make(map[uuid.UUID]*models.TwoFactorAuth),
		codes:   make(map[uuid.UUID][]*models.TwoFactorBackupCode),
	}
}

func (s *fakeTwoFactorStore) Upsert(tf *models.TwoFactorAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tf
	cp.Enabled = false
	cp.EnabledAt = nil
	cp.LastUsedAt = nil
	s.configs[tf.UsuarioID] = &cp
	return nil
}

func (s *fakeTwoFactorStore) FindByUserID(userID uuid.UUID) (*models.TwoFactorAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, ok := s.configs[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *tf
	return &cp, nil
}

func (s *fakeTwoFactorStore) Enable(userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, ok := s.configs[userID]
	if !ok {
		return repository.ErrNotFound
	}
	tf.Enabled = true
	t := at
	tf.EnabledAt = &t
	return nil
}

func (s *fakeTwoFactorStore) Disable(userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, ok := s.configs[userID]
	if !ok {
		return repository.ErrNotFound
	}
	tf.Enabled = false
	return nil
}

func (s *fakeTwoFactorStore) UpdateLastUsed(userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf, ok := s.configs[userID]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	tf.LastUsedAt = &t
	return nil
}

func (s *fakeTwoFactorStore) ReplaceBackupCodes(userID uuid.UUID, codeHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*models.TwoFactorBackupCode, 0, len(codeHashes))
	for _, hash := range codeHashes {
		rows = append(rows, &models.TwoFactorBackupCode{
			ID:        uuid.New(),
			UsuarioID: userID,
			CodeHash:  hash,
		})
	}
	s.codes[userID] = rows
	return nil
}

func (s *fakeTwoFactorStore) ConsumeBackupCode(userID uuid.UUID, codeHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.codes[userID] {
		if row.CodeHash == codeHash && row.UsedAt == nil {
			at := now
			row.UsedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeTwoFactorStore) CountRemainingCodes(userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.codes[userID] {
		if row.UsedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *fakeTwoFactorStore) RemainingCodeHashes(userID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, row := range s.codes[userID] {
		if row.UsedAt == nil {
			out = append(out, row.CodeHash)
		}
	}
	return out, nil
}

type fakeOAuthStore struct {
	mu       sync.Mutex
	accounts map[string]*models.OAuthAccount
}

func newFakeOAuthStore() *fakeOAuthStore {
	return &fakeOAuthStore{accounts: make(map[string]*models.OAuthAccount)}
}

func oauthKey(provider, providerAccountID string) string {
	return provider + ":" + providerAccountID
}

func (s *fakeOAuthStore) Upsert(account *models.OAuthAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[oauthKey(account.Provider, account.ProviderAccountID)] = &cp
	return nil
}

func (s *fakeOAuthStore) FindByProvider(provider, providerAccountID string) (*models.OAuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[oauthKey(provider, providerAccountID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *fakeOAuthStore) FindByUserID(userID uuid.UUID) ([]models.OAuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OAuthAccount
	for _, acc := range s.accounts {
		if acc.UsuarioID == userID {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (s *fakeOAuthStore) HasProvider(userID uuid.UUID, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.UsuarioID == userID && acc.Provider == provider {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeOAuthStore) UpdateTokens(provider, providerAccountID string, accessToken, refreshToken *string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[oauthKey(provider, providerAccountID)]
	if !ok {
		return repository.ErrNotFound
	}
	acc.AccessToken = accessToken
	acc.RefreshToken = refreshToken
	acc.TokenExpiresAt = expiresAt
	return nil
}

func (s *fakeOAuthStore) Delete(provider, providerAccountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := oauthKey(provider, providerAccountID)
	if _, ok := s.accounts[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.accounts, key)
	return nil
}

type fakeAuthLogStore struct {
	mu      sync.Mutex
	entries []models.AuthLog
}

func newFakeAuthLogStore() *fakeAuthLogStore {
	return &fakeAuthLogStore{}
}

func (s *fakeAuthLogStore) Create(entry *models.AuthLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *fakeAuthLogStore) FindByUserID(userID uuid.UUID, limit int) ([]models.AuthLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuthLog
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].UsuarioID != nil && *s.entries[i].UsuarioID == userID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *fakeAuthLogStore) CountFailedAttempts(email, ip string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.EventType == models.EventFailedLogin && e.Email == email {
			n++
		}
	}
	return n, nil
}

func (s *fakeAuthLogStore) DistinctLoginIPs(userID uuid.UUID, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ips := make(map[string]bool)
	for _, e := range s.entries {
		if e.UsuarioID != nil && *e.UsuarioID == userID && e.Success && e.IPAddress != nil {
			ips[*e.IPAddress] = true
		}
	}
	return int64(len(ips)), nil
}

func (s *fakeAuthLogStore) Stats(since time.Time) (*repository.LoginStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &repository.LoginStats{}
	users := make(map[uuid.UUID]bool)
	for _, e := range s.entries {
		switch e.EventType {
		case models.EventSuccessfulLogin:
			stats.TotalLogins++
			stats.SuccessfulLogins++
			if e.UsuarioID != nil {
				users[*e.UsuarioID] = true
			}
		case models.EventFailedLogin:
			stats.TotalLogins++
			stats.FailedLogins++
		}
	}
	stats.UniqueUsers = int64(len(users))
	return stats, nil
}

func (s *fakeAuthLogStore) PurgeOld(before time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeAuthLogStore) eventsOfType(eventType string) []models.AuthLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuthLog
	for _, e := range s.entries {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeMailer records what would have been sent.
type fakeMailer struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
	twoFactor     []string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{}
}

func (m *fakeMailer) SendVerificationEmail(to, nombre, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, to)
}

func (m *fakeMailer) SendPasswordResetEmail(to, nombre, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, to)
}

func (m *fakeMailer) SendTwoFactorEnabledEmail(to, nombre string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twoFactor = append(m.twoFactor, to)
}
