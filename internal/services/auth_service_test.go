package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/token"
)

const (
	testPassword = "Segura123!"
	testEmail    = "ana@example.com"
)

type authFixture struct {
	svc      *AuthService
	users    *fakeUserStore
	refresh  *fakeRefreshTokenStore
	verify   *fakeVerificationStore
	resets   *fakeResetStore
	authLogs *fakeAuthLogStore
	mailer   *fakeMailer
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func authTestConfig() *config.Config {
	return &config.Config{
		JWTAccessSecret:   "test-access-secret",
		JWTRefreshSecret:  "test-refresh-secret",
		JWTAccessExpiry:   15 * time.Minute,
		JWTRefreshExpiry:  168 * time.Hour,
		TwoFactorTempTTL:  5 * time.Minute,
		JWTIssuer:         "lexia-auth-service",
		JWTAudience:       "lexia-api",
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
	}
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := newTestClock()
	cfg := authTestConfig()

	tokens := token.NewServiceWithClock(cfg, clock.Now)

	f := &authFixture{
		users:    newFakeUserStore(),
		refresh:  newFakeRefreshTokenStore(),
		verify:   newFakeVerificationStore(),
		resets:   newFakeResetStore(clock.Now),
		authLogs: newFakeAuthLogStore(),
		mailer:   newFakeMailer(),
		clock:    clock,
	}
	f.svc = NewAuthService(f.users, f.refresh, f.verify, f.resets, f.authLogs, tokens, f.mailer, cfg)
	f.svc.now = clock.Now
	return f
}

func (f *authFixture) register(t *testing.T) string {
	t.Helper()
	_, verificationToken, err := f.svc.Register(RegisterData{
		Email:    testEmail,
		Password: testPassword,
		Nombre:   "Ana",
		Apellido: "García",
	}, ClientInfo{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return verificationToken
}

func TestRegisterNormalizesEmailAndSendsVerification(t *testing.T) {
	f := newAuthFixture(t)

	user, verificationToken, err := f.svc.Register(RegisterData{
		Email:    "  Ana@Example.COM ",
		Password: testPassword,
		Nombre:   "Ana",
		Apellido: "García",
	}, ClientInfo{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != testEmail {
		t.Fatalf("expected normalized email %q, got %q", testEmail, user.Email)
	}
	if user.EmailVerified {
		t.Fatal("new account must not start verified")
	}
	if verificationToken == "" {
		t.Fatal("expected a verification token")
	}
	if len(f.mailer.verifications) != 1 {
		t.Fatalf("expected 1 verification email, got %d", len(f.mailer.verifications))
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, _, err := f.svc.Register(RegisterData{
		Email:    "ANA@example.com",
		Password: testPassword,
		Nombre:   "Otra",
		Apellido: "Persona",
	}, ClientInfo{})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, _, err := f.svc.Register(RegisterData{
		Email:    testEmail,
		Password: "corta",
		Nombre:   "Ana",
		Apellido: "García",
	}, ClientInfo{})
	if err == nil {
		t.Fatal("expected password policy error")
	}
	if errors.Is(err, ErrEmailTaken) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	result, err := f.svc.Login(testEmail, testPassword, ClientInfo{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Requires2FA {
		t.Fatal("2FA must not be required for a fresh account")
	}
	if result.Pair == nil || result.Pair.AccessToken == "" {
		t.Fatal("expected a token pair")
	}

	sessions, err := f.svc.ActiveSessions(result.User.ID)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(sessions))
	}
}

func TestLoginUnknownEmailIsGeneric(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login("nadie@example.com", testPassword, ClientInfo{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWrongPasswordIsGenericAndAudited(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, err := f.svc.Login(testEmail, "Incorrecta1!", ClientInfo{IP: "10.0.0.2"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	failed := f.authLogs.eventsOfType("failed_login")
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed_login audit entry, got %d", len(failed))
	}
	if failed[0].FailureReason == nil || *failed[0].FailureReason != "contraseña incorrecta" {
		t.Fatalf("expected real reason in audit log, got %v", failed[0].FailureReason)
	}
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	for i := 0; i < 5; i++ {
		if _, err := f.svc.Login(testEmail, "Incorrecta1!", ClientInfo{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The correct password no longer works while locked.
	if _, err := f.svc.Login(testEmail, testPassword, ClientInfo{}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}

	// After the lockout window the correct password works and counters reset.
	f.clock.Advance(16 * time.Minute)
	result, err := f.svc.Login(testEmail, testPassword, ClientInfo{})
	if err != nil {
		t.Fatalf("expected login after lockout window, got %v", err)
	}

	user, err := f.users.FindByID(result.User.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		t.Fatalf("expected counters reset, got attempts=%d locked=%v", user.FailedLoginAttempts, user.LockedUntil)
	}
}

func TestLoginFourFailuresDoesNotLock(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	for i := 0; i < 4; i++ {
		f.svc.Login(testEmail, "Incorrecta1!", ClientInfo{})
	}
	if _, err := f.svc.Login(testEmail, testPassword, ClientInfo{}); err != nil {
		t.Fatalf("expected login after 4 failures, got %v", err)
	}
}

func TestLoginOAuthOnlyAccountFailsDistinctly(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	user, _ := f.users.FindByEmail(testEmail)
	user.PasswordHash = nil
	if err := f.users.Update(user); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := f.svc.Login(testEmail, testPassword, ClientInfo{}); !errors.Is(err, ErrOAuthOnlyAccount) {
		t.Fatalf("expected ErrOAuthOnlyAccount, got %v", err)
	}
}

func TestLoginWithTwoFactorReturnsIntermediateToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	user, _ := f.users.FindByEmail(testEmail)
	if err := f.users.SetTwoFactorEnabled(user.ID, true); err != nil {
		t.Fatalf("SetTwoFactorEnabled failed: %v", err)
	}

	result, err := f.svc.Login(testEmail, testPassword, ClientInfo{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !result.Requires2FA {
		t.Fatal("expected Requires2FA")
	}
	if result.Pair != nil {
		t.Fatal("token pair must be withheld until 2FA completes")
	}
	if result.TempToken == "" {
		t.Fatal("expected an intermediate token")
	}

	// No session exists until the 2FA step completes.
	if n, _ := f.refresh.CountActive(user.ID, f.clock.Now()); n != 0 {
		t.Fatalf("expected no session before 2FA completion, got %d", n)
	}

	completed, err := f.svc.CompleteTwoFactorLogin(user.ID, ClientInfo{})
	if err != nil {
		t.Fatalf("CompleteTwoFactorLogin failed: %v", err)
	}
	if completed.Pair == nil {
		t.Fatal("expected a token pair after 2FA completion")
	}
}

func TestRefreshRotatesAndIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	result, err := f.svc.Login(testEmail, testPassword, ClientInfo{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	first := result.Pair.RefreshToken

	pair, err := f.svc.Refresh(first, ClientInfo{})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.RefreshToken == first {
		t.Fatal("rotation must issue a new refresh token")
	}

	// Replaying the consumed token fails; the new one still works.
	if _, err := f.svc.Refresh(first, ClientInfo{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	if _, err := f.svc.Refresh(pair.RefreshToken, ClientInfo{}); err != nil {
		t.Fatalf("expected rotated token to work, got %v", err)
	}
}

func TestRefreshConcurrentRotationSingleWinner(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	result, err := f.svc.Login(testEmail, testPassword, ClientInfo{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	refreshToken := result.Pair.RefreshToken

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refresh(refreshToken, ClientInfo{})
		}(i)
	}
	wg.Wait()

	var winners int
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", winners)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	f := newAuthFixture(t)
	if _, err := f.svc.Refresh("not-a-jwt", ClientInfo{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(testEmail, testPassword, ClientInfo{}); err != nil {
			t.Fatalf("Login %d failed: %v", i, err)
		}
	}
	user, _ := f.users.FindByEmail(testEmail)

	revoked, err := f.svc.LogoutAll(user.ID, ClientInfo{})
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if revoked != 3 {
		t.Fatalf("expected 3 revoked sessions, got %d", revoked)
	}
	if n, _ := f.refresh.CountActive(user.ID, f.clock.Now()); n != 0 {
		t.Fatalf("expected no active sessions, got %d", n)
	}
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	verificationToken := f.register(t)

	if err := f.svc.VerifyEmail(verificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	user, _ := f.users.FindByEmail(testEmail)
	if !user.EmailVerified || user.EmailVerifiedAt == nil {
		t.Fatal("expected the account to be verified")
	}

	if err := f.svc.VerifyEmail(verificationToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected second use to fail, got %v", err)
	}
}

func TestVerifyEmailRejectsExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	verificationToken := f.register(t)

	f.clock.Advance(25 * time.Hour)
	if err := f.svc.VerifyEmail(verificationToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestResendVerificationInvalidatesPreviousToken(t *testing.T) {
	f := newAuthFixture(t)
	first := f.register(t)

	if err := f.svc.ResendVerification(testEmail, ClientInfo{}); err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	if err := f.svc.VerifyEmail(first); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected superseded token to fail, got %v", err)
	}
}

func TestResendVerificationDoesNotRevealAccounts(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.ResendVerification("desconocida@example.com", ClientInfo{}); err != nil {
		t.Fatalf("unknown email must return nil, got %v", err)
	}
	if len(f.mailer.verifications) != 0 {
		t.Fatalf("no mail expected for unknown email, got %d", len(f.mailer.verifications))
	}
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	if err := f.svc.ForgotPassword("desconocida@example.com", ClientInfo{}); err != nil {
		t.Fatalf("unknown email must return nil, got %v", err)
	}
	if err := f.svc.ForgotPassword(testEmail, ClientInfo{}); err != nil {
		t.Fatalf("known email failed: %v", err)
	}
	if len(f.mailer.resets) != 1 {
		t.Fatalf("expected exactly 1 reset email, got %d", len(f.mailer.resets))
	}
}

func TestForgotPasswordThrottlesRepeatedRequests(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	if err := f.svc.ForgotPassword(testEmail, ClientInfo{}); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if err := f.svc.ForgotPassword(testEmail, ClientInfo{}); !errors.Is(err, ErrResetThrottled) {
		t.Fatalf("expected ErrResetThrottled, got %v", err)
	}

	f.clock.Advance(6 * time.Minute)
	if err := f.svc.ForgotPassword(testEmail, ClientInfo{}); err != nil {
		t.Fatalf("request after window failed: %v", err)
	}
}

func TestResetPasswordRevokesAllSessions(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	if _, err := f.svc.Login(testEmail, testPassword, ClientInfo{}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	user, _ := f.users.FindByEmail(testEmail)

	if err := f.svc.ForgotPassword(testEmail, ClientInfo{}); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	var resetToken string
	for tok := range f.resets.tokens {
		resetToken = tok
	}

	const newPassword = "NuevaClave9$"
	if err := f.svc.ResetPassword(resetToken, newPassword); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if n, _ := f.refresh.CountActive(user.ID, f.clock.Now()); n != 0 {
		t.Fatalf("expected all sessions revoked, got %d", n)
	}
	if _, err := f.svc.Login(testEmail, testPassword, ClientInfo{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must no longer work, got %v", err)
	}
	if _, err := f.svc.Login(testEmail, newPassword, ClientInfo{}); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}

	if err := f.svc.ResetPassword(resetToken, "OtraClave7&"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected consumed token to fail, got %v", err)
	}
}

func TestResetPasswordWeakPasswordKeepsTokenValid(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	if err := f.svc.ForgotPassword(testEmail, ClientInfo{}); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	var resetToken string
	for tok := range f.resets.tokens {
		resetToken = tok
	}

	if err := f.svc.ResetPassword(resetToken, "corta"); err == nil {
		t.Fatal("expected policy error")
	}
	// A failed strength check must not consume the token.
	if err := f.svc.ResetPassword(resetToken, "NuevaClave9$"); err != nil {
		t.Fatalf("token should still be usable, got %v", err)
	}
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)

	_, _, err := f.svc.Register(RegisterData{
		Email:    "otra@example.com",
		Password: testPassword,
		Nombre:   "Otra",
		Apellido: "Persona",
	}, ClientInfo{})
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	user, _ := f.users.FindByEmail(testEmail)
	taken := "otra@example.com"
	if _, err := f.svc.UpdateProfile(user.ID, UpdateProfileData{Email: &taken}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// Re-submitting your own email is not a conflict.
	own := testEmail
	if _, err := f.svc.UpdateProfile(user.ID, UpdateProfileData{Email: &own}); err != nil {
		t.Fatalf("own email must be accepted, got %v", err)
	}
}
