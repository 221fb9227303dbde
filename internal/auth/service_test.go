package auth

import (
	"context"
	"testing"
	"time"

	"github.com/family-messenger/securecore/internal/allowlist"
	"github.com/family-messenger/securecore/internal/events"
	"github.com/family-messenger/securecore/internal/logging"
	"github.com/family-messenger/securecore/internal/otp"
	"github.com/family-messenger/securecore/internal/vault"
)

type fakeBiometric struct {
	hardware bool
	enrolled bool
	approve  bool
}

func (f fakeBiometric) HasHardware(context.Context) (bool, error) { return f.hardware, nil }
func (f fakeBiometric) IsEnrolled(context.Context) (bool, error)  { return f.enrolled, nil }
func (f fakeBiometric) Authenticate(context.Context, string) (bool, error) {
	return f.approve, nil
}

func testOrchestrator(t *testing.T, biometric fakeBiometric) (*Service, *vault.Vault) {
	t.Helper()
	v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"), vault.NewMemoryStore())
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	logger := logging.Discard()
	roster := []allowlist.Entry{
		{FirstName: "Ana", LastName: "Quliyeva", Email: "ana@family.com", Role: allowlist.RoleAdmin, CreatedAt: time.Now(), Active: true},
	}
	gate := allowlist.NewGate(allowlist.NewMemoryRepository(roster), logger)
	otps := otp.NewService(v, otp.NewMemoryStore(), nil, logger)
	tokens := NewTokenIssuer([]byte("test-signing-secret"), 15*time.Minute, 24*time.Hour)
	return NewService(gate, otps, biometric, tokens, events.NopPublisher{}, logger), v
}

// issuedCode pulls the plaintext code for the pending challenge so the test
// can play the user's second round trip.
func issuedCode(t *testing.T, svc *Service, v *vault.Vault, email string) string {
	t.Helper()
	challenge, err := svc.otps.Generate(context.Background(), email)
	if err != nil {
		t.Fatalf("generate challenge: %v", err)
	}
	code, err := v.Decrypt(challenge.CodeEncrypted)
	if err != nil {
		t.Fatalf("decrypt code: %v", err)
	}
	return code
}

func TestLoginRequestsOTPFirst(t *testing.T) {
	svc, _ := testOrchestrator(t, fakeBiometric{})
	ctx := context.Background()

	result, err := svc.Login(ctx, LoginRequest{FirstName: "Ana", LastName: "Quliyeva", Email: "ana@family.com"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Status != StatusOTPRequired {
		t.Fatalf("expected otp_required, got %s", result.Status)
	}
	if result.Tokens != nil {
		t.Fatal("no tokens expected before the second factor")
	}
}

func TestLoginFullSuccess(t *testing.T) {
	svc, v := testOrchestrator(t, fakeBiometric{hardware: true, enrolled: true, approve: true})
	ctx := context.Background()

	code := issuedCode(t, svc, v, "ana@family.com")
	result, err := svc.Login(ctx, LoginRequest{FirstName: "ana", LastName: "QULIYEVA", Email: "Ana@Family.com", OTPCode: code})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("expected ok, got %s (%s)", result.Status, result.Reason)
	}
	if result.Tokens == nil || result.Tokens.AccessToken == "" {
		t.Fatal("expected a token pair on success")
	}

	email, role, err := svc.tokens.Verify(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if email != "ana@family.com" || role != allowlist.RoleAdmin {
		t.Fatalf("unexpected claims: %s %s", email, role)
	}
}

func TestLoginDeniesUnknownIdentity(t *testing.T) {
	svc, _ := testOrchestrator(t, fakeBiometric{})
	ctx := context.Background()

	result, err := svc.Login(ctx, LoginRequest{FirstName: "Eve", LastName: "Intruder", Email: "eve@evil.com"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Status != StatusDenied {
		t.Fatalf("expected denied, got %s", result.Status)
	}
}

func TestLoginDeniesWrongOTP(t *testing.T) {
	svc, v := testOrchestrator(t, fakeBiometric{})
	ctx := context.Background()

	issuedCode(t, svc, v, "ana@family.com")
	result, err := svc.Login(ctx, LoginRequest{FirstName: "Ana", LastName: "Quliyeva", Email: "ana@family.com", OTPCode: "000000"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Status != StatusDenied {
		t.Fatalf("expected denied, got %s", result.Status)
	}
}

func TestLoginDeniedByBiometric(t *testing.T) {
	svc, v := testOrchestrator(t, fakeBiometric{hardware: true, enrolled: true, approve: false})
	ctx := context.Background()

	code := issuedCode(t, svc, v, "ana@family.com")
	result, err := svc.Login(ctx, LoginRequest{FirstName: "Ana", LastName: "Quliyeva", Email: "ana@family.com", OTPCode: code})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Status != StatusDenied {
		t.Fatalf("expected denied, got %s", result.Status)
	}
}

func TestLoginBlockedAfterRepeatedFailures(t *testing.T) {
	svc, _ := testOrchestrator(t, fakeBiometric{})
	ctx := context.Background()

	req := LoginRequest{FirstName: "Eve", LastName: "Intruder", Email: "eve@evil.com"}
	for i := 0; i < allowlist.DefaultMaxAttempts; i++ {
		if _, err := svc.Login(ctx, req); err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
	}

	result, err := svc.Login(ctx, req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Status != StatusBlocked {
		t.Fatalf("expected blocked, got %s", result.Status)
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", result.RetryAfter)
	}
}

func TestCheckRateLimit(t *testing.T) {
	svc, _ := testOrchestrator(t, fakeBiometric{})

	for i := 0; i < DefaultRateMax; i++ {
		if !svc.CheckRateLimit("device-1") {
			t.Fatalf("call %d unexpectedly throttled", i+1)
		}
	}
	if svc.CheckRateLimit("device-1") {
		t.Fatal("expected throttle past the budget")
	}
	// Other identifiers keep their own budget.
	if !svc.CheckRateLimit("device-2") {
		t.Fatal("unrelated identifier throttled")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter()
	base := time.Now()
	limiter.now = func() time.Time { return base }

	for i := 0; i < DefaultRateMax; i++ {
		limiter.Allow("device-1")
	}
	if limiter.Allow("device-1") {
		t.Fatal("expected throttle inside window")
	}

	limiter.now = func() time.Time { return base.Add(DefaultRateWindow + time.Second) }
	if !limiter.Allow("device-1") {
		t.Fatal("expected budget back after window slid")
	}
}
