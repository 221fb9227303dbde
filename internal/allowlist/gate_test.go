package allowlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/family-messenger/securecore/internal/logging"
	"github.com/family-messenger/securecore/internal/secerr"
)

func testRoster() []Entry {
	return []Entry{
		{FirstName: "Ana", LastName: "Quliyeva", Email: "ana@family.com", Role: RoleAdmin, CreatedAt: time.Now(), Active: true},
		{FirstName: "Rauf", LastName: "Quliyev", Email: "rauf@family.com", Role: RoleMember, CreatedAt: time.Now(), Active: false},
	}
}

func TestIsAllowedCaseInsensitive(t *testing.T) {
	gate := NewGate(NewMemoryRepository(testRoster()), logging.Discard())
	ctx := context.Background()

	entry, err := gate.IsAllowed(ctx, "ANA", "quliyeva", "Ana@Family.COM")
	if err != nil {
		t.Fatalf("is allowed: %v", err)
	}
	if entry.Role != RoleAdmin {
		t.Fatalf("expected admin entry, got %q", entry.Role)
	}
}

func TestIsAllowedRejectsInactiveAndUnknown(t *testing.T) {
	gate := NewGate(NewMemoryRepository(testRoster()), logging.Discard())
	ctx := context.Background()

	if _, err := gate.IsAllowed(ctx, "Rauf", "Quliyev", "rauf@family.com"); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected inactive entry rejected, got %v", err)
	}
	if _, err := gate.IsAllowed(ctx, "Eve", "Intruder", "eve@evil.com"); !errors.Is(err, secerr.ErrNotFound) {
		t.Fatalf("expected unknown identity rejected, got %v", err)
	}
}

func TestIsAllowedSanitizesInput(t *testing.T) {
	gate := NewGate(NewMemoryRepository(testRoster()), logging.Discard())
	ctx := context.Background()

	if _, err := gate.IsAllowed(ctx, "<Ana>", "Quliyeva';", ` "ana@family.com" `); err != nil {
		t.Fatalf("expected sanitized identity to match, got %v", err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	gate := NewGate(NewMemoryRepository(nil), logging.Discard())

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		if gate.RecordFailedAttempt("ana@family.com") {
			t.Fatalf("threshold reached too early at attempt %d", i+1)
		}
	}
	if !gate.RecordFailedAttempt("ana@family.com") {
		t.Fatal("expected threshold on final attempt")
	}

	blocked, remaining := gate.IsBlocked("ana@family.com")
	if !blocked {
		t.Fatal("expected identifier to be blocked")
	}
	if remaining <= 0 {
		t.Fatalf("expected positive remaining time, got %v", remaining)
	}
}

func TestLockoutExpiresAndCounterResets(t *testing.T) {
	gate := NewGate(NewMemoryRepository(nil), logging.Discard())

	base := time.Now()
	gate.now = func() time.Time { return base }
	for i := 0; i < DefaultMaxAttempts; i++ {
		gate.RecordFailedAttempt("ana@family.com")
	}
	if blocked, _ := gate.IsBlocked("ana@family.com"); !blocked {
		t.Fatal("expected block inside window")
	}

	gate.now = func() time.Time { return base.Add(DefaultLockoutWindow + time.Second) }
	if blocked, _ := gate.IsBlocked("ana@family.com"); blocked {
		t.Fatal("expected block lifted after window")
	}
	// Counter starts over once the window has elapsed.
	if gate.RecordFailedAttempt("ana@family.com") {
		t.Fatal("expected counter reset after window")
	}
}

func TestClearFailedAttempts(t *testing.T) {
	gate := NewGate(NewMemoryRepository(nil), logging.Discard())

	for i := 0; i < DefaultMaxAttempts; i++ {
		gate.RecordFailedAttempt("ana@family.com")
	}
	gate.ClearFailedAttempts("ana@family.com")

	if blocked, _ := gate.IsBlocked("ana@family.com"); blocked {
		t.Fatal("expected clear to lift the block")
	}
}
