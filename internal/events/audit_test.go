package events

import (
	"context"
	"testing"
	"time"

	"github.com/family-messenger/securecore/internal/logging"
)

func TestAuditLogCollectsPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(logging.Discard())
	defer bus.Close()

	log, err := NewAuditLog(ctx, bus, logging.Discard())
	if err != nil {
		t.Fatalf("new audit log: %v", err)
	}

	if err := bus.Publish(ctx, Event{Action: ActionSessionStarted, Identity: "ana@family.com"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, Event{Action: ActionSessionLocked, Identity: "ana@family.com"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		recent := log.Recent()
		if len(recent) == 2 {
			if recent[0].Action != ActionSessionStarted || recent[1].Action != ActionSessionLocked {
				t.Fatalf("unexpected event order: %+v", recent)
			}
			if recent[0].At.IsZero() {
				t.Fatal("expected publish to stamp the event time")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for events, have %d", len(recent))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAuditLogBoundsRetention(t *testing.T) {
	log := &AuditLog{logger: logging.Discard()}
	for i := 0; i < auditLogDepth+25; i++ {
		log.append(Event{Action: ActionLoginDenied})
	}
	if got := len(log.Recent()); got != auditLogDepth {
		t.Fatalf("expected retention capped at %d, got %d", auditLogDepth, got)
	}
}
