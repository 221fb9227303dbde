package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// auditLogDepth bounds how many events the audit log retains, matching the
// retention of the mobile client this core was extracted from.
const auditLogDepth = 100

// AuditLog consumes the audit topic and retains the most recent events in
// memory for the support/status surface.
type AuditLog struct {
	logger *slog.Logger

	mu     sync.RWMutex
	events []Event
}

// NewAuditLog starts consuming bus until ctx is cancelled.
func NewAuditLog(ctx context.Context, bus *Bus, logger *slog.Logger) (*AuditLog, error) {
	messages, err := bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	log := &AuditLog{logger: logger}
	go func() {
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Warn("drop malformed audit event", "error", err)
				msg.Ack()
				continue
			}
			log.append(event)
			msg.Ack()
		}
	}()
	return log, nil
}

func (l *AuditLog) append(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	if len(l.events) > auditLogDepth {
		l.events = l.events[len(l.events)-auditLogDepth:]
	}
}

// Recent returns a copy of the retained events, oldest first.
func (l *AuditLog) Recent() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
