// Package events carries security audit events over a watermill pub/sub so
// session and login activity can be observed without coupling components.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicSecurityAudit is the topic all security events are published to.
const TopicSecurityAudit = "security.audit"

// Actions published on the audit topic.
const (
	ActionSessionStarted  = "session_started"
	ActionSessionLocked   = "session_locked"
	ActionSessionUnlocked = "session_unlocked"
	ActionSessionEnded    = "session_ended"
	ActionAccountLocked   = "account_locked"
	ActionLoginSucceeded  = "login_succeeded"
	ActionLoginDenied     = "login_denied"
)

// Event is one security-relevant occurrence.
type Event struct {
	Action   string         `json:"action"`
	Identity string         `json:"identity,omitempty"`
	At       time.Time      `json:"at"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Publisher emits security events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus is an in-process watermill gochannel pub/sub carrying audit events.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus builds the in-process event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger)),
	}
}

// Publish serializes the event and pushes it onto the audit topic.
func (b *Bus) Publish(_ context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubsub.Publish(TopicSecurityAudit, msg)
}

// Subscribe returns a channel of raw audit messages.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicSecurityAudit)
}

// Close shuts the underlying pub/sub down.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// NopPublisher drops all events. Useful in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
