package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/logging"
)

// eventBus publishes best-effort tick observability events over NATS, per
// SPEC_FULL.md §4.6's event bus. Grounded on the teacher's
// cmd/contextd/main.go NATS connection pattern (RetryOnFailedConnect,
// bounded reconnects) generalized from MCP operation tracking to
// consolidation/gc tick notifications. A nil bus (no NATS URL configured)
// makes every publish a no-op.
type eventBus struct {
	conn *nats.Conn
	log  *logging.Logger
}

// tickEvent is the wire payload published after each background tick.
type tickEvent struct {
	Kind      string    `json:"kind"` // "consolidate" or "garbage_collect"
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Promoted  int       `json:"promoted,omitempty"`
	Decayed   int       `json:"decayed,omitempty"`
	Forgotten int       `json:"forgotten,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// newEventBus connects to natsURL if non-empty. A connection failure is
// logged and treated as "no event bus" rather than fatal: event
// publication is observability, not a functional dependency.
func newEventBus(natsURL string, log *logging.Logger) *eventBus {
	if natsURL == "" {
		return &eventBus{log: log}
	}
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		log.Warn(context.Background(), "nats connect failed, background tick events disabled", zap.String("url", natsURL), zap.Error(err))
		return &eventBus{log: log}
	}
	return &eventBus{conn: conn, log: log}
}

func (b *eventBus) publish(subject string, ev tickEvent) {
	if b == nil || b.conn == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := b.conn.Publish(subject, payload); err != nil {
		b.log.Warn(context.Background(), "event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (b *eventBus) close() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}
