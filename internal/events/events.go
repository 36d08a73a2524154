// Package events publishes blog lifecycle events to a message broker.
// Publishing is best-effort: a broker failure is logged and never affects
// the outcome of the request that triggered the event.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/bloghub/apiserver/internal/mq"
)

// Channel is the broker channel all blog events are published to.
const Channel = "blog.events"

// Event types.
const (
	PostCreated    = "post.created"
	PostDeleted    = "post.deleted"
	CommentCreated = "comment.created"
	CommentDeleted = "comment.deleted"
)

// Envelope is the wire format of a published event.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher emits events to a broker backend. A nil Publisher is valid and
// drops all events, so callers never need to check whether events are
// configured.
type Publisher struct {
	backend mq.Backend
}

// NewPublisher constructs a Publisher over the given backend. Returns nil
// when backend is nil.
func NewPublisher(backend mq.Backend) *Publisher {
	if backend == nil {
		return nil
	}
	return &Publisher{backend: backend}
}

// Emit publishes a single event. Marshal or broker errors are logged only.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) {
	if p == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("events: marshal %s: %v", eventType, err)
		return
	}

	envelope, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now(),
		Data:       raw,
	})
	if err != nil {
		log.Printf("events: marshal %s: %v", eventType, err)
		return
	}

	attrs := map[string]string{"type": eventType}
	if _, err := p.backend.Publish(ctx, Channel, envelope, attrs); err != nil {
		log.Printf("events: publish %s: %v", eventType, err)
	}
}
