package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/Reelpass/internal/domain/outbox"
)

// AuthEventsKafka publishes auth outbox events keyed by user id, so every
// event of one user lands in the same partition in order.
type AuthEventsKafka struct {
	p *Producer
}

func NewAuthEventsKafka(p *Producer) *AuthEventsKafka { return &AuthEventsKafka{p: p} }

type authEnvelope struct {
	Type string `json:"type"`
	outbox.UserEvent
}

func (e *AuthEventsKafka) Publish(ctx context.Context, kind outbox.Kind, data []byte) error {
	var ev outbox.UserEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}
	return e.p.PublishJSON(ctx, userKey(ev.UserID), kind.String(), authEnvelope{Type: kind.String(), UserEvent: ev})
}
