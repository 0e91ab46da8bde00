package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind int

const (
	KindUserRegistered  Kind = 1
	KindPasswordChanged Kind = 2
	KindSessionsRevoked Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindUserRegistered:
		return "user.registered"
	case KindPasswordChanged:
		return "user.password_changed"
	case KindSessionsRevoked:
		return "user.sessions_revoked"
	default:
		return "unknown"
	}
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// UserEvent is the payload of every auth event kind.
type UserEvent struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	Revoked  int64     `json:"revoked,omitempty"`
	At       time.Time `json:"at"`
}

type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)

// Enqueuer is the write side of Repository.
type Enqueuer interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
}

// Emit stores ev under a fresh idempotency key. A nil sink drops the event.
func Emit(ctx context.Context, sink Enqueuer, kind Kind, ev UserEvent) error {
	if sink == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if err := sink.Enqueue(ctx, uuid.NewString(), kind, data); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}
