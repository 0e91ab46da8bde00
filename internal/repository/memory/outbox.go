package memory

import (
	"context"
	"errors"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/outbox"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

type OutboxRepo struct{ s *Store }

func NewOutboxRepo(s *Store) *OutboxRepo { return &OutboxRepo{s: s} }

func (r *OutboxRepo) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.events[key]; exists {
		return nil
	}
	now := r.s.now()
	r.s.events[key] = &outbox.Message{
		IdempotencyKey: key,
		Kind:           kind,
		Data:           append([]byte(nil), data...),
		Status:         outbox.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.order = append(r.s.order, key)
	return nil
}

func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	defer r.s.lock(ctx)()

	now := r.s.now()
	var out []outbox.Message
	for _, key := range r.s.order {
		if len(out) == batch {
			break
		}
		m := r.s.events[key]
		stale := m.Status == outbox.StatusInProgress && m.UpdatedAt.Before(now.Add(-inProgressTTL))
		if m.Status != outbox.StatusCreated && !stale {
			continue
		}
		m.Status = outbox.StatusInProgress
		m.UpdatedAt = now
		out = append(out, *m)
	}
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	defer r.s.lock(ctx)()

	now := r.s.now()
	for _, k := range keys {
		if m, ok := r.s.events[k]; ok {
			m.Status = outbox.StatusSuccess
			m.UpdatedAt = now
		}
	}
	return nil
}

// Messages returns every enqueued message in insertion order.
func (r *OutboxRepo) Messages() []outbox.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]outbox.Message, 0, len(r.s.order))
	for _, k := range r.s.order {
		out = append(out, *r.s.events[k])
	}
	return out
}
