package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/NordCoder/Reelpass/internal/domain/outbox"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

// OutboxRepo stores auth events next to the state change that produced them.
type OutboxRepo struct{ db *DB }

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

const (
	qOutboxInsert = `
INSERT INTO outbox (idempotency_key, kind, data, status, traceparent, tracestate, baggage)
VALUES ($1, $2, $3, 'CREATED', $4, $5, $6)
ON CONFLICT (idempotency_key) DO NOTHING`

	// A row is leased by flipping it to IN_PROGRESS. Leases older than $2
	// are treated as abandoned by a crashed relay and handed out again.
	qOutboxLease = `
UPDATE outbox o
SET status = 'IN_PROGRESS', updated_at = now()
FROM (
    SELECT idempotency_key
    FROM outbox
    WHERE status = 'CREATED'
       OR (status = 'IN_PROGRESS' AND updated_at < now() - make_interval(secs => $2))
    ORDER BY created_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
) due
WHERE o.idempotency_key = due.idempotency_key
RETURNING o.idempotency_key, o.kind, o.data, o.status, o.created_at, o.updated_at,
          o.traceparent, o.tracestate, o.baggage`

	qOutboxDone = `
UPDATE outbox SET status = 'SUCCESS', updated_at = now()
WHERE idempotency_key = ANY($1)`
)

// Enqueue is idempotent on key. Inside WithTx it joins the caller's
// transaction. The current trace context is stored with the row so the
// relay can continue the trace.
func (r *OutboxRepo) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	tc := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, tc)

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.conn(ctx).Exec(ctx, qOutboxInsert, key, kind, data,
		tc["traceparent"], tc["tracestate"], tc["baggage"]); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}

func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("outbox: batch must be positive")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.conn(ctx).Query(ctx, qOutboxLease, batch, inProgressTTL.Seconds())
	if err != nil {
		return nil, fmt.Errorf("lease outbox: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, scanOutboxMessage)
	if err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	return msgs, nil
}

func scanOutboxMessage(row pgx.CollectableRow) (outbox.Message, error) {
	var (
		m      outbox.Message
		status string
	)
	err := row.Scan(&m.IdempotencyKey, &m.Kind, &m.Data, &status, &m.CreatedAt, &m.UpdatedAt,
		&m.Traceparent, &m.Tracestate, &m.Baggage)
	m.Status = outbox.Status(status)
	return m, err
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.conn(ctx).Exec(ctx, qOutboxDone, keys); err != nil {
		return fmt.Errorf("mark outbox done: %w", err)
	}
	return nil
}
