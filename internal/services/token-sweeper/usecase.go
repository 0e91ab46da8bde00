package token_sweeper

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Purger deletes refresh tokens whose expiry has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Usecase struct {
	Tokens Purger
}

func NewUC(tokens Purger) *Usecase {
	return &Usecase{Tokens: tokens}
}

func (u *Usecase) Tick(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("token_sweeper.uc").Start(ctx, "token_sweeper.tick")
	defer span.End()

	n, err := u.Tokens.PurgeExpired(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	span.SetAttributes(attribute.Int64("tokens.purged", n))
	return n, nil
}
