package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// DefaultPublishPolicy retries auth event publishes from the outbox relay.
// A message that exhausts it stays in the outbox and is picked up again once
// its in-progress lease expires.
func DefaultPublishPolicy(log *zap.Logger) Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return Policy{
		Name:      "auth_event_publish",
		Attempts:  6,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool { return err != nil && !isCtxErr(err) },
		OnAttempt: func(i int, err error) {
			log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
		},
		OnExhaust: func(err error) {
			if !isCtxErr(err) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}
