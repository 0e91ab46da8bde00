package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/obs/retry"
)

// Publisher delivers one auth event downstream.
type Publisher interface {
	Publish(ctx context.Context, kind outbox.Kind, data []byte) error
}

var (
	relayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_event_relay_duration_seconds",
		Help:    "Time to relay one auth event, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	relayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_event_relay_failures_total",
		Help: "Auth events left in the outbox after the retry budget.",
	}, []string{"kind"})
)

// RouteAuthEvents sends every known auth event kind to pub under pol.
// Unknown kinds are rejected so the runner leaves them untouched.
func RouteAuthEvents(pub Publisher, pol retry.Policy) outbox.GlobalHandler {
	tr := otel.Tracer("outbox.relay")
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindUserRegistered, outbox.KindPasswordChanged, outbox.KindSessionsRevoked:
		default:
			return nil, fmt.Errorf("no route for outbox kind %d", kind)
		}

		name := kind.String()
		p := pol
		if p.Name == "" {
			p.Name = "relay_" + name
		}
		return func(ctx context.Context, data []byte) error {
			ctx, span := tr.Start(ctx, "relay "+name,
				trace.WithAttributes(attribute.String("event.kind", name)))
			defer span.End()

			defer func(start time.Time) {
				relayDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}(time.Now())

			err := retry.Do(ctx, func() error { return pub.Publish(ctx, kind, data) }, p)
			if err != nil {
				relayFailures.WithLabelValues(name).Inc()
				span.RecordError(err)
				span.SetStatus(codes.Error, "relay failed")
			}
			return err
		}, nil
	}
}
