// Package outbox relays auth events stored in the outbox to the broker.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/obs"
)

var (
	relayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_messages_total",
		Help: "Outbox messages handled by the relay, by result.",
	}, []string{"result"})
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_size",
		Help:    "Messages leased per relay pass.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_pass_duration_seconds",
		Help:    "Duration of one relay pass.",
		Buckets: prometheus.DefBuckets,
	})
)

type RunnerConfig struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.WaitTime <= 0 {
		c.WaitTime = time.Second
	}
	if c.InProgressTTL <= 0 {
		c.InProgressTTL = time.Minute
	}
	return c
}

// Runner polls the outbox from Workers goroutines. Rows are leased with
// SKIP LOCKED semantics so workers never share a message.
type Runner struct {
	log    *zap.Logger
	repo   outbox.Repository
	route  outbox.GlobalHandler
	cfg    RunnerConfig
	tracer trace.Tracer

	wg sync.WaitGroup
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, route outbox.GlobalHandler, cfg RunnerConfig) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:    log.With(zap.String("component", "outbox.runner")),
		repo:   repo,
		route:  route,
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("outbox.runner"),
	}
}

// Start launches the workers. They exit once ctx is done; Wait blocks until
// all of them have.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("relay workers starting",
		zap.Int("workers", r.cfg.Workers), zap.Duration("wait", r.cfg.WaitTime))
	for range r.cfg.Workers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loop(ctx)
		}()
	}
}

func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context) {
	t := time.NewTicker(r.cfg.WaitTime)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.pass(ctx)
		}
	}
}

// pass leases one batch, relays each message and marks the delivered ones.
// Failed messages stay IN_PROGRESS until their lease runs out.
func (r *Runner) pass(ctx context.Context) {
	defer func(start time.Time) { passDuration.Observe(time.Since(start).Seconds()) }(time.Now())

	ctx, span := r.tracer.Start(ctx, "outbox.pass",
		trace.WithAttributes(attribute.Int("outbox.batch_limit", r.cfg.BatchSize)))
	defer span.End()

	msgs, err := r.repo.PickBatch(ctx, r.cfg.BatchSize, r.cfg.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		obs.WithTrace(ctx, r.log).Error("lease batch", zap.Error(err))
		return
	}
	batchSize.Observe(float64(len(msgs)))
	if len(msgs) == 0 {
		return
	}

	done := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if r.relay(ctx, m) {
			done = append(done, m.IdempotencyKey)
		}
	}
	if err := r.repo.MarkSuccess(ctx, done); err != nil {
		span.RecordError(err)
		obs.WithTrace(ctx, r.log).Error("mark delivered", zap.Int("count", len(done)), zap.Error(err))
	}
}

// relay runs the routed handler under the trace stored with the message.
func (r *Runner) relay(ctx context.Context, m outbox.Message) bool {
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})
	ctx, span := r.tracer.Start(parent, "outbox.relay", trace.WithAttributes(
		attribute.String("outbox.key", m.IdempotencyKey),
		attribute.String("outbox.kind", m.Kind.String()),
	))
	defer span.End()
	log := obs.WithTrace(ctx, r.log).With(zap.String("key", m.IdempotencyKey), zap.Stringer("kind", m.Kind))

	handle, err := r.route(m.Kind)
	if err != nil {
		span.RecordError(err)
		relayed.WithLabelValues("unroutable").Inc()
		log.Error("unroutable message", zap.Error(err))
		return false
	}
	if err := handle(ctx, m.Data); err != nil {
		span.RecordError(err)
		relayed.WithLabelValues("failed").Inc()
		log.Warn("relay failed", zap.Error(err))
		return false
	}
	relayed.WithLabelValues("ok").Inc()
	return true
}
