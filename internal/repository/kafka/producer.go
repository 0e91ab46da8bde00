package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Config struct {
	Enable       bool          `mapstructure:"enable"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON events to one topic. Messages with the same key go to
// the same partition.
type Producer struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewProducer(cfg Config, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	wt := cfg.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: wt,
		},
		topic: cfg.Topic,
		log:   log.With(zap.String("component", "kafka.producer"), zap.String("topic", cfg.Topic)),
	}
}

// PublishJSON marshals v and writes it under key inside a producer span whose
// context travels in the message headers.
func (p *Producer) PublishJSON(ctx context.Context, key []byte, eventType string, v any) (err error) {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, p.topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
		}
		span.End()
	}()

	hdrs := newHeaders(eventType)
	otel.GetTextMapPropagator().Inject(ctx, hdrs)

	if err = p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Headers: hdrs.list()}); err != nil {
		p.log.Warn("write failed", zap.String("event_type", eventType), zap.Error(err))
		return fmt.Errorf("write %s: %w", eventType, err)
	}
	p.log.Debug("published", zap.String("event_type", eventType), zap.Int("bytes", len(value)))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

func userKey(id int64) []byte { return strconv.AppendInt(nil, id, 10) }
