package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/Reelpass/internal/config/api"
	"github.com/NordCoder/Reelpass/internal/obs/retry"
	"github.com/NordCoder/Reelpass/internal/outbox"
	kafkarepo "github.com/NordCoder/Reelpass/internal/repository/kafka"
)

// startOutbox relays stored auth events to kafka. With kafka disabled the
// events stay in the outbox table.
func startOutbox(ctx context.Context, cfg *config.Config, st *storage, logger *zap.Logger) (stop func()) {
	if !cfg.Kafka.Enable {
		logger.Info("kafka disabled, outbox relay not started")
		return func() {}
	}
	if err := kafkarepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkarepo.TopicSpec{Name: cfg.Kafka.Topic}, logger); err != nil {
		logger.Warn("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}

	producer := kafkarepo.NewProducer(cfg.Kafka, logger)
	publisher := kafkarepo.NewAuthEventsKafka(producer)

	runner := outbox.NewOutboxRunner(logger, st.outbox,
		outbox.RouteAuthEvents(publisher, retry.DefaultPublishPolicy(logger)), cfg.Outbox)
	runner.Start(ctx)
	logger.Info("outbox relay started", zap.String("topic", cfg.Kafka.Topic), zap.Int("workers", cfg.Outbox.Workers))

	return func() {
		runner.Wait()
		_ = producer.Close()
	}
}
