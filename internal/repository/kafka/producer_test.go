package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestAuthEventsKafka_Publish(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{w: w, topic: "reelpass.auth.events", log: zap.NewNop()}
	events := NewAuthEventsKafka(p)

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(outbox.UserEvent{UserID: 42, Username: "alice01", At: at})
	require.NoError(t, err)

	require.NoError(t, events.Publish(context.Background(), outbox.KindUserRegistered, data))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("42"), msg.Key)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "user.registered", body["type"])
	assert.Equal(t, float64(42), body["user_id"])
	assert.Equal(t, "alice01", body["username"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "user.registered", headers["event_type"])
}

func TestAuthEventsKafka_BadPayload(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{w: w, topic: "t", log: zap.NewNop()}

	err := NewAuthEventsKafka(p).Publish(context.Background(), outbox.KindPasswordChanged, []byte("{"))
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

type failingWriter struct{ captureWriter }

func (w *failingWriter) WriteMessages(context.Context, ...kafka.Message) error {
	return errors.New("broker unreachable")
}

func TestProducer_WriteErrorIsWrapped(t *testing.T) {
	p := &Producer{w: &failingWriter{}, topic: "t", log: zap.NewNop()}

	err := p.PublishJSON(context.Background(), userKey(7), "user.password_changed", map[string]int{"user_id": 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user.password_changed")
	assert.Contains(t, err.Error(), "broker unreachable")
}
