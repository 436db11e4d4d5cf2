package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestDeliverAppliesConfluentFraming(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(nil, producer, registry, zerolog.Nop(), 10*time.Millisecond, 5)

	payload := json.RawMessage(`{"user_id":"user-1","activities_saved":3,"occurred_at":"2026-03-10T08:00:00Z"}`)
	msg := Message{
		EventID:       1,
		AggregateType: "sync_batch",
		AggregateID:   "user-1",
		EventType:     "sync.batch_completed",
		Topic:         "sync_events",
		SchemaSubject: "sync_events-value",
		PartitionKey:  "user-1",
		Payload:       payload,
	}

	require.NoError(t, dispatcher.deliver(context.Background(), []Message{msg}))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "sync_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	record := producer.writes[0].messages[0]
	require.Equal(t, []byte("user-1"), record.Key)
	require.GreaterOrEqual(t, len(record.Value), 5)
	require.Equal(t, byte(0), record.Value[0], "magic byte")
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, string(payload), string(record.Value[5:]))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "sync.batch_completed", headers["event_type"])
	require.Equal(t, "sync_events-value", headers["schema_subject"])
}

func TestDeliverCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	dispatcher := NewDispatcher(nil, producer, registry, zerolog.Nop(), 10*time.Millisecond, 5)

	batch := []Message{
		seedMessage(1, "summary.upserted", "summary_events"),
		seedMessage(2, "summary.upserted", "summary_events"),
	}

	require.NoError(t, dispatcher.deliver(context.Background(), batch))
	require.Len(t, registry.calls, 1, "schema registry should be invoked once due to cache")

	// A later batch with the same subject reuses the cached ID as well.
	require.NoError(t, dispatcher.deliver(context.Background(), batch[:1]))
	require.Len(t, registry.calls, 1)
	require.Len(t, producer.writes, 2)
}

func TestDeliverGroupsMessagesByTopic(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 9}
	dispatcher := NewDispatcher(nil, producer, registry, zerolog.Nop(), 10*time.Millisecond, 5)

	batch := []Message{
		seedMessage(1, "sync.batch_completed", "sync_events"),
		seedMessage(2, "achievement.earned", "achievement_events"),
		seedMessage(3, "sync.batch_completed", "sync_events"),
	}

	require.NoError(t, dispatcher.deliver(context.Background(), batch))
	require.Len(t, producer.writes, 2)

	byTopic := map[string]int{}
	for _, w := range producer.writes {
		byTopic[w.topic] = len(w.messages)
	}
	require.Equal(t, map[string]int{"sync_events": 2, "achievement_events": 1}, byTopic)
}

func TestDeliverUnknownEventTypeFails(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 3}
	dispatcher := NewDispatcher(nil, producer, registry, zerolog.Nop(), 10*time.Millisecond, 5)

	err := dispatcher.deliver(context.Background(), []Message{seedMessage(1, "sync.unknown", "sync_events")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no schema metadata for event_type=sync.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesRegistryError(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{err: errors.New("registry unavailable")}
	dispatcher := NewDispatcher(nil, producer, registry, zerolog.Nop(), 10*time.Millisecond, 5)

	err := dispatcher.deliver(context.Background(), []Message{seedMessage(1, "summary.upserted", "summary_events")})
	require.ErrorContains(t, err, "registry unavailable")
	require.Empty(t, producer.writes)
}

func TestDeliverPropagatesProducerError(t *testing.T) {
	producer := &stubProducer{err: errors.New("kafka write failed")}
	registry := &stubRegistry{id: 11}
	dispatcher := NewDispatcher(nil, producer, registry, zerolog.Nop(), 10*time.Millisecond, 5)

	err := dispatcher.deliver(context.Background(), []Message{seedMessage(1, "achievement.earned", "achievement_events")})
	require.ErrorContains(t, err, "kafka write failed")
}

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"user_id":"user-1"}`)
	frame := encodeWireFormat(1024, payload)

	require.Len(t, frame, 5+len(payload))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(1024), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, payload, frame[5:])
}

func TestBackoffDelayGrowsExponentiallyWithCap(t *testing.T) {
	manager := NewDLQManager(nil, 5, time.Minute)

	require.Equal(t, time.Minute, manager.backoffDelay(1))
	require.Equal(t, 2*time.Minute, manager.backoffDelay(2))
	require.Equal(t, 4*time.Minute, manager.backoffDelay(3))
	require.Equal(t, 16*time.Minute, manager.backoffDelay(5))
	require.Equal(t, time.Hour, manager.backoffDelay(8))
	require.Equal(t, time.Hour, manager.backoffDelay(20))
}

func TestNewDLQManagerAppliesDefaults(t *testing.T) {
	manager := NewDLQManager(nil, 0, 0)
	require.Equal(t, 5, manager.maxRetries)
	require.Equal(t, time.Minute, manager.baseDelay)
}

func seedMessage(id int64, eventType, topic string) Message {
	return Message{
		EventID:       id,
		AggregateType: "sync_batch",
		AggregateID:   "user-1",
		EventType:     eventType,
		Topic:         topic,
		SchemaSubject: topic + "-value",
		PartitionKey:  "user-1",
		Payload:       json.RawMessage(`{"user_id":"user-1"}`),
	}
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)

	s.writes = append(s.writes, writtenBatch{
		topic:    topic,
		messages: copied,
	})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
