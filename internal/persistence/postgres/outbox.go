package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Event types recorded in the outbox alongside domain writes.
const (
	eventSyncBatchCompleted = "sync.batch_completed"
	eventSummaryUpserted    = "summary.upserted"
	eventAchievementEarned  = "achievement.earned"
)

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	eventSyncBatchCompleted: {
		Topic:         "sync_events",
		SchemaSubject: "sync_events-value",
	},
	eventSummaryUpserted: {
		Topic:         "summary_events",
		SchemaSubject: "summary_events-value",
	},
	eventAchievementEarned: {
		Topic:         "achievement_events",
		SchemaSubject: "achievement_events-value",
	},
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// insertOutbox records an event row for the dispatcher to deliver. It runs on
// whatever transaction or connection the caller is already using so the event
// commits (or fails) together with the domain write.
func insertOutbox(ctx context.Context, q execer, eventType, aggregateType, aggregateID, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = q.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}
