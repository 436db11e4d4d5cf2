package outbox

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	"sync.batch_completed": {
		Schema: syncBatchCompletedSchema,
	},
	"summary.upserted": {
		Schema: summaryUpsertedSchema,
	},
	"achievement.earned": {
		Schema: achievementEarnedSchema,
	},
}

const syncBatchCompletedSchema = `{
  "type": "object",
  "title": "SyncBatchCompleted",
  "properties": {
    "user_id": {"type": "string"},
    "device_id": {"type": "string"},
    "activities_saved": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "activities_saved", "occurred_at"],
  "additionalProperties": false
}`

const summaryUpsertedSchema = `{
  "type": "object",
  "title": "SummaryUpserted",
  "properties": {
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "total_time_sec": {"type": "integer"},
    "productive_sec": {"type": "integer"},
    "social_sec": {"type": "integer"},
    "entertainment_sec": {"type": "integer"},
    "shopping_sec": {"type": "integer"},
    "other_sec": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "date", "total_time_sec", "occurred_at"],
  "additionalProperties": false
}`

const achievementEarnedSchema = `{
  "type": "object",
  "title": "AchievementEarned",
  "properties": {
    "achievement_id": {"type": "string"},
    "user_id": {"type": "string"},
    "rule": {"type": "string"},
    "type": {"type": "string"},
    "title": {"type": "string"},
    "earned_at": {"type": "string", "format": "date-time"}
  },
  "required": ["achievement_id", "user_id", "rule", "type", "earned_at"],
  "additionalProperties": false
}`
