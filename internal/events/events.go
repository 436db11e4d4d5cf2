// Package events defines the payloads published through the outbox.
package events

import "time"

// SyncBatchCompleted is emitted once per sync call that persisted activities.
type SyncBatchCompleted struct {
	UserID          string    `json:"user_id"`
	DeviceID        string    `json:"device_id"`
	ActivitiesSaved int       `json:"activities_saved"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// SummaryUpserted is emitted whenever a daily summary is created or replaced.
type SummaryUpserted struct {
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	TotalTimeSec  int64     `json:"total_time_sec"`
	Productive    int64     `json:"productive_sec"`
	Social        int64     `json:"social_sec"`
	Entertainment int64     `json:"entertainment_sec"`
	Shopping      int64     `json:"shopping_sec"`
	Other         int64     `json:"other_sec"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AchievementEarned is emitted when the engine awards a new badge.
type AchievementEarned struct {
	AchievementID string    `json:"achievement_id"`
	UserID        string    `json:"user_id"`
	Rule          string    `json:"rule"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	EarnedAt      time.Time `json:"earned_at"`
}
