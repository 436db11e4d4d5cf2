package domain

import (
	"context"
	"errors"
	"time"
)

// ErrSummaryNotFound is returned when no daily summary exists for a date.
var ErrSummaryNotFound = errors.New("daily summary not found")

// ActivityStore captures persistence operations for browsing activities.
type ActivityStore interface {
	// BulkUpsert persists the batch by (user, sync id), replacing existing
	// rows that share a key. It tolerates per-record failures and returns the
	// number of records actually saved.
	BulkUpsert(ctx context.Context, activities []Activity) (int, error)
	// DeleteBySyncIDs removes any stored activities for the user whose sync id
	// matches one of the given keys.
	DeleteBySyncIDs(ctx context.Context, userID string, syncIDs []string) error
	// ListRecent returns up to limit activities newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]Activity, error)
	// EarliestByUser returns the user's single earliest-timestamp activity
	// over all time, or nil when the user has none.
	EarliestByUser(ctx context.Context, userID string) (*Activity, error)
	// ListByCategoryOnDate returns the user's activities with the given
	// category whose timestamp falls on the UTC calendar date.
	ListByCategoryOnDate(ctx context.Context, userID string, category Category, date string) ([]Activity, error)
	// CountByUser returns the total number of stored activities for the user.
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// SummaryStore captures persistence operations for daily summaries.
type SummaryStore interface {
	// Upsert stores the summary for (user, date), fully replacing the totals
	// of any existing row (last write wins).
	Upsert(ctx context.Context, summary DailySummary) error
	// Get returns the summary for (user, date) or ErrSummaryNotFound.
	Get(ctx context.Context, userID, date string) (*DailySummary, error)
	// ListRange returns summaries with from <= date <= to, ascending by date.
	ListRange(ctx context.Context, userID, from, to string) ([]DailySummary, error)
	// CountProductiveDays counts summaries with from <= date <= to whose
	// productive total is at least minProductiveSec.
	CountProductiveDays(ctx context.Context, userID, from, to string, minProductiveSec int64) (int, error)
}

// AchievementStore captures persistence operations for earned achievements.
type AchievementStore interface {
	Insert(ctx context.Context, achievement Achievement) error
	// ListByUser returns achievements newest first with cursor pagination.
	ListByUser(ctx context.Context, userID string, limit int, cursor *Cursor) ([]Achievement, *Cursor, error)
	// ListEarnedBetween returns achievements earned within [from, to].
	ListEarnedBetween(ctx context.Context, userID string, from, to time.Time) ([]Achievement, error)
	// ListAllByUser returns every achievement for the user, newest first.
	ListAllByUser(ctx context.Context, userID string) ([]Achievement, error)
}

// Cursor models the pagination token for achievement listings.
type Cursor struct {
	EarnedAt time.Time
	ID       string
}
