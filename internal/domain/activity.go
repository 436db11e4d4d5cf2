// Package domain defines the business logic for the mindfulscreen sync service.
package domain

import "time"

// Category classifies a browsing activity.
type Category string

const (
	CategoryProductive    Category = "productive"
	CategorySocial        Category = "social"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategoryOther         Category = "other"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryProductive, CategorySocial, CategoryEntertainment, CategoryShopping, CategoryOther:
		return true
	}
	return false
}

// Activity is the canonical browsing event stored per user. SyncID is the
// dedup key: at most one activity exists per (user, SyncID), and re-ingestion
// with the same key replaces the stored record.
type Activity struct {
	ID          string
	UserID      string
	DeviceID    string
	URL         string
	Title       string
	Domain      string
	Category    Category
	DurationSec int64
	Timestamp   time.Time
	SyncID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryTotals holds per-category screen time in seconds.
type CategoryTotals struct {
	Productive    int64 `json:"productive"`
	Social        int64 `json:"social"`
	Entertainment int64 `json:"entertainment"`
	Shopping      int64 `json:"shopping"`
	Other         int64 `json:"other"`
}

// DailySummary is the single aggregate record of a user's screen time for one
// calendar date (YYYY-MM-DD). Upserts fully replace the totals for that date;
// the server never accumulates into an existing row.
type DailySummary struct {
	UserID       string
	Date         string
	TotalTimeSec int64
	Categories   CategoryTotals
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DateFormat is the calendar-date layout used for summary keys and range queries.
const DateFormat = "2006-01-02"
