package domain

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultAchievementLimit caps achievement listings.
	DefaultAchievementLimit = 20
	statsRecentCount        = 5
)

// AchievementStats summarises a user's earned badges.
type AchievementStats struct {
	Total        int
	ByType       map[AchievementType]int
	LastEarnedAt *time.Time
	Recent       []Achievement
}

// AchievementQueries serves the read-only achievement endpoints.
type AchievementQueries struct {
	store AchievementStore
}

// NewAchievementQueries constructs AchievementQueries.
func NewAchievementQueries(store AchievementStore) *AchievementQueries {
	return &AchievementQueries{store: store}
}

// List returns achievements newest first with cursor pagination.
func (q *AchievementQueries) List(ctx context.Context, userID string, limit int, cursor *Cursor) ([]Achievement, *Cursor, error) {
	if limit <= 0 || limit > DefaultAchievementLimit {
		limit = DefaultAchievementLimit
	}
	return q.store.ListByUser(ctx, userID, limit, cursor)
}

// Stats aggregates totals, per-type counts, and the five most recent badges.
func (q *AchievementQueries) Stats(ctx context.Context, userID string) (AchievementStats, error) {
	all, err := q.store.ListAllByUser(ctx, userID)
	if err != nil {
		return AchievementStats{}, fmt.Errorf("list achievements: %w", err)
	}

	stats := AchievementStats{
		Total:  len(all),
		ByType: make(map[AchievementType]int),
	}
	for _, a := range all {
		stats.ByType[a.Type]++
	}
	if len(all) > 0 {
		last := all[0].EarnedAt
		stats.LastEarnedAt = &last
	}
	recent := all
	if len(recent) > statsRecentCount {
		recent = recent[:statsRecentCount]
	}
	stats.Recent = recent
	return stats, nil
}
