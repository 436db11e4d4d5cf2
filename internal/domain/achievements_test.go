package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayatMaher/mindfulscreen-backend/internal/domain"
	"github.com/ayatMaher/mindfulscreen-backend/internal/persistence/memory"
)

func newEngine(store *memory.Store, now time.Time) *domain.Engine {
	return domain.NewEngine(store, store, store, zerolog.Nop(), domain.WithEngineClock(fixedClock(now)))
}

func TestProductiveStreakAwardedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)
	engine := newEngine(store, now)

	summary := domain.DailySummary{
		UserID:       "user-1",
		Date:         "2025-03-10",
		TotalTimeSec: 7200,
		Categories:   domain.CategoryTotals{Productive: 7200},
	}

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", summary)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	require.Equal(t, domain.RuleProductiveStreak, earned[0].Rule)
	require.Equal(t, domain.AchievementTypeProductivity, earned[0].Type)
	require.Equal(t, "Productivity Pro", earned[0].Title)
	require.Equal(t, domain.ProductiveStreakMetadata{ProductiveTimeSec: 7200}, earned[0].Metadata)

	// Re-running for the same day awards nothing new.
	earned, err = engine.EvaluateDaily(ctx, "user-1", "2025-03-10", summary)
	require.NoError(t, err)
	require.Empty(t, earned)

	all, err := store.ListAllByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestProductiveStreakBelowThreshold(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	summary := domain.DailySummary{
		UserID:       "user-1",
		Date:         "2025-03-10",
		TotalTimeSec: 7199,
		Categories:   domain.CategoryTotals{Productive: 7199},
	}

	// 7199s productive still qualifies for balanced_day (ratio 1.0) but not
	// the 2-hour streak.
	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", summary)
	require.NoError(t, err)
	for _, a := range earned {
		require.NotEqual(t, domain.RuleProductiveStreak, a.Rule)
	}
}

func TestBalancedDayRatios(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	summary := domain.DailySummary{
		UserID:       "user-1",
		Date:         "2025-03-10",
		TotalTimeSec: 10000,
		Categories:   domain.CategoryTotals{Productive: 5000, Social: 2000},
	}

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", summary)
	require.NoError(t, err)

	var balanced *domain.Achievement
	for i := range earned {
		if earned[i].Rule == domain.RuleBalancedDay {
			balanced = &earned[i]
		}
	}
	require.NotNil(t, balanced)
	meta, ok := balanced.Metadata.(domain.BalancedDayMetadata)
	require.True(t, ok)
	require.InDelta(t, 0.2, meta.SocialRatio, 1e-9)
	require.InDelta(t, 0.5, meta.ProductiveRatio, 1e-9)
}

func TestBalancedDaySkippedOnHighSocialRatio(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	summary := domain.DailySummary{
		UserID:       "user-1",
		Date:         "2025-03-10",
		TotalTimeSec: 10000,
		Categories:   domain.CategoryTotals{Productive: 5000, Social: 4000},
	}

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", summary)
	require.NoError(t, err)
	for _, a := range earned {
		require.NotEqual(t, domain.RuleBalancedDay, a.Rule)
	}
}

func TestBalancedDayZeroTotalGuard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	summary := domain.DailySummary{UserID: "user-1", Date: "2025-03-10"}

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", summary)
	require.NoError(t, err, "zero total time must not divide by zero")
	for _, a := range earned {
		require.NotEqual(t, domain.RuleBalancedDay, a.Rule)
	}
}

func TestEarlyBirdUsesAllTimeEarliestActivity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	// The earliest activity predates the evaluated date by months. The rule
	// still awards: the lookup is all-time, not scoped to the evaluated day.
	_, err := store.BulkUpsert(ctx, []domain.Activity{
		{
			ID:        "a-old",
			UserID:    "user-1",
			SyncID:    "old",
			Category:  domain.CategoryProductive,
			Timestamp: time.Date(2024, time.November, 2, 6, 15, 0, 0, time.UTC),
		},
		{
			ID:        "a-new",
			UserID:    "user-1",
			SyncID:    "new",
			Category:  domain.CategoryProductive,
			Timestamp: time.Date(2025, time.March, 10, 13, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", domain.DailySummary{UserID: "user-1", Date: "2025-03-10"})
	require.NoError(t, err)

	var earlyBird *domain.Achievement
	for i := range earned {
		if earned[i].Rule == domain.RuleEarlyBird {
			earlyBird = &earned[i]
		}
	}
	require.NotNil(t, earlyBird)
	require.Equal(t, domain.EarlyBirdMetadata{StartHour: 6}, earlyBird.Metadata)
}

func TestEarlyBirdNotAwardedForLateStart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	_, err := store.BulkUpsert(ctx, []domain.Activity{{
		ID:        "a-1",
		UserID:    "user-1",
		SyncID:    "k",
		Category:  domain.CategoryProductive,
		Timestamp: time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", domain.DailySummary{UserID: "user-1", Date: "2025-03-10"})
	require.NoError(t, err)
	for _, a := range earned {
		require.NotEqual(t, domain.RuleEarlyBird, a.Rule)
	}
}

func TestFocusMasterCountsLongProductiveSessions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	_, err := store.BulkUpsert(ctx, []domain.Activity{
		{ID: "a1", UserID: "user-1", SyncID: "s1", Category: domain.CategoryProductive, DurationSec: 1800, Timestamp: day.Add(10 * time.Hour)},
		{ID: "a2", UserID: "user-1", SyncID: "s2", Category: domain.CategoryProductive, DurationSec: 2400, Timestamp: day.Add(14 * time.Hour)},
		{ID: "a3", UserID: "user-1", SyncID: "s3", Category: domain.CategoryProductive, DurationSec: 600, Timestamp: day.Add(16 * time.Hour)},
		// Long session on the wrong day must not count.
		{ID: "a4", UserID: "user-1", SyncID: "s4", Category: domain.CategoryProductive, DurationSec: 3600, Timestamp: day.AddDate(0, 0, -1)},
		// Long session with the wrong category must not count.
		{ID: "a5", UserID: "user-1", SyncID: "s5", Category: domain.CategoryEntertainment, DurationSec: 3600, Timestamp: day.Add(12 * time.Hour)},
	})
	require.NoError(t, err)

	earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", domain.DailySummary{UserID: "user-1", Date: "2025-03-10"})
	require.NoError(t, err)

	var focus *domain.Achievement
	for i := range earned {
		if earned[i].Rule == domain.RuleFocusMaster {
			focus = &earned[i]
		}
	}
	require.NotNil(t, focus)
	require.Equal(t, domain.FocusMasterMetadata{LongSessions: 2}, focus.Metadata)
}

func TestWeeklyStreakNeedsFiveProductiveDays(t *testing.T) {
	ctx := context.Background()

	seed := func(store *memory.Store, productiveDays int) {
		day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
		for i := 1; i <= productiveDays; i++ {
			date := day.AddDate(0, 0, -i).Format(domain.DateFormat)
			require.NoError(t, store.Upsert(ctx, domain.DailySummary{
				UserID:       "user-1",
				Date:         date,
				TotalTimeSec: 4000,
				Categories:   domain.CategoryTotals{Productive: 3600},
			}))
		}
		// A trailing-week day below the productive threshold never counts.
		require.NoError(t, store.Upsert(ctx, domain.DailySummary{
			UserID:       "user-1",
			Date:         day.AddDate(0, 0, -7).Format(domain.DateFormat),
			TotalTimeSec: 1000,
			Categories:   domain.CategoryTotals{Productive: 1000},
		}))
	}

	t.Run("five qualifying days award", func(t *testing.T) {
		store := memory.NewStore()
		seed(store, 5)
		engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

		earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", domain.DailySummary{UserID: "user-1", Date: "2025-03-10"})
		require.NoError(t, err)

		var weekly *domain.Achievement
		for i := range earned {
			if earned[i].Rule == domain.RuleWeeklyStreak {
				weekly = &earned[i]
			}
		}
		require.NotNil(t, weekly)
		require.Equal(t, domain.AchievementTypeStreak, weekly.Type)
		require.Equal(t, domain.WeeklyStreakMetadata{ProductiveDays: 5}, weekly.Metadata)
	})

	t.Run("four qualifying days do not", func(t *testing.T) {
		store := memory.NewStore()
		seed(store, 4)
		engine := newEngine(store, time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC))

		earned, err := engine.EvaluateDaily(ctx, "user-1", "2025-03-10", domain.DailySummary{UserID: "user-1", Date: "2025-03-10"})
		require.NoError(t, err)
		for _, a := range earned {
			require.NotEqual(t, domain.RuleWeeklyStreak, a.Rule)
		}
	})
}

func TestAchievementStats(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	queries := domain.NewAchievementQueries(store)

	base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	rules := []struct {
		rule domain.RuleIdentity
		typ  domain.AchievementType
	}{
		{domain.RuleProductiveStreak, domain.AchievementTypeProductivity},
		{domain.RuleBalancedDay, domain.AchievementTypeTimeManagement},
		{domain.RuleEarlyBird, domain.AchievementTypeFocus},
		{domain.RuleFocusMaster, domain.AchievementTypeFocus},
		{domain.RuleWeeklyStreak, domain.AchievementTypeStreak},
		{domain.RuleProductiveStreak, domain.AchievementTypeProductivity},
	}
	for i, r := range rules {
		require.NoError(t, store.Insert(ctx, domain.Achievement{
			ID:       string(rune('a' + i)),
			UserID:   "user-1",
			Rule:     r.rule,
			Type:     r.typ,
			EarnedAt: base.AddDate(0, 0, i),
		}))
	}

	stats, err := queries.Stats(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 6, stats.Total)
	require.Equal(t, 2, stats.ByType[domain.AchievementTypeProductivity])
	require.Equal(t, 2, stats.ByType[domain.AchievementTypeFocus])
	require.Len(t, stats.Recent, 5)
	require.NotNil(t, stats.LastEarnedAt)
	require.Equal(t, base.AddDate(0, 0, 5), *stats.LastEarnedAt)
}

func TestAchievementStatsEmptyUser(t *testing.T) {
	queries := domain.NewAchievementQueries(memory.NewStore())

	stats, err := queries.Stats(context.Background(), "nobody")
	require.NoError(t, err)
	require.Zero(t, stats.Total)
	require.Nil(t, stats.LastEarnedAt)
	require.Empty(t, stats.Recent)
}
