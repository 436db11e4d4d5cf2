//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ayatMaher/mindfulscreen-backend/internal/domain"
)

func setupRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("mindfulscreen"),
		postgrescontainer.WithUsername("mindfulscreen"),
		postgrescontainer.WithPassword("mindfulscreen"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool, zerolog.Nop())
}

func TestBulkUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	userID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	activity := domain.Activity{
		ID:          uuid.NewString(),
		UserID:      userID,
		DeviceID:    "device-1",
		URL:         "https://docs.example.com",
		Domain:      "docs.example.com",
		Category:    domain.CategoryProductive,
		DurationSec: 300,
		Timestamp:   now,
		SyncID:      "sync-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	saved, err := repo.BulkUpsert(ctx, []domain.Activity{activity})
	require.NoError(t, err)
	require.Equal(t, 1, saved)

	// Re-ingesting the same sync id must replace, not duplicate.
	activity.ID = uuid.NewString()
	activity.DurationSec = 900
	saved, err = repo.BulkUpsert(ctx, []domain.Activity{activity})
	require.NoError(t, err)
	require.Equal(t, 1, saved)

	count, err := repo.CountByUser(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	recent, err := repo.ListRecent(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.EqualValues(t, 900, recent[0].DurationSec)

	// The batch should have produced an outbox event.
	var outboxCount int
	err = repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = 'sync.batch_completed' AND partition_key = $1`, userID,
	).Scan(&outboxCount)
	require.NoError(t, err)
	require.GreaterOrEqual(t, outboxCount, 1)
}

func TestSummaryUpsertReplacesTotals(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	userID := uuid.NewString()
	summary := domain.DailySummary{
		UserID:       userID,
		Date:         "2026-03-10",
		TotalTimeSec: 1200,
		Categories:   domain.CategoryTotals{Productive: 1200},
	}
	require.NoError(t, repo.Upsert(ctx, summary))

	summary.TotalTimeSec = 600
	summary.Categories = domain.CategoryTotals{Social: 600}
	require.NoError(t, repo.Upsert(ctx, summary))

	stored, err := repo.Get(ctx, userID, "2026-03-10")
	require.NoError(t, err)
	require.EqualValues(t, 600, stored.TotalTimeSec)
	require.EqualValues(t, 0, stored.Categories.Productive)
	require.EqualValues(t, 600, stored.Categories.Social)

	var rowCount int
	err = repo.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM daily_summaries WHERE user_id = $1`, userID,
	).Scan(&rowCount)
	require.NoError(t, err)
	require.Equal(t, 1, rowCount)

	_, err = repo.Get(ctx, userID, "2026-03-11")
	require.ErrorIs(t, err, domain.ErrSummaryNotFound)
}

func TestAchievementInsertAndPagination(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	userID := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		err := repo.Insert(ctx, domain.Achievement{
			ID:          uuid.NewString(),
			UserID:      userID,
			Rule:        domain.RuleEarlyBird,
			Type:        domain.AchievementTypeFocus,
			Title:       "Early Bird",
			Description: "Started your day before 9 AM",
			Emoji:       "🐦",
			Metadata:    domain.EarlyBirdMetadata{StartHour: 7},
			EarnedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page1, next, err := repo.ListByUser(ctx, userID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, next)

	page2, _, err := repo.ListByUser(ctx, userID, 2, next)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	metadata, ok := page1[0].Metadata.(domain.EarlyBirdMetadata)
	require.True(t, ok)
	require.Equal(t, 7, metadata.StartHour)

	earned, err := repo.ListEarnedBetween(ctx, userID, base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, earned, 2)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
		"../../../db/postgres/migrations/0002_outbox_dlq_retry.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
