// Package postgres provides pgx-backed implementations of the domain store
// contracts plus the transactional outbox writes that ride along with them.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ayatMaher/mindfulscreen-backend/internal/domain"
	"github.com/ayatMaher/mindfulscreen-backend/internal/events"
	"github.com/ayatMaher/mindfulscreen-backend/internal/observability"
)

const activityColumns = `activity_id, user_id, device_id, url, title, site_domain, category, duration_sec, occurred_at, sync_id, created_at, updated_at`

// Repository implements the domain store contracts on top of Postgres.
type Repository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, logger zerolog.Logger) *Repository {
	return &Repository{pool: pool, log: logger}
}

// BulkUpsert persists the batch record by record so that an individual
// constraint failure drops that record only; the count of rows actually
// saved is reported either way.
func (r *Repository) BulkUpsert(ctx context.Context, activities []domain.Activity) (int, error) {
	if len(activities) == 0 {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (user_id, sync_id) DO UPDATE SET
            device_id = EXCLUDED.device_id,
            url = EXCLUDED.url,
            title = EXCLUDED.title,
            site_domain = EXCLUDED.site_domain,
            category = EXCLUDED.category,
            duration_sec = EXCLUDED.duration_sec,
            occurred_at = EXCLUDED.occurred_at,
            updated_at = EXCLUDED.updated_at`

	saved := 0
	for _, a := range activities {
		_, execErr := conn.Exec(ctx, stmt,
			a.ID, a.UserID, a.DeviceID, a.URL, a.Title, a.Domain,
			a.Category, a.DurationSec, a.Timestamp, a.SyncID, a.CreatedAt, a.UpdatedAt,
		)
		if execErr != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			r.log.Warn().Err(execErr).
				Str("user_id", a.UserID).
				Str("sync_id", a.SyncID).
				Msg("activity insert failed, dropping record")
			continue
		}
		saved++
	}

	if saved > 0 {
		first := activities[0]
		payload := events.SyncBatchCompleted{
			UserID:          first.UserID,
			DeviceID:        first.DeviceID,
			ActivitiesSaved: saved,
			OccurredAt:      time.Now().UTC(),
		}
		if err := insertOutbox(ctx, conn, eventSyncBatchCompleted, "sync_batch", first.UserID, first.UserID, payload); err != nil {
			// Event delivery is advisory; the batch itself is already durable.
			r.log.Warn().Err(err).Str("user_id", first.UserID).Msg("outbox write for sync batch failed")
		}
		observability.RecordBatchSynced(saved, time.Now().UTC())
	}

	return saved, nil
}

// DeleteBySyncIDs implements domain.ActivityStore.
func (r *Repository) DeleteBySyncIDs(ctx context.Context, userID string, syncIDs []string) error {
	if len(syncIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE user_id = $1 AND sync_id = ANY($2)`, userID, syncIDs)
	return err
}

// ListRecent implements domain.ActivityStore.
func (r *Repository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	const query = `SELECT ` + activityColumns + `
        FROM activities WHERE user_id = $1
        ORDER BY occurred_at DESC, activity_id DESC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows, limit)
}

// EarliestByUser implements domain.ActivityStore.
func (r *Repository) EarliestByUser(ctx context.Context, userID string) (*domain.Activity, error) {
	const query = `SELECT ` + activityColumns + `
        FROM activities WHERE user_id = $1
        ORDER BY occurred_at ASC, activity_id ASC
        LIMIT 1`

	row := r.pool.QueryRow(ctx, query, userID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// ListByCategoryOnDate implements domain.ActivityStore.
func (r *Repository) ListByCategoryOnDate(ctx context.Context, userID string, category domain.Category, date string) ([]domain.Activity, error) {
	dayStart, err := time.ParseInLocation(domain.DateFormat, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	const query = `SELECT ` + activityColumns + `
        FROM activities
        WHERE user_id = $1 AND category = $2 AND occurred_at >= $3 AND occurred_at < $4
        ORDER BY occurred_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, category, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows, 0)
}

// CountByUser implements domain.ActivityStore.
func (r *Repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// Upsert stores the summary with replace semantics and records the
// summary.upserted outbox event in the same transaction.
func (r *Repository) Upsert(ctx context.Context, summary domain.DailySummary) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	const stmt = `INSERT INTO daily_summaries
            (user_id, summary_date, total_time_sec, productive_sec, social_sec, entertainment_sec, shopping_sec, other_sec, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        ON CONFLICT (user_id, summary_date) DO UPDATE SET
            total_time_sec = EXCLUDED.total_time_sec,
            productive_sec = EXCLUDED.productive_sec,
            social_sec = EXCLUDED.social_sec,
            entertainment_sec = EXCLUDED.entertainment_sec,
            shopping_sec = EXCLUDED.shopping_sec,
            other_sec = EXCLUDED.other_sec,
            updated_at = EXCLUDED.updated_at`

	if _, err := tx.Exec(ctx, stmt,
		summary.UserID, summary.Date, summary.TotalTimeSec,
		summary.Categories.Productive, summary.Categories.Social, summary.Categories.Entertainment,
		summary.Categories.Shopping, summary.Categories.Other, now,
	); err != nil {
		return err
	}

	payload := events.SummaryUpserted{
		UserID:        summary.UserID,
		Date:          summary.Date,
		TotalTimeSec:  summary.TotalTimeSec,
		Productive:    summary.Categories.Productive,
		Social:        summary.Categories.Social,
		Entertainment: summary.Categories.Entertainment,
		Shopping:      summary.Categories.Shopping,
		Other:         summary.Categories.Other,
		OccurredAt:    now,
	}
	aggregateID := summary.UserID + ":" + summary.Date
	if err := insertOutbox(ctx, tx, eventSummaryUpserted, "daily_summary", aggregateID, summary.UserID, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordSummaryUpserted()
	return nil
}

// Get implements domain.SummaryStore.
func (r *Repository) Get(ctx context.Context, userID, date string) (*domain.DailySummary, error) {
	const query = `SELECT user_id, summary_date, total_time_sec, productive_sec, social_sec, entertainment_sec, shopping_sec, other_sec, created_at, updated_at
        FROM daily_summaries WHERE user_id = $1 AND summary_date = $2`

	summary, err := scanSummary(r.pool.QueryRow(ctx, query, userID, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSummaryNotFound
		}
		return nil, err
	}
	return summary, nil
}

// ListRange implements domain.SummaryStore.
func (r *Repository) ListRange(ctx context.Context, userID, from, to string) ([]domain.DailySummary, error) {
	const query = `SELECT user_id, summary_date, total_time_sec, productive_sec, social_sec, entertainment_sec, shopping_sec, other_sec, created_at, updated_at
        FROM daily_summaries
        WHERE user_id = $1 AND summary_date >= $2 AND summary_date <= $3
        ORDER BY summary_date ASC`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.DailySummary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, rows.Err()
}

// CountProductiveDays implements domain.SummaryStore.
func (r *Repository) CountProductiveDays(ctx context.Context, userID, from, to string, minProductiveSec int64) (int, error) {
	const query = `SELECT COUNT(*) FROM daily_summaries
        WHERE user_id = $1 AND summary_date >= $2 AND summary_date <= $3 AND productive_sec >= $4`

	var count int
	err := r.pool.QueryRow(ctx, query, userID, from, to, minProductiveSec).Scan(&count)
	return count, err
}

// Insert persists the achievement and records the achievement.earned outbox
// event in the same transaction.
func (r *Repository) Insert(ctx context.Context, achievement domain.Achievement) error {
	metadata, err := json.Marshal(achievement.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO achievements
            (achievement_id, user_id, rule, badge_type, title, description, emoji, metadata, earned_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	if _, err := tx.Exec(ctx, stmt,
		achievement.ID, achievement.UserID, achievement.Rule, achievement.Type,
		achievement.Title, achievement.Description, achievement.Emoji, metadata, achievement.EarnedAt,
	); err != nil {
		return err
	}

	payload := events.AchievementEarned{
		AchievementID: achievement.ID,
		UserID:        achievement.UserID,
		Rule:          string(achievement.Rule),
		Type:          string(achievement.Type),
		Title:         achievement.Title,
		EarnedAt:      achievement.EarnedAt,
	}
	if err := insertOutbox(ctx, tx, eventAchievementEarned, "achievement", achievement.ID, achievement.UserID, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordAchievementEarned(string(achievement.Rule))
	return nil
}

// ListByUser implements domain.AchievementStore with cursor pagination.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int, cursor *domain.Cursor) ([]domain.Achievement, *domain.Cursor, error) {
	query := `SELECT achievement_id, user_id, rule, badge_type, title, description, emoji, metadata, earned_at
        FROM achievements WHERE user_id = $1`
	args := []interface{}{userID, limit}

	if cursor != nil {
		query += ` AND (earned_at, achievement_id) < ($3, $4)`
		args = append(args, cursor.EarnedAt, cursor.ID)
	}
	query += ` ORDER BY earned_at DESC, achievement_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	achievements, err := scanAchievements(rows, limit)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(achievements) == limit {
		last := achievements[len(achievements)-1]
		next = &domain.Cursor{EarnedAt: last.EarnedAt, ID: last.ID}
	}
	return achievements, next, nil
}

// ListEarnedBetween implements domain.AchievementStore.
func (r *Repository) ListEarnedBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Achievement, error) {
	const query = `SELECT achievement_id, user_id, rule, badge_type, title, description, emoji, metadata, earned_at
        FROM achievements
        WHERE user_id = $1 AND earned_at >= $2 AND earned_at <= $3
        ORDER BY earned_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAchievements(rows, 0)
}

// ListAllByUser implements domain.AchievementStore.
func (r *Repository) ListAllByUser(ctx context.Context, userID string) ([]domain.Achievement, error) {
	const query = `SELECT achievement_id, user_id, rule, badge_type, title, description, emoji, metadata, earned_at
        FROM achievements WHERE user_id = $1
        ORDER BY earned_at DESC, achievement_id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAchievements(rows, 0)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	var a domain.Activity
	if err := row.Scan(&a.ID, &a.UserID, &a.DeviceID, &a.URL, &a.Title, &a.Domain,
		&a.Category, &a.DurationSec, &a.Timestamp, &a.SyncID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanActivities(rows pgx.Rows, capacity int) ([]domain.Activity, error) {
	activities := make([]domain.Activity, 0, capacity)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}

func scanSummary(row rowScanner) (*domain.DailySummary, error) {
	var s domain.DailySummary
	if err := row.Scan(&s.UserID, &s.Date, &s.TotalTimeSec,
		&s.Categories.Productive, &s.Categories.Social, &s.Categories.Entertainment,
		&s.Categories.Shopping, &s.Categories.Other, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanAchievements(rows pgx.Rows, capacity int) ([]domain.Achievement, error) {
	achievements := make([]domain.Achievement, 0, capacity)
	for rows.Next() {
		var (
			a    domain.Achievement
			rule string
			typ  string
			raw  []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &rule, &typ, &a.Title, &a.Description, &a.Emoji, &raw, &a.EarnedAt); err != nil {
			return nil, err
		}
		a.Rule = domain.RuleIdentity(rule)
		a.Type = domain.AchievementType(typ)
		metadata, err := domain.DecodeMetadata(a.Rule, raw)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", a.ID, err)
		}
		a.Metadata = metadata
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}
