package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidActivity marks a batch record that failed validation. Such records
// are dropped individually; they never fail the batch.
var ErrInvalidActivity = errors.New("invalid activity record")

// Evaluator derives achievements from a freshly upserted daily summary.
type Evaluator interface {
	EvaluateDaily(ctx context.Context, userID, date string, summary DailySummary) ([]Achievement, error)
}

// IncomingActivity is one client-reported browsing event in a sync batch.
type IncomingActivity struct {
	SyncID      string
	ExtensionID string
	URL         string
	Title       string
	Domain      string
	Category    Category
	DurationSec int64
	Timestamp   time.Time
}

// SummarySnapshot is the client's aggregate screen time for the current day.
type SummarySnapshot struct {
	TotalTimeSec int64
	Categories   CategoryTotals
}

// SyncInput carries one sync request from a device.
type SyncInput struct {
	UserID     string
	DeviceID   string
	Activities []IncomingActivity
	Summary    *SummarySnapshot
}

// SyncResult reports what a sync call persisted.
type SyncResult struct {
	ActivitiesSaved int
	SummarySaved    bool
	Timestamp       time.Time
}

// SyncOption configures optional behaviour for the SyncService.
type SyncOption func(*SyncService)

// WithSyncClock overrides the time source, primarily for tests.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *SyncService) {
		s.now = now
	}
}

// SyncService reconciles client activity batches into durable per-user
// history without duplication and keeps the daily summary current.
type SyncService struct {
	activities ActivityStore
	summaries  SummaryStore
	engine     Evaluator
	log        zerolog.Logger
	now        func() time.Time
}

// NewSyncService constructs a SyncService. The engine may be nil, in which
// case summary upserts do not trigger achievement evaluation.
func NewSyncService(activities ActivityStore, summaries SummaryStore, engine Evaluator, logger zerolog.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		activities: activities,
		summaries:  summaries,
		engine:     engine,
		log:        logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync deduplicates and persists the batch, upserts the optional daily
// summary, and triggers achievement evaluation as a best-effort side effect.
func (s *SyncService) Sync(ctx context.Context, input SyncInput) (SyncResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return SyncResult{}, errors.New("user id is required")
	}

	batch, stableKeys := s.transformBatch(input)

	if len(stableKeys) > 0 {
		// Replace previously stored rows for re-synced keys instead of
		// accumulating duplicates. Generated fallback keys are never matched:
		// each such event is always new.
		if err := s.activities.DeleteBySyncIDs(ctx, input.UserID, stableKeys); err != nil {
			return SyncResult{}, fmt.Errorf("delete duplicates: %w", err)
		}
	}

	saved := 0
	if len(batch) > 0 {
		var err error
		saved, err = s.activities.BulkUpsert(ctx, batch)
		if err != nil {
			return SyncResult{}, fmt.Errorf("bulk upsert: %w", err)
		}
	}

	result := SyncResult{ActivitiesSaved: saved, Timestamp: s.now().UTC()}

	if input.Summary != nil {
		today := s.now().UTC().Format(DateFormat)
		summary := DailySummary{
			UserID:       input.UserID,
			Date:         today,
			TotalTimeSec: input.Summary.TotalTimeSec,
			Categories:   input.Summary.Categories,
		}
		if err := s.summaries.Upsert(ctx, summary); err != nil {
			return SyncResult{}, fmt.Errorf("upsert summary: %w", err)
		}
		result.SummarySaved = true

		// Achievements are advisory: evaluation failures are logged and
		// swallowed so the sync response reflects persistence only.
		if s.engine != nil {
			if _, err := s.engine.EvaluateDaily(ctx, input.UserID, today, summary); err != nil {
				s.log.Error().Err(err).
					Str("user_id", input.UserID).
					Str("date", today).
					Msg("achievement evaluation failed")
			}
		}
	}

	return result, nil
}

// transformBatch validates and normalises incoming records, resolving the
// dedup key for each. It returns the persistable batch and the set of stable
// keys eligible for duplicate deletion.
func (s *SyncService) transformBatch(input SyncInput) ([]Activity, []string) {
	batch := make([]Activity, 0, len(input.Activities))
	stableKeys := make([]string, 0, len(input.Activities))

	for _, incoming := range input.Activities {
		if err := incoming.validate(); err != nil {
			s.log.Debug().Err(err).Str("user_id", input.UserID).Msg("dropping invalid activity")
			continue
		}

		key, stable := s.resolveSyncID(incoming)
		if stable {
			stableKeys = append(stableKeys, key)
		}

		category := incoming.Category
		if category == "" {
			category = CategoryOther
		}

		now := s.now().UTC()
		batch = append(batch, Activity{
			ID:          uuid.NewString(),
			UserID:      input.UserID,
			DeviceID:    input.DeviceID,
			URL:         incoming.URL,
			Title:       incoming.Title,
			Domain:      incoming.Domain,
			Category:    category,
			DurationSec: incoming.DurationSec,
			Timestamp:   incoming.Timestamp.UTC(),
			SyncID:      key,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return batch, stableKeys
}

// resolveSyncID picks the dedup key in priority order: client sync id, then
// client extension id, then a generated fallback that can never collide with
// a stored row.
func (s *SyncService) resolveSyncID(incoming IncomingActivity) (string, bool) {
	if key := strings.TrimSpace(incoming.SyncID); key != "" {
		return key, true
	}
	if key := strings.TrimSpace(incoming.ExtensionID); key != "" {
		return key, true
	}
	return fmt.Sprintf("%d-%s", s.now().UTC().UnixMilli(), uuid.NewString()[:8]), false
}

func (a IncomingActivity) validate() error {
	if a.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidActivity)
	}
	if a.DurationSec < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidActivity)
	}
	if a.Category != "" && !a.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidActivity, a.Category)
	}
	return nil
}
