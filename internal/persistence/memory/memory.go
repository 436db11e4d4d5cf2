// Package memory provides in-memory store implementations for local
// development and unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayatMaher/mindfulscreen-backend/internal/domain"
)

// Store keeps activities, daily summaries, and achievements in process
// memory. It implements all three domain store contracts.
type Store struct {
	mu           sync.RWMutex
	activities   map[string]map[string]domain.Activity     // user id -> sync id
	summaries    map[string]map[string]domain.DailySummary // user id -> date
	achievements map[string][]domain.Achievement
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:   make(map[string]map[string]domain.Activity),
		summaries:    make(map[string]map[string]domain.DailySummary),
		achievements: make(map[string][]domain.Achievement),
	}
}

// BulkUpsert implements domain.ActivityStore.
func (s *Store) BulkUpsert(ctx context.Context, activities []domain.Activity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, activity := range activities {
		byKey, ok := s.activities[activity.UserID]
		if !ok {
			byKey = make(map[string]domain.Activity)
			s.activities[activity.UserID] = byKey
		}
		byKey[activity.SyncID] = activity
		saved++
	}
	return saved, nil
}

// DeleteBySyncIDs implements domain.ActivityStore.
func (s *Store) DeleteBySyncIDs(ctx context.Context, userID string, syncIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.activities[userID]
	for _, key := range syncIDs {
		delete(byKey, key)
	}
	return nil
}

// ListRecent implements domain.ActivityStore.
func (s *Store) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.userActivities(userID)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].ID > all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// EarliestByUser implements domain.ActivityStore.
func (s *Store) EarliestByUser(ctx context.Context, userID string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest *domain.Activity
	for _, activity := range s.activities[userID] {
		a := activity
		if earliest == nil || a.Timestamp.Before(earliest.Timestamp) {
			earliest = &a
		}
	}
	return earliest, nil
}

// ListByCategoryOnDate implements domain.ActivityStore.
func (s *Store) ListByCategoryOnDate(ctx context.Context, userID string, category domain.Category, date string) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Activity, 0)
	for _, activity := range s.activities[userID] {
		if activity.Category == category && activity.Timestamp.UTC().Format(domain.DateFormat) == date {
			matches = append(matches, activity)
		}
	}
	return matches, nil
}

// CountByUser implements domain.ActivityStore.
func (s *Store) CountByUser(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.activities[userID])), nil
}

// Upsert implements domain.SummaryStore with replace semantics.
func (s *Store) Upsert(ctx context.Context, summary domain.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.summaries[summary.UserID]
	if !ok {
		byDate = make(map[string]domain.DailySummary)
		s.summaries[summary.UserID] = byDate
	}
	now := time.Now().UTC()
	if existing, ok := byDate[summary.Date]; ok {
		summary.CreatedAt = existing.CreatedAt
	} else {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now
	byDate[summary.Date] = summary
	return nil
}

// Get implements domain.SummaryStore.
func (s *Store) Get(ctx context.Context, userID, date string) (*domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[userID][date]
	if !ok {
		return nil, domain.ErrSummaryNotFound
	}
	return &summary, nil
}

// ListRange implements domain.SummaryStore.
func (s *Store) ListRange(ctx context.Context, userID, from, to string) ([]domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DailySummary, 0)
	for date, summary := range s.summaries[userID] {
		if date >= from && date <= to {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// CountProductiveDays implements domain.SummaryStore.
func (s *Store) CountProductiveDays(ctx context.Context, userID, from, to string, minProductiveSec int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for date, summary := range s.summaries[userID] {
		if date >= from && date <= to && summary.Categories.Productive >= minProductiveSec {
			count++
		}
	}
	return count, nil
}

// Insert implements domain.AchievementStore.
func (s *Store) Insert(ctx context.Context, achievement domain.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements[achievement.UserID] = append(s.achievements[achievement.UserID], achievement)
	return nil
}

// ListByUser implements domain.AchievementStore.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int, cursor *domain.Cursor) ([]domain.Achievement, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedAchievements(userID)
	if cursor != nil {
		filtered := all[:0:0]
		for _, a := range all {
			if a.EarnedAt.Before(cursor.EarnedAt) || (a.EarnedAt.Equal(cursor.EarnedAt) && a.ID < cursor.ID) {
				filtered = append(filtered, a)
			}
		}
		all = filtered
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	var next *domain.Cursor
	if limit > 0 && len(all) == limit {
		last := all[len(all)-1]
		next = &domain.Cursor{EarnedAt: last.EarnedAt, ID: last.ID}
	}
	return all, next, nil
}

// ListEarnedBetween implements domain.AchievementStore.
func (s *Store) ListEarnedBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Achievement, 0)
	for _, a := range s.achievements[userID] {
		if !a.EarnedAt.Before(from) && !a.EarnedAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListAllByUser implements domain.AchievementStore.
func (s *Store) ListAllByUser(ctx context.Context, userID string) ([]domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedAchievements(userID), nil
}

func (s *Store) userActivities(userID string) []domain.Activity {
	all := make([]domain.Activity, 0, len(s.activities[userID]))
	for _, activity := range s.activities[userID] {
		all = append(all, activity)
	}
	return all
}

func (s *Store) sortedAchievements(userID string) []domain.Achievement {
	all := make([]domain.Achievement, len(s.achievements[userID]))
	copy(all, s.achievements[userID])
	sort.Slice(all, func(i, j int) bool {
		if !all[i].EarnedAt.Equal(all[j].EarnedAt) {
			return all[i].EarnedAt.After(all[j].EarnedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all
}
