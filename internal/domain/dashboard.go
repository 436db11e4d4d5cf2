package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	dashboardRecentLimit = 20
	dashboardWindowDays  = 7
)

// Dashboard is the read-only composition returned to clients: recent history,
// today's totals, the trailing week, and lifetime counters.
type Dashboard struct {
	Activities      []Activity
	TodaySummary    DailySummary
	WeeklySummaries []DailySummary
	Totals          DashboardTotals
}

// DashboardTotals carries the counters shown on the dashboard header.
type DashboardTotals struct {
	ActivityCount int64
	DaysTracked   int
}

// DashboardOption configures optional behaviour for the Assembler.
type DashboardOption func(*Assembler)

// WithDashboardClock overrides the time source, primarily for tests.
func WithDashboardClock(now func() time.Time) DashboardOption {
	return func(a *Assembler) {
		a.now = now
	}
}

// Assembler composes dashboard reads across the three stores. It holds no
// state and performs no mutation.
type Assembler struct {
	activities ActivityStore
	summaries  SummaryStore
	now        func() time.Time
}

// NewAssembler constructs an Assembler.
func NewAssembler(activities ActivityStore, summaries SummaryStore, opts ...DashboardOption) *Assembler {
	a := &Assembler{
		activities: activities,
		summaries:  summaries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the dashboard for the user. Absent data yields zero-filled
// defaults rather than errors.
func (a *Assembler) Assemble(ctx context.Context, userID string) (*Dashboard, error) {
	recent, err := a.activities.ListRecent(ctx, userID, dashboardRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent activities: %w", err)
	}

	today := a.now().UTC().Format(DateFormat)
	summary, err := a.summaries.Get(ctx, userID, today)
	if err != nil {
		if !errors.Is(err, ErrSummaryNotFound) {
			return nil, fmt.Errorf("get today summary: %w", err)
		}
		summary = &DailySummary{UserID: userID, Date: today}
	}

	weekAgo := a.now().UTC().AddDate(0, 0, -dashboardWindowDays).Format(DateFormat)
	weekly, err := a.summaries.ListRange(ctx, userID, weekAgo, today)
	if err != nil {
		return nil, fmt.Errorf("list weekly summaries: %w", err)
	}

	count, err := a.activities.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}

	return &Dashboard{
		Activities:      recent,
		TodaySummary:    *summary,
		WeeklySummaries: weekly,
		Totals: DashboardTotals{
			ActivityCount: count,
			DaysTracked:   len(weekly),
		},
	}, nil
}
