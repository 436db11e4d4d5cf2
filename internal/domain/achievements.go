package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Thresholds for the fixed rule set, in seconds unless noted.
const (
	productiveStreakMinSec  = 7200 // 2 hours of productive time in one day
	balancedMaxSocialRatio  = 0.3
	balancedMinProductRatio = 0.4
	earlyBirdMaxHour        = 9
	focusSessionMinSec      = 1800 // one deep-work session is 30+ minutes
	focusMinSessions        = 2
	weeklyMinProductiveSec  = 3600 // a productive day has 1+ hour productive
	weeklyMinDays           = 5
	weeklyWindowDays        = 7
)

// EngineOption configures optional behaviour for the Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the time source, primarily for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine evaluates the fixed achievement rule set against a freshly upserted
// daily summary. Rules run in a fixed order and share one "already awarded
// today" guard computed once per invocation; each award is persisted
// immediately before the next rule runs.
type Engine struct {
	activities   ActivityStore
	summaries    SummaryStore
	achievements AchievementStore
	log          zerolog.Logger
	now          func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(activities ActivityStore, summaries SummaryStore, achievements AchievementStore, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		activities:   activities,
		summaries:    summaries,
		achievements: achievements,
		log:          logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateDaily runs the rule set for (user, date) and returns the newly
// awarded achievements. Any store failure aborts the remaining rules.
func (e *Engine) EvaluateDaily(ctx context.Context, userID, date string, summary DailySummary) ([]Achievement, error) {
	awarded, err := e.awardedToday(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("load prior awards: %w", err)
	}

	var earned []Achievement

	award := func(a Achievement) error {
		if err := e.achievements.Insert(ctx, a); err != nil {
			return fmt.Errorf("persist achievement %s: %w", a.Rule, err)
		}
		earned = append(earned, a)
		e.log.Info().
			Str("user_id", userID).
			Str("rule", string(a.Rule)).
			Str("date", date).
			Msg("achievement earned")
		return nil
	}

	// 1. Productive Streak: 2+ hours of productive work today.
	if !awarded[RuleProductiveStreak] && summary.Categories.Productive >= productiveStreakMinSec {
		a := e.build(userID, RuleProductiveStreak, AchievementTypeProductivity,
			"Productivity Pro", "Completed 2+ hours of productive work today", "💼",
			ProductiveStreakMetadata{ProductiveTimeSec: summary.Categories.Productive})
		if err := award(a); err != nil {
			return earned, err
		}
	}

	// 2. Balanced Day: low social ratio, high productive ratio. Skipped
	// entirely when the day has no recorded time.
	if !awarded[RuleBalancedDay] && summary.TotalTimeSec > 0 {
		socialRatio := float64(summary.Categories.Social) / float64(summary.TotalTimeSec)
		productiveRatio := float64(summary.Categories.Productive) / float64(summary.TotalTimeSec)
		if socialRatio < balancedMaxSocialRatio && productiveRatio > balancedMinProductRatio {
			a := e.build(userID, RuleBalancedDay, AchievementTypeTimeManagement,
				"Perfect Balance", "Great balance between productive time and social browsing", "⚖️",
				BalancedDayMetadata{SocialRatio: socialRatio, ProductiveRatio: productiveRatio})
			if err := award(a); err != nil {
				return earned, err
			}
		}
	}

	// 3. Early Bird: the user's earliest recorded activity started before
	// 9 AM. The lookup is intentionally all-time rather than scoped to the
	// evaluated date; this matches long-standing behaviour clients depend on.
	if !awarded[RuleEarlyBird] {
		first, err := e.activities.EarliestByUser(ctx, userID)
		if err != nil {
			return earned, fmt.Errorf("fetch earliest activity: %w", err)
		}
		if first != nil {
			if hour := first.Timestamp.UTC().Hour(); hour < earlyBirdMaxHour {
				a := e.build(userID, RuleEarlyBird, AchievementTypeFocus,
					"Early Bird", "Started your productive day before 9 AM", "🐦",
					EarlyBirdMetadata{StartHour: hour})
				if err := award(a); err != nil {
					return earned, err
				}
			}
		}
	}

	// 4. Focus Master: two or more 30+ minute productive sessions today.
	if !awarded[RuleFocusMaster] {
		productive, err := e.activities.ListByCategoryOnDate(ctx, userID, CategoryProductive, date)
		if err != nil {
			return earned, fmt.Errorf("fetch productive activities: %w", err)
		}
		longSessions := 0
		for _, activity := range productive {
			if activity.DurationSec >= focusSessionMinSec {
				longSessions++
			}
		}
		if longSessions >= focusMinSessions {
			a := e.build(userID, RuleFocusMaster, AchievementTypeFocus,
				"Focus Master", "Completed 2+ deep work sessions (30+ minutes each)", "🎯",
				FocusMasterMetadata{LongSessions: longSessions})
			if err := award(a); err != nil {
				return earned, err
			}
		}
	}

	// 5. Weekly Warrior: 5+ productive days in the trailing week.
	if !awarded[RuleWeeklyStreak] {
		from, to, err := weeklyWindow(date)
		if err != nil {
			return earned, err
		}
		days, err := e.summaries.CountProductiveDays(ctx, userID, from, to, weeklyMinProductiveSec)
		if err != nil {
			return earned, fmt.Errorf("count productive days: %w", err)
		}
		if days >= weeklyMinDays {
			a := e.build(userID, RuleWeeklyStreak, AchievementTypeStreak,
				"Weekly Warrior", "5+ days of productive work this week", "🔥",
				WeeklyStreakMetadata{ProductiveDays: days})
			if err := award(a); err != nil {
				return earned, err
			}
		}
	}

	return earned, nil
}

// awardedToday collects the rule identities already awarded within the UTC
// calendar day so no rule fires twice for the same (user, rule, day).
func (e *Engine) awardedToday(ctx context.Context, userID, date string) (map[RuleIdentity]bool, error) {
	dayStart, err := time.ParseInLocation(DateFormat, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	existing, err := e.achievements.ListEarnedBetween(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	awarded := make(map[RuleIdentity]bool, len(existing))
	for _, a := range existing {
		awarded[a.Rule] = true
	}
	return awarded, nil
}

func (e *Engine) build(userID string, rule RuleIdentity, typ AchievementType, title, description, emoji string, metadata RuleMetadata) Achievement {
	return Achievement{
		ID:          uuid.NewString(),
		UserID:      userID,
		Rule:        rule,
		Type:        typ,
		Title:       title,
		Description: description,
		Emoji:       emoji,
		Metadata:    metadata,
		EarnedAt:    e.now().UTC(),
	}
}

// weeklyWindow returns the inclusive [date-7d, date] range as calendar dates.
func weeklyWindow(date string) (string, string, error) {
	day, err := time.ParseInLocation(DateFormat, date, time.UTC)
	if err != nil {
		return "", "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day.AddDate(0, 0, -weeklyWindowDays).Format(DateFormat), date, nil
}
