package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AchievementType tags the badge family an achievement belongs to.
type AchievementType string

const (
	AchievementTypeProductivity   AchievementType = "productivity"
	AchievementTypeTimeManagement AchievementType = "time_management"
	AchievementTypeFocus          AchievementType = "focus"
	AchievementTypeStreak         AchievementType = "streak"
	AchievementTypeMilestone      AchievementType = "milestone"
)

// RuleIdentity names one achievement rule. It is the uniqueness scope for
// "already awarded today": at most one achievement exists per
// (user, rule identity, UTC calendar day).
type RuleIdentity string

const (
	RuleProductiveStreak RuleIdentity = "productive_streak"
	RuleBalancedDay      RuleIdentity = "balanced_day"
	RuleEarlyBird        RuleIdentity = "early_bird"
	RuleFocusMaster      RuleIdentity = "focus_master"
	RuleWeeklyStreak     RuleIdentity = "weekly_streak"
)

// Achievement is one earned badge. Immutable once created.
type Achievement struct {
	ID          string
	UserID      string
	Rule        RuleIdentity
	Type        AchievementType
	Title       string
	Description string
	Emoji       string
	Metadata    RuleMetadata
	EarnedAt    time.Time
}

// RuleMetadata is the closed set of per-rule metadata shapes. Each concrete
// type serialises to the flat JSON object clients already expect.
type RuleMetadata interface {
	rule() RuleIdentity
}

// ProductiveStreakMetadata records the productive time that earned the badge.
type ProductiveStreakMetadata struct {
	ProductiveTimeSec int64 `json:"productiveTime"`
}

// BalancedDayMetadata records the ratios that earned the badge.
type BalancedDayMetadata struct {
	SocialRatio     float64 `json:"socialRatio"`
	ProductiveRatio float64 `json:"productiveRatio"`
}

// EarlyBirdMetadata records the hour the user's earliest activity started.
type EarlyBirdMetadata struct {
	StartHour int `json:"startHour"`
}

// FocusMasterMetadata records how many long productive sessions were found.
type FocusMasterMetadata struct {
	LongSessions int `json:"longSessions"`
}

// WeeklyStreakMetadata records how many productive days the trailing week had.
type WeeklyStreakMetadata struct {
	ProductiveDays int `json:"productiveDays"`
}

func (ProductiveStreakMetadata) rule() RuleIdentity { return RuleProductiveStreak }
func (BalancedDayMetadata) rule() RuleIdentity      { return RuleBalancedDay }
func (EarlyBirdMetadata) rule() RuleIdentity        { return RuleEarlyBird }
func (FocusMasterMetadata) rule() RuleIdentity      { return RuleFocusMaster }
func (WeeklyStreakMetadata) rule() RuleIdentity     { return RuleWeeklyStreak }

// DecodeMetadata parses a stored metadata document into the variant that
// belongs to the given rule.
func DecodeMetadata(rule RuleIdentity, raw []byte) (RuleMetadata, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch rule {
	case RuleProductiveStreak:
		var m ProductiveStreakMetadata
		return m, json.Unmarshal(raw, &m)
	case RuleBalancedDay:
		var m BalancedDayMetadata
		return m, json.Unmarshal(raw, &m)
	case RuleEarlyBird:
		var m EarlyBirdMetadata
		return m, json.Unmarshal(raw, &m)
	case RuleFocusMaster:
		var m FocusMasterMetadata
		return m, json.Unmarshal(raw, &m)
	case RuleWeeklyStreak:
		var m WeeklyStreakMetadata
		return m, json.Unmarshal(raw, &m)
	}
	return nil, fmt.Errorf("unknown rule identity: %s", rule)
}
