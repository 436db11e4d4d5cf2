// Package api exposes HTTP handlers for the mindfulscreen backend.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ayatMaher/mindfulscreen-backend/internal/auth"
	"github.com/ayatMaher/mindfulscreen-backend/internal/domain"
	"github.com/ayatMaher/mindfulscreen-backend/internal/persistence"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	sync         *domain.SyncService
	dashboard    *domain.Assembler
	achievements *domain.AchievementQueries
}

// NewHandler builds a Handler.
func NewHandler(sync *domain.SyncService, dashboard *domain.Assembler, achievements *domain.AchievementQueries) *Handler {
	return &Handler{sync: sync, dashboard: dashboard, achievements: achievements}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sync", h.syncBatch)
	mux.HandleFunc("/v1/dashboard", h.getDashboard)
	mux.HandleFunc("/v1/achievements", h.listAchievements)
	mux.HandleFunc("/v1/achievements/stats", h.achievementStats)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) syncBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSyncWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sync:write required")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	input := domain.SyncInput{
		UserID:     claims.Subject,
		DeviceID:   req.DeviceID,
		Activities: make([]domain.IncomingActivity, 0, len(req.Activities)),
	}
	for _, a := range req.Activities {
		input.Activities = append(input.Activities, domain.IncomingActivity{
			SyncID:      a.SyncID,
			ExtensionID: a.ExtensionID,
			URL:         a.URL,
			Title:       a.Title,
			Domain:      a.Domain,
			Category:    domain.Category(a.Category),
			DurationSec: a.DurationSec,
			Timestamp:   a.Timestamp,
		})
	}
	if req.Summary != nil {
		input.Summary = &domain.SummarySnapshot{
			TotalTimeSec: req.Summary.TotalTimeSec,
			Categories:   req.Summary.Categories,
		}
	}

	result, err := h.sync.Sync(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		ActivitiesSaved: result.ActivitiesSaved,
		SummarySaved:    result.SummarySaved,
		Timestamp:       result.Timestamp,
	})
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSyncRead) && !claims.HasScope(auth.ScopeSyncWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sync:read required")
		return
	}

	dashboard, err := h.dashboard.Assemble(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := DashboardResponse{
		Activities:      make([]ActivityView, 0, len(dashboard.Activities)),
		TodaySummary:    toSummaryView(dashboard.TodaySummary),
		WeeklySummaries: make([]SummaryView, 0, len(dashboard.WeeklySummaries)),
		Totals: DashboardTotalsView{
			ActivityCount: dashboard.Totals.ActivityCount,
			DaysTracked:   dashboard.Totals.DaysTracked,
		},
	}
	for _, activity := range dashboard.Activities {
		resp.Activities = append(resp.Activities, toActivityView(activity))
	}
	for _, summary := range dashboard.WeeklySummaries {
		resp.WeeklySummaries = append(resp.WeeklySummaries, toSummaryView(summary))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listAchievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSyncRead) && !claims.HasScope(auth.ScopeSyncWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sync:read required")
		return
	}

	limit := domain.DefaultAchievementLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	achievements, next, err := h.achievements.List(r.Context(), claims.Subject, limit, cursor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]AchievementView, 0, len(achievements))
	for _, achievement := range achievements {
		items = append(items, toAchievementView(achievement))
	}

	writeJSON(w, http.StatusOK, ListAchievementsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) achievementStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSyncRead) && !claims.HasScope(auth.ScopeSyncWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sync:read required")
		return
	}

	stats, err := h.achievements.Stats(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := AchievementStatsResponse{
		Total:        stats.Total,
		ByType:       make(map[string]int, len(stats.ByType)),
		LastEarnedAt: stats.LastEarnedAt,
		Recent:       make([]AchievementView, 0, len(stats.Recent)),
	}
	for achievementType, count := range stats.ByType {
		resp.ByType[string(achievementType)] = count
	}
	for _, achievement := range stats.Recent {
		resp.Recent = append(resp.Recent, toAchievementView(achievement))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SyncRequest is the payload for POST /v1/sync.
type SyncRequest struct {
	DeviceID   string        `json:"device_id"`
	Activities []SyncItem    `json:"activities"`
	Summary    *SyncSnapshot `json:"summary,omitempty"`
}

// SyncItem is one browsing event inside a sync batch.
type SyncItem struct {
	SyncID      string    `json:"sync_id,omitempty"`
	ExtensionID string    `json:"extension_id,omitempty"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Domain      string    `json:"domain"`
	Category    string    `json:"category"`
	DurationSec int64     `json:"duration_sec"`
	Timestamp   time.Time `json:"timestamp"`
}

// SyncSnapshot carries the client-computed totals for the current day.
type SyncSnapshot struct {
	TotalTimeSec int64                 `json:"total_time_sec"`
	Categories   domain.CategoryTotals `json:"categories"`
}

// SyncResponse reports what a sync call persisted.
type SyncResponse struct {
	ActivitiesSaved int       `json:"activities_saved"`
	SummarySaved    bool      `json:"summary_saved"`
	Timestamp       time.Time `json:"timestamp"`
}

// ActivityView exposes a stored browsing activity.
type ActivityView struct {
	ActivityID  string    `json:"activity_id"`
	UserID      string    `json:"user_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Domain      string    `json:"domain"`
	Category    string    `json:"category"`
	DurationSec int64     `json:"duration_sec"`
	Timestamp   time.Time `json:"timestamp"`
	SyncID      string    `json:"sync_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SummaryView exposes one daily summary row.
type SummaryView struct {
	UserID       string                `json:"user_id"`
	Date         string                `json:"date"`
	TotalTimeSec int64                 `json:"total_time_sec"`
	Categories   domain.CategoryTotals `json:"categories"`
}

// DashboardTotalsView carries the dashboard header counters.
type DashboardTotalsView struct {
	ActivityCount int64 `json:"activity_count"`
	DaysTracked   int   `json:"days_tracked"`
}

// DashboardResponse is the composed dashboard payload.
type DashboardResponse struct {
	Activities      []ActivityView      `json:"activities"`
	TodaySummary    SummaryView         `json:"today_summary"`
	WeeklySummaries []SummaryView       `json:"weekly_summaries"`
	Totals          DashboardTotalsView `json:"totals"`
}

// AchievementView exposes one earned badge.
type AchievementView struct {
	AchievementID string              `json:"achievement_id"`
	UserID        string              `json:"user_id"`
	Rule          string              `json:"rule"`
	Type          string              `json:"type"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Emoji         string              `json:"emoji"`
	Metadata      domain.RuleMetadata `json:"metadata"`
	EarnedAt      time.Time           `json:"earned_at"`
}

// ListAchievementsResponse packages list results.
type ListAchievementsResponse struct {
	Items      []AchievementView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// AchievementStatsResponse summarises earned badges.
type AchievementStatsResponse struct {
	Total        int               `json:"total"`
	ByType       map[string]int    `json:"by_type"`
	LastEarnedAt *time.Time        `json:"last_earned_at,omitempty"`
	Recent       []AchievementView `json:"recent"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:  activity.ID,
		UserID:      activity.UserID,
		DeviceID:    activity.DeviceID,
		URL:         activity.URL,
		Title:       activity.Title,
		Domain:      activity.Domain,
		Category:    string(activity.Category),
		DurationSec: activity.DurationSec,
		Timestamp:   activity.Timestamp,
		SyncID:      activity.SyncID,
		CreatedAt:   activity.CreatedAt,
		UpdatedAt:   activity.UpdatedAt,
	}
}

func toSummaryView(summary domain.DailySummary) SummaryView {
	return SummaryView{
		UserID:       summary.UserID,
		Date:         summary.Date,
		TotalTimeSec: summary.TotalTimeSec,
		Categories:   summary.Categories,
	}
}

func toAchievementView(achievement domain.Achievement) AchievementView {
	return AchievementView{
		AchievementID: achievement.ID,
		UserID:        achievement.UserID,
		Rule:          string(achievement.Rule),
		Type:          string(achievement.Type),
		Title:         achievement.Title,
		Description:   achievement.Description,
		Emoji:         achievement.Emoji,
		Metadata:      achievement.Metadata,
		EarnedAt:      achievement.EarnedAt,
	}
}
