package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesSyncedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfulscreen",
		Subsystem: "persistence",
		Name:      "activities_synced_total",
		Help:      "Number of activity records persisted through sync batches.",
	})
	lastBatchGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfulscreen",
		Subsystem: "persistence",
		Name:      "last_batch_synced_timestamp_seconds",
		Help:      "Unix timestamp of the most recent sync batch persisted to Postgres.",
	})
	summariesUpsertedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfulscreen",
		Subsystem: "persistence",
		Name:      "summaries_upserted_total",
		Help:      "Number of daily summary upserts.",
	})
	achievementsEarnedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mindfulscreen",
		Subsystem: "achievements",
		Name:      "earned_total",
		Help:      "Number of achievements awarded, labeled by rule identity.",
	}, []string{"rule"})
)

func init() {
	prometheus.MustRegister(activitiesSyncedCounter, lastBatchGauge, summariesUpsertedCounter, achievementsEarnedCounter)
}

// RecordBatchSynced updates the sync watermark after a persisted batch.
func RecordBatchSynced(saved int, ts time.Time) {
	if saved > 0 {
		activitiesSyncedCounter.Add(float64(saved))
	}
	if !ts.IsZero() {
		lastBatchGauge.Set(float64(ts.Unix()))
	}
}

// RecordSummaryUpserted counts a daily summary write.
func RecordSummaryUpserted() {
	summariesUpsertedCounter.Inc()
}

// RecordAchievementEarned counts an awarded badge by rule.
func RecordAchievementEarned(rule string) {
	achievementsEarnedCounter.WithLabelValues(rule).Inc()
}
