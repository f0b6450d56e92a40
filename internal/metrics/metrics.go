package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storyteller"

var (
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Histogram of AI API request durations.",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)
	AITokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_tokens",
			Help:      "Histogram of token counts per request, split by kind (prompt, completion).",
			Buckets:   prometheus.LinearBuckets(250, 250, 16),
		},
		[]string{"model", "kind"},
	)

	// Конвейер генерации
	SynthesisPhaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_phase_total",
			Help:      "Pipeline phases by outcome (outline, draft, revise, fallback).",
		},
		[]string{"phase", "status"},
	)
	SynthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "End-to-end story synthesis duration.",
			Buckets:   []float64{.01, .1, 1, 5, 10, 30, 60, 120, 240},
		},
		[]string{"source"},
	)

	// Бот
	StoriesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stories_delivered_total",
			Help:      "Stories delivered to users, partitioned by text source.",
		},
		[]string{"source"},
	)
	QuotaBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_blocked_total",
			Help:      "Story requests blocked by the daily limit, by check stage (start, commit).",
		},
		[]string{"stage"},
	)
	CoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "covers_total",
			Help:      "Generated covers by source (ai, local).",
		},
		[]string{"source"},
	)
	MathSheetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "math_sheets_total",
			Help:      "Math worksheets sent.",
		},
	)
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversation sessions currently in progress.",
		},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published to the broker by status.",
		},
		[]string{"status"},
	)

	// Транспорт
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_total",
			Help:      "Incoming Telegram updates by kind (command, message, callback, ignored).",
		},
		[]string{"kind"},
	)
	UpdatesRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_rate_limited_total",
			Help:      "Updates dropped by the per-user flood limiter.",
		},
	)
)
