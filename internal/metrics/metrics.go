// Package metrics provides Prometheus instrumentation for the moderation
// service: check throughput and latency, flags per category, verdict cache
// effectiveness and rate-limit rejections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts completed checks, labeled by channel ("listing",
	// "message") and result ("clean", "flagged").
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_checks_total",
		Help: "Total number of moderation checks completed",
	}, []string{"channel", "result"})

	// FlagsTotal counts flagged checks by channel and category.
	FlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_flags_total",
		Help: "Total number of flagged checks by category",
	}, []string{"channel", "category"})

	// CheckLatency records classification latency in seconds, cache hits included.
	CheckLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_check_latency_seconds",
		Help:    "Moderation check latency in seconds",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
	}, []string{"channel"})

	// CacheLookups counts verdict cache lookups by result ("hit", "miss", "error").
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_verdict_cache_lookups_total",
		Help: "Verdict cache lookups by result",
	}, []string{"result"})

	// RateLimited counts checks rejected by the per-user rate limiter.
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_rate_limited_total",
		Help: "Checks rejected by the per-user rate limiter",
	}, []string{"channel"})

	// CoolingDown counts checks rejected because the user is in a strike cooldown.
	CoolingDown = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_cooldown_rejections_total",
		Help: "Checks rejected while the user sits out a strike cooldown",
	}, []string{"channel"})

	// SideEffectErrors counts failures in strike, audit and event side effects.
	SideEffectErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_side_effect_errors_total",
		Help: "Failures recording strikes, audit rows or flag events",
	}, []string{"effect"})
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		FlagsTotal,
		CheckLatency,
		CacheLookups,
		RateLimited,
		CoolingDown,
		SideEffectErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
