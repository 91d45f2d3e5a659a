package metrics

import (
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	labelSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

	streamOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reliability",
			Name:      "stream_outcomes_total",
			Help:      "Total server-sent event streams by route and outcome",
		},
		[]string{"route", "outcome"},
	)

	sandboxExpiriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reliability",
			Name:      "sandbox_expiries_total",
			Help:      "Total sandboxes killed by the lifetime timer",
		},
	)
)

// RecordStreamOutcome counts how an SSE stream ended (complete, error, client_gone)
func RecordStreamOutcome(route, outcome string) {
	streamOutcomesTotal.WithLabelValues(
		sanitizeLabel(route, "unknown"),
		sanitizeLabel(outcome, "unknown"),
	).Inc()
}

// RecordSandboxExpiry counts a sandbox reaching its lifetime
func RecordSandboxExpiry() {
	sandboxExpiriesTotal.Inc()
}

func sanitizeLabel(raw, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return fallback
	}
	s = labelSanitizer.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return fallback
	}
	if len(s) > 63 {
		s = s[:63]
	}
	return s
}
