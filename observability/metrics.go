package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	merchantMetricsOnce sync.Once
	merchantRegistry    *MerchantdMetrics
)

// MerchantdMetrics wraps collectors tracking merchant gateway health.
type MerchantdMetrics struct {
	claims         *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	remoteErrors   *prometheus.CounterVec
	pollTimeouts   prometheus.Counter
	modeSwitches   *prometheus.CounterVec
	policyChanges  *prometheus.CounterVec
	rateSumWarning prometheus.Counter
}

// Merchantd exposes the metrics registry for the merchant gateway.
func Merchantd() *MerchantdMetrics {
	merchantMetricsOnce.Do(func() {
		merchantRegistry = &MerchantdMetrics{
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "claims_total",
				Help:      "Store credential claim attempts segmented by outcome.",
			}, []string{"outcome"}),
			remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "commerce_request_duration_seconds",
				Help:      "Latency distribution for calls to the commerce platform API.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint"}),
			remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "commerce_errors_total",
				Help:      "Failed commerce platform calls segmented by endpoint and kind.",
			}, []string{"endpoint", "kind"}),
			pollTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "poll_timeouts_total",
				Help:      "Wallet connect polls that exhausted the attempt ceiling.",
			}),
			modeSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "payout_mode_switches_total",
				Help:      "Payout mode changes segmented by target mode.",
			}, []string{"mode"}),
			policyChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "autosign_transitions_total",
				Help:      "Auto-sign policy state transitions segmented by from and to states.",
			}, []string{"from", "to"}),
			rateSumWarning: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dltpays",
				Subsystem: "merchantd",
				Name:      "commission_sum_warnings_total",
				Help:      "Commission rate saves whose total crossed the soft warning threshold.",
			}),
		}
		prometheus.MustRegister(
			merchantRegistry.claims,
			merchantRegistry.remoteLatency,
			merchantRegistry.remoteErrors,
			merchantRegistry.pollTimeouts,
			merchantRegistry.modeSwitches,
			merchantRegistry.policyChanges,
			merchantRegistry.rateSumWarning,
		)
	})
	return merchantRegistry
}

// ObserveClaim records the outcome of a claim-secret attempt.
func (m *MerchantdMetrics) ObserveClaim(outcome string) {
	if m == nil {
		return
	}
	if outcome = strings.TrimSpace(outcome); outcome == "" {
		outcome = "unknown"
	}
	m.claims.WithLabelValues(outcome).Inc()
}

// ObserveRemote records latency and optional failure kind for a commerce call.
func (m *MerchantdMetrics) ObserveRemote(endpoint string, duration time.Duration, errKind string) {
	if m == nil {
		return
	}
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		endpoint = "unknown"
	}
	m.remoteLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
	if errKind != "" {
		m.remoteErrors.WithLabelValues(endpoint, errKind).Inc()
	}
}

// RecordPollTimeout notes a connect poll that hit the attempt ceiling.
func (m *MerchantdMetrics) RecordPollTimeout() {
	if m == nil {
		return
	}
	m.pollTimeouts.Inc()
}

// RecordModeSwitch notes a payout mode change.
func (m *MerchantdMetrics) RecordModeSwitch(mode string) {
	if m == nil {
		return
	}
	m.modeSwitches.WithLabelValues(mode).Inc()
}

// RecordTransition notes an auto-sign policy state transition.
func (m *MerchantdMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.policyChanges.WithLabelValues(from, to).Inc()
}

// RecordRateSumWarning notes a commission table whose total exceeded the soft cap.
func (m *MerchantdMetrics) RecordRateSumWarning() {
	if m == nil {
		return
	}
	m.rateSumWarning.Inc()
}
