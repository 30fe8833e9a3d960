// Package metrics exposes the pipeline's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerbot_intents_total",
		Help: "Classified intents by tag and classifier source.",
	}, []string{"intent", "source"})

	ClassifierFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerbot_classifier_fallbacks_total",
		Help: "Rule-based fallbacks taken by the intent classifier, by reason.",
	}, []string{"reason"})

	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careerbot_quota_rejections_total",
		Help: "Messages rejected because the session quota was exhausted.",
	})

	ProviderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careerbot_provider_errors_total",
		Help: "Completion calls that degraded to an apology reply.",
	})

	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerbot_persistence_errors_total",
		Help: "Swallowed backing store failures by operation.",
	}, []string{"op"})
)
