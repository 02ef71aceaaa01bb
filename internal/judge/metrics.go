package judge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockmate_judge_decisions_total",
		Help: "Verdicts produced by the decision pipeline, labeled by decision.",
	}, []string{"decision"})

	fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmate_judge_fallbacks_total",
		Help: "Oracle failures recovered by the fixed fail-closed fallback verdict.",
	})
)
