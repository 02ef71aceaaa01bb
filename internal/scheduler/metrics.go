package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmate_scheduler_scheduled_total",
		Help: "Reminder timers registered.",
	})

	firedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmate_scheduler_fired_total",
		Help: "Reminder timers that reached their fire time.",
	})

	cancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmate_scheduler_cancelled_total",
		Help: "Reminder timers cancelled before firing, superseded ones included.",
	})

	notifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockmate_scheduler_notify_failures_total",
		Help: "Reminder deliveries reported as failed by the notification channel.",
	})

	activeTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blockmate_scheduler_active_timers",
		Help: "Currently pending reminder timers.",
	})
)
