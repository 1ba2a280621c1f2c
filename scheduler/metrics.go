package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskpipe",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Number of poll cycles started.",
	})

	cycleErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskpipe",
		Subsystem: "scheduler",
		Name:      "cycle_errors_total",
		Help:      "Number of poll cycles that failed to query for tasks.",
	})

	tasksProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskpipe",
		Subsystem: "scheduler",
		Name:      "tasks_processed_total",
		Help:      "Number of tasks picked up for processing.",
	})

	tasksSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskpipe",
		Subsystem: "scheduler",
		Name:      "tasks_succeeded_total",
		Help:      "Number of tasks that reached the done status.",
	})

	tasksFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskpipe",
		Subsystem: "scheduler",
		Name:      "tasks_failed_total",
		Help:      "Number of tasks that reached the failed status.",
	})
)
