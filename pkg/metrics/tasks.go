package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics records dispatch outcomes for the task engine.
type TaskMetrics struct {
	duration    *prometheus.HistogramVec
	completions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
}

// NewTaskMetrics registers the task engine metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_dispatch_duration_seconds",
		Help:    "Duration of task event dispatches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_completions_total",
		Help: "Task completions written to the ledger.",
	}, []string{"task_code"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_rejections_total",
		Help: "Task events rejected by handler validation.",
	}, []string{"task_code"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_duplicate_events_total",
		Help: "Task events skipped as already processed.",
	}, []string{"task_code"})
	reg.MustRegister(duration, completions, rejections, duplicates)
	return &TaskMetrics{
		duration:    duration,
		completions: completions,
		rejections:  rejections,
		duplicates:  duplicates,
	}
}

// ObserveDispatch records the duration of one event dispatch.
func (t *TaskMetrics) ObserveDispatch(eventType string, duration time.Duration) {
	if t == nil || t.duration == nil {
		return
	}
	t.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncCompletion increments the written-completion counter for the task code.
func (t *TaskMetrics) IncCompletion(taskCode string) {
	if t == nil || t.completions == nil {
		return
	}
	t.completions.WithLabelValues(normalizeLabel(taskCode)).Inc()
}

// IncRejection increments the rejection counter for the task code.
func (t *TaskMetrics) IncRejection(taskCode string) {
	if t == nil || t.rejections == nil {
		return
	}
	t.rejections.WithLabelValues(normalizeLabel(taskCode)).Inc()
}

// IncDuplicate increments the already-processed counter for the task code.
func (t *TaskMetrics) IncDuplicate(taskCode string) {
	if t == nil || t.duplicates == nil {
		return
	}
	t.duplicates.WithLabelValues(normalizeLabel(taskCode)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
