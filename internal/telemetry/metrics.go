package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Conveyor/internal/domain"
)

const namespace = "conveyor"

// Metrics — Prometheus метрики выполнения runner'ов и сессий.
//
// Реализует engine.Recorder.
type Metrics struct {
	runnerResults  *prometheus.CounterVec
	runnerRunning  *prometheus.GaugeVec
	runnerDuration *prometheus.HistogramVec
	dependencyWait *prometheus.HistogramVec

	sessionResults  *prometheus.CounterVec
	sessionDuration prometheus.Histogram
}

// NewMetrics регистрирует метрики в reg.
// nil → prometheus.DefaultRegisterer (его отдаёт promhttp.Handler).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		runnerResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runner_results_total",
			Help:      "Finished runners by factory and result status.",
		}, []string{"factory", "status"}),
		runnerRunning: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runners_running",
			Help:      "Runners currently executing their body.",
		}, []string{"factory"}),
		runnerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runner_duration_seconds",
			Help:      "Runner body execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"factory"}),
		dependencyWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dependency_wait_seconds",
			Help:      "Time runners spent waiting for their providers.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"factory"}),
		sessionResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_results_total",
			Help:      "Finished sessions by status.",
		}, []string{"status"}),
		sessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Whole session duration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
	}
}

// RunnerStarted отмечает начало выполнения тела runner'а.
func (m *Metrics) RunnerStarted(factory string) {
	m.runnerRunning.WithLabelValues(factory).Inc()
}

// RunnerFinished отмечает завершение тела runner'а.
func (m *Metrics) RunnerFinished(factory string, res domain.Result, d time.Duration) {
	m.runnerResults.WithLabelValues(factory, string(res.Status)).Inc()
	m.runnerRunning.WithLabelValues(factory).Dec()
	m.runnerDuration.WithLabelValues(factory).Observe(d.Seconds())
}

// DependencyWait отмечает время ожидания зависимостей.
func (m *Metrics) DependencyWait(factory string, d time.Duration) {
	m.dependencyWait.WithLabelValues(factory).Observe(d.Seconds())
}

// SessionFinished отмечает завершение сессии.
func (m *Metrics) SessionFinished(status domain.SessionStatus, d time.Duration) {
	m.sessionResults.WithLabelValues(string(status)).Inc()
	m.sessionDuration.Observe(d.Seconds())
}
