package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shaiso/Conveyor/internal/message"
)

// Metrics — Prometheus метрики узла.
//
// Реализует processor.Metrics и engine.DispatchObserver.
type Metrics struct {
	received         *prometheus.CounterVec
	dispatched       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	started          prometheus.Counter
	finished         *prometheus.CounterVec
	errorsLogged     prometheus.Counter
	conflictRetries  prometheus.Counter
	handlingDuration prometheus.Histogram
}

// NewMetrics регистрирует метрики в reg (nil — prometheus.DefaultRegisterer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_messages_received_total",
			Help: "Inbound messages by kind",
		}, []string{"kind"}),
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_messages_dispatched_total",
			Help: "Dispatched messages by channel and outcome",
		}, []string{"channel", "outcome"}),
		dispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conveyor_dispatch_duration_seconds",
			Help:    "Channel dispatch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		started: f.NewCounter(prometheus.CounterOpts{
			Name: "conveyor_processes_started_total",
			Help: "Processes and sub-processes started",
		}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_processes_finished_total",
			Help: "Finished processes by outcome",
		}, []string{"outcome"}),
		errorsLogged: f.NewCounter(prometheus.CounterOpts{
			Name: "conveyor_errors_logged_total",
			Help: "Handling errors converted into log messages",
		}),
		conflictRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "conveyor_conflict_retries_total",
			Help: "Retries after version conflicts or lock contention",
		}),
		handlingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "conveyor_message_handling_duration_seconds",
			Help:    "Inbound message handling latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// MessageReceived учитывает входящее сообщение по виду имени.
func (m *Metrics) MessageReceived(name string) {
	m.received.WithLabelValues(messageKind(name)).Inc()
}

// ProcessStarted учитывает запуск процесса.
func (m *Metrics) ProcessStarted() { m.started.Inc() }

// ProcessFinished учитывает завершение процесса.
func (m *Metrics) ProcessFinished(succeeded bool) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	m.finished.WithLabelValues(outcome).Inc()
}

// ErrorLogged учитывает ошибку, превращённую в LogMessage.
func (m *Metrics) ErrorLogged() { m.errorsLogged.Inc() }

// ConflictRetried учитывает повтор после конфликта.
func (m *Metrics) ConflictRetried() { m.conflictRetries.Inc() }

// HandlingDuration учитывает время обработки сообщения.
func (m *Metrics) HandlingDuration(d time.Duration) {
	m.handlingDuration.Observe(d.Seconds())
}

// ObserveDispatch реализует engine.DispatchObserver.
func (m *Metrics) ObserveDispatch(channel, outcome string, d time.Duration) {
	m.dispatched.WithLabelValues(channel, outcome).Inc()
	m.dispatchDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// messageKind сводит имя сообщения к ограниченному набору меток.
func messageKind(name string) string {
	switch name {
	case message.LogMessageName, message.StartSubProcessName, message.SubProcessFinishedName:
		return name
	}
	if _, suffix, err := message.ParseName(name); err == nil {
		return string(suffix)
	}
	return "unknown"
}
