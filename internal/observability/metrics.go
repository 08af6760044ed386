package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	queueWait    *prometheus.HistogramVec

	commandTotal    *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	clientsRunning  *prometheus.GaugeVec

	chatRequestTotal    *prometheus.CounterVec
	chatRequestDuration *prometheus.HistogramVec
	streamLinesTotal    *prometheus.CounterVec

	toolDispatchTotal    *prometheus.CounterVec
	toolDispatchDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolsRegistered       prometheus.Gauge

	gatewayConnections prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "command_queue_size",
					Help: "Current number of waiting commands by queue.",
				},
				[]string{"queue"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "command_enqueue_total",
					Help: "Total enqueued commands by queue.",
				},
				[]string{"queue"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "command_dequeue_total",
					Help: "Total dequeued commands by queue.",
				},
				[]string{"queue"},
			),
			queueWait: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "command_queue_wait_seconds",
					Help:    "Time commands spent waiting in the queue.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"queue"},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "commands_processed_total",
					Help: "Total processed commands by client variant and outcome.",
				},
				[]string{"variant", "status"},
			),
			commandDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "command_duration_seconds",
					Help:    "Command processing duration in seconds by client variant.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"variant"},
			),
			clientsRunning: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "clients_running",
					Help: "Running client instances by variant (1 running, 0 stopped).",
				},
				[]string{"variant"},
			),
			chatRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_requests_total",
					Help: "Total chat endpoint requests by variant and status.",
				},
				[]string{"variant", "status"},
			),
			chatRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chat_request_duration_seconds",
					Help:    "Chat request duration including streaming, by variant.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"variant"},
			),
			streamLinesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stream_lines_total",
					Help: "Streamed response lines by variant and parse outcome.",
				},
				[]string{"variant", "kind"},
			),
			toolDispatchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_dispatch_total",
					Help: "Client-side tool dispatches by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolDispatchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_dispatch_duration_seconds",
					Help:    "Client-side tool dispatch duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Server-side tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Server-side tool execution duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolsRegistered: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "tools_registered",
					Help: "Number of tools currently registered on the tool server.",
				},
			),
			gatewayConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_connections",
					Help: "Open command gateway connections.",
				},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.dequeueTotal,
			m.queueWait,
			m.commandTotal,
			m.commandDuration,
			m.clientsRunning,
			m.chatRequestTotal,
			m.chatRequestDuration,
			m.streamLinesTotal,
			m.toolDispatchTotal,
			m.toolDispatchDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolsRegistered,
			m.gatewayConnections,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordQueueEnqueue(queue string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(queue).Inc()
	m.queueSize.WithLabelValues(queue).Set(float64(queueSize))
}

func RecordQueueDequeue(queue string, queueSize int, waited time.Duration) {
	m := getMetrics()
	m.dequeueTotal.WithLabelValues(queue).Inc()
	m.queueWait.WithLabelValues(queue).Observe(waited.Seconds())
	m.queueSize.WithLabelValues(queue).Set(float64(queueSize))
}

func SetQueueSize(queue string, queueSize int) {
	m := getMetrics()
	m.queueSize.WithLabelValues(queue).Set(float64(queueSize))
}

// RecordCommand records one processed command. status is "done", "skipped" or "error".
func RecordCommand(variant, status string, duration time.Duration) {
	m := getMetrics()
	m.commandTotal.WithLabelValues(variant, status).Inc()
	m.commandDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

func SetClientRunning(variant string, running bool) {
	m := getMetrics()
	value := 0.0
	if running {
		value = 1
	}
	m.clientsRunning.WithLabelValues(variant).Set(value)
}

func RecordChatRequest(variant string, duration time.Duration, success bool) {
	m := getMetrics()
	m.chatRequestTotal.WithLabelValues(variant, statusLabel(success)).Inc()
	m.chatRequestDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

func RecordStreamLine(variant, kind string) {
	m := getMetrics()
	m.streamLinesTotal.WithLabelValues(variant, kind).Inc()
}

func RecordToolDispatch(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolDispatchTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolDispatchDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func SetToolsRegistered(count int) {
	m := getMetrics()
	m.toolsRegistered.Set(float64(count))
}

func SetGatewayConnections(count int) {
	m := getMetrics()
	m.gatewayConnections.Set(float64(count))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
