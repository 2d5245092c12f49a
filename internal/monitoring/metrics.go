package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 评估来源
const (
	SourceSimulate = "simulate"
	SourceInbound  = "inbound"
)

// Webhook 投递结果
const (
	DeliverySuccess = "success"
	DeliveryFailure = "failure"
	DeliveryDropped = "dropped"
)

// Metrics 监控指标
//
// 每个实例持有独立的 Registry，测试中可以并行创建多个实例。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 评估指标
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	RelayMatchesTotal  *prometheus.CounterVec
	LogEntriesTotal    prometheus.Counter

	// 中继指标
	RelaysTotal   prometheus.Gauge
	RelayChanges  *prometheus.CounterVec
	StreamClients prometheus.Gauge

	// Webhook 指标
	WebhookDeliveries       *prometheus.CounterVec
	WebhookDeliveryDuration prometheus.Histogram

	// 错误与限流指标
	ErrorsTotal     *prometheus.CounterVec
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标，并注册 Go 运行时与进程指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailrelay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_evaluations_total",
				Help: "Total number of inbound messages evaluated against the relay set",
			},
			[]string{"source"},
		),

		EvaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailrelay_evaluation_duration_seconds",
				Help:    "Time spent evaluating one message against all relays",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"source"},
		),

		RelayMatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_relay_matches_total",
				Help: "Total number of relay matches",
			},
			[]string{"source"},
		),

		LogEntriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrelay_log_entries_total",
				Help: "Total number of evaluation log entries recorded",
			},
		),

		RelaysTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailrelay_relays",
				Help: "Number of relays in the registry",
			},
		),

		RelayChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_relay_changes_total",
				Help: "Total number of relay registry mutations",
			},
			[]string{"operation"},
		),

		StreamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailrelay_log_stream_clients",
				Help: "Number of connected log stream clients",
			},
		),

		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_webhook_deliveries_total",
				Help: "Total number of webhook notifications by result",
			},
			[]string{"result"},
		),

		WebhookDeliveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailrelay_webhook_delivery_duration_seconds",
				Help:    "Webhook delivery duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailrelay_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailrelay_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEvaluation 记录一次评估及命中数
func (m *Metrics) RecordEvaluation(source string, duration time.Duration, matches int) {
	m.EvaluationsTotal.WithLabelValues(source).Inc()
	m.EvaluationDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.RelayMatchesTotal.WithLabelValues(source).Add(float64(matches))
}

// RecordLogEntries 记录写入的日志条数
func (m *Metrics) RecordLogEntries(count int) {
	m.LogEntriesTotal.Add(float64(count))
}

// RecordRelayChange 记录中继变更，operation 为 create/update/delete
func (m *Metrics) RecordRelayChange(operation string) {
	m.RelayChanges.WithLabelValues(operation).Inc()
}

// UpdateRelaysTotal 更新中继总数
func (m *Metrics) UpdateRelaysTotal(count int) {
	m.RelaysTotal.Set(float64(count))
}

// UpdateStreamClients 更新日志流连接数
func (m *Metrics) UpdateStreamClients(count int) {
	m.StreamClients.Set(float64(count))
}

// RecordWebhookDelivery 记录 Webhook 投递结果
func (m *Metrics) RecordWebhookDelivery(result string, duration time.Duration) {
	m.WebhookDeliveries.WithLabelValues(result).Inc()
	if duration > 0 {
		m.WebhookDeliveryDuration.Observe(duration.Seconds())
	}
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock(endpoint string) {
	m.RateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus 抓取接口
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
