package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 控制台业务指标
type AppMetrics struct {
	CallTotal        *prometheus.CounterVec   // labels: api, result
	CallDuration     *prometheus.HistogramVec // labels: api
	BytesReceived    prometheus.Counter
	PushFramesTotal  *prometheus.CounterVec // labels: result=ok|malformed|corrupt
	PushActive       prometheus.Gauge
	JogThrottled     prometheus.Counter
	SimulatorAccepts *prometheus.CounterVec // labels: port
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		CallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amr_call_total",
			Help: "AMR request/response calls by api id and result.",
		}, []string{"api", "result"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amr_call_duration_seconds",
			Help:    "AMR call latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"api"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amr_bytes_received_total",
			Help: "Bytes received from AMR request/response connections.",
		}),
		PushFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amr_push_frames_total",
			Help: "Push channel frames by decode result.",
		}, []string{"result"}),
		PushActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amr_push_subscription_active",
			Help: "1 while a push subscription is streaming.",
		}),
		JogThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amr_jog_throttled_total",
			Help: "Jog commands rejected by the throttle.",
		}),
		SimulatorAccepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amrsim_accept_total",
			Help: "Connections accepted by the mock AMR.",
		}, []string{"port"}),
	}
	reg.MustRegister(m.CallTotal, m.CallDuration, m.BytesReceived, m.PushFramesTotal, m.PushActive, m.JogThrottled, m.SimulatorAccepts)
	return m
}

// ObserveCall 记录一次请求/响应调用
func (m *AppMetrics) ObserveCall(apiID uint16, result string, d time.Duration) {
	api := strconv.Itoa(int(apiID))
	m.CallTotal.WithLabelValues(api, result).Inc()
	m.CallDuration.WithLabelValues(api).Observe(d.Seconds())
}

// AddBytesReceived 累计接收字节
func (m *AppMetrics) AddBytesReceived(n int) { m.BytesReceived.Add(float64(n)) }

// CountPushFrame 推送帧计数
func (m *AppMetrics) CountPushFrame(result string) { m.PushFramesTotal.WithLabelValues(result).Inc() }

// SetPushActive 推送订阅是否活动
func (m *AppMetrics) SetPushActive(active bool) {
	if active {
		m.PushActive.Set(1)
		return
	}
	m.PushActive.Set(0)
}
