package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"e2echat/internal/chat"
	"e2echat/internal/network"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics Prometheus 指标集合
// 同时作为加密、会话和网关的观察者
type Metrics struct {
	registry *prometheus.Registry

	cryptoOps         *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	handshakeLatency  *prometheus.HistogramVec
	gatewayClients    prometheus.Gauge
	framesRelayed     *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
}

var (
	_ chat.CryptoObserver     = (*Metrics)(nil)
	_ chat.SessionObserver    = (*Metrics)(nil)
	_ network.GatewayObserver = (*Metrics)(nil)
)

// New 创建指标集合并注册到独立的 registry
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cryptoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crypto_operations_total",
			Help:      "Encrypt and decrypt operations by result.",
		}, []string{"op", "result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_status_transitions_total",
			Help:      "Connection status transitions by target state.",
		}, []string{"to"}),
		handshakeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from OpenChat to a secured channel or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"result"}),
		gatewayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_clients",
			Help:      "Users currently joined to the gateway.",
		}),
		framesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_frames_relayed_total",
			Help:      "Frames delivered to a recipient by event.",
		}, []string{"event"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_frames_dropped_total",
			Help:      "Frames not delivered by event and reason.",
		}, []string{"event", "reason"}),
	}

	m.registry.MustRegister(
		m.cryptoOps,
		m.statusTransitions,
		m.handshakeLatency,
		m.gatewayClients,
		m.framesRelayed,
		m.framesDropped,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEncrypt 记录加密结果
func (m *Metrics) ObserveEncrypt(err error) {
	m.cryptoOps.WithLabelValues("encrypt", result(err)).Inc()
}

// ObserveDecrypt 记录解密结果
func (m *Metrics) ObserveDecrypt(err error) {
	m.cryptoOps.WithLabelValues("decrypt", result(err)).Inc()
}

// ObserveStatus 记录状态转换
func (m *Metrics) ObserveStatus(change chat.StatusChange) {
	m.statusTransitions.WithLabelValues(string(change.To)).Inc()
}

// ObserveHandshake 记录密钥协商耗时
func (m *Metrics) ObserveHandshake(elapsed time.Duration, err error) {
	m.handshakeLatency.WithLabelValues(result(err)).Observe(elapsed.Seconds())
}

// ClientConnected 用户加入网关
func (m *Metrics) ClientConnected() {
	m.gatewayClients.Inc()
}

// ClientDisconnected 用户离开网关
func (m *Metrics) ClientDisconnected() {
	m.gatewayClients.Dec()
}

// FrameRelayed 帧已转发
func (m *Metrics) FrameRelayed(event string) {
	m.framesRelayed.WithLabelValues(event).Inc()
}

// FrameDropped 帧被丢弃
func (m *Metrics) FrameDropped(event, reason string) {
	m.framesDropped.WithLabelValues(event, reason).Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
