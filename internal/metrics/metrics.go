// Package metrics 提供 Prometheus 指标
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "satori",
			Subsystem: "server",
			Name:      "sessions",
			Help:      "Identified WebSocket sessions.",
		},
		[]string{"server"},
	)
	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satori",
			Name:      "events_total",
			Help:      "Events received by adapters or pushed by servers.",
		},
		[]string{"side", "platform", "type"},
	)
	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satori",
			Name:      "actions_total",
			Help:      "Action calls sent by adapters or served by servers.",
		},
		[]string{"side", "action", "status"},
	)
	actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "satori",
			Name:      "action_duration_seconds",
			Help:      "Action call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"side", "action"},
	)
	connects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satori",
			Subsystem: "adapter",
			Name:      "connects_total",
			Help:      "WebSocket connection attempts made by adapters.",
		},
		[]string{"adapter", "result"},
	)
)

// Register 注册全部指标, 可重复调用
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessions, events, actions, actionDuration, connects)
	})
}

// SetSessions 记录服务器当前已鉴权的会话数
func SetSessions(server string, n int) {
	Register()
	sessions.WithLabelValues(server).Set(float64(n))
}

// RecordEvent 记录事件, side 为 adapter 或 server
func RecordEvent(side, platform, typ string) {
	Register()
	events.WithLabelValues(side, platform, typ).Inc()
}

// RecordAction 记录 API 调用
func RecordAction(side, action string, status int, duration time.Duration) {
	Register()
	actions.WithLabelValues(side, action, strconv.Itoa(status)).Inc()
	actionDuration.WithLabelValues(side, action).Observe(duration.Seconds())
}

// RecordConnect 记录一次连接尝试的结果
func RecordConnect(adapter string, err error) {
	Register()
	result := "ok"
	if err != nil {
		result = "error"
	}
	connects.WithLabelValues(adapter, result).Inc()
}
