package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sessionLabel = "session_uuid"
)

var (
	agentCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agent_count",
		Help: "The number of agents.",
	}, []string{sessionLabel})

	agentCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_count_total",
		Help: "The total number of agents.",
	}, []string{sessionLabel})

	sessionFrameLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "session_frame_latency",
		Help:    "The time to run the frame handlers of a session.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{sessionLabel})
)

func instrumentIncreaseAgentGauge(sessionUUID string) {
	agentCount.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Inc()
}

func instrumentDecreaseAgentGauge(sessionUUID string) {
	agentCount.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Dec()
}

func instrumentCountAgent(sessionUUID string) {
	agentCountTotal.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Inc()
}

func instrumentFrameLatency(sessionUUID string, d time.Duration) {
	sessionFrameLatency.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Observe(d.Seconds())
}
