package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность операций ядра (включая доставку эскалаций)
	OpDuration *prometheus.HistogramVec

	// Traffic: общее кол-во вызовов операций
	OpTotal *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Итоги эскалаций по каналам
	EscalationsTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker мессенджера (0 - ок, 1 - выбило)
	BreakerState prometheus.Gauge

	// Audit: заполненность буфера следа (backpressure)
	TrailBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		OpDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payops_op_duration_seconds",
			Help:    "Histogram of core operation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "status"}),

		OpTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payops_ops_total",
			Help: "Total number of invoked core operations.",
		}, []string{"op"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payops_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: not_found, invalid_range, out_of_order, delivery, scope

		EscalationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "payops_escalations_total",
			Help: "Escalation deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}), // outcome: delivered, retried, failed

		BreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "payops_messenger_breaker_state",
			Help: "Current state of the messenger circuit breaker (0=closed, 1=open).",
		}),

		TrailBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "payops_trail_buffer_utilization",
			Help: "Current number of events in the investigation trail buffer.",
		}),
	}
}
