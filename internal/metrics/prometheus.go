package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightiq_query_duration_seconds",
			Help:    "Natural-language query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightiq_query_total",
			Help: "Total number of natural-language queries processed",
		},
		[]string{"outcome"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightiq_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	AlarmEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightiq_alarm_evaluations_total",
			Help: "Total alarm evaluation runs",
		},
		[]string{"table"},
	)

	AlarmsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightiq_alarms_triggered_total",
			Help: "Total net-new alarm violations reported",
		},
		[]string{"table"},
	)

	AlarmsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightiq_alarms_suppressed_total",
			Help: "Total violations suppressed by dedup history",
		},
		[]string{"table"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(AlarmEvaluations)
	prometheus.MustRegister(AlarmsTriggered)
	prometheus.MustRegister(AlarmsSuppressed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
