// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/webmon/internal/domain"
)

var (
	checkDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webmon_check_duration_seconds",
		Help:    "wall time of the final probe attempt of each check",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"target"})

	checkTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webmon_check_total",
		Help: "completed checks by status code",
	}, []string{"target", "code"})

	targetUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webmon_target_up",
		Help: "whether the last check of a target succeeded (1) or not (0)",
	}, []string{"target"})

	retryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webmon_retry_total",
		Help: "probe attempts retried after a transient failure",
	}, []string{"target"})

	gateInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webmon_gate_in_flight",
		Help: "probe attempts currently holding admission",
	})

	gateCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webmon_gate_capacity",
		Help: "configured admission capacity",
	})

	writeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webmon_result_write_total",
		Help: "result writes by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(checkDuration, checkTotal, targetUp, retryTotal, gateInFlight, gateCapacity, writeTotal)
}

// ObserveCheck records a classified result for target url.
func ObserveCheck(url string, res domain.CheckResult) {
	checkTotal.WithLabelValues(url, strconv.Itoa(res.StatusCode)).Inc()
	if res.LatencyMS != nil {
		checkDuration.WithLabelValues(url).Observe(time.Duration(*res.LatencyMS * float64(time.Millisecond)).Seconds())
	}
	up := 0.0
	if res.Success {
		up = 1
	}
	targetUp.WithLabelValues(url).Set(up)
}

func ObserveRetry(url string) { retryTotal.WithLabelValues(url).Inc() }

func SetGateCapacity(n int) { gateCapacity.Set(float64(n)) }
func GateAcquired()         { gateInFlight.Inc() }
func GateReleased()         { gateInFlight.Dec() }

func WriteOK()     { writeTotal.WithLabelValues("ok").Inc() }
func WriteFailed() { writeTotal.WithLabelValues("error").Inc() }
