package assembly

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotLastRunTimestamp *prometheus.GaugeVec
	slotRunCount         *prometheus.CounterVec
	slotRunLatency       *prometheus.HistogramVec
)

// EnableMetrics registers the engine's prometheus metrics. Available
// metrics are...
//   - bl_slot_last_run_timestamp - (tags: slot)
//     timestamp of the last successful slot assembly.
//   - bl_slot_run_count - (tags: slot,success)
//     count of slot assembly attempts, tagged with the result.
//   - bl_slot_run_latency_seconds - (tags: slot)
//     latency of a slot's full state-machine run.
func EnableMetrics(namespace string, registerer prometheus.Registerer) {
	slotLastRunTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "slot_last_run_timestamp",
		Help:      "Timestamp of the last successful slot assembly",
	}, []string{"slot"})

	slotRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_run_count",
		Help:      "Count of slot assembly attempts",
	}, []string{"slot", "success"})

	slotRunLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "slot_run_latency_seconds",
		Help:      "Latency of a slot assembly run",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	}, []string{"slot"})

	registerer.MustRegister(slotLastRunTimestamp, slotRunCount, slotRunLatency)
}

func recordSlotRun(slot string, success bool, start time.Time) {
	if slotRunCount == nil {
		return
	}
	if success {
		slotLastRunTimestamp.WithLabelValues(slot).Set(float64(time.Now().Unix()))
	}
	slotRunCount.WithLabelValues(slot, strconv.FormatBool(success)).Inc()
	slotRunLatency.WithLabelValues(slot).Observe(time.Since(start).Seconds())
}
