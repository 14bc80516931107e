package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollectors mirrors a Collector's fields as exported
// Prometheus metrics, each backed directly by the atomic counter it
// reports (CounterFunc/GaugeFunc) rather than a separately-synced
// value, avoiding double-accounting between the two.
type PrometheusCollectors struct {
	Attempted        prometheus.CounterFunc
	Success          prometheus.CounterFunc
	Timeout          prometheus.CounterFunc
	Refused          prometheus.CounterFunc
	Unreachable      prometheus.CounterFunc
	ProtocolError    prometheus.CounterFunc
	BlacklistSkipped prometheus.CounterFunc
	RateLimited      prometheus.CounterFunc
	ActiveWorkers    prometheus.GaugeFunc
	RatePerSecond    prometheus.GaugeFunc
}

// InitPrometheus registers c's counters under namespace and returns
// the registered collectors.
func InitPrometheus(namespace string, c *Collector) *PrometheusCollectors {
	register := func(coll prometheus.Collector) prometheus.Collector {
		if err := prometheus.Register(coll); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return are.ExistingCollector
			}
			return coll
		}
		return coll
	}

	counter := func(name, help string, f func() float64) prometheus.CounterFunc {
		return register(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, f)).(prometheus.CounterFunc)
	}
	gauge := func(name, help string, f func() float64) prometheus.GaugeFunc {
		return register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, f)).(prometheus.GaugeFunc)
	}

	return &PrometheusCollectors{
		Attempted:        counter("probes_attempted_total", "Total targets dequeued and probed", func() float64 { return float64(c.Attempted.Load()) }),
		Success:          counter("probes_success_total", "Total successful probes (modern + legacy)", func() float64 { return float64(c.GetTotalSuccess()) }),
		Timeout:          counter("probes_timeout_total", "Total probes that timed out", func() float64 { return float64(c.Timeout.Load()) }),
		Refused:          counter("probes_refused_total", "Total probes refused by the target", func() float64 { return float64(c.Refused.Load()) }),
		Unreachable:      counter("probes_unreachable_total", "Total probes whose target was unreachable", func() float64 { return float64(c.Unreachable.Load()) }),
		ProtocolError:    counter("probes_protocol_error_total", "Total probes that failed protocol decoding", func() float64 { return float64(c.ProtocolError.Load()) }),
		BlacklistSkipped: counter("targets_blacklist_skipped_total", "Total targets skipped by the blacklist", func() float64 { return float64(c.BlacklistSkipped.Load()) }),
		RateLimited:      counter("targets_rate_limited_total", "Total targets aborted as rate-limited", func() float64 { return float64(c.RateLimited.Load()) }),
		ActiveWorkers:    gauge("workers_active", "Current number of busy worker slots", func() float64 { return float64(c.GetActiveWorkers()) }),
		RatePerSecond:    gauge("probe_rate_per_second", "Smoothed probe throughput (EMA, alpha=0.2)", c.Rate),
	}
}
