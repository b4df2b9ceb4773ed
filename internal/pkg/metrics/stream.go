package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterStreamSubscribers exposes the number of open progress streams, read from
// count on every scrape.
func RegisterStreamSubscribers(registerer prometheus.Registerer, count func() int) prometheus.GaugeFunc {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "payroll_stream_subscribers",
		Help: "Progress stream subscriptions currently open.",
	}, func() float64 {
		return float64(count())
	})
	registerer.MustRegister(gauge)
	return gauge
}
