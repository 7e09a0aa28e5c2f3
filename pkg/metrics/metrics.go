package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statica",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests served",
	}, []string{"code", "method"})

	RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "statica",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served",
	})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "statica",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Length of time per HTTP request, transform pipeline included",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5, 10},
	}, []string{"code"})
)

func RegisterCoreCollectors() {
	Registry.MustRegister(RequestsTotal, RequestsInFlight, RequestDuration)
}

// Instrument wraps the serving handler with the request collectors.
func Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(RequestsInFlight,
		promhttp.InstrumentHandlerDuration(RequestDuration,
			promhttp.InstrumentHandlerCounter(RequestsTotal, next)))
}
