package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	vendorFailures  *prometheus.CounterVec
	optionsTotal    *prometheus.CounterVec
	discountLookups *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ongkir_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ongkir_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	vendorFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ongkir_vendor_failures_total",
		Help: "Jumlah kegagalan panggilan kurir per vendor.",
	}, []string{"vendor"})
	optionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ongkir_quote_options_total",
		Help: "Jumlah opsi pengiriman yang dihasilkan per vendor.",
	}, []string{"vendor"})
	discountLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ongkir_discount_lookups_total",
		Help: "Jumlah pencarian diskon berdasarkan hasilnya.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, vendorFailures, optionsTotal, discountLookups)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		vendorFailures:  vendorFailures,
		optionsTotal:    optionsTotal,
		discountLookups: discountLookups,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// VendorFailure mencatat kegagalan satu panggilan kurir.
func (m *Metrics) VendorFailure(vendor string) {
	if m == nil {
		return
	}
	m.vendorFailures.WithLabelValues(vendor).Inc()
}

// OptionProduced mencatat satu opsi pengiriman hasil normalisasi.
func (m *Metrics) OptionProduced(vendor string) {
	if m == nil {
		return
	}
	m.optionsTotal.WithLabelValues(vendor).Inc()
}

// DiscountLookup mencatat hasil pencarian diskon: hit, miss, atau error.
func (m *Metrics) DiscountLookup(result string) {
	if m == nil {
		return
	}
	m.discountLookups.WithLabelValues(result).Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
