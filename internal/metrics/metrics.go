package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	sessionsCreated    prometheus.Counter
	tradesTotal        *prometheus.CounterVec
	tradesRejected     *prometheus.CounterVec
	sessionsFinished   *prometheus.CounterVec
	finalProfitRate    prometheus.Histogram
	marketDataRequests *prometheus.CounterVec
	reviewsTotal       *prometheus.CounterVec
	reviewDuration     prometheus.Histogram
	reviewTokens       *prometheus.CounterVec
	streamClients      prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papertrader_sessions_created_total",
			Help: "Total number of simulation sessions created",
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_trades_total",
			Help: "Total number of executed simulation trades",
		},
		[]string{"kind"},
	)
	r.tradesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_trades_rejected_total",
			Help: "Total number of rejected simulation trades",
		},
		[]string{"code"},
	)
	r.sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_sessions_finished_total",
			Help: "Total number of sessions that reached a terminal state",
		},
		[]string{"status"},
	)
	r.finalProfitRate = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papertrader_final_profit_rate_percent",
			Help:    "Final profit rate of completed sessions, in percent",
			Buckets: []float64{-50, -20, -10, -5, -2, 0, 2, 5, 10, 20, 50},
		},
	)
	r.marketDataRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_marketdata_requests_total",
			Help: "Total number of bar requests by serving source",
		},
		[]string{"source", "status"},
	)
	r.reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_reviews_total",
			Help: "Total number of AI session reviews",
		},
		[]string{"provider", "status"},
	)
	r.reviewDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papertrader_review_duration_seconds",
			Help:    "AI review duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	r.reviewTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrader_review_tokens_total",
			Help: "Tokens billed for AI session reviews",
		},
		[]string{"provider", "direction"},
	)
	r.streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrader_stream_clients",
			Help: "Number of connected session event stream clients",
		},
	)

	reg.MustRegister(r.sessionsCreated)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.tradesRejected)
	reg.MustRegister(r.sessionsFinished)
	reg.MustRegister(r.finalProfitRate)
	reg.MustRegister(r.marketDataRequests)
	reg.MustRegister(r.reviewsTotal)
	reg.MustRegister(r.reviewDuration)
	reg.MustRegister(r.reviewTokens)
	reg.MustRegister(r.streamClients)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

func (r *Registry) RecordSessionCreated() {
	r.sessionsCreated.Inc()
}

func (r *Registry) RecordTrade(kind string) {
	r.tradesTotal.WithLabelValues(kind).Inc()
}

// RecordTradeRejected counts a rejected trade by error code.
func (r *Registry) RecordTradeRejected(code string) {
	r.tradesRejected.WithLabelValues(code).Inc()
}

// RecordSessionFinished counts a terminal transition. The profit rate is
// only observed for completed sessions.
func (r *Registry) RecordSessionFinished(status string, profitRate *float64) {
	r.sessionsFinished.WithLabelValues(status).Inc()
	if profitRate != nil {
		r.finalProfitRate.Observe(*profitRate)
	}
}

// RecordMarketData counts a bar request by the source that served it.
func (r *Registry) RecordMarketData(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.marketDataRequests.WithLabelValues(source, status).Inc()
}

func (r *Registry) RecordReview(provider string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.reviewsTotal.WithLabelValues(provider, status).Inc()
	r.reviewDuration.Observe(duration)
}

// RecordReviewTokens adds the input and output tokens of one review.
func (r *Registry) RecordReviewTokens(provider string, input, output int) {
	r.reviewTokens.WithLabelValues(provider, "input").Add(float64(input))
	r.reviewTokens.WithLabelValues(provider, "output").Add(float64(output))
}

func (r *Registry) StreamClientInc() {
	r.streamClients.Inc()
}

func (r *Registry) StreamClientDec() {
	r.streamClients.Dec()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
