package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "answerpool",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerpool",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "answerpool",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	questionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerpool",
			Subsystem: "engine",
			Name:      "questions_created_total",
			Help:      "Total number of questions created.",
		},
		[]string{"kind"},
	)

	answersSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerpool",
			Subsystem: "engine",
			Name:      "answers_submitted_total",
			Help:      "Total number of answers submitted.",
		},
	)

	votesCast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerpool",
			Subsystem: "engine",
			Name:      "votes_cast_total",
			Help:      "Total number of votes cast.",
		},
		[]string{"direction"},
	)

	payoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerpool",
			Subsystem: "engine",
			Name:      "payouts_microunits_total",
			Help:      "Value paid out through each terminal path, in microunits.",
		},
		[]string{"path"},
	)

	feesAccrued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerpool",
			Subsystem: "engine",
			Name:      "fees_microunits_total",
			Help:      "Platform fees accrued, in microunits.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		questionsCreated,
		answersSubmitted,
		votesCast,
		payoutsTotal,
		feesAccrued,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordQuestionCreated counts a created question by reward kind.
func RecordQuestionCreated(pool bool) {
	kind := "bounty"
	if pool {
		kind = "pool"
	}
	questionsCreated.WithLabelValues(kind).Inc()
}

// RecordAnswerSubmitted counts a submitted answer.
func RecordAnswerSubmitted() {
	answersSubmitted.Inc()
}

// RecordVote counts a cast vote.
func RecordVote(upvote bool) {
	direction := "down"
	if upvote {
		direction = "up"
	}
	votesCast.WithLabelValues(direction).Inc()
}

// RecordPayout records value leaving escrow through a terminal path.
func RecordPayout(path string, amount uint64) {
	if path == "" {
		path = "unknown"
	}
	payoutsTotal.WithLabelValues(path).Add(float64(amount))
}

// RecordFeeAccrued records platform fees taken.
func RecordFeeAccrued(amount uint64) {
	feesAccrued.Add(float64(amount))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "questions":
		if len(parts) == 1 {
			return "/questions"
		}
		if len(parts) == 2 {
			return "/questions/:id"
		}
		return "/questions/:id/" + strings.Join(parts[2:], "/")
	case "answers":
		if len(parts) == 1 {
			return "/answers"
		}
		return "/answers/:id"
	case "reputation":
		return "/reputation/:identity"
	default:
		return "/" + parts[0]
	}
}
