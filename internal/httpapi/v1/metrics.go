package v1

import (
    "net/http"
    "strconv"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
    requests  *prometheus.CounterVec
    duration  *prometheus.HistogramVec
    mutations *prometheus.CounterVec
    conflicts *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
    m := &httpMetrics{
        requests: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "fundledger",
            Name:      "http_requests_total",
            Help:      "Total number of HTTP requests",
        }, []string{"method", "route", "status"}),
        duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
            Namespace: "fundledger",
            Name:      "http_request_duration_seconds",
            Help:      "Duration of HTTP requests in seconds",
            Buckets:   prometheus.DefBuckets,
        }, []string{"method", "route"}),
        mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "fundledger",
            Subsystem: "ledger",
            Name:      "mutations_total",
            Help:      "Successful ledger writes by entity and operation",
        }, []string{"entity", "op"}),
        conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "fundledger",
            Subsystem: "ledger",
            Name:      "conflicts_total",
            Help:      "Writes rejected with a 409 by error code",
        }, []string{"code"}),
    }
    reg.MustRegister(m.requests, m.duration, m.mutations, m.conflicts)
    return m
}

// middleware labels by the matched route pattern so ids do not explode cardinality.
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
        start := time.Now()
        next.ServeHTTP(ww, r)
        route := "unmatched"
        if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
            route = rc.RoutePattern()
        }
        status := ww.Status()
        if status == 0 { status = http.StatusOK }
        m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
        m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
    })
}

func (m *httpMetrics) mutated(entity, op string) { m.mutations.WithLabelValues(entity, op).Inc() }
