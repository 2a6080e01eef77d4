package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Config structure
type Config struct {
	Enabled bool
	Host    string
	Port    int
}

var (
	// TransfersCount transfers by asset and result
	TransfersCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "transfers_total",
		Help:      "Number of transfers processed",
	}, []string{"asset", "result"})

	// EntriesCount posted ledger entries
	EntriesCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "entries_total",
		Help:      "Number of ledger entries posted",
	}, []string{"asset", "direction"})

	// HoldsCount hold lifecycle actions
	HoldsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "holds_total",
		Help:      "Number of hold operations",
	}, []string{"asset", "action"})

	// ExpiredHoldsCount results of the expired holds sweep
	ExpiredHoldsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "expired_holds_total",
		Help:      "Number of holds processed by the expiry sweep",
	}, []string{"result"})

	// LedgerImbalanceCount integrity check failures. Any increase must page someone.
	LedgerImbalanceCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "imbalance_total",
		Help:      "Number of postings whose signed sum is not zero",
	})

	// NotificationsCount transfer notifications by result
	NotificationsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "notifications_total",
		Help:      "Number of transfer notifications",
	}, []string{"result"})

	// OperationDuration godoc
	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// RequestCount http requests by route and status
	RequestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests",
	}, []string{"route", "method", "status"})
)

var registerOnce sync.Once
var server *http.Server

// Init registers the collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TransfersCount,
			EntriesCount,
			HoldsCount,
			ExpiredHoldsCount,
			LedgerImbalanceCount,
			NotificationsCount,
			OperationDuration,
			RequestCount,
		)
	})
}

// ObserveDuration records the time since start for the operation
func ObserveDuration(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// PrometheusMiddleware counts the requests handled by the gin router
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		RequestCount.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// LoopProfilingServer exposes metrics and pprof on the monitoring port until shutdown
func LoopProfilingServer(cfg Config) {
	if !cfg.Enabled {
		return
	}
	Init()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	log.Info().Str("worker", "monitoring").Str("addr", server.Addr).Msg("Monitoring server - started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Str("worker", "monitoring").Msg("Unable to start monitoring server")
	}
}

// ShutdownServer godoc
func ShutdownServer() {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Str("worker", "monitoring").Msg("Unable to shutdown monitoring server")
	}
}
