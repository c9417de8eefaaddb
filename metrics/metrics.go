// Package metrics exposes Prometheus instrumentation for the wagering core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits counts match resolutions served from the in-memory cache
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidestake_match_cache_hits_total",
		Help: "Match resolutions served from the in-memory cache",
	})

	// CacheMisses counts match resolutions that had to consult the chain
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidestake_match_cache_misses_total",
		Help: "Match resolutions that walked the provider chain",
	})

	// ProviderFailures counts provider fetch failures by provider name
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidestake_provider_failures_total",
		Help: "Match data provider fetch failures",
	}, []string{"provider"})

	// ProviderFetches counts successful provider fetches by provider name
	ProviderFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidestake_provider_fetches_total",
		Help: "Successful match data provider fetches",
	}, []string{"provider"})

	// BetsSettled counts bets settled
	BetsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidestake_bets_settled_total",
		Help: "Bets settled with a payout",
	})

	// BetsCancelled counts bets cancelled and refunded
	BetsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidestake_bets_cancelled_total",
		Help: "Bets cancelled and refunded",
	})
)

// Serve starts a metrics HTTP server on addr in a background goroutine
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
