package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pool snapshot metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sor_pool_count",
		Help: "Number of priceable pools in the current snapshot",
	})

	PoolsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_pools_dropped_total",
		Help: "Pool records skipped because their type or parameters are unsupported",
	})

	SnapshotRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_snapshot_refreshes_total",
			Help: "Pool snapshot refreshes by outcome",
		},
		[]string{"status"},
	)

	SnapshotRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_snapshot_refresh_duration_seconds",
		Help:    "Time to load and decode a pool snapshot",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"swap_kind", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sor_quote_duration_seconds",
			Help:    "Quote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"swap_kind"},
	)

	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	QuoteCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sor_quote_cache_size",
		Help: "Quotes held in the short-lived quote cache",
	})

	// Router phase metrics
	RouteSelectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_route_selection_duration_seconds",
		Help:    "Time spent pricing candidates and split combinations",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	CandidatePaths = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_candidate_paths",
		Help:    "Candidate paths handed to route selection",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})

	CandidatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_candidates_dropped_total",
		Help: "Candidate paths that failed to price",
	})

	SplitSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_split_selections_total",
			Help: "Winning split candidate by label",
		},
		[]string{"split"},
	)

	CandidateCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_candidate_cache_hits_total",
		Help: "Candidate path enumerations served from cache",
	})

	CandidateCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_candidate_cache_misses_total",
		Help: "Candidate path enumerations computed from the graph",
	})

	GraphRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_graph_rebuilds_total",
		Help: "Total number of routing graph rebuilds",
	})

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sor_price_impact_bps",
			Help:    "Price impact of returned quotes in basis points",
			Buckets: []float64{1, 5, 10, 50, 100, 300, 500, 1000, 5000},
		},
		[]string{"swap_kind"},
	)

	// On-chain verification
	VerificationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_verification_requests_total",
			Help: "queryBatchSwap verifications by outcome",
		},
		[]string{"status"},
	)

	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_verification_duration_seconds",
		Help:    "queryBatchSwap round-trip time",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sor_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
