package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eleven-am/relay247/internal/status"
)

// Recorder holds Prometheus collectors for the relay.
type Recorder struct {
	registry      *prometheus.Registry
	itemsTotal    *prometheus.CounterVec
	itemSeconds   prometheus.Histogram
	listRefreshes prometheus.Counter
	listFailures  prometheus.Counter
	prefetchTotal *prometheus.CounterVec
	state         prometheus.Gauge
}

// New creates and registers the relay collectors on a private registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	itemsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay247_items_total",
		Help: "Playlist items processed, by result",
	}, []string{"result"}) // result=completed|failed|skipped
	itemSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay247_item_duration_seconds",
		Help:    "Wall clock time each completed item stayed on air",
		Buckets: prometheus.ExponentialBuckets(30, 2, 10),
	})
	listRefreshes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay247_list_refreshes_total",
		Help: "Successful playlist refreshes",
	})
	listFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay247_list_failures_total",
		Help: "Playlist refreshes that failed or returned no items",
	})
	prefetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay247_prefetch_total",
		Help: "Prefetch slot consumptions, by outcome",
	}, []string{"outcome"}) // outcome=hit|miss
	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay247_state",
		Help: "Relay run state (0 starting, 1 probing, 2 preflight, 3 running, 4 waiting, 5 stopped)",
	})

	registry.MustRegister(
		itemsTotal,
		itemSeconds,
		listRefreshes,
		listFailures,
		prefetchTotal,
		state,
	)

	return &Recorder{
		registry:      registry,
		itemsTotal:    itemsTotal,
		itemSeconds:   itemSeconds,
		listRefreshes: listRefreshes,
		listFailures:  listFailures,
		prefetchTotal: prefetchTotal,
		state:         state,
	}
}

func (r *Recorder) ItemCompleted(seconds float64) {
	r.itemsTotal.WithLabelValues("completed").Inc()
	r.itemSeconds.Observe(seconds)
}

func (r *Recorder) ItemFailed() {
	r.itemsTotal.WithLabelValues("failed").Inc()
}

func (r *Recorder) ItemSkipped() {
	r.itemsTotal.WithLabelValues("skipped").Inc()
}

func (r *Recorder) ListRefreshed() {
	r.listRefreshes.Inc()
}

func (r *Recorder) ListFailed() {
	r.listFailures.Inc()
}

func (r *Recorder) PrefetchHit() {
	r.prefetchTotal.WithLabelValues("hit").Inc()
}

func (r *Recorder) PrefetchMiss() {
	r.prefetchTotal.WithLabelValues("miss").Inc()
}

func (r *Recorder) SetState(st status.State) {
	r.state.Set(stateValue(st))
}

func stateValue(st status.State) float64 {
	switch st {
	case status.StateStarting:
		return 0
	case status.StateProbing:
		return 1
	case status.StatePreflight:
		return 2
	case status.StateRunning:
		return 3
	case status.StateWaiting:
		return 4
	case status.StateStopped:
		return 5
	default:
		return -1
	}
}

// Handler serves the private registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
