package nw

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

const (
	metricsNamespace = "newswidget"

	instrumentationName = "github.com/meinside/news-widget-go"
)

var tracer = otel.Tracer(instrumentationName)

// Metrics is a collection of prometheus counters of the pipeline.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FeedFetches *prometheus.CounterVec
	DekRewrites *prometheus.CounterVec
	FeedCache   *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them to given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FeedFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "feed_fetch_total",
				Help:      "Total number of feed fetches",
			},
			[]string{"status"},
		),
		DekRewrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dek_rewrite_total",
				Help:      "Total number of dek rewrites by status",
			},
			[]string{"status"},
		),
		FeedCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "feed_cache_total",
				Help:      "Total number of feed cache lookups by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.FeedFetches, m.DekRewrites, m.FeedCache} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// record a dek rewrite
func (m *Metrics) recordRewrite(status RewriteStatus) {
	if m == nil {
		return
	}
	m.DekRewrites.WithLabelValues(string(status)).Inc()
}

// record a feed fetch
func (m *Metrics) recordFetch(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FeedFetches.WithLabelValues(status).Inc()
}

// record a feed cache lookup
func (m *Metrics) recordFeedCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.FeedCache.WithLabelValues(result).Inc()
}
