// Package metrics экспортирует метрики проходов синхронизации в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

const namespace = "feedsync"

// Sync собирает метрики планировщика и реализует scheduler.Observer
type Sync struct {
	passes        *prometheus.CounterVec
	passDuration  prometheus.Histogram
	skippedPasses prometheus.Counter
	lastPass      prometheus.Gauge

	posts      prometheus.Counter
	readStates prometheus.Counter
	keywords   prometheus.Counter
	entries    *prometheus.CounterVec
	feedErrors *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Sync {
	factory := promauto.With(reg)

	return &Sync{
		passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of sync passes",
			},
			[]string{"status"},
		),
		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of sync passes in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		skippedPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_passes_total",
				Help:      "Scheduled firings skipped because a pass was still running",
			},
		),
		lastPass: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time when the last sync pass started",
			},
		),
		posts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "posts_ingested_total",
				Help:      "Total number of posts created",
			},
		),
		readStates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_states_created_total",
				Help:      "Total number of read states created by fan-out",
			},
		),
		keywords: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_keywords_created_total",
				Help:      "Total number of new feed keyword associations",
			},
		),
		entries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_skipped_total",
				Help:      "Entries that did not become new posts",
			},
			[]string{"reason"},
		),
		feedErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_failures_total",
				Help:      "Feeds that failed during a pass",
			},
			[]string{"kind"},
		),
	}
}

func (s *Sync) ObservePass(report model.PassReport, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.passes.WithLabelValues(status).Inc()

	if !report.StartedAt.IsZero() {
		s.lastPass.Set(float64(report.StartedAt.Unix()))
	}
	s.passDuration.Observe(report.Duration.Seconds())

	for _, feed := range report.Feeds {
		if feed.Status == model.FeedFailed {
			s.feedErrors.WithLabelValues(string(feed.Failure)).Inc()
		}

		s.posts.Add(float64(feed.Ingested))
		s.readStates.Add(float64(feed.ReadStates))
		s.keywords.Add(float64(feed.Keywords))

		s.entries.WithLabelValues("existing").Add(float64(feed.Existing))
		s.entries.WithLabelValues("malformed").Add(float64(feed.Malformed))
		s.entries.WithLabelValues("filtered").Add(float64(feed.Filtered))
	}
}

func (s *Sync) ObserveSkipped() {
	s.skippedPasses.Inc()
}
