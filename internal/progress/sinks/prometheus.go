package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/progress"
)

// PrometheusSink mirrors the broadcast snapshots into gauges. Snapshots carry
// totals, so every metric is a gauge set to the latest value.
type PrometheusSink struct {
	fetches  *prometheus.GaugeVec
	inFlight prometheus.Gauge
	queueLen prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		fetches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crawler_downloader_fetches",
			Help: "Fetches started, succeeded and failed since the crawl began.",
		}, []string{"state"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_downloader_in_flight",
			Help: "Fetches started but not yet finished.",
		}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_scheduler_queue_length",
			Help: "Requests waiting in the frontier after the last tick.",
		}),
	}
	for _, collector := range []prometheus.Collector{s.fetches, s.inFlight, s.queueLen} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Downloader returns the listener to register on the downloader broadcaster.
func (s *PrometheusSink) Downloader() progress.Listener[crawler.DownloaderState] {
	return progress.ListenerFunc[crawler.DownloaderState](func(_ context.Context, st crawler.DownloaderState) error {
		s.fetches.WithLabelValues("total").Set(float64(st.Total))
		s.fetches.WithLabelValues("success").Set(float64(st.Success))
		s.fetches.WithLabelValues("error").Set(float64(st.Error))
		s.inFlight.Set(float64(st.InFlight()))
		return nil
	})
}

// Scheduler returns the listener to register on the scheduler broadcaster.
func (s *PrometheusSink) Scheduler() progress.Listener[crawler.SchedulerState] {
	return progress.ListenerFunc[crawler.SchedulerState](func(_ context.Context, st crawler.SchedulerState) error {
		s.queueLen.Set(float64(st.QueueLen))
		return nil
	})
}
