// Package telemetry exposes a feed's Statistics as Prometheus metrics.
// It is a peripheral exporter: the core never imports it and never
// blocks on it.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minimart/pkg/marketdata"
)

// Exporter polls a Feed's statistics on an interval and republishes them
// as Prometheus gauges, plus serves the active securities count.
type Exporter struct {
	feed     *marketdata.Feed
	registry *prometheus.Registry

	messagesProduced prometheus.Gauge
	messagesConsumed prometheus.Gauge
	ringFullEvents   prometheus.Gauge
	ringEmptyEvents  prometheus.Gauge
	consumerYields   prometheus.Gauge
	averageLatencyNs prometheus.Gauge
	maxLatencyNs     prometheus.Gauge
	ringUtilization  prometheus.Gauge
	subscribedCount  prometheus.Gauge
}

// New creates an Exporter for feed under the given metric namespace.
func New(namespace string, feed *marketdata.Feed) *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{
		feed:     feed,
		registry: registry,

		messagesProduced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "messages_produced_total",
			Help: "Total L2 updates produced by the generator.",
		}),
		messagesConsumed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "messages_consumed_total",
			Help: "Total L2 updates applied to the store.",
		}),
		ringFullEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ring_full_events_total",
			Help: "Total producer pushes dropped due to a full ring.",
		}),
		ringEmptyEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ring_empty_events_total",
			Help: "Total consumer pops that found an empty ring.",
		}),
		consumerYields: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "consumer_yields_total",
			Help: "Total times the consumer slept on an empty ring (scheduler yields are not counted).",
		}),
		averageLatencyNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "average_latency_nanoseconds",
			Help: "Mean producer-to-consumer latency.",
		}),
		maxLatencyNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_latency_nanoseconds",
			Help: "Maximum observed producer-to-consumer latency.",
		}),
		ringUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ring_utilization_ratio",
			Help: "Fraction of the ring currently occupied, in [0,1].",
		}),
		subscribedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscribed_securities",
			Help: "Number of securities currently subscribed.",
		}),
	}

	registry.MustRegister(
		e.messagesProduced,
		e.messagesConsumed,
		e.ringFullEvents,
		e.ringEmptyEvents,
		e.consumerYields,
		e.averageLatencyNs,
		e.maxLatencyNs,
		e.ringUtilization,
		e.subscribedCount,
	)

	return e
}

// Collect refreshes every gauge from the feed's current statistics. It is
// safe to call concurrently with the feed's hot path; every read goes
// through the feed's own snapshot methods.
func (e *Exporter) Collect() {
	stats := e.feed.Statistics()
	e.messagesProduced.Set(float64(stats.MessagesProduced))
	e.messagesConsumed.Set(float64(stats.MessagesConsumed))
	e.ringFullEvents.Set(float64(stats.RingFullEvents))
	e.ringEmptyEvents.Set(float64(stats.RingEmptyEvents))
	e.consumerYields.Set(float64(stats.ConsumerYields))
	e.averageLatencyNs.Set(stats.AverageLatencyNs())
	e.maxLatencyNs.Set(float64(stats.MaxLatencyNs))
	e.ringUtilization.Set(e.feed.RingUtilization())
	e.subscribedCount.Set(float64(len(e.feed.ListSubscribed())))
}

// Run polls Collect on interval until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Collect()
		}
	}
}

// Handler returns the HTTP handler that serves this exporter's registry
// in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ListenAndServe starts an HTTP server on addr serving /metrics. It
// blocks until the server errors or ctx is cancelled.
func (e *Exporter) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("telemetry: shutting down listener on %s", addr)
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("telemetry: listener on %s failed: %w", addr, err)
		}
		return nil
	}
}
