// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
the DocChat client.

# Metrics Exported

Upload metrics (upload subsystem):

  - docchat_upload_total: Counter by result (accepted, unsupported,
    duplicate, rejected, failed)
  - docchat_upload_duration_seconds: Histogram of Submit durations

Exchange metrics (chat subsystem):

  - docchat_chat_exchanges_total: Counter by outcome (complete, errored,
    failed, cancelled)
  - docchat_chat_exchange_duration_seconds: Histogram from submit to end
  - docchat_chat_first_fragment_seconds: Histogram of time to first fragment
  - docchat_chat_fragments_total: Counter of received fragments
  - docchat_chat_in_flight: Gauge, 0 or 1

Metrics live on a private registry so tests can create any number of
Metrics values. Serve exposes the registry on /metrics.
*/
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "docchat"
	subsystemUpload  = "upload"
	subsystemChat    = "chat"
)

// Metrics records client-side measurements.
//
// Satisfies chat.Observer and upload.Observer.
//
// # Thread Safety
//
// Safe for concurrent use; Prometheus collectors are goroutine-safe.
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal   *prometheus.CounterVec
	uploadDuration prometheus.Histogram

	exchangesTotal   *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
	firstFragment    prometheus.Histogram
	fragmentsTotal   prometheus.Counter
	inFlight         prometheus.Gauge
}

// NewMetrics creates and registers the collectors on a private registry.
//
// # Examples
//
//	metrics := telemetry.NewMetrics()
//	asm := chat.NewAssembler(chat.Config{Observer: metrics, ...})
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemUpload,
				Name:      "total",
				Help:      "Document uploads by result",
			},
			[]string{"result"},
		),

		uploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemUpload,
				Name:      "duration_seconds",
				Help:      "Time spent in upload Submit",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		exchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemChat,
				Name:      "exchanges_total",
				Help:      "Finished question exchanges by outcome",
			},
			[]string{"outcome"},
		),

		exchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemChat,
				Name:      "exchange_duration_seconds",
				Help:      "Time from question submit to stream end",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		firstFragment: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemChat,
				Name:      "first_fragment_seconds",
				Help:      "Time from question submit to the first fragment",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		fragmentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemChat,
				Name:      "fragments_total",
				Help:      "Stream fragments received",
			},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystemChat,
				Name:      "in_flight",
				Help:      "Exchanges currently awaiting or streaming an answer",
			},
		),
	}

	m.registry.MustRegister(
		m.uploadsTotal,
		m.uploadDuration,
		m.exchangesTotal,
		m.exchangeDuration,
		m.firstFragment,
		m.fragmentsTotal,
		m.inFlight,
	)
	return m
}

// UploadFinished implements upload.Observer.
func (m *Metrics) UploadFinished(result string, elapsed time.Duration) {
	m.uploadsTotal.WithLabelValues(result).Inc()
	m.uploadDuration.Observe(elapsed.Seconds())
}

// ExchangeStarted implements chat.Observer.
func (m *Metrics) ExchangeStarted() {
	m.inFlight.Inc()
}

// FragmentReceived implements chat.Observer.
func (m *Metrics) FragmentReceived(first bool, sinceStart time.Duration) {
	m.fragmentsTotal.Inc()
	if first {
		m.firstFragment.Observe(sinceStart.Seconds())
	}
}

// ExchangeFinished implements chat.Observer.
func (m *Metrics) ExchangeFinished(outcome string, elapsed time.Duration) {
	m.inFlight.Dec()
	m.exchangesTotal.WithLabelValues(outcome).Inc()
	m.exchangeDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Handler returns an http.Handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
//
// # Outputs
//
//   - error: nil after a clean shutdown, otherwise the listen error.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics endpoint listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
