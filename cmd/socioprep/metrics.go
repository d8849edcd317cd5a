package main

import (
	"context"
	"strings"

	"socioprep/internal/metrics"
	"socioprep/internal/metrics/datadog"
	"socioprep/internal/metrics/prompush"
	"socioprep/internal/tracing"
)

// setupMetrics installs the backend named by SOCIOPREP_METRICS_BACKEND and
// returns a func that flushes it. Init failures fall back to the nop backend.
func (a *app) setupMetrics(job string) func() {
	if job == "" {
		job = "socioprep"
	}
	name := strings.ToLower(strings.TrimSpace(a.env.MetricsBackend))

	var (
		b   metrics.Backend
		err error
	)
	switch name {
	case "pushgateway", "prometheus":
		b, err = prompush.NewBackend(job, a.env.PushgatewayURL)
	case "datadog", "dogstatsd":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       a.env.DogStatsDAddr,
			Namespace:  "socioprep.",
			GlobalTags: []string{"job:" + job},
		})
	case "", "none":
		a.log.Debug("metrics: disabled")
		return func() {}
	default:
		a.log.WithField("backend", name).Warn("metrics: unknown backend; metrics disabled")
		return func() {}
	}
	if err != nil {
		a.log.WithError(err).Warn("metrics: init failed; using nop")
		return func() {}
	}

	a.log.WithField("backend", name).Info("metrics enabled")
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			a.log.WithError(err).Warn("metrics: flush failed")
		}
	}
}

// setupTracing installs the exporter named by SOCIOPREP_TRACE_EXPORTER.
// Spans go to stderr so they never mix with the preview on stdout.
func (a *app) setupTracing() (func(), error) {
	shutdown, err := tracing.Setup(a.env.TraceExporter, a.stderr)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			a.log.WithError(err).Warn("tracing: shutdown failed")
		}
	}, nil
}
