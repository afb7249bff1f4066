// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry provides Prometheus metrics and the in-memory request
// statistics store for the gateway. Metric label values carry entity types,
// pattern names, statuses, and endpoints only; message content and matched
// substrings never reach a label.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// requestsTotal counts processed requests.
	// Labels: status (success, blocked, validation_error, upstream_error),
	// endpoint
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Name:      "requests_total",
		Help:      "Total number of requests processed",
	}, []string{"status", "endpoint"})

	// piiDetectionsTotal counts detected PII entities.
	// Labels: entity_type (EMAIL_ADDRESS, API_KEY, ...)
	piiDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Name:      "pii_detections_total",
		Help:      "Total number of PII entities detected",
	}, []string{"entity_type"})

	// injectionDetectionsTotal counts injection pattern hits.
	// Labels: pattern_type (rule name), action (block, warn)
	injectionDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Name:      "injection_detections_total",
		Help:      "Total number of injection attempts detected",
	}, []string{"pattern_type", "action"})

	// requestDurationSeconds measures end-to-end request latency.
	// Labels: endpoint
	requestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aegis",
		Name:      "request_duration_seconds",
		Help:      "Request duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"endpoint"})

	// filterDurationSeconds measures single-filter analysis latency.
	// Labels: filter_name
	filterDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aegis",
		Name:      "filter_duration_seconds",
		Help:      "Filter processing duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"filter_name"})

	// appInfo exposes build information as a constant gauge.
	appInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aegis",
		Name:      "info",
		Help:      "AegisProxy application information",
	}, []string{"version", "name"})
)

// InitMetrics publishes application info. Call once at startup.
func InitMetrics(version string) {
	appInfo.WithLabelValues(version, "aegis-proxy").Set(1)
}

// RecordRequest records a processed request by outcome and endpoint.
//
// Inputs:
//   - status: "success", "blocked", "validation_error", or
//     "upstream_error".
//   - endpoint: The request path (e.g. "/v1/chat/completions").
//   - durationSec: End-to-end latency in seconds, measured from entry to
//     response start.
func RecordRequest(status, endpoint string, durationSec float64) {
	requestsTotal.WithLabelValues(status, endpoint).Inc()
	requestDurationSeconds.WithLabelValues(endpoint).Observe(durationSec)
}

// RecordPIIDetection records one detected PII entity by type.
func RecordPIIDetection(entityType string) {
	piiDetectionsTotal.WithLabelValues(entityType).Inc()
}

// RecordInjectionDetection records one matched injection pattern.
//
// Inputs:
//   - patternType: The rule name that matched (e.g. "ignore_instructions").
//   - action: The configured action taken ("block" or "warn").
func RecordInjectionDetection(patternType, action string) {
	injectionDetectionsTotal.WithLabelValues(patternType, action).Inc()
}

// ObserveFilterDuration records how long a single filter's Analyze took.
func ObserveFilterDuration(filterName string, durationSec float64) {
	filterDurationSeconds.WithLabelValues(filterName).Observe(durationSec)
}
