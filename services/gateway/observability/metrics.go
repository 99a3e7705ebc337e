// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the search gateway.
//
// Metrics cover the websocket session lifecycle (active sessions, messages
// received) and search execution (searches by focus mode and status, events
// emitted, errors by key). They are exposed via the /metrics endpoint.
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"

const gatewaySubsystem = "search_gateway"

// GatewayMetrics holds all Prometheus metrics for the gateway.
// Initialize once at startup via InitMetrics().
type GatewayMetrics struct {
	// ActiveSessions tracks currently open websocket sessions.
	ActiveSessions prometheus.Gauge

	// MessagesTotal counts inbound session frames by outcome.
	// Labels: outcome (accepted, malformed, rate_limited)
	MessagesTotal *prometheus.CounterVec

	// SearchesTotal counts search executions by surface, focus mode and status.
	// Labels: surface (session, oneshot), focus_mode, status (success, error)
	SearchesTotal *prometheus.CounterVec

	// SearchDurationSeconds measures end-to-end search duration.
	// Labels: surface, focus_mode
	SearchDurationSeconds *prometheus.HistogramVec

	// EventsTotal counts stream events forwarded to clients by type.
	// Labels: type (response, sources, signal, error)
	EventsTotal *prometheus.CounterVec

	// ErrorsTotal counts error events by machine-readable key.
	// Labels: key (SEARCH_FAILED, GENERATION_FAILED, etc.)
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

// InitMetrics creates and registers all gateway metrics with the default
// Prometheus registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_sessions",
				Help:      "Number of currently open websocket sessions",
			},
		),

		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "messages_total",
				Help:      "Total inbound session frames by outcome",
			},
			[]string{"outcome"},
		),

		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "searches_total",
				Help:      "Total search executions by surface, focus mode and status",
			},
			[]string{"surface", "focus_mode", "status"},
		),

		SearchDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "search_duration_seconds",
				Help:      "End-to-end search duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"surface", "focus_mode"},
		),

		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "events_total",
				Help:      "Total stream events forwarded to clients by type",
			},
			[]string{"type"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "errors_total",
				Help:      "Total error events by machine-readable key",
			},
			[]string{"key"},
		),
	}

	return DefaultMetrics
}

// Surface labels for SearchesTotal.
const (
	SurfaceSession = "session"
	SurfaceOneShot = "oneshot"
)

// Message outcomes for MessagesTotal.
const (
	MessageAccepted    = "accepted"
	MessageMalformed   = "malformed"
	MessageRateLimited = "rate_limited"
)

// SessionOpened increments the active sessions gauge.
func (m *GatewayMetrics) SessionOpened() {
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the active sessions gauge.
func (m *GatewayMetrics) SessionClosed() {
	m.ActiveSessions.Dec()
}

// RecordMessage records one inbound session frame.
func (m *GatewayMetrics) RecordMessage(outcome string) {
	m.MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordSearch records a completed search execution.
func (m *GatewayMetrics) RecordSearch(surface, focusMode string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.SearchesTotal.WithLabelValues(surface, focusMode, status).Inc()
	m.SearchDurationSeconds.WithLabelValues(surface, focusMode).Observe(seconds)
}

// RecordEvent records one stream event forwarded to a client.
func (m *GatewayMetrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordErrorKey records one error event by key.
func (m *GatewayMetrics) RecordErrorKey(key string) {
	m.ErrorsTotal.WithLabelValues(key).Inc()
}
