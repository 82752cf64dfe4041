/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package webhook

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertNotifier receives de-duplicated monitoring alerts.
type AlertNotifier interface {
	Notify(ctx context.Context, alert AlertRecord) error
}

// HealthChecker is one named health predicate.
type HealthChecker func(ctx context.Context) bool

// MonitoringService records metrics, evaluates health checks, and
// de-duplicates alerts, grounded on monitoring.py's MonitoringService.
// Samples are additionally mirrored onto a local Prometheus registry so the
// gateway can serve the spec's aggregate JSON at /metrics and a Prometheus
// exposition at /metrics/prometheus (per SPEC_FULL's ambient metrics stack).
type MonitoringService struct {
	alertNotifier          AlertNotifier
	failureRateThreshold   float64
	responseTimeThreshold  float64
	dedupWindow            time.Duration

	mu            sync.Mutex
	samples       []MetricRecord
	healthChecks  map[string]HealthChecker
	alerts        []AlertRecord
	lastAlertAt   map[string]time.Time

	registry       *prometheus.Registry
	requestCounter *prometheus.CounterVec
	durationHist   prometheus.Histogram
}

// NewMonitoringService wires a monitoring service with spec defaults:
// 20% failure-rate threshold, 3s response-time threshold, 5-minute alert
// dedup window.
func NewMonitoringService(alertNotifier AlertNotifier) *MonitoringService {
	registry := prometheus.NewRegistry()
	requestCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "owlclaw_webhook_requests_total",
		Help: "Total webhook gateway requests by status.",
	}, []string{"status"})
	durationHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "owlclaw_webhook_response_time_ms",
		Help:    "Webhook gateway response time in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 3000, 10000},
	})
	registry.MustRegister(requestCounter, durationHist)
	return &MonitoringService{
		alertNotifier:         alertNotifier,
		failureRateThreshold:  0.2,
		responseTimeThreshold: 3000.0,
		dedupWindow:           5 * time.Minute,
		healthChecks:          make(map[string]HealthChecker),
		lastAlertAt:           make(map[string]time.Time),
		registry:              registry,
		requestCounter:        requestCounter,
		durationHist:          durationHist,
	}
}

// Registry exposes the local Prometheus registry for a /metrics handler.
func (m *MonitoringService) Registry() *prometheus.Registry { return m.registry }

// RegisterHealthCheck adds a named predicate consulted by GetHealthStatus.
func (m *MonitoringService) RegisterHealthCheck(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthChecks[name] = checker
}

// RecordMetric appends a sample and evaluates alert thresholds.
func (m *MonitoringService) RecordMetric(ctx context.Context, metric MetricRecord) {
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	m.samples = append(m.samples, metric)
	m.mu.Unlock()

	if metric.Name == "response_time_ms" {
		m.durationHist.Observe(metric.Value)
	}
	if metric.Name == "request_status" {
		m.requestCounter.WithLabelValues(metric.Tags["status"]).Inc()
	}
	m.evaluateThresholds(ctx, metric)
}

// GetHealthStatus runs every registered predicate and classifies the
// overall state.
func (m *MonitoringService) GetHealthStatus(ctx context.Context) HealthStatus {
	m.mu.Lock()
	checkers := make(map[string]HealthChecker, len(m.healthChecks))
	for k, v := range m.healthChecks {
		checkers[k] = v
	}
	m.mu.Unlock()

	var checks []HealthCheckResult
	failed := 0
	for name, checker := range checkers {
		ok := safeCheck(ctx, checker)
		status := "pass"
		if !ok {
			status = "fail"
			failed++
		}
		checks = append(checks, HealthCheckResult{Name: name, Status: status})
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	var overall string
	switch {
	case len(checks) == 0 || failed == len(checks):
		overall = "unhealthy"
	case failed > 0:
		overall = "degraded"
	default:
		overall = "healthy"
	}
	return HealthStatus{Status: overall, Checks: checks, Timestamp: time.Now().UTC()}
}

func safeCheck(ctx context.Context, checker HealthChecker) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return checker(ctx)
}

// TriggerAlert de-duplicates by alert name within the configured window;
// only the first occurrence in a window actually fires.
func (m *MonitoringService) TriggerAlert(ctx context.Context, alert AlertRecord) bool {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	last, seen := m.lastAlertAt[alert.Name]
	if seen && alert.Timestamp.Sub(last) < m.dedupWindow {
		m.mu.Unlock()
		return false
	}
	m.alerts = append(m.alerts, alert)
	m.lastAlertAt[alert.Name] = alert.Timestamp
	m.mu.Unlock()

	if m.alertNotifier != nil {
		_ = m.alertNotifier.Notify(ctx, alert)
	}
	return true
}

// GetMetrics aggregates samples within window ("realtime"|"hour"|"day") or
// an explicit [start,end] range (both bounds inclusive).
func (m *MonitoringService) GetMetrics(start, end *time.Time, window string) MetricStats {
	filtered := m.filterSamples(start, end, window)
	var requestCount float64
	var responseSamples []float64
	success, failure := 0, 0
	for _, s := range filtered {
		switch s.Name {
		case "request_count":
			requestCount += s.Value
		case "response_time_ms":
			responseSamples = append(responseSamples, s.Value)
		case "request_status":
			switch s.Tags["status"] {
			case "success":
				success++
			case "failure":
				failure++
			}
		}
	}
	total := success + failure
	successRate, failureRate := 1.0, 0.0
	if total > 0 {
		successRate = float64(success) / float64(total)
		failureRate = float64(failure) / float64(total)
	}
	return MetricStats{
		RequestCount:    int(requestCount),
		SuccessRate:     successRate,
		FailureRate:     failureRate,
		AvgResponseTime: mean(responseSamples),
		P95ResponseTime: percentile(responseSamples, 95),
		P99ResponseTime: percentile(responseSamples, 99),
	}
}

// GetAlerts returns every alert that actually fired.
func (m *MonitoringService) GetAlerts() []AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AlertRecord, len(m.alerts))
	copy(out, m.alerts)
	return out
}

func (m *MonitoringService) evaluateThresholds(ctx context.Context, metric MetricRecord) {
	if metric.Name == "response_time_ms" && metric.Value > m.responseTimeThreshold {
		m.TriggerAlert(ctx, AlertRecord{
			Name:     "high_response_time",
			Severity: "warning",
			Message:  "response time exceeded threshold",
			Tags:     metric.Tags,
		})
		return
	}
	if metric.Name != "request_status" {
		return
	}
	stats := m.GetMetrics(nil, nil, "realtime")
	if stats.FailureRate > m.failureRateThreshold {
		m.TriggerAlert(ctx, AlertRecord{
			Name:     "high_failure_rate",
			Severity: "critical",
			Message:  "failure rate exceeded threshold",
		})
	}
}

func (m *MonitoringService) filterSamples(start, end *time.Time, window string) []MetricRecord {
	now := time.Now().UTC()
	var windowStart time.Time
	switch window {
	case "hour":
		windowStart = now.Add(-time.Hour)
	case "day":
		windowStart = now.Add(-24 * time.Hour)
	default:
		windowStart = now.Add(-5 * time.Minute)
	}
	if start != nil {
		windowStart = *start
	}
	windowEnd := now
	if end != nil {
		windowEnd = *end
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MetricRecord
	for _, s := range m.samples {
		if s.Timestamp.Before(windowStart) || s.Timestamp.After(windowEnd) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	ordered := append([]float64(nil), values...)
	sort.Float64s(ordered)
	rank := int(p/100.0*float64(len(ordered)-1) + 0.5)
	if rank < 0 {
		rank = 0
	}
	if rank > len(ordered)-1 {
		rank = len(ordered) - 1
	}
	return ordered[rank]
}
