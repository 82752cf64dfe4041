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
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/owlclaw/agentcore/internal/apierr"
	"github.com/owlclaw/agentcore/internal/webhook/notify"
	"github.com/owlclaw/agentcore/internal/webhook/transform"
)

// GatewayConfig configures the HTTP gateway, grounded on http/app.py's
// HttpGatewayConfig.
type GatewayConfig struct {
	CORSOrigins                []string
	PerIPLimitPerMinute         int
	PerEndpointLimitPerMinute   int
}

// DefaultGatewayConfig returns the spec's default rate-limit budgets: 120
// requests/min per source IP, 300 requests/min per endpoint.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CORSOrigins:               []string{"*"},
		PerIPLimitPerMinute:       120,
		PerEndpointLimitPerMinute: 300,
	}
}

// slidingWindowLimiter tracks per-key request timestamps over a rolling
// one-minute window, grounded on http/app.py's _RateLimiter and
// internal/shared/ratelimit/ratelimit.go's pruning idiom.
type slidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window map[string][]time.Time
}

func newSlidingWindowLimiter(limit int) *slidingWindowLimiter {
	return &slidingWindowLimiter{limit: limit, window: make(map[string][]time.Time)}
}

func (l *slidingWindowLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-time.Minute)
	entries := l.window[key]
	pruned := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	if len(pruned) >= l.limit {
		l.window[key] = pruned
		return false
	}
	l.window[key] = append(pruned, now)
	return true
}

// Gateway composes the webhook trigger pipeline behind an HTTP surface,
// grounded on http/app.py's create_webhook_app.
type Gateway struct {
	manager     *EndpointManager
	validator   *RequestValidator
	transformer *transform.Transformer
	governance  *GovernanceClient
	execution   *ExecutionTrigger
	events      *EventLogger
	monitoring  *MonitoringService
	notifier    *notify.Notifier

	cfg       GatewayConfig
	ipLimiter *slidingWindowLimiter
	epLimiter *slidingWindowLimiter
	logger    *zap.Logger

	mux *http.ServeMux
}

// NewGateway wires a Gateway over its component services. logger defaults
// to a no-op logger when nil, matching internal/memory's convention.
func NewGateway(
	manager *EndpointManager,
	validator *RequestValidator,
	transformer *transform.Transformer,
	governance *GovernanceClient,
	execution *ExecutionTrigger,
	events *EventLogger,
	monitoring *MonitoringService,
	notifier *notify.Notifier,
	cfg GatewayConfig,
	logger *zap.Logger,
) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		manager:     manager,
		validator:   validator,
		transformer: transformer,
		governance:  governance,
		execution:   execution,
		events:      events,
		monitoring:  monitoring,
		notifier:    notifier,
		cfg:         cfg,
		ipLimiter:   newSlidingWindowLimiter(cfg.PerIPLimitPerMinute),
		epLimiter:   newSlidingWindowLimiter(cfg.PerEndpointLimitPerMinute),
		logger:      logger,
	}
	g.mux = http.NewServeMux()
	g.routes()
	return g
}

func (g *Gateway) routes() {
	g.mux.HandleFunc("POST /webhooks/{endpoint_id}", g.handleReceiveWebhook)
	g.mux.HandleFunc("POST /endpoints", g.handleCreateEndpoint)
	g.mux.HandleFunc("GET /endpoints", g.handleListEndpoints)
	g.mux.HandleFunc("GET /endpoints/{endpoint_id}", g.handleGetEndpoint)
	g.mux.HandleFunc("PUT /endpoints/{endpoint_id}", g.handleUpdateEndpoint)
	g.mux.HandleFunc("DELETE /endpoints/{endpoint_id}", g.handleDeleteEndpoint)
	g.mux.HandleFunc("GET /health", g.handleHealth)
	g.mux.HandleFunc("GET /metrics", g.handleMetrics)
	g.mux.HandleFunc("GET /metrics/prometheus", promhttp.HandlerFor(g.monitoring.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
	g.mux.HandleFunc("GET /events", g.handleEvents)
}

// ServeHTTP implements http.Handler, tracing every request with a request
// id and CORS headers before dispatch, mirroring the FastAPI
// _request_trace_middleware.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	g.applyCORS(w)
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.Header().Set("X-Request-Id", requestID)
	ctx := context.WithValue(r.Context(), requestIDKey, requestID)
	g.mux.ServeHTTP(rec, r.WithContext(ctx))
	elapsed := time.Since(started).Seconds() * 1000.0
	g.monitoring.RecordMetric(ctx, MetricRecord{Name: "response_time_ms", Value: elapsed})
}

func (g *Gateway) applyCORS(w http.ResponseWriter) {
	origin := "*"
	if len(g.cfg.CORSOrigins) > 0 {
		origin = strings.Join(g.cfg.CORSOrigins, ", ")
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type contextKey string

const requestIDKey contextKey = "webhook_request_id"

func requestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return uuid.NewString()
}

func (g *Gateway) handleReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpointID := r.PathValue("endpoint_id")
	requestID := requestIDFrom(r)
	ip := clientIP(r)
	userAgent := r.Header.Get("User-Agent")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.writeError(w, requestID, apierr.New(apierr.KindValidation, "failed to read request body"))
		return
	}
	g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_count", Value: 1})
	headers := flattenHeaders(r.Header)
	_, _ = g.events.LogRequest(ctx, BuildEvent("default", endpointID, requestID, EventRequest))

	if !g.ipLimiter.allow(ip) || !g.epLimiter.allow(endpointID) {
		g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_status", Value: 1, Tags: map[string]string{"status": "failure"}})
		g.writeError(w, requestID, apierr.New(apierr.KindRateLimited, "rate limit exceeded"))
		return
	}

	req := HTTPRequest{Headers: headers, Body: string(body)}
	endpoint, err := g.validator.ValidateRequest(ctx, endpointID, req)
	if err != nil {
		g.logEventFailure(ctx, endpointID, requestID, EventValidation, err)
		g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_status", Value: 1, Tags: map[string]string{"status": "failure"}})
		g.writeError(w, requestID, err)
		return
	}

	parsed, err := g.transformer.Parse(transform.Request{Headers: headers, Body: string(body)})
	if err != nil {
		g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_status", Value: 1, Tags: map[string]string{"status": "failure"}})
		g.writeError(w, requestID, err)
		return
	}
	_, _ = g.events.LogTransformation(ctx, EventRecord{
		ID: uuid.NewString(), TenantID: "default", EndpointID: endpointID, RequestID: requestID,
		EventType: EventTransformation, Timestamp: time.Now().UTC(), Status: "completed",
		Data: map[string]any{"content_type": parsed.ContentType},
	})

	rule := transform.Rule{
		ID:            uuid.NewString(),
		Name:          "default-rule",
		TargetAgentID: endpoint.Config.TargetAgentID,
		Mappings:      []transform.FieldMapping{{Source: "$", Target: "payload"}},
	}
	transformed, err := g.transformer.Transform(parsed, rule)
	if err != nil {
		g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_status", Value: 1, Tags: map[string]string{"status": "failure"}})
		g.writeError(w, requestID, err)
		return
	}
	agentInput := AgentInput{AgentID: transformed.AgentID, Parameters: transformed.Parameters, Context: transformed.Context}

	gctx := GovernanceContext{
		TenantID: endpoint.TenantID, EndpointID: endpoint.ID, AgentID: endpoint.Config.TargetAgentID,
		RequestID: requestID, SourceIP: ip, UserAgent: userAgent, Timestamp: time.Now().UTC(),
	}
	if err := g.governance.ValidateExecution(ctx, gctx); err != nil {
		g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_status", Value: 1, Tags: map[string]string{"status": "failure"}})
		g.writeError(w, requestID, err)
		return
	}

	result := g.execution.Trigger(ctx, agentInput, ExecutionOptions{
		Mode:           endpoint.Config.ExecutionMode,
		TimeoutSeconds: endpoint.Config.TimeoutSeconds,
		RetryPolicy:    endpoint.Config.RetryPolicy,
	})
	status := "failure"
	if result.Status == StatusAccepted || result.Status == StatusRunning || result.Status == StatusCompleted {
		status = "success"
	}
	g.monitoring.RecordMetric(ctx, MetricRecord{Name: "request_status", Value: 1, Tags: map[string]string{"status": status}})
	_, _ = g.events.LogExecution(ctx, EventRecord{
		ID: uuid.NewString(), TenantID: endpoint.TenantID, EndpointID: endpoint.ID, RequestID: requestID,
		EventType: EventExecution, Timestamp: time.Now().UTC(), Status: string(result.Status),
		Data: map[string]any{"execution_id": result.ExecutionID}, Error: result.Error,
	})
	if g.notifier != nil {
		if result.Status == StatusFailed {
			g.notifier.NotifyExecutionFailed(endpoint.TenantID, endpoint.ID, result.ExecutionID, result.Error)
		} else {
			g.notifier.NotifyExecutionCompleted(endpoint.TenantID, endpoint.ID, result.ExecutionID, result.Output)
		}
	}

	g.writeJSON(w, http.StatusAccepted, map[string]any{
		"execution_id": result.ExecutionID,
		"status":       result.Status,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (g *Gateway) logEventFailure(ctx context.Context, endpointID, requestID string, eventType EventType, err error) {
	event := BuildEvent("default", endpointID, requestID, eventType)
	event.Status = "failed"
	if apiErr, ok := err.(*apierr.Error); ok {
		event.Error = map[string]any{"kind": string(apiErr.Kind), "message": apiErr.Message}
	}
	_, _ = g.events.LogValidation(ctx, event)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}

func (g *Gateway) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	var body struct {
		Config EndpointConfig `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.writeError(w, requestID, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}
	endpoint, err := g.manager.Create(r.Context(), "default", body.Config)
	if err != nil {
		g.writeError(w, requestID, err)
		return
	}
	g.writeJSON(w, http.StatusCreated, endpointView(endpoint))
}

func (g *Gateway) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := g.manager.List(r.Context(), EndpointFilter{})
	if err != nil {
		g.writeError(w, requestIDFrom(r), err)
		return
	}
	items := make([]map[string]any, 0, len(endpoints))
	for _, e := range endpoints {
		items = append(items, endpointView(e))
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (g *Gateway) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	id := r.PathValue("endpoint_id")
	endpoint, ok, err := g.manager.Get(r.Context(), id)
	if err != nil {
		g.writeError(w, requestID, err)
		return
	}
	if !ok {
		g.writeError(w, requestID, apierr.New(apierr.KindNotFound, "endpoint not found"))
		return
	}
	g.writeJSON(w, http.StatusOK, endpointView(endpoint))
}

func (g *Gateway) handleUpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	id := r.PathValue("endpoint_id")
	var body struct {
		Config EndpointConfig `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.writeError(w, requestID, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}
	updated, err := g.manager.Update(r.Context(), id, body.Config)
	if err != nil {
		g.writeError(w, requestID, err)
		return
	}
	g.writeJSON(w, http.StatusOK, endpointView(updated))
}

func (g *Gateway) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("endpoint_id")
	if err := g.manager.Delete(r.Context(), id); err != nil {
		g.writeError(w, requestIDFrom(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := g.monitoring.GetHealthStatus(r.Context())
	g.writeJSON(w, http.StatusOK, status)
}

func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := g.monitoring.GetMetrics(nil, nil, "realtime")
	g.writeJSON(w, http.StatusOK, stats)
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := EventFilter{TenantID: "default", RequestID: r.URL.Query().Get("request_id")}
	items, err := g.events.QueryEvents(r.Context(), filter)
	if err != nil {
		g.writeError(w, requestIDFrom(r), err)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func endpointView(e Endpoint) map[string]any {
	return map[string]any{"id": e.ID, "url": e.URL, "config": e.Config}
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (g *Gateway) writeError(w http.ResponseWriter, requestID string, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.New(apierr.KindInternal, err.Error())
	}
	apierr.WriteJSON(w, requestID, apiErr)
}
