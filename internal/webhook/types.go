/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package webhook implements the Webhook Trigger Pipeline: endpoint
// management, request validation, payload transformation, governance
// checks, idempotent/retried execution, and event logging + monitoring,
// composed behind an HTTP gateway.
package webhook

import "time"

// AuthMethodType names one of the supported endpoint authentication modes.
type AuthMethodType string

const (
	AuthBearer AuthMethodType = "bearer"
	AuthBasic  AuthMethodType = "basic"
	AuthHMAC   AuthMethodType = "hmac"
)

// HMACAlgorithm names a supported HMAC digest algorithm.
type HMACAlgorithm string

const (
	HMACSHA256 HMACAlgorithm = "sha256"
	HMACSHA512 HMACAlgorithm = "sha512"
)

// ExecutionMode selects synchronous or asynchronous runtime invocation.
type ExecutionMode string

const (
	ModeSync  ExecutionMode = "sync"
	ModeAsync ExecutionMode = "async"
)

// ExecutionStatus is the lifecycle state of one execution.
type ExecutionStatus string

const (
	StatusAccepted  ExecutionStatus = "accepted"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// EventType names one of the four lifecycle events threaded by a request id.
type EventType string

const (
	EventRequest        EventType = "request"
	EventValidation     EventType = "validation"
	EventTransformation EventType = "transformation"
	EventExecution      EventType = "execution"
)

// RetryPolicy bounds retry attempts for a triggered execution.
type RetryPolicy struct {
	MaxAttempts       int     `json:"max_attempts"`
	InitialDelayMS    int     `json:"initial_delay_ms"`
	MaxDelayMS        int     `json:"max_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultRetryPolicy returns a single-attempt, no-delay policy used when a
// caller supplies none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, InitialDelayMS: 0, MaxDelayMS: 0, BackoffMultiplier: 1.0}
}

// AuthMethod describes how an endpoint authenticates inbound requests.
type AuthMethod struct {
	Type      AuthMethodType `json:"type"`
	Token     string         `json:"token,omitempty"`
	Secret    string         `json:"secret,omitempty"`
	Algorithm HMACAlgorithm  `json:"algorithm,omitempty"`
	Username  string         `json:"username,omitempty"`
	Password  string         `json:"password,omitempty"`
}

// EndpointConfig is the caller-supplied shape of a webhook endpoint.
type EndpointConfig struct {
	Name                  string         `json:"name"`
	TargetAgentID         string         `json:"target_agent_id"`
	AuthMethod            AuthMethod     `json:"auth_method"`
	TransformationRuleID  string         `json:"transformation_rule_id,omitempty"`
	ExecutionMode         ExecutionMode  `json:"execution_mode"`
	TimeoutSeconds        *float64       `json:"timeout_seconds,omitempty"`
	RetryPolicy           *RetryPolicy   `json:"retry_policy,omitempty"`
	Enabled               bool           `json:"enabled"`
}

// EndpointFilter narrows EndpointManager.List.
type EndpointFilter struct {
	TenantID      string
	TargetAgentID string
	Enabled       *bool
}

// Endpoint is a registered, persisted webhook endpoint.
type Endpoint struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	URL       string         `json:"url"`
	AuthToken string         `json:"auth_token"`
	Config    EndpointConfig `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HTTPRequest is the normalized inbound request passed to the validator and
// transformer.
type HTTPRequest struct {
	Headers map[string]string
	Body    string
}

// ParsedPayload mirrors the shape of transform.ParsedPayload, the normalized
// document the transformer's Parse step returns.
type ParsedPayload struct {
	ContentType string
	Data        map[string]any
	Headers     map[string]string
	RawBody     string
}

// TransformKind names a per-field value conversion.
type TransformKind string

const (
	TransformString  TransformKind = "string"
	TransformNumber  TransformKind = "number"
	TransformBoolean TransformKind = "boolean"
	TransformDate    TransformKind = "date"
	TransformJSON    TransformKind = "json"
)

// FieldMapping maps one payload field to one agent-input field.
type FieldMapping struct {
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Transform TransformKind `json:"transform,omitempty"`
	Default   any           `json:"default,omitempty"`
}

// TransformationRule maps a parsed payload to an AgentInput.
type TransformationRule struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	TargetAgentID string         `json:"target_agent_id"`
	Mappings      []FieldMapping `json:"mappings"`
	TargetSchema  map[string]any `json:"target_schema,omitempty"`
	CustomLogic   string         `json:"custom_logic,omitempty"`
}

// AgentInput is the execution payload handed to the runtime invoker.
type AgentInput struct {
	AgentID    string         `json:"agent_id"`
	Parameters map[string]any `json:"parameters"`
	Context    map[string]any `json:"context"`
}

// ExecutionOptions controls one trigger call.
type ExecutionOptions struct {
	Mode            ExecutionMode
	TimeoutSeconds  *float64
	IdempotencyKey  string
	RetryPolicy     *RetryPolicy
}

// ExecutionResult is the outcome of one trigger call.
type ExecutionResult struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Output      any             `json:"output,omitempty"`
	Error       map[string]any  `json:"error,omitempty"`
}

// GovernanceContext is passed to the governance policy on every check.
type GovernanceContext struct {
	TenantID  string
	EndpointID string
	AgentID    string
	RequestID  string
	SourceIP   string
	UserAgent  string
	Timestamp  time.Time
}

// GovernanceDecision is the outcome of one governance policy call.
type GovernanceDecision struct {
	Allowed      bool
	StatusCode   int
	Reason       string
	PolicyLimits map[string]any
}

// EventFilter narrows EventLogger.QueryEvents.
type EventFilter struct {
	TenantID   string
	EndpointID string
	RequestID  string
	EventType  EventType
	Status     string
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	PageSize   int
}

// EventRecord is one logged webhook lifecycle event.
type EventRecord struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	EndpointID string         `json:"endpoint_id"`
	EventType  EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	RequestID  string         `json:"request_id"`
	SourceIP   string         `json:"source_ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
	Status     string         `json:"status,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Error      map[string]any `json:"error,omitempty"`
}

// MetricRecord is one monitoring sample.
type MetricRecord struct {
	Name      string
	Value     float64
	Timestamp time.Time
	Tags      map[string]string
}

// MetricStats is the aggregate view over recorded samples.
type MetricStats struct {
	RequestCount     int
	SuccessRate      float64
	FailureRate      float64
	AvgResponseTime  float64
	P95ResponseTime  float64
	P99ResponseTime  float64
}

// HealthCheckResult is one named health predicate's outcome.
type HealthCheckResult struct {
	Name    string
	Status  string // "pass" | "fail"
	Message string
}

// HealthStatus summarizes all registered health checks.
type HealthStatus struct {
	Status    string // "healthy" | "degraded" | "unhealthy"
	Checks    []HealthCheckResult
	Timestamp time.Time
}

// AlertRecord is one monitoring alert.
type AlertRecord struct {
	Name      string
	Severity  string // "warning" | "critical"
	Message   string
	Timestamp time.Time
	Tags      map[string]string
}
