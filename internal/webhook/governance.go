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
	"time"

	"github.com/owlclaw/agentcore/internal/apierr"
)

// GovernancePolicy is the pluggable policy backend: permission and
// rate-limit evaluation, grounded on governance.py's GovernancePolicyProtocol.
type GovernancePolicy interface {
	CheckPermission(ctx context.Context, gctx GovernanceContext) (GovernanceDecision, error)
	CheckRateLimit(ctx context.Context, gctx GovernanceContext) (GovernanceDecision, error)
}

// GovernanceAuditSink receives one audit event per governance decision.
type GovernanceAuditSink interface {
	Record(ctx context.Context, event map[string]any) error
}

// GovernanceClient enforces governance checks before webhook execution,
// grounded on governance.py's GovernanceClient.
type GovernanceClient struct {
	policy    GovernancePolicy
	audit     GovernanceAuditSink
	timeout   time.Duration
}

// NewGovernanceClient wires a client. A nil policy allows everything
// (useful for tests and deployments without a governance backend). timeout
// defaults to 1s per spec §4.10.
func NewGovernanceClient(policy GovernancePolicy, audit GovernanceAuditSink, timeout time.Duration) *GovernanceClient {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &GovernanceClient{policy: policy, audit: audit, timeout: timeout}
}

// CheckPermission evaluates the permission policy, fail-closed with 503 on
// timeout or transport error.
func (c *GovernanceClient) CheckPermission(ctx context.Context, gctx GovernanceContext) GovernanceDecision {
	if c.policy == nil {
		return GovernanceDecision{Allowed: true, StatusCode: 200}
	}
	return c.invoke(ctx, c.policy.CheckPermission, gctx)
}

// CheckRateLimit evaluates the rate-limit policy, fail-closed with 503 on
// timeout or transport error.
func (c *GovernanceClient) CheckRateLimit(ctx context.Context, gctx GovernanceContext) GovernanceDecision {
	if c.policy == nil {
		return GovernanceDecision{Allowed: true, StatusCode: 200}
	}
	return c.invoke(ctx, c.policy.CheckRateLimit, gctx)
}

type policyCall func(ctx context.Context, gctx GovernanceContext) (GovernanceDecision, error)

func (c *GovernanceClient) invoke(ctx context.Context, call policyCall, gctx GovernanceContext) GovernanceDecision {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	type outcome struct {
		decision GovernanceDecision
		err      error
	}
	ch := make(chan outcome, 1)
	go func() {
		decision, err := call(cctx, gctx)
		ch <- outcome{decision: decision, err: err}
	}()
	select {
	case <-cctx.Done():
		return GovernanceDecision{Allowed: false, StatusCode: 503, Reason: "governance timeout"}
	case res := <-ch:
		if res.err != nil {
			return GovernanceDecision{Allowed: false, StatusCode: 503, Reason: "governance unavailable: " + res.err.Error()}
		}
		return coerceDecision(res.decision)
	}
}

func coerceDecision(d GovernanceDecision) GovernanceDecision {
	if d.Allowed {
		if d.StatusCode == 0 {
			d.StatusCode = 200
		}
		return d
	}
	if d.StatusCode < 400 {
		d.StatusCode = 403
	}
	if d.Reason == "" {
		d.Reason = "governance rejected"
	}
	return d
}

// ValidateExecution runs permission then rate-limit checks, auditing every
// decision when a sink is configured.
func (c *GovernanceClient) ValidateExecution(ctx context.Context, gctx GovernanceContext) error {
	permission := c.CheckPermission(ctx, gctx)
	if !permission.Allowed {
		c.auditLog(ctx, gctx, permission, nil)
		return toValidationErr(permission, "GOVERNANCE_REJECTED")
	}
	rateLimit := c.CheckRateLimit(ctx, gctx)
	if !rateLimit.Allowed {
		c.auditLog(ctx, gctx, rateLimit, nil)
		return toValidationErr(rateLimit, "RATE_LIMITED")
	}
	c.auditLog(ctx, gctx, GovernanceDecision{Allowed: true, Reason: "allowed"}, nil)
	return nil
}

func (c *GovernanceClient) auditLog(ctx context.Context, gctx GovernanceContext, decision GovernanceDecision, details map[string]any) {
	if c.audit == nil {
		return
	}
	event := map[string]any{
		"tenant_id":     gctx.TenantID,
		"endpoint_id":   gctx.EndpointID,
		"agent_id":      gctx.AgentID,
		"request_id":    gctx.RequestID,
		"source_ip":     gctx.SourceIP,
		"user_agent":    gctx.UserAgent,
		"allowed":       decision.Allowed,
		"status_code":   decision.StatusCode,
		"reason":        decision.Reason,
		"policy_limits": decision.PolicyLimits,
		"timestamp":     gctx.Timestamp.Format(time.RFC3339Nano),
	}
	if details != nil {
		event["details"] = details
	}
	_ = c.audit.Record(ctx, event)
}

func toValidationErr(decision GovernanceDecision, defaultCode string) error {
	status := decision.StatusCode
	if status < 400 {
		status = 403
	}
	kind := apierr.KindForbidden
	if status == 429 {
		kind = apierr.KindRateLimited
	} else if status == 503 {
		kind = apierr.KindServiceUnavailable
	}
	msg := decision.Reason
	if msg == "" {
		msg = defaultCode
	}
	err := apierr.New(kind, msg)
	if len(decision.PolicyLimits) > 0 {
		err = err.WithDetails(map[string]any{"policy_limits": decision.PolicyLimits})
	}
	return err
}
