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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/owlclaw/agentcore/internal/apierr"
)

type fakePolicy struct {
	permission GovernanceDecision
	permErr    error
	rateLimit  GovernanceDecision
	rateErr    error
	delay      time.Duration
}

func (p fakePolicy) CheckPermission(ctx context.Context, gctx GovernanceContext) (GovernanceDecision, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return GovernanceDecision{}, ctx.Err()
		}
	}
	return p.permission, p.permErr
}

func (p fakePolicy) CheckRateLimit(ctx context.Context, gctx GovernanceContext) (GovernanceDecision, error) {
	return p.rateLimit, p.rateErr
}

type recordingAudit struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *recordingAudit) Record(_ context.Context, event map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestGovernanceClient_AllowsWhenNoPolicyConfigured(t *testing.T) {
	client := NewGovernanceClient(nil, nil, 0)
	if err := client.ValidateExecution(context.Background(), GovernanceContext{}); err != nil {
		t.Fatalf("expected no error without a policy, got %v", err)
	}
}

func TestGovernanceClient_RejectsOnPermissionDenied(t *testing.T) {
	policy := fakePolicy{
		permission: GovernanceDecision{Allowed: false, StatusCode: 403, Reason: "denied"},
		rateLimit:  GovernanceDecision{Allowed: true},
	}
	audit := &recordingAudit{}
	client := NewGovernanceClient(policy, audit, time.Second)
	err := client.ValidateExecution(context.Background(), GovernanceContext{})
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindForbidden {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if len(audit.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(audit.events))
	}
}

func TestGovernanceClient_RateLimitRejection(t *testing.T) {
	policy := fakePolicy{
		permission: GovernanceDecision{Allowed: true},
		rateLimit:  GovernanceDecision{Allowed: false, StatusCode: 429, Reason: "too many requests"},
	}
	client := NewGovernanceClient(policy, nil, time.Second)
	err := client.ValidateExecution(context.Background(), GovernanceContext{})
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindRateLimited {
		t.Fatalf("expected RateLimited, got %v", err)
	}
}

func TestGovernanceClient_FailsClosedOnTimeout(t *testing.T) {
	policy := fakePolicy{delay: 50 * time.Millisecond}
	client := NewGovernanceClient(policy, nil, 5*time.Millisecond)
	err := client.ValidateExecution(context.Background(), GovernanceContext{})
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable on timeout, got %v", err)
	}
}

func TestGovernanceClient_FailsClosedOnTransportError(t *testing.T) {
	policy := fakePolicy{permErr: errors.New("boom")}
	client := NewGovernanceClient(policy, nil, time.Second)
	err := client.ValidateExecution(context.Background(), GovernanceContext{})
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}
