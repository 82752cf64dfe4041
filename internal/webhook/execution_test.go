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
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRuntime struct {
	mu       sync.Mutex
	calls    int32
	failures int
	err      error
}

func (r *fakeRuntime) Trigger(ctx context.Context, input AgentInput) (RuntimeOutcome, error) {
	atomic.AddInt32(&r.calls, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return RuntimeOutcome{}, r.err
	}
	return RuntimeOutcome{Status: StatusCompleted, Output: map[string]any{"ok": true}}, nil
}

func TestExecutionTrigger_SyncSuccessStoresResult(t *testing.T) {
	runtime := &fakeRuntime{}
	trigger := NewExecutionTrigger(runtime)
	trigger.SetSleeper(func(time.Duration) {})

	result := trigger.Trigger(context.Background(), AgentInput{AgentID: "agent-1"}, ExecutionOptions{Mode: ModeSync})
	if result.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	stored, ok := trigger.GetExecutionStatus(result.ExecutionID)
	if !ok || stored.Status != StatusCompleted {
		t.Fatalf("expected stored completed execution, got %+v ok=%v", stored, ok)
	}
}

func TestExecutionTrigger_IdempotencyReturnsCachedResult(t *testing.T) {
	runtime := &fakeRuntime{}
	trigger := NewExecutionTrigger(runtime)
	trigger.SetSleeper(func(time.Duration) {})

	opts := ExecutionOptions{Mode: ModeSync, IdempotencyKey: "key-1"}
	first := trigger.Trigger(context.Background(), AgentInput{AgentID: "a"}, opts)
	second := trigger.Trigger(context.Background(), AgentInput{AgentID: "a"}, opts)

	if first.ExecutionID != second.ExecutionID {
		t.Fatalf("expected identical cached execution id, got %s vs %s", first.ExecutionID, second.ExecutionID)
	}
	if atomic.LoadInt32(&runtime.calls) != 1 {
		t.Fatalf("expected runtime invoked exactly once, got %d", runtime.calls)
	}
}

func TestExecutionTrigger_RetriesOnRetriableError(t *testing.T) {
	runtime := &fakeRuntime{failures: 2, err: ErrConnection}
	trigger := NewExecutionTrigger(runtime)
	var slept int
	trigger.SetSleeper(func(time.Duration) { slept++ })

	policy := RetryPolicy{MaxAttempts: 3, InitialDelayMS: 1, MaxDelayMS: 10, BackoffMultiplier: 2}
	result := trigger.Trigger(context.Background(), AgentInput{AgentID: "a"}, ExecutionOptions{Mode: ModeSync, RetryPolicy: &policy})

	if result.Status != StatusCompleted {
		t.Fatalf("expected eventual success, got %s", result.Status)
	}
	if slept != 2 {
		t.Fatalf("expected two retry sleeps, got %d", slept)
	}
}

func TestExecutionTrigger_FailsAfterExhaustingRetries(t *testing.T) {
	runtime := &fakeRuntime{failures: 10, err: ErrTimeout}
	trigger := NewExecutionTrigger(runtime)
	trigger.SetSleeper(func(time.Duration) {})

	policy := RetryPolicy{MaxAttempts: 2, InitialDelayMS: 1, MaxDelayMS: 5, BackoffMultiplier: 1}
	result := trigger.Trigger(context.Background(), AgentInput{AgentID: "a"}, ExecutionOptions{Mode: ModeSync, RetryPolicy: &policy})

	if result.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if result.Error == nil {
		t.Fatal("expected an error payload")
	}
}

func TestExecutionTrigger_AsyncModeReturnsAccepted(t *testing.T) {
	runtime := &fakeRuntime{}
	trigger := NewExecutionTrigger(runtime)
	trigger.SetSleeper(func(time.Duration) {})

	result := trigger.Trigger(context.Background(), AgentInput{AgentID: "a"}, ExecutionOptions{Mode: ModeAsync})
	if result.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", result.Status)
	}
}
