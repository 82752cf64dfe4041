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
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RuntimeInvoker is the agent runtime invocation adapter. The concrete
// runtime is out of scope (spec §1); this interface is shaped like
// internal/mcp/client.go's CallTool request/response.
type RuntimeInvoker interface {
	Trigger(ctx context.Context, input AgentInput) (RuntimeOutcome, error)
}

// RuntimeOutcome is what a RuntimeInvoker reports back.
type RuntimeOutcome struct {
	ExecutionID string
	Status      ExecutionStatus
	Output      any
	Error       map[string]any
}

// ErrTimeout and ErrConnection are the two retriable runtime error classes
// named by spec §4.11.
var (
	ErrTimeout    = errors.New("webhook: runtime timeout")
	ErrConnection = errors.New("webhook: runtime connection error")
)

type idempotencyEntry struct {
	result    ExecutionResult
	expiresAt time.Time
}

const defaultIdempotencyTTL = time.Hour

// ExecutionTrigger invokes the agent runtime with idempotency, retry, and
// timeout guarantees, grounded on execution.py's ExecutionTrigger.
type ExecutionTrigger struct {
	runtime RuntimeInvoker
	sleep   func(time.Duration)

	mu           sync.Mutex
	idempotency  map[string]idempotencyEntry
	executions   map[string]ExecutionResult
	keyLocks     map[string]*sync.Mutex
}

// NewExecutionTrigger wires a trigger over runtime. sleep defaults to
// time.Sleep; tests may inject a fast/no-op sleeper.
func NewExecutionTrigger(runtime RuntimeInvoker) *ExecutionTrigger {
	return &ExecutionTrigger{
		runtime:     runtime,
		sleep:       time.Sleep,
		idempotency: make(map[string]idempotencyEntry),
		executions:  make(map[string]ExecutionResult),
		keyLocks:    make(map[string]*sync.Mutex),
	}
}

// SetSleeper overrides the retry-backoff sleep function (test seam).
func (t *ExecutionTrigger) SetSleeper(sleep func(time.Duration)) {
	t.sleep = sleep
}

func (t *ExecutionTrigger) checkIdempotency(key string) (ExecutionResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.idempotency[key]
	if !ok {
		return ExecutionResult{}, false
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(t.idempotency, key)
		return ExecutionResult{}, false
	}
	return entry.result, true
}

func (t *ExecutionTrigger) recordIdempotency(key string, result ExecutionResult, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idempotency[key] = idempotencyEntry{result: result, expiresAt: time.Now().UTC().Add(ttl)}
}

func (t *ExecutionTrigger) lockFor(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		t.keyLocks[key] = l
	}
	return l
}

// Trigger invokes the runtime. If options.IdempotencyKey is set, concurrent
// callers sharing the key are serialized under a per-key lock and receive
// the identical cached result.
func (t *ExecutionTrigger) Trigger(ctx context.Context, input AgentInput, options ExecutionOptions) ExecutionResult {
	if options.IdempotencyKey != "" {
		lock := t.lockFor(options.IdempotencyKey)
		lock.Lock()
		defer lock.Unlock()
	}
	return t.triggerInternal(ctx, input, options)
}

func (t *ExecutionTrigger) triggerInternal(ctx context.Context, input AgentInput, options ExecutionOptions) ExecutionResult {
	if options.IdempotencyKey != "" {
		if existing, ok := t.checkIdempotency(options.IdempotencyKey); ok {
			return existing
		}
	}
	policy := options.RetryPolicy
	if policy == nil {
		d := DefaultRetryPolicy()
		policy = &d
	}
	attempt := 0
	var lastErr error
	for attempt < policy.MaxAttempts {
		attempt++
		outcome, err := t.invokeRuntime(ctx, input, options.TimeoutSeconds)
		if err == nil {
			result := toExecutionResult(outcome, options.Mode)
			t.storeExecution(result)
			if options.IdempotencyKey != "" {
				t.recordIdempotency(options.IdempotencyKey, result, defaultIdempotencyTTL)
			}
			return result
		}
		lastErr = err
		if attempt >= policy.MaxAttempts || !isRetriable(err) {
			break
		}
		t.sleep(retryDelay(*policy, attempt))
	}
	statusCode := 500
	errKind := "InternalError"
	if errors.Is(lastErr, ErrTimeout) {
		statusCode = 503
		errKind = "TimeoutError"
	} else if errors.Is(lastErr, ErrConnection) {
		statusCode = 503
		errKind = "ConnectionError"
	}
	now := time.Now().UTC()
	var errPayload map[string]any
	if lastErr != nil {
		errPayload = map[string]any{"type": errKind, "message": lastErr.Error(), "status_code": statusCode}
	}
	failed := ExecutionResult{
		ExecutionID: uuid.NewString(),
		Status:      StatusFailed,
		StartedAt:   now,
		CompletedAt: &now,
		Error:       errPayload,
	}
	t.storeExecution(failed)
	if options.IdempotencyKey != "" {
		t.recordIdempotency(options.IdempotencyKey, failed, defaultIdempotencyTTL)
	}
	return failed
}

func (t *ExecutionTrigger) storeExecution(result ExecutionResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executions[result.ExecutionID] = result
}

// GetExecutionStatus looks up a previously recorded execution by id.
func (t *ExecutionTrigger) GetExecutionStatus(executionID string) (ExecutionResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	result, ok := t.executions[executionID]
	return result, ok
}

func (t *ExecutionTrigger) invokeRuntime(ctx context.Context, input AgentInput, timeoutSeconds *float64) (RuntimeOutcome, error) {
	if timeoutSeconds == nil {
		return t.runtime.Trigger(ctx, input)
	}
	cctx, cancel := context.WithTimeout(ctx, time.Duration(*timeoutSeconds*float64(time.Second)))
	defer cancel()
	type outcome struct {
		result RuntimeOutcome
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := t.runtime.Trigger(cctx, input)
		ch <- outcome{result: result, err: err}
	}()
	select {
	case <-cctx.Done():
		return RuntimeOutcome{}, ErrTimeout
	case res := <-ch:
		return res.result, res.err
	}
}

func toExecutionResult(outcome RuntimeOutcome, mode ExecutionMode) ExecutionResult {
	now := time.Now().UTC()
	executionID := outcome.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}
	if mode == ModeAsync {
		return ExecutionResult{
			ExecutionID: executionID,
			Status:      StatusAccepted,
			StartedAt:   now,
			Output:      outcome.Output,
		}
	}
	status := outcome.Status
	if status == "" {
		status = StatusCompleted
	}
	return ExecutionResult{
		ExecutionID: executionID,
		Status:      status,
		StartedAt:   now,
		CompletedAt: &now,
		Output:      outcome.Output,
		Error:       outcome.Error,
	}
}

func isRetriable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

func retryDelay(policy RetryPolicy, attempt int) time.Duration {
	raw := float64(policy.InitialDelayMS) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	bounded := math.Min(raw, float64(policy.MaxDelayMS))
	if bounded < 0 {
		bounded = 0
	}
	return time.Duration(bounded) * time.Millisecond
}
