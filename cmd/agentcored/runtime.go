/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/owlclaw/agentcore/internal/webhook"
)

// loggingRuntimeInvoker satisfies webhook.RuntimeInvoker by logging the
// trigger and reporting it completed, standing in for the agent runtime
// named out of scope at spec §1.
type loggingRuntimeInvoker struct {
	logger *zap.Logger
}

func (l loggingRuntimeInvoker) Trigger(_ context.Context, input webhook.AgentInput) (webhook.RuntimeOutcome, error) {
	l.logger.Info("runtime invocation received", zap.String("agent_id", input.AgentID))
	return webhook.RuntimeOutcome{
		ExecutionID: uuid.NewString(),
		Status:      webhook.StatusCompleted,
		Output:      map[string]any{"note": "no agent runtime wired; request logged only"},
	}, nil
}

// flatFileAppender satisfies memory.FileAppender with a mutex-guarded
// append-only writer, grounded on internal/webhook/eventlog.go's
// single-writer convention for append-only state.
type flatFileAppender struct {
	mu sync.Mutex
}

func newFlatFileAppender() *flatFileAppender {
	return &flatFileAppender{}
}

func (a *flatFileAppender) AppendLine(path, line string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}
