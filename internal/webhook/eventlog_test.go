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
	"testing"
)

func TestEventLogger_LogsAreThreadedByRequestID(t *testing.T) {
	logger := NewEventLogger(NewInMemoryEventRepository())
	ctx := context.Background()
	requestID := "req-1"

	if _, err := logger.LogRequest(ctx, BuildEvent("default", "ep-1", requestID, EventRequest)); err != nil {
		t.Fatalf("log request: %v", err)
	}
	if _, err := logger.LogValidation(ctx, BuildEvent("default", "ep-1", requestID, EventValidation)); err != nil {
		t.Fatalf("log validation: %v", err)
	}
	if _, err := logger.LogExecution(ctx, BuildEvent("default", "ep-1", requestID, EventExecution)); err != nil {
		t.Fatalf("log execution: %v", err)
	}

	events, err := logger.QueryEvents(ctx, EventFilter{RequestID: requestID})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 threaded events, got %d", len(events))
	}
	if events[0].EventType != EventRequest || events[2].EventType != EventExecution {
		t.Fatalf("expected chronological request->execution ordering, got %+v", events)
	}
}

func TestEventLogger_QueryEventsFiltersByEndpoint(t *testing.T) {
	logger := NewEventLogger(NewInMemoryEventRepository())
	ctx := context.Background()

	if _, err := logger.LogRequest(ctx, BuildEvent("default", "ep-a", "r1", EventRequest)); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := logger.LogRequest(ctx, BuildEvent("default", "ep-b", "r2", EventRequest)); err != nil {
		t.Fatalf("log: %v", err)
	}

	events, err := logger.QueryEvents(ctx, EventFilter{EndpointID: "ep-a"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].EndpointID != "ep-a" {
		t.Fatalf("expected single ep-a event, got %+v", events)
	}
}

func TestEventLogger_QueryEventsPaginates(t *testing.T) {
	logger := NewEventLogger(NewInMemoryEventRepository())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := logger.LogRequest(ctx, BuildEvent("default", "ep-1", "r", EventRequest)); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	page1, err := logger.QueryEvents(ctx, EventFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("query page1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected page size 2, got %d", len(page1))
	}
	page3, err := logger.QueryEvents(ctx, EventFilter{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("query page3: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("expected final partial page of 1, got %d", len(page3))
	}
}
