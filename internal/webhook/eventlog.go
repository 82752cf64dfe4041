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

	"github.com/google/uuid"
)

// EventRepository is the persistence seam EventLogger writes through.
type EventRepository interface {
	Create(ctx context.Context, event EventRecord) (EventRecord, error)
	Query(ctx context.Context, filter EventFilter, offset, limit int) ([]EventRecord, error)
}

// InMemoryEventRepository is the reference append-only EventRepository.
type InMemoryEventRepository struct {
	mu     sync.RWMutex
	events []EventRecord
}

// NewInMemoryEventRepository creates an empty repository.
func NewInMemoryEventRepository() *InMemoryEventRepository {
	return &InMemoryEventRepository{}
}

func (r *InMemoryEventRepository) Create(_ context.Context, event EventRecord) (EventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return event, nil
}

func (r *InMemoryEventRepository) Query(_ context.Context, filter EventFilter, offset, limit int) ([]EventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []EventRecord
	for _, e := range r.events {
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.EndpointID != "" && e.EndpointID != filter.EndpointID {
			continue
		}
		if filter.RequestID != "" && e.RequestID != filter.RequestID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.StartTime != nil && e.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && e.Timestamp.After(*filter.EndTime) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.Before(matched[j].Timestamp) })
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// EventLogger records and queries webhook lifecycle events, grounded on
// event_logger.py's EventLogger.
type EventLogger struct {
	repo EventRepository
}

// NewEventLogger wires a logger over repo.
func NewEventLogger(repo EventRepository) *EventLogger {
	return &EventLogger{repo: repo}
}

// BuildEvent constructs a normalized event record with a generated id and a
// UTC timestamp, ready to be logged.
func BuildEvent(tenantID, endpointID, requestID string, eventType EventType) EventRecord {
	if tenantID == "" {
		tenantID = "default"
	}
	return EventRecord{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		EndpointID: endpointID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
	}
}

func (l *EventLogger) log(ctx context.Context, eventType EventType, event EventRecord) (EventRecord, error) {
	event.EventType = eventType
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return l.repo.Create(ctx, event)
}

// LogRequest, LogValidation, LogTransformation, and LogExecution append one
// event each, threaded by event.RequestID.
func (l *EventLogger) LogRequest(ctx context.Context, event EventRecord) (EventRecord, error) {
	return l.log(ctx, EventRequest, event)
}

func (l *EventLogger) LogValidation(ctx context.Context, event EventRecord) (EventRecord, error) {
	return l.log(ctx, EventValidation, event)
}

func (l *EventLogger) LogTransformation(ctx context.Context, event EventRecord) (EventRecord, error) {
	return l.log(ctx, EventTransformation, event)
}

func (l *EventLogger) LogExecution(ctx context.Context, event EventRecord) (EventRecord, error) {
	return l.log(ctx, EventExecution, event)
}

// QueryEvents returns events matching filter, paginated by
// filter.Page/filter.PageSize, ascending by timestamp.
func (l *EventLogger) QueryEvents(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize
	return l.repo.Query(ctx, filter, offset, pageSize)
}
