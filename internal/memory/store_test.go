/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package memory

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStore_TenantIsolation(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	if _, err := s.Save(ctx, Entry{AgentID: "agent-1", TenantID: "tenant-a", Content: "hello"}); err != nil {
		t.Fatalf("save tenant-a: %v", err)
	}
	if _, err := s.Save(ctx, Entry{AgentID: "agent-1", TenantID: "tenant-b", Content: "world"}); err != nil {
		t.Fatalf("save tenant-b: %v", err)
	}

	entries, err := s.ListEntries(ctx, "agent-1", "tenant-a", OrderCreatedAtDesc, 0, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "hello" {
		t.Fatalf("expected isolated tenant-a view, got %+v", entries)
	}
}

func TestInMemoryStore_ArchiveIsMonotoneAndExcluded(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	id, err := s.Save(ctx, Entry{AgentID: "a", TenantID: "t", Content: "x"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Archive(ctx, "a", "t", []string{id}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	count, err := s.Count(ctx, "a", "t", false)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected archived entry excluded from count, got %d", count)
	}

	countAll, err := s.Count(ctx, "a", "t", true)
	if err != nil {
		t.Fatalf("count all: %v", err)
	}
	if countAll != 1 {
		t.Fatalf("expected archived entry still addressable, got %d", countAll)
	}
}

func TestInMemoryStore_RejectsOversizedContent(t *testing.T) {
	s := NewInMemoryStore(0)
	big := make([]byte, MaxContentLength+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := s.Save(context.Background(), Entry{AgentID: "a", TenantID: "t", Content: string(big)})
	if err != ErrContentTooLong {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
}

func TestInMemoryStore_RejectsDimensionMismatch(t *testing.T) {
	s := NewInMemoryStore(4)
	_, err := s.Save(context.Background(), Entry{AgentID: "a", TenantID: "t", Content: "x", Embedding: []float32{1, 2}})
	var mismatch *ErrDimensionMismatch
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if !asDimensionMismatch(err, &mismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func asDimensionMismatch(err error, target **ErrDimensionMismatch) bool {
	if e, ok := err.(*ErrDimensionMismatch); ok {
		*target = e
		return true
	}
	return false
}

func TestTimeDecay(t *testing.T) {
	if got := TimeDecay(0, 24); got != 1.0 {
		t.Fatalf("time_decay(0) = %v, want 1.0", got)
	}
	half := TimeDecay(24, 24)
	if half < 0.495 || half > 0.505 {
		t.Fatalf("time_decay(h) = %v, want ~0.5", half)
	}
	quarter := TimeDecay(48, 24)
	if quarter < 0.24 || quarter > 0.26 {
		t.Fatalf("time_decay(2h) = %v, want ~0.25", quarter)
	}
	if TimeDecay(48, 24) > TimeDecay(24, 24) {
		t.Fatalf("time_decay must be non-increasing in age")
	}
}

func TestInMemoryStore_SearchOrdersNewestFirstWithoutVector(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()
	now := time.Now().UTC()

	s.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if _, err := s.Save(ctx, Entry{AgentID: "a", TenantID: "t", Content: "old"}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now }
	if _, err := s.Save(ctx, Entry{AgentID: "a", TenantID: "t", Content: "new"}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, SearchQuery{AgentID: "a", TenantID: "t", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Entry.Content != "new" {
		t.Fatalf("expected newest-first order, got %+v", results)
	}
}
