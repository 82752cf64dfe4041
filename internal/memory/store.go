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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the pluggable backend the memory service composes over. The
// in-memory implementation below is the reference used for testing; pgvector
// and qdrant backends are named wiring points only (see NewPgVectorStore,
// NewQdrantStore).
type Store interface {
	Save(ctx context.Context, e Entry) (string, error)
	Search(ctx context.Context, q SearchQuery) ([]ScoredEntry, error)
	GetRecent(ctx context.Context, agentID, tenantID string, hours float64, limit int) ([]Entry, error)
	Archive(ctx context.Context, agentID, tenantID string, ids []string) error
	Delete(ctx context.Context, agentID, tenantID string, ids []string) error
	Count(ctx context.Context, agentID, tenantID string, includeArchived bool) (int, error)
	UpdateAccess(ctx context.Context, agentID, tenantID string, ids []string) error
	ListEntries(ctx context.Context, agentID, tenantID string, order ListOrder, limit int, includeArchived bool) ([]Entry, error)
	GetExpiredEntryIDs(ctx context.Context, agentID, tenantID string, before time.Time, maxAccessCount int) ([]string, error)
	Dimensions() int
}

// ErrContentTooLong is returned when an entry's content exceeds
// MaxContentLength characters.
var ErrContentTooLong = fmt.Errorf("memory: content exceeds %d characters", MaxContentLength)

type scopeKey struct {
	agentID, tenantID string
}

// InMemoryStore is the reference Store backend: a mutex-guarded map keyed by
// (agent, tenant) scope. Writes are serialized; reads return copies so that
// mutations to returned entries never affect stored state.
type InMemoryStore struct {
	dimensions int
	mu         sync.Mutex
	byScope    map[scopeKey]map[string]Entry
	now        func() time.Time
}

// NewInMemoryStore constructs an InMemoryStore configured for the given
// embedding dimension. dimensions <= 0 disables the dimension check (useful
// when entries never carry vectors).
func NewInMemoryStore(dimensions int) *InMemoryStore {
	return &InMemoryStore{
		dimensions: dimensions,
		byScope:    make(map[scopeKey]map[string]Entry),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Dimensions() int { return s.dimensions }

func (s *InMemoryStore) scope(agentID, tenantID string) map[string]Entry {
	key := scopeKey{agentID, tenantID}
	m, ok := s.byScope[key]
	if !ok {
		m = make(map[string]Entry)
		s.byScope[key] = m
	}
	return m
}

func (s *InMemoryStore) Save(_ context.Context, e Entry) (string, error) {
	if len(e.Content) > MaxContentLength {
		return "", ErrContentTooLong
	}
	if s.dimensions > 0 && e.Embedding != nil && len(e.Embedding) != s.dimensions {
		return "", &ErrDimensionMismatch{Want: s.dimensions, Got: len(e.Embedding)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	s.scope(e.AgentID, e.TenantID)[e.ID] = e.Clone()
	return e.ID, nil
}

func (s *InMemoryStore) Search(_ context.Context, q SearchQuery) ([]ScoredEntry, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	s.mu.Lock()
	entries := s.scope(q.AgentID, q.TenantID)
	all := make([]Entry, 0, len(entries))
	for _, e := range entries {
		all = append(all, e.Clone())
	}
	s.mu.Unlock()

	now := s.now()
	var results []ScoredEntry
	for _, e := range all {
		if e.Archived && !q.IncludeArchived {
			continue
		}
		if !hasAllTags(e.Tags, q.Tags) {
			continue
		}
		var score float64
		if q.QueryVector != nil {
			ageHours := now.Sub(e.CreatedAt).Hours()
			score = CosineSimilarity(q.QueryVector, e.Embedding) * TimeDecay(ageHours, 24*30)
		} else {
			score = 1.0
		}
		results = append(results, ScoredEntry{Entry: e, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if q.QueryVector != nil {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
		}
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// GetRecent returns entries created within the last `hours` hours, newest
// first. A non-positive hours value means an unlimited window (Open
// Question #2 in DESIGN.md).
func (s *InMemoryStore) GetRecent(_ context.Context, agentID, tenantID string, hours float64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.Lock()
	entries := s.scope(agentID, tenantID)
	all := make([]Entry, 0, len(entries))
	for _, e := range entries {
		all = append(all, e.Clone())
	}
	s.mu.Unlock()

	now := s.now()
	var cutoff time.Time
	unlimited := hours <= 0
	if !unlimited {
		cutoff = now.Add(-time.Duration(hours * float64(time.Hour)))
	}
	var out []Entry
	for _, e := range all {
		if e.Archived {
			continue
		}
		if !unlimited && e.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Archive(_ context.Context, agentID, tenantID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scope(agentID, tenantID)
	for _, id := range ids {
		if e, ok := scope[id]; ok {
			e.Archived = true
			scope[id] = e
		}
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, agentID, tenantID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scope(agentID, tenantID)
	for _, id := range ids {
		delete(scope, id)
	}
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, agentID, tenantID string, includeArchived bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scope(agentID, tenantID)
	if includeArchived {
		return len(scope), nil
	}
	n := 0
	for _, e := range scope {
		if !e.Archived {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) UpdateAccess(_ context.Context, agentID, tenantID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scope(agentID, tenantID)
	now := s.now()
	for _, id := range ids {
		if e, ok := scope[id]; ok {
			e.AccessCount++
			t := now
			e.AccessedAt = &t
			scope[id] = e
		}
	}
	return nil
}

func (s *InMemoryStore) ListEntries(_ context.Context, agentID, tenantID string, order ListOrder, limit int, includeArchived bool) ([]Entry, error) {
	s.mu.Lock()
	scope := s.scope(agentID, tenantID)
	all := make([]Entry, 0, len(scope))
	for _, e := range scope {
		if e.Archived && !includeArchived {
			continue
		}
		all = append(all, e.Clone())
	}
	s.mu.Unlock()

	switch order {
	case OrderCreatedAtAsc:
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	case OrderAccessAsc:
		sort.Slice(all, func(i, j int) bool {
			if all[i].AccessCount != all[j].AccessCount {
				return all[i].AccessCount < all[j].AccessCount
			}
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		})
	default:
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemoryStore) GetExpiredEntryIDs(_ context.Context, agentID, tenantID string, before time.Time, maxAccessCount int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scope(agentID, tenantID)
	var ids []string
	for id, e := range scope {
		if e.Archived {
			continue
		}
		if e.CreatedAt.Before(before) && e.AccessCount <= maxAccessCount {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
