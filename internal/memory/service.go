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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidSensitivity is returned when a caller-supplied sensitivity
// override is not one of the recognized SecurityLevel values.
var ErrInvalidSensitivity = errors.New("memory: invalid sensitivity override")

// Strategy names one step of a fallback chain, recorded so degradation is an
// explicit, observable sequence rather than buried exception handling.
type Strategy string

const (
	StrategyPrimary       Strategy = "primary"
	StrategyTFIDF         Strategy = "tfidf_fallback"
	StrategyKeyword       Strategy = "keyword_fallback"
	StrategyFileFallback  Strategy = "file_fallback"
)

// DegradationEvent records which strategy actually served a request.
type DegradationEvent struct {
	Operation string
	Strategy  Strategy
	Reason    string
}

// DegradationSink receives degradation events. Nil is a valid no-op sink.
type DegradationSink func(DegradationEvent)

// ServiceConfig configures the Memory Service façade.
type ServiceConfig struct {
	EnableTFIDFFallback  bool
	EnableKeywordFallback bool
	EnableFileFallback   bool
	FileFallbackPath     string
	RecallLimitMax       int
	CompactionThreshold  int
}

// DefaultServiceConfig returns spec defaults: all fallbacks enabled, recall
// capped at 20, compaction threshold of 5.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		EnableTFIDFFallback:   true,
		EnableKeywordFallback: true,
		EnableFileFallback:    true,
		FileFallbackPath:      "memory_fallback.md",
		RecallLimitMax:        20,
		CompactionThreshold:   5,
	}
}

// FileAppender is the narrow seam the file-fallback path writes through; it
// is its own sole writer, append-only, protected by a file-scope lock.
type FileAppender interface {
	AppendLine(path, line string) error
}

// Service is the Memory Engine façade: it composes an Embedder, a Store, a
// Classifier, a SnapshotBuilder, and the embed/search/save fallback chain.
type Service struct {
	embedder  Embedder
	tfidf     Embedder
	store     Store
	classifier *Classifier
	filter    *SecurityFilter
	snapshots *SnapshotBuilder
	cfg       ServiceConfig
	logger    *zap.Logger
	sink      DegradationSink
	appender  FileAppender
	mu        sync.Mutex
}

// NewService wires the façade. It fails construction if the embedder's
// configured dimension disagrees with the store's — a schema-dimension
// drift fatal per spec §7.
func NewService(embedder Embedder, tfidf Embedder, store Store, cfg ServiceConfig, logger *zap.Logger, sink DegradationSink, appender FileAppender) (*Service, error) {
	if store.Dimensions() > 0 && embedder.Dimensions() > 0 && store.Dimensions() != embedder.Dimensions() {
		return nil, fmt.Errorf("memory: embedder dimension %d disagrees with store dimension %d", embedder.Dimensions(), store.Dimensions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:   embedder,
		tfidf:      tfidf,
		store:      store,
		classifier: NewClassifier(),
		filter:     NewSecurityFilter(),
		snapshots:  NewSnapshotBuilder(embedder, store, nil),
		cfg:        cfg,
		logger:     logger,
		sink:       sink,
		appender:   appender,
	}, nil
}

func (s *Service) report(op string, strat Strategy, reason string) {
	if s.sink != nil {
		s.sink(DegradationEvent{Operation: op, Strategy: strat, Reason: reason})
	}
}

// Remember normalizes, classifies, and embeds content, falling back to
// TF-IDF on embed failure and to an append-only file on store-save failure.
func (s *Service) Remember(ctx context.Context, agentID, tenantID, content string, tags []string, sensitivity SecurityLevel) (string, error) {
	normalized := strings.TrimSpace(content)

	level := s.classifier.Classify(normalized)
	if sensitivity != "" {
		if !ValidSecurityLevel(sensitivity) {
			return "", ErrInvalidSensitivity
		}
		level = sensitivity
	}

	var vec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, normalized)
		if err != nil {
			if s.cfg.EnableTFIDFFallback && s.tfidf != nil {
				v2, err2 := s.tfidf.Embed(ctx, normalized)
				if err2 != nil {
					return "", err2
				}
				vec = v2
				s.report("remember", StrategyTFIDF, err.Error())
			} else {
				return "", err
			}
		} else {
			vec = v
		}
	}

	entry := Entry{
		AgentID:  agentID,
		TenantID: tenantID,
		Content:  normalized,
		Embedding: vec,
		Tags:      normalizeTags(tags),
		Security:  level,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}

	id, err := s.store.Save(ctx, entry)
	if err != nil {
		if s.cfg.EnableFileFallback && s.appender != nil {
			id = generateFallbackID()
			line := renderFallbackLine(id, entry)
			if ferr := s.appender.AppendLine(s.cfg.FileFallbackPath, line); ferr != nil {
				return "", ferr
			}
			s.report("remember", StrategyFileFallback, err.Error())
			return id, nil
		}
		return "", err
	}
	return id, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{})
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var fallbackCounter uint64
var fallbackMu sync.Mutex

func generateFallbackID() string {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	fallbackCounter++
	return fmt.Sprintf("fallback-%d-%d", time.Now().UnixNano(), fallbackCounter)
}

// renderFallbackLine escapes newlines and replaces commas in tags, per the
// Memory fallback file format (§6): six lines per record.
func renderFallbackLine(id string, e Entry) string {
	escContent := strings.ReplaceAll(e.Content, "\n", "\\n")
	tags := strings.ReplaceAll(strings.Join(e.Tags, ";"), ",", ";")
	return strings.Join([]string{
		"id: " + id,
		"tenant_id: " + e.TenantID,
		"agent_id: " + e.AgentID,
		"security_level: " + string(e.Security),
		"tags: " + tags,
		"content: " + escContent,
	}, "\n") + "\n"
}

// Recall embeds the query and searches; on search failure it falls back to
// a newest-first keyword scan scored by Jaccard-like word overlap. limit is
// clamped to RecallLimitMax.
func (s *Service) Recall(ctx context.Context, agentID, tenantID, query string, limit int, tags []string, channel string) ([]ScoredEntry, error) {
	if limit <= 0 || limit > s.cfg.RecallLimitMax {
		limit = s.cfg.RecallLimitMax
	}

	var vec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, query)
		if err == nil {
			vec = v
		}
	}

	results, err := s.store.Search(ctx, SearchQuery{AgentID: agentID, TenantID: tenantID, QueryVector: vec, Limit: limit, Tags: tags})
	if err != nil {
		if !s.cfg.EnableKeywordFallback {
			return nil, err
		}
		s.report("recall", StrategyKeyword, err.Error())
		results, err = s.keywordFallback(ctx, agentID, tenantID, query, limit, tags)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].Entry.ID
		results[i].Entry.Content = s.filter.Mask(results[i].Entry.Content, results[i].Entry.Security, channel)
	}
	_ = s.store.UpdateAccess(ctx, agentID, tenantID, ids)
	return results, nil
}

// keywordFallback lists newest entries and scores them by word overlap with
// the query, an independent score space from cosine similarity (Open
// Question #1 in DESIGN.md: not normalized against it).
func (s *Service) keywordFallback(ctx context.Context, agentID, tenantID, query string, limit int, tags []string) ([]ScoredEntry, error) {
	entries, err := s.store.ListEntries(ctx, agentID, tenantID, OrderCreatedAtDesc, 0, false)
	if err != nil {
		return nil, err
	}
	queryWords := wordSet(query)
	var scored []ScoredEntry
	for _, e := range entries {
		if !hasAllTags(e.Tags, tags) {
			continue
		}
		score := jaccard(queryWords, wordSet(e.Content))
		scored = append(scored, ScoredEntry{Entry: e, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.CreatedAt.After(scored[j].Entry.CreatedAt)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Compact groups non-archived entries by tag and, for each group at or
// above the compaction threshold, emits one summary entry and archives the
// group.
func (s *Service) Compact(ctx context.Context, agentID, tenantID string) (int, error) {
	entries, err := s.store.ListEntries(ctx, agentID, tenantID, OrderCreatedAtDesc, 0, false)
	if err != nil {
		return 0, err
	}
	groups := make(map[string][]Entry)
	for _, e := range entries {
		for _, tag := range e.Tags {
			groups[tag] = append(groups[tag], e)
		}
	}
	emitted := 0
	for tag, group := range groups {
		if len(group) < s.cfg.CompactionThreshold {
			continue
		}
		var summary strings.Builder
		fmt.Fprintf(&summary, "Compacted %d entries tagged %q", len(group), tag)
		ids := make([]string, len(group))
		for i, e := range group {
			ids[i] = e.ID
		}
		_, err := s.store.Save(ctx, Entry{
			AgentID: agentID, TenantID: tenantID,
			Content:   summary.String(),
			Tags:      []string{tag, "compacted"},
			Security:  SecurityInternal,
			Version:   1,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return emitted, err
		}
		if err := s.store.Archive(ctx, agentID, tenantID, ids); err != nil {
			return emitted, err
		}
		emitted++
	}
	return emitted, nil
}

// BuildSnapshot delegates to the SnapshotBuilder.
func (s *Service) BuildSnapshot(ctx context.Context, agentID, tenantID, trigger, focus string, maxTokens int) (Snapshot, error) {
	return s.snapshots.Build(ctx, agentID, tenantID, trigger, focus, maxTokens)
}
