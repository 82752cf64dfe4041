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
	"strings"
)

// SnapshotHeader begins every rendered snapshot fragment.
const SnapshotHeader = "## Memory snapshot\n"

// Snapshot is the assembled textual preface plus the ids of entries it
// drew from.
type Snapshot struct {
	PromptFragment string
	EntryIDs       []string
}

// SnapshotBuilder assembles a Snapshot from semantic, recent, and pinned
// recall, deduplicated by entry id and trimmed to a token budget.
type SnapshotBuilder struct {
	embedder  Embedder
	store     Store
	tokenizer Tokenizer

	semanticTopK int
	recentHours  float64
	recentLimit  int
	pinnedTag    string
}

// NewSnapshotBuilder constructs a SnapshotBuilder with spec defaults:
// semantic top-3, a 24h/5-entry recent window.
func NewSnapshotBuilder(embedder Embedder, store Store, tokenizer Tokenizer) *SnapshotBuilder {
	if tokenizer == nil {
		tokenizer = defaultTokenizer{}
	}
	return &SnapshotBuilder{
		embedder:     embedder,
		store:        store,
		tokenizer:    tokenizer,
		semanticTopK: 3,
		recentHours:  24,
		recentLimit:  5,
		pinnedTag:    "pinned",
	}
}

// Build assembles the snapshot for one run. trigger and an optional focus
// are joined with a "focus:" marker to form the semantic query text.
func (b *SnapshotBuilder) Build(ctx context.Context, agentID, tenantID, trigger, focus string, maxTokens int) (Snapshot, error) {
	queryText := trigger
	if focus != "" {
		queryText = trigger + " focus:" + focus
	}

	var ordered []Entry

	if b.embedder != nil && b.store != nil {
		vec, err := b.embedder.Embed(ctx, queryText)
		if err == nil {
			results, serr := b.store.Search(ctx, SearchQuery{
				AgentID: agentID, TenantID: tenantID,
				QueryVector: vec, Limit: b.semanticTopK,
			})
			if serr == nil {
				for _, r := range results {
					ordered = append(ordered, r.Entry)
				}
			}
		}
	}

	if b.store != nil {
		recent, err := b.store.GetRecent(ctx, agentID, tenantID, b.recentHours, b.recentLimit)
		if err == nil {
			ordered = append(ordered, recent...)
		}

		pinned, err := b.store.Search(ctx, SearchQuery{
			AgentID: agentID, TenantID: tenantID,
			Tags: []string{b.pinnedTag}, Limit: 100,
		})
		if err == nil {
			for _, r := range pinned {
				ordered = append(ordered, r.Entry)
			}
		}
	}

	seen := make(map[string]struct{})
	var b2 strings.Builder
	b2.WriteString(SnapshotHeader)
	tokens := b.tokenizer.Count(SnapshotHeader)
	var ids []string

	for _, e := range ordered {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		line := fmt.Sprintf("- %s\n", e.Content)
		lineTokens := b.tokenizer.Count(line)
		if maxTokens > 0 && tokens+lineTokens > maxTokens {
			break
		}
		seen[e.ID] = struct{}{}
		ids = append(ids, e.ID)
		b2.WriteString(line)
		tokens += lineTokens
	}

	return Snapshot{PromptFragment: b2.String(), EntryIDs: ids}, nil
}
