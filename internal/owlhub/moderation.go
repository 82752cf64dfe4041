/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// IndexWriter is the sole mutator of a persisted index.json; Moderation
// routes blacklist/takedown flags through it rather than writing the file
// directly, keeping the file's one-writer invariant from spec §9.
type IndexWriter struct {
	mu   sync.Mutex
	path string
}

// NewIndexWriter wires a writer over path.
func NewIndexWriter(path string) *IndexWriter {
	return &IndexWriter{path: path}
}

// Load reads the current index from disk.
func (w *IndexWriter) Load() (Index, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return Index{}, err
	}
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return Index{}, err
	}
	return idx, nil
}

// Save atomically rewrites the index file.
func (w *IndexWriter) Save(idx Index) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	encoded, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(w.path, encoded)
}

// Moderation applies blacklist/takedown flags to a persisted index and
// clears the Hub Client's cache so the flag takes effect immediately,
// without deleting already-installed users' lock entries.
type Moderation struct {
	writer *IndexWriter
	hub    *HubClient // cache invalidation target; may be nil
}

// NewModeration wires Moderation over writer, optionally clearing hub's
// cache after every mutation.
func NewModeration(writer *IndexWriter, hub *HubClient) *Moderation {
	return &Moderation{writer: writer, hub: hub}
}

// Blacklist hides every version of publisher/name from search/install.
func (m *Moderation) Blacklist(publisher, name string) error {
	idx, err := m.writer.Load()
	if err != nil {
		return err
	}
	for i := range idx.Skills {
		entry := &idx.Skills[i]
		if entry.Manifest.Publisher == publisher && (name == "" || entry.Manifest.Name == name) {
			entry.Blacklisted = true
		}
	}
	if err := m.writer.Save(idx); err != nil {
		return err
	}
	return m.invalidateCache()
}

// Unblacklist reverses Blacklist.
func (m *Moderation) Unblacklist(publisher, name string) error {
	idx, err := m.writer.Load()
	if err != nil {
		return err
	}
	for i := range idx.Skills {
		entry := &idx.Skills[i]
		if entry.Manifest.Publisher == publisher && (name == "" || entry.Manifest.Name == name) {
			entry.Blacklisted = false
		}
	}
	if err := m.writer.Save(idx); err != nil {
		return err
	}
	return m.invalidateCache()
}

// Takedown marks one exact (publisher, name, version) entry as taken down.
// A takedown hides the skill from search/install but the entry itself —
// and any lock file referencing it — remains addressable.
func (m *Moderation) Takedown(publisher, name, version, reason string) error {
	idx, err := m.writer.Load()
	if err != nil {
		return err
	}
	for i := range idx.Skills {
		entry := &idx.Skills[i]
		if entry.Manifest.Publisher == publisher && entry.Manifest.Name == name && entry.Manifest.Version == version {
			entry.Takedown = &Takedown{IsTakenDown: true, Reason: reason, TakenDownAt: time.Now().UTC()}
		}
	}
	if err := m.writer.Save(idx); err != nil {
		return err
	}
	return m.invalidateCache()
}

func (m *Moderation) invalidateCache() error {
	if m.hub == nil {
		return nil
	}
	return m.hub.ClearCache()
}
