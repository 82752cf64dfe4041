/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/owlclaw/agentcore/internal/owlhub/statistics"
)

// WriteIndexFile writes idx to path as indented JSON via the same
// atomic-write helper the lock file uses, so a crawl-and-publish step never
// leaves a partially-written index.json for a concurrent reader to observe.
func WriteIndexFile(path string, idx Index) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	encoded, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(path, encoded)
}

// ChecksumOfBytes returns the sha256:hex checksum of artifact content.
func ChecksumOfBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", sum)
}

// ManifestIdentityChecksum returns a deterministic checksum for a manifest
// that ships no artifact bytes, per spec §3's "or of a deterministic
// manifest identity string if no artifact is shipped".
func ManifestIdentityChecksum(m SkillManifest) string {
	raw := fmt.Sprintf("%s:%s:%s", m.Publisher, m.Name, m.Version)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("sha256:%x", sum)
}

// IndexBuilder assembles index.json from one or more crawled repositories,
// enriching each entry with statistics from a Tracker.
type IndexBuilder struct {
	crawler *Crawler
	tracker *statistics.Tracker
	now     func() time.Time
}

// NewIndexBuilder wires a builder over crawler and tracker; either may be
// nil to use sensible defaults (a plain Crawler, a fresh Tracker).
func NewIndexBuilder(crawler *Crawler, tracker *statistics.Tracker) *IndexBuilder {
	if crawler == nil {
		crawler = NewCrawler()
	}
	if tracker == nil {
		tracker = statistics.NewTracker()
	}
	return &IndexBuilder{crawler: crawler, tracker: tracker, now: time.Now}
}

// SetClock overrides the time source, for deterministic tests.
func (b *IndexBuilder) SetClock(now func() time.Time) { b.now = now }

// CrawlRepository crawls one repository path and returns normalized index
// entries (manifest + download/checksum/statistics metadata), not yet
// sorted against entries from other repositories.
func (b *IndexBuilder) CrawlRepository(repository string, augmenter statistics.GitHubAugmenter) ([]IndexEntry, error) {
	manifests, err := b.crawler.CrawlRepository(repository)
	if err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(manifests))
	for _, m := range manifests {
		publishedAt := b.now().UTC()
		stats := b.tracker.GetStatistics(m.Publisher, m.Name, augmenter)
		entries = append(entries, IndexEntry{
			Manifest:    m,
			DownloadURL: fmt.Sprintf("%s#%s@%s", strings.TrimRight(repository, "/"), m.Name, m.Version),
			Checksum:    ManifestIdentityChecksum(m),
			PublishedAt: publishedAt,
			UpdatedAt:   publishedAt,
			VersionState: m.VersionState,
			Statistics: &Statistics{
				TotalDownloads:   stats.TotalDownloads,
				DownloadsLast30d: stats.DownloadsLast30d,
				TotalInstalls:    stats.TotalInstalls,
				ActiveInstalls:   stats.ActiveInstalls,
				LastUpdated:      stats.LastUpdated,
			},
		})
	}
	return entries, nil
}

// BuildIndex crawls every repository and assembles the full index payload,
// sorted by (name, version) for deterministic output.
func (b *IndexBuilder) BuildIndex(repositories []string, augmenter statistics.GitHubAugmenter) (Index, error) {
	var skills []IndexEntry
	for _, repo := range repositories {
		entries, err := b.CrawlRepository(repo, augmenter)
		if err != nil {
			return Index{}, err
		}
		skills = append(skills, entries...)
	}
	sort.Slice(skills, func(i, j int) bool {
		if skills[i].Manifest.Name != skills[j].Manifest.Name {
			return skills[i].Manifest.Name < skills[j].Manifest.Name
		}
		return skills[i].Manifest.Version < skills[j].Manifest.Version
	})

	return Index{
		Version:     "1.0",
		GeneratedAt: b.now().UTC(),
		TotalSkills: len(skills),
		Skills:      skills,
		SearchIndex: buildSearchIndex(skills),
	}, nil
}

func buildSearchIndex(skills []IndexEntry) []SearchIndexRow {
	rows := make([]SearchIndexRow, 0, len(skills))
	for _, entry := range skills {
		m := entry.Manifest
		searchText := strings.ToLower(strings.TrimSpace(strings.Join(
			filterEmpty([]string{m.Name, m.Description, strings.Join(m.Tags, " ")}), " ")))
		rows = append(rows, SearchIndexRow{
			ID:         fmt.Sprintf("%s/%s@%s", m.Publisher, m.Name, m.Version),
			Name:       m.Name,
			Publisher:  m.Publisher,
			Version:    m.Version,
			Tags:       m.Tags,
			SearchText: searchText,
		})
	}
	return rows
}

func filterEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
