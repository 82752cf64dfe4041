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
	"path/filepath"
	"testing"
)

type fakeArtifactStore struct {
	content []byte
	err     error
}

func (s fakeArtifactStore) Download(string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.content, nil
}

func writeIndexFile(t *testing.T, path string, idx Index) {
	t.Helper()
	encoded, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
}

func sampleIndex() Index {
	return Index{
		Version: "1.0",
		Skills: []IndexEntry{
			{
				Manifest: SkillManifest{
					Name: "pdf-summarizer", Publisher: "acme-labs", Version: "1.0.0",
					Description: "Summarizes PDF documents into a short digest.",
					Tags:        []string{"pdf", "summarization"},
				},
				DownloadURL:  "https://example.invalid/pdf-summarizer-1.0.0.tar",
				Checksum:     ChecksumOfBytes([]byte("artifact-bytes")),
				VersionState: StateReleased,
			},
			{
				Manifest: SkillManifest{
					Name: "spam-filter", Publisher: "acme-labs", Version: "2.0.0",
					Description: "Filters spam messages from an inbox.",
				},
				DownloadURL:  "https://example.invalid/spam-filter-2.0.0.tar",
				Checksum:     ChecksumOfBytes([]byte("artifact-bytes")),
				VersionState: StateReleased,
				Blacklisted:  true,
			},
		},
	}
}

func newTestHubClient(t *testing.T, idx Index, store ArtifactStore) *HubClient {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.json")
	writeIndexFile(t, indexPath, idx)
	return NewHubClient(HubClientConfig{
		IndexURL:   indexPath,
		InstallDir: filepath.Join(dir, "skills"),
		LockFile:   filepath.Join(dir, "lock.json"),
		Artifact:   store,
	})
}

func TestHubClient_SearchHidesBlacklistedEntries(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{})
	results, err := client.Search("", nil, "and", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Name != "pdf-summarizer" {
		t.Fatalf("expected only pdf-summarizer visible, got %+v", results)
	}
}

func TestHubClient_InstallWritesLockEntry(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{content: []byte("artifact-bytes")})
	target, err := client.Install("pdf-summarizer", InstallOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "SKILL.md")); err != nil {
		t.Fatalf("expected extracted manifest file: %v", err)
	}

	installed, err := client.ListInstalled()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(installed) != 1 || installed[0].Name != "pdf-summarizer" || installed[0].Version != "1.0.0" {
		t.Fatalf("unexpected lock entries: %+v", installed)
	}
}

func TestHubClient_InstallRejectsModeratedEntry(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{content: []byte("artifact-bytes")})
	_, err := client.Install("spam-filter", InstallOptions{})
	if err != ErrModerated {
		t.Fatalf("expected ErrModerated, got %v", err)
	}
}

func TestHubClient_InstallChecksumMismatchRequiresForce(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{content: []byte("tampered-bytes")})
	if _, err := client.Install("pdf-summarizer", InstallOptions{}); err != ErrChecksumMismatch {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	target, err := client.Install("pdf-summarizer", InstallOptions{Force: true})
	if err != nil {
		t.Fatalf("unexpected error with force: %v", err)
	}
	if client.LastInstallWarning() == "" {
		t.Fatalf("expected a force-install warning")
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected install dir to exist: %v", err)
	}
}

func TestHubClient_InstallUnknownSkillReturnsNotFound(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{content: []byte("artifact-bytes")})
	if _, err := client.Install("does-not-exist", InstallOptions{}); err != ErrSkillNotFound {
		t.Fatalf("expected ErrSkillNotFound, got %v", err)
	}
}
