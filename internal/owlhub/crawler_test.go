/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkillFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCrawler_CrawlRepositoryTopLevelFields(t *testing.T) {
	root := t.TempDir()
	skillDir := filepath.Join(root, "acme-labs", "pdf-summarizer")
	writeSkillFile(t, filepath.Join(skillDir, "SKILL.md"), `---
name: pdf-summarizer
description: Summarizes PDF documents into a short digest.
tags:
  - pdf
  - summarization
dependencies:
  ocr-tool: "^1.0.0"
metadata:
  version: "2.1.0"
  state: draft
---
# PDF Summarizer
`)

	manifests, err := NewCrawler().CrawlRepository(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(manifests))
	}
	m := manifests[0]
	if m.Name != "pdf-summarizer" || m.Publisher != "acme-labs" || m.Version != "2.1.0" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.VersionState != StateDraft {
		t.Fatalf("expected draft state, got %s", m.VersionState)
	}
	if len(m.Tags) != 2 || m.Dependencies["ocr-tool"] != "^1.0.0" {
		t.Fatalf("unexpected tags/dependencies: %+v", m)
	}
}

func TestCrawler_SkipsFilesMissingRequiredFields(t *testing.T) {
	root := t.TempDir()
	writeSkillFile(t, filepath.Join(root, "acme-labs", "broken-skill", "SKILL.md"), `---
description: missing a name
---
body
`)

	manifests, err := NewCrawler().CrawlRepository(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifests) != 0 {
		t.Fatalf("expected 0 manifests for incomplete front-matter, got %d", len(manifests))
	}
}

func TestCrawler_CrawlRepositoryMissingRootReturnsEmpty(t *testing.T) {
	manifests, err := NewCrawler().CrawlRepository(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifests != nil {
		t.Fatalf("expected nil manifests, got %+v", manifests)
	}
}
