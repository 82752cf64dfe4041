/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type frontmatter struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Tags        []string               `yaml:"tags"`
	Industry    string                 `yaml:"industry"`
	Dependencies map[string]string     `yaml:"dependencies"`
	Metadata    map[string]any         `yaml:"metadata"`
}

// Crawler discovers SKILL.md files under a repository tree and parses their
// YAML front-matter into normalized manifests.
type Crawler struct{}

// NewCrawler constructs a Crawler. It holds no state.
func NewCrawler() *Crawler { return &Crawler{} }

// CrawlRepository returns every manifest found under root, sorted by path
// for deterministic index generation.
func (c *Crawler) CrawlRepository(root string) ([]SkillManifest, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "SKILL.md" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var manifests []SkillManifest
	for _, path := range paths {
		m, ok, err := c.parseSkillFile(path)
		if err != nil {
			return nil, err
		}
		if ok {
			manifests = append(manifests, m)
		}
	}
	return manifests, nil
}

func (c *Crawler) parseSkillFile(path string) (SkillManifest, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SkillManifest{}, false, err
	}
	content := strings.TrimPrefix(string(raw), "﻿")
	if !strings.HasPrefix(content, "---") {
		return SkillManifest{}, false, nil
	}
	segments := strings.SplitN(content, "---", 3)
	if len(segments) < 3 {
		return SkillManifest{}, false, nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(segments[1]), &fm); err != nil {
		return SkillManifest{}, false, nil
	}
	name := strings.TrimSpace(fm.Name)
	description := strings.TrimSpace(fm.Description)
	if name == "" || description == "" {
		return SkillManifest{}, false, nil
	}

	version := "0.1.0"
	state := StateReleased
	tags := cleanTags(fm.Tags)
	dependencies := cleanDependencies(fm.Dependencies)

	if fm.Metadata != nil {
		if v, ok := fm.Metadata["version"].(string); ok && strings.TrimSpace(v) != "" {
			version = strings.TrimSpace(v)
		}
		rawState := ""
		if v, ok := fm.Metadata["state"].(string); ok {
			rawState = v
		} else if v, ok := fm.Metadata["version_state"].(string); ok {
			rawState = v
		}
		switch strings.ToLower(strings.TrimSpace(rawState)) {
		case string(StateDraft):
			state = StateDraft
		case string(StateDeprecated):
			state = StateDeprecated
		}
		if metaTags, ok := fm.Metadata["tags"].([]any); ok {
			tags = cleanTagsAny(metaTags)
		}
		if metaDeps, ok := fm.Metadata["dependencies"].(map[string]any); ok {
			dependencies = cleanDependenciesAny(metaDeps)
		}
	}

	publisher := "unknown"
	if parent := filepath.Dir(filepath.Dir(path)); parent != "." && parent != string(filepath.Separator) {
		publisher = filepath.Base(parent)
	}

	return SkillManifest{
		Name:         name,
		Version:      version,
		Publisher:    publisher,
		Description:  description,
		License:      "MIT",
		Tags:         tags,
		Dependencies: dependencies,
		Repository:   filepath.Dir(path),
		VersionState: state,
	}, true, nil
}

func cleanTags(raw []string) []string {
	var out []string
	for _, t := range raw {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func cleanTagsAny(raw []any) []string {
	var out []string
	for _, t := range raw {
		if s, ok := t.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func cleanDependencies(raw map[string]string) map[string]string {
	if raw == nil {
		return nil
	}
	out := map[string]string{}
	for k, v := range raw {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func cleanDependenciesAny(raw map[string]any) map[string]string {
	out := map[string]string{}
	for k, v := range raw {
		name := strings.TrimSpace(k)
		constraint, ok := v.(string)
		if !ok || name == "" || strings.TrimSpace(constraint) == "" {
			continue
		}
		out[name] = strings.TrimSpace(constraint)
	}
	return out
}
