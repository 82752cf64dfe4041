/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package owlhub implements the skill registry: manifest validation,
// dependency resolution, index building, the hub client, a hybrid API/index
// transport, and review/statistics/audit/moderation.
package owlhub

import "time"

// VersionState is the publication state of one skill version.
type VersionState string

const (
	StateDraft      VersionState = "draft"
	StateReleased   VersionState = "released"
	StateDeprecated VersionState = "deprecated"
)

// SkillManifest is the normalized metadata for one published skill version.
type SkillManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Publisher    string            `json:"publisher"`
	Description  string            `json:"description"`
	License      string            `json:"license"`
	Tags         []string          `json:"tags,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Repository   string            `json:"repository,omitempty"`
	Homepage     string            `json:"homepage,omitempty"`
	VersionState VersionState      `json:"version_state"`
}

// Statistics summarizes download/install activity for one skill.
type Statistics struct {
	TotalDownloads     int       `json:"total_downloads"`
	DownloadsLast30d   int       `json:"downloads_last_30d"`
	TotalInstalls      int       `json:"total_installs"`
	ActiveInstalls     int       `json:"active_installs"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Takedown flags a moderation removal; entries remain addressable by id but
// are hidden from search/install.
type Takedown struct {
	IsTakenDown bool      `json:"is_taken_down"`
	Reason      string    `json:"reason,omitempty"`
	TakenDownAt time.Time `json:"taken_down_at,omitempty"`
}

// IndexEntry is one manifest plus publication and moderation metadata, the
// unit stored in index.json.
type IndexEntry struct {
	Manifest     SkillManifest `json:"manifest"`
	DownloadURL  string        `json:"download_url"`
	Checksum     string        `json:"checksum"`
	PublishedAt  time.Time     `json:"published_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	VersionState VersionState  `json:"version_state"`
	Statistics   *Statistics   `json:"statistics,omitempty"`
	Blacklisted  bool          `json:"blacklisted,omitempty"`
	Takedown     *Takedown     `json:"takedown,omitempty"`
}

// Hidden reports whether moderation hides entry from search/install.
func (e IndexEntry) Hidden() bool {
	if e.Blacklisted {
		return true
	}
	return e.Takedown != nil && e.Takedown.IsTakenDown
}

// SearchIndexRow is one sidecar row keyed for fast keyword lookup.
type SearchIndexRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Publisher  string   `json:"publisher"`
	Version    string   `json:"version"`
	Tags       []string `json:"tags"`
	SearchText string   `json:"search_text"`
}

// Index is the full index.json payload.
type Index struct {
	Version      string           `json:"version"`
	GeneratedAt  time.Time        `json:"generated_at"`
	TotalSkills  int              `json:"total_skills"`
	Skills       []IndexEntry     `json:"skills"`
	SearchIndex  []SearchIndexRow `json:"search_index"`
}

// LockEntry is one installed-skill record in the lock file.
type LockEntry struct {
	Name         string       `json:"name"`
	Publisher    string       `json:"publisher"`
	Version      string       `json:"version"`
	DownloadURL  string       `json:"download_url"`
	Checksum     string       `json:"checksum"`
	InstallPath  string       `json:"install_path"`
	VersionState VersionState `json:"version_state"`
}

// LockFile is the installed-skills manifest used to reproduce environments.
type LockFile struct {
	Version     string      `json:"version"`
	GeneratedAt time.Time   `json:"generated_at"`
	Skills      []LockEntry `json:"skills"`
}

// ReviewStatus is the lifecycle state of one review record.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewRecord is one moderation review for a submitted skill version.
type ReviewRecord struct {
	ReviewID   string       `json:"review_id"`
	SkillName  string       `json:"skill_name"`
	Version    string       `json:"version"`
	Publisher  string       `json:"publisher"`
	Status     ReviewStatus `json:"status"`
	Comments   string       `json:"comments"`
	ReviewedAt time.Time    `json:"reviewed_at"`
}

// AppealRecord is one appeal against a rejected review; it never changes
// the review's state, it only records the publisher's objection.
type AppealRecord struct {
	ReviewID   string    `json:"review_id"`
	Publisher  string    `json:"publisher"`
	Reason     string    `json:"reason"`
	AppealedAt time.Time `json:"appealed_at"`
}

// AuditEvent is one append-only JSONL audit record.
type AuditEvent struct {
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id"`
	Role      string         `json:"role"`
	Details   map[string]any `json:"details,omitempty"`
}

// BlacklistEntry names a publisher or a specific skill barred from the
// index regardless of individual version review outcomes.
type BlacklistEntry struct {
	Publisher string    `json:"publisher"`
	Name      string    `json:"name,omitempty"`
	Reason    string    `json:"reason"`
	AddedAt   time.Time `json:"added_at"`
}
