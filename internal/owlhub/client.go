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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/owlclaw/agentcore/internal/apierr"
	"github.com/owlclaw/agentcore/internal/owlhub/artifact"
)

// ErrSkillNotFound is returned when install/update cannot find a matching
// entry in the index.
var ErrSkillNotFound = errors.New("owlhub: skill not found")

// ErrModerated is returned when install targets a blacklisted or taken-down
// entry.
var ErrModerated = errors.New("owlhub: skill is blocked by moderation policy")

// ErrChecksumMismatch is returned when a downloaded artifact's checksum
// does not match the index entry, unless the caller forces the install.
var ErrChecksumMismatch = errors.New("owlhub: checksum verification failed")

// ArtifactStore downloads skill artifact bytes for a download_url. The
// default is plain HTTP; an OCI-backed implementation lives in
// internal/owlhub/artifact for oci:// references.
type ArtifactStore interface {
	Download(reference string) ([]byte, error)
}

// httpArtifactStore downloads over plain HTTP(S); used when download_url is
// not an oci:// reference.
type httpArtifactStore struct{ client *http.Client }

func (s *httpArtifactStore) Download(reference string) ([]byte, error) {
	resp, err := s.client.Get(reference)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", reference, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// dispatchArtifactStore routes oci:// references to an OCI registry store
// and everything else to plain HTTP, so callers needn't pick a transport
// themselves based on a download_url's scheme.
type dispatchArtifactStore struct {
	http *httpArtifactStore
	oci  *artifact.Store
}

func (s *dispatchArtifactStore) Download(reference string) ([]byte, error) {
	if strings.HasPrefix(reference, "oci://") {
		return s.oci.Download(reference)
	}
	return s.http.Download(reference)
}

// SearchResult is one hit from Search.
type SearchResult struct {
	Name         string
	Publisher    string
	Version      string
	Description  string
	Tags         []string
	VersionState VersionState
	DownloadURL  string
	Checksum     string
}

// HubClient loads a static index (local file or http(s) URL, cached) and
// performs local install/update/list operations against a lock file.
type HubClient struct {
	indexURL   string
	installDir string
	lockFile   string
	cacheDir   string
	noCache    bool

	httpClient *http.Client
	artifact   ArtifactStore

	lastInstallWarning string
}

// HubClientConfig configures a HubClient.
type HubClientConfig struct {
	IndexURL   string
	InstallDir string
	LockFile   string
	CacheDir   string
	NoCache    bool
	Artifact   ArtifactStore // nil uses plain HTTP
}

// NewHubClient constructs a HubClient from cfg.
func NewHubClient(cfg HubClientConfig) *HubClient {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	store := cfg.Artifact
	if store == nil {
		store = &dispatchArtifactStore{
			http: &httpArtifactStore{client: &http.Client{Timeout: 60 * time.Second}},
			oci:  artifact.NewStore(),
		}
	}
	return &HubClient{
		indexURL:   cfg.IndexURL,
		installDir: cfg.InstallDir,
		lockFile:   cfg.LockFile,
		cacheDir:   cfg.CacheDir,
		noCache:    cfg.NoCache,
		httpClient: httpClient,
		artifact:   store,
	}
}

// LastInstallWarning returns the warning recorded by the most recent
// Install call (e.g. a deprecated version or a forced checksum bypass), or
// empty if none.
func (c *HubClient) LastInstallWarning() string { return c.lastInstallWarning }

// loadIndex fetches the index, retrying transport errors up to 3 times for
// http(s) URLs, and transparently caches/reads the raw payload to a local
// file keyed by the index URL unless NoCache is set.
func (c *HubClient) loadIndex() (Index, error) {
	parsed, err := url.Parse(c.indexURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		path := strings.TrimPrefix(c.indexURL, "file://")
		raw, err := os.ReadFile(path)
		if err != nil {
			return Index{}, err
		}
		return decodeIndex(raw)
	}

	if !c.noCache {
		if raw, ok := c.readCache(); ok {
			if idx, err := decodeIndex(raw); err == nil {
				return idx, nil
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := c.httpClient.Get(c.indexURL)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("index fetch failed: status %d", resp.StatusCode)
			continue
		}
		idx, err := decodeIndex(body)
		if err != nil {
			return Index{}, err
		}
		if !c.noCache {
			c.writeCache(body)
		}
		return idx, nil
	}
	return Index{}, apierr.New(apierr.KindExternalService, "index fetch failed after retries: "+lastErr.Error())
}

func decodeIndex(raw []byte) (Index, error) {
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return Index{}, err
	}
	return idx, nil
}

func (c *HubClient) cachePath() string {
	if c.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(c.indexURL))
	return filepath.Join(c.cacheDir, fmt.Sprintf("%x.json", sum))
}

func (c *HubClient) readCache() ([]byte, bool) {
	path := c.cachePath()
	if path == "" {
		return nil, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *HubClient) writeCache(raw []byte) {
	path := c.cachePath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, raw, 0o644)
}

// ClearCache removes the locally cached index payload, if any.
func (c *HubClient) ClearCache() error {
	path := c.cachePath()
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Search filters index entries by query substring, optional tags (AND/OR),
// and draft visibility; moderated entries are always hidden.
func (c *HubClient) Search(query string, tags []string, tagMode string, includeDraft bool) ([]SearchResult, error) {
	idx, err := c.loadIndex()
	if err != nil {
		return nil, err
	}
	return searchIndex(idx, query, tags, tagMode, includeDraft), nil
}

func searchIndex(idx Index, query string, tags []string, tagMode string, includeDraft bool) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	requested := map[string]bool{}
	for _, t := range tags {
		if trimmed := strings.ToLower(strings.TrimSpace(t)); trimmed != "" {
			requested[trimmed] = true
		}
	}
	mode := strings.ToLower(strings.TrimSpace(tagMode))
	if mode != "and" && mode != "or" {
		mode = "and"
	}

	var results []SearchResult
	for _, entry := range idx.Skills {
		if entry.Hidden() {
			continue
		}
		m := entry.Manifest
		if !includeDraft && entry.VersionState == StateDraft {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Name+" "+m.Description), q) {
			continue
		}
		skillTags := map[string]bool{}
		for _, t := range m.Tags {
			skillTags[strings.ToLower(strings.TrimSpace(t))] = true
		}
		if len(requested) > 0 {
			if mode == "and" && !subsetOf(requested, skillTags) {
				continue
			}
			if mode == "or" && disjoint(requested, skillTags) {
				continue
			}
		}
		sortedTags := append([]string(nil), m.Tags...)
		sort.Strings(sortedTags)
		results = append(results, SearchResult{
			Name: m.Name, Publisher: m.Publisher, Version: m.Version, Description: m.Description,
			Tags: sortedTags, VersionState: entry.VersionState,
			DownloadURL: entry.DownloadURL, Checksum: entry.Checksum,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return results[i].Version < results[j].Version
	})
	return results
}

func subsetOf(want, have map[string]bool) bool {
	for t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}

func disjoint(want, have map[string]bool) bool {
	for t := range want {
		if have[t] {
			return false
		}
	}
	return true
}

// InstallOptions controls one Install call.
type InstallOptions struct {
	Version string // empty selects the latest matching version
	NoDeps  bool   // dependency installation is driven by the caller via Resolver; Install itself never recurses
	Force   bool   // bypass checksum verification with a warning
}

// Install downloads, verifies, and extracts one skill, then upserts the
// lock file. The returned path is the extraction directory.
func (c *HubClient) Install(name string, opts InstallOptions) (string, error) {
	idx, err := c.loadIndex()
	if err != nil {
		return "", err
	}
	candidates := searchIndex(idx, name, nil, "and", false)
	var matched []SearchResult
	for _, r := range candidates {
		if r.Name != name {
			continue
		}
		if opts.Version != "" && r.Version != opts.Version {
			continue
		}
		matched = append(matched, r)
	}
	if len(matched) == 0 {
		for _, entry := range idx.Skills {
			if entry.Manifest.Name == name && entry.Hidden() && (opts.Version == "" || entry.Manifest.Version == opts.Version) {
				return "", ErrModerated
			}
		}
		return "", ErrSkillNotFound
	}
	sort.Slice(matched, func(i, j int) bool { return versionLess(matched[i].Version, matched[j].Version) })
	selected := matched[len(matched)-1]

	c.lastInstallWarning = ""
	if entry, ok := findEntry(idx, selected); ok && entry.Hidden() {
		return "", ErrModerated
	}
	if selected.VersionState == StateDeprecated {
		c.lastInstallWarning = fmt.Sprintf("skill %s@%s is deprecated", selected.Name, selected.Version)
	}

	data, err := c.artifact.Download(selected.DownloadURL)
	if err != nil {
		return "", err
	}
	actual := ChecksumOfBytes(data)
	if selected.Checksum != "" && actual != selected.Checksum {
		if !opts.Force {
			return "", ErrChecksumMismatch
		}
		if c.lastInstallWarning != "" {
			c.lastInstallWarning += "; "
		}
		c.lastInstallWarning += "checksum bypassed by force install"
	}

	target := filepath.Join(c.installDir, selected.Name, selected.Version)
	if err := os.RemoveAll(target); err != nil {
		return "", err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", err
	}
	if err := extractArtifact(data, target); err != nil {
		_ = os.RemoveAll(target)
		return "", err
	}
	if !hasManifestFile(target) {
		_ = os.RemoveAll(target)
		return "", errors.New("owlhub: installed package missing manifest file")
	}

	if err := c.upsertLock(selected, target); err != nil {
		return "", err
	}
	return target, nil
}

func findEntry(idx Index, selected SearchResult) (IndexEntry, bool) {
	for _, entry := range idx.Skills {
		m := entry.Manifest
		if m.Publisher == selected.Publisher && m.Name == selected.Name && m.Version == selected.Version {
			return entry, true
		}
	}
	return IndexEntry{}, false
}

func hasManifestFile(dir string) bool {
	found := false
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && info.Name() == "SKILL.md" {
			found = true
		}
		return nil
	})
	return found
}

// ListInstalled reads the lock file, returning an empty slice if absent.
func (c *HubClient) ListInstalled() ([]LockEntry, error) {
	raw, err := os.ReadFile(c.lockFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lock LockFile
	if err := json.Unmarshal(raw, &lock); err != nil {
		return nil, err
	}
	return lock.Skills, nil
}

// Update upgrades installed skills to the latest indexed version that
// compares greater by semver; name empty means update everything installed.
func (c *HubClient) Update(name string) ([]UpdateResult, error) {
	installed, err := c.ListInstalled()
	if err != nil {
		return nil, err
	}
	var updates []UpdateResult
	for _, item := range installed {
		if item.Name == "" {
			continue
		}
		if name != "" && item.Name != name {
			continue
		}
		latest, err := c.resolveLatest(item.Name)
		if err != nil {
			return nil, err
		}
		if latest == nil || !versionLess(item.Version, latest.Version) {
			continue
		}
		if _, err := c.Install(item.Name, InstallOptions{Version: latest.Version}); err != nil {
			return nil, err
		}
		updates = append(updates, UpdateResult{Name: item.Name, FromVersion: item.Version, ToVersion: latest.Version})
	}
	return updates, nil
}

// UpdateResult describes one skill upgraded by Update.
type UpdateResult struct {
	Name        string
	FromVersion string
	ToVersion   string
}

func (c *HubClient) resolveLatest(name string) (*SearchResult, error) {
	results, err := c.Search(name, nil, "and", false)
	if err != nil {
		return nil, err
	}
	var matched []SearchResult
	for _, r := range results {
		if r.Name == name {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	sort.Slice(matched, func(i, j int) bool { return versionLess(matched[i].Version, matched[j].Version) })
	return &matched[len(matched)-1], nil
}

func (c *HubClient) upsertLock(selected SearchResult, target string) error {
	lock := LockFile{Version: "1.0"}
	if raw, err := os.ReadFile(c.lockFile); err == nil {
		_ = json.Unmarshal(raw, &lock)
	}
	var kept []LockEntry
	for _, item := range lock.Skills {
		if item.Name != selected.Name {
			kept = append(kept, item)
		}
	}
	kept = append(kept, LockEntry{
		Name: selected.Name, Publisher: selected.Publisher, Version: selected.Version,
		DownloadURL: selected.DownloadURL, Checksum: selected.Checksum,
		InstallPath: target, VersionState: selected.VersionState,
	})
	sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })

	lock.Version = "1.0"
	lock.GeneratedAt = time.Now().UTC()
	lock.Skills = kept

	if err := os.MkdirAll(filepath.Dir(c.lockFile), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(c.lockFile, encoded)
}

// atomicWriteFile writes to a sibling temp file then renames, per spec §5's
// "lock files are rewritten atomically" requirement.
func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
