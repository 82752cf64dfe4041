/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package statistics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type githubRelease struct {
	Assets []struct {
		DownloadCount int `json:"download_count"`
	} `json:"assets"`
}

type cacheEntry struct {
	count    int
	cachedAt time.Time
}

// GitHubPoller augments statistics with release-asset download counts from
// the GitHub API. It tolerates 403 (rate limit) by treating the repository
// as contributing zero additional downloads rather than failing the caller,
// and caches each count it returns (including a 403's zero) for a TTL to
// avoid hammering the API.
type GitHubPoller struct {
	client  *http.Client
	baseURL string
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewGitHubPoller constructs a poller with a default 15-minute cache TTL.
func NewGitHubPoller(client *http.Client) *GitHubPoller {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GitHubPoller{
		client:  client,
		baseURL: "https://api.github.com",
		ttl:     15 * time.Minute,
		cache:   map[string]cacheEntry{},
		now:     time.Now,
	}
}

// SetClock overrides the time source, for deterministic tests.
func (p *GitHubPoller) SetClock(now func() time.Time) { p.now = now }

// SetBaseURL overrides the GitHub API origin, for tests against a fixture
// server.
func (p *GitHubPoller) SetBaseURL(url string) { p.baseURL = url }

// AdditionalDownloads returns the sum of release-asset download counts for
// owner/repo's latest release. A 403 (rate-limited or no access) is treated
// as zero additional downloads, not an error.
func (p *GitHubPoller) AdditionalDownloads(owner, repo string) (int, error) {
	key := owner + "/" + repo
	p.mu.Lock()
	if entry, ok := p.cache[key]; ok && p.now().Sub(entry.cachedAt) < p.ttl {
		p.mu.Unlock()
		return entry.count, nil
	}
	p.mu.Unlock()

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", p.baseURL, owner, repo)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		p.store(key, 0)
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("github release poll failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return 0, err
	}
	total := 0
	for _, asset := range release.Assets {
		total += asset.DownloadCount
	}
	p.store(key, total)
	return total, nil
}

func (p *GitHubPoller) store(key string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[key] = cacheEntry{count: count, cachedAt: p.now()}
}
