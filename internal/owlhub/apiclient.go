/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientMode selects the transport the Hybrid API Client uses for reads.
type ClientMode string

const (
	ModeAPI   ClientMode = "api"
	ModeIndex ClientMode = "index"
	ModeAuto  ClientMode = "auto"
)

// HybridClientConfig configures a HybridClient.
type HybridClientConfig struct {
	Mode       ClientMode
	APIBaseURL string
	APIToken   string
	Hub        *HubClient // backs index mode and auto-mode fallback
}

// HybridClient reads through a JSON REST transport in api mode, the static
// Hub Client in index mode, and falls back from API to index on a
// transport error in auto mode. Writes (publish) always go through the API.
type HybridClient struct {
	mode       ClientMode
	apiBaseURL string
	apiToken   string
	hub        *HubClient
	httpClient *http.Client
}

// NewHybridClient constructs a HybridClient from cfg, defaulting Mode to
// auto when unset.
func NewHybridClient(cfg HybridClientConfig) *HybridClient {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}
	return &HybridClient{
		mode:       mode,
		apiBaseURL: cfg.APIBaseURL,
		apiToken:   cfg.APIToken,
		hub:        cfg.Hub,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Search routes to the API transport, the index transport, or tries the
// API first and falls back to the index on a transport error (auto mode).
func (c *HybridClient) Search(query string, tags []string, tagMode string, includeDraft bool) ([]SearchResult, error) {
	switch c.mode {
	case ModeIndex:
		return c.hub.Search(query, tags, tagMode, includeDraft)
	case ModeAPI:
		results, err := c.searchAPI(query, tags, tagMode, includeDraft)
		if err != nil {
			return nil, err // api mode surfaces API errors verbatim
		}
		return results, nil
	default: // auto
		results, err := c.searchAPI(query, tags, tagMode, includeDraft)
		if err == nil {
			return results, nil
		}
		return c.hub.Search(query, tags, tagMode, includeDraft)
	}
}

func (c *HybridClient) searchAPI(query string, tags []string, tagMode string, includeDraft bool) ([]SearchResult, error) {
	url := fmt.Sprintf("%s/api/v1/skills?q=%s", trimRightSlash(c.apiBaseURL), query)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("owlhub api search failed: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, err
	}
	return filterByTags(results, tags, tagMode, includeDraft), nil
}

func filterByTags(results []SearchResult, tags []string, tagMode string, includeDraft bool) []SearchResult {
	if len(tags) == 0 {
		var out []SearchResult
		for _, r := range results {
			if includeDraft || r.VersionState != StateDraft {
				out = append(out, r)
			}
		}
		return out
	}
	idx := Index{}
	for _, r := range results {
		idx.Skills = append(idx.Skills, IndexEntry{
			Manifest: SkillManifest{Name: r.Name, Publisher: r.Publisher, Version: r.Version, Description: r.Description, Tags: r.Tags},
			DownloadURL: r.DownloadURL, Checksum: r.Checksum, VersionState: r.VersionState,
		})
	}
	return searchIndex(idx, "", tags, tagMode, includeDraft)
}

// PublishRequest carries a normalized manifest and its resolved artifact
// location for the POST /api/v1/skills publish endpoint.
type PublishRequest struct {
	Manifest    SkillManifest `json:"manifest"`
	DownloadURL string        `json:"download_url,omitempty"`
	Digest      string        `json:"digest,omitempty"`
}

// Publish always uses the API transport with a bearer token, regardless of
// Mode — writes never go through the static index.
func (c *HybridClient) Publish(req PublishRequest) error {
	if c.apiToken == "" {
		return fmt.Errorf("owlhub: publish requires an api token")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequest(http.MethodPost, trimRightSlash(c.apiBaseURL)+"/api/v1/skills", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("owlhub: publish failed: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
