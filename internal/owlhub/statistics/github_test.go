/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package statistics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGitHubPoller_SumsReleaseAssetDownloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"assets":[{"download_count":10},{"download_count":5}]}`))
	}))
	defer server.Close()

	poller := NewGitHubPoller(nil)
	poller.SetBaseURL(server.URL)

	total, err := poller.AdditionalDownloads("acme-labs", "pdf-summarizer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 15 {
		t.Fatalf("expected 15 total downloads, got %d", total)
	}
}

func TestGitHubPoller_403IsZeroNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	poller := NewGitHubPoller(nil)
	poller.SetBaseURL(server.URL)

	total, err := poller.AdditionalDownloads("acme-labs", "pdf-summarizer")
	if err != nil {
		t.Fatalf("expected 403 to not be an error, got %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 downloads on 403, got %d", total)
	}
}

func TestGitHubPoller_CachesWithinTTL(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"assets":[{"download_count":1}]}`))
	}))
	defer server.Close()

	poller := NewGitHubPoller(nil)
	poller.SetBaseURL(server.URL)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	poller.SetClock(func() time.Time { return now })

	if _, err := poller.AdditionalDownloads("acme-labs", "pdf-summarizer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := poller.AdditionalDownloads("acme-labs", "pdf-summarizer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached second call to skip the network, got %d calls", calls)
	}

	poller.SetClock(func() time.Time { return now.Add(20 * time.Minute) })
	if _, err := poller.AdditionalDownloads("acme-labs", "pdf-summarizer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a fresh call after TTL expiry, got %d calls", calls)
	}
}
