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
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHybridClient_AutoModeFallsBackToIndexOnTransportError(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{})
	hybrid := NewHybridClient(HybridClientConfig{
		Mode:       ModeAuto,
		APIBaseURL: "http://127.0.0.1:1", // nothing listening here
		Hub:        client,
	})
	results, err := hybrid.Search("", nil, "and", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Name != "pdf-summarizer" {
		t.Fatalf("expected fallback to index search, got %+v", results)
	}
}

func TestHybridClient_APIModeSurfacesErrorsVerbatim(t *testing.T) {
	client := newTestHubClient(t, sampleIndex(), fakeArtifactStore{})
	hybrid := NewHybridClient(HybridClientConfig{
		Mode:       ModeAPI,
		APIBaseURL: "http://127.0.0.1:1",
		Hub:        client,
	})
	if _, err := hybrid.Search("", nil, "and", false); err == nil {
		t.Fatalf("expected api mode to surface the transport error")
	}
}

func TestHybridClient_SearchAPIUsesRemoteResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := []SearchResult{{Name: "remote-tool", Publisher: "acme-labs", Version: "1.0.0"}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(results)
	}))
	defer server.Close()

	hybrid := NewHybridClient(HybridClientConfig{Mode: ModeAPI, APIBaseURL: server.URL})
	results, err := hybrid.Search("", nil, "and", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Name != "remote-tool" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestHybridClient_PublishRequiresToken(t *testing.T) {
	hybrid := NewHybridClient(HybridClientConfig{Mode: ModeAPI, APIBaseURL: "http://127.0.0.1:1"})
	err := hybrid.Publish(PublishRequest{Manifest: validManifest()})
	if err == nil {
		t.Fatalf("expected error when api token is empty")
	}
}

func TestHybridClient_PublishPostsToAPI(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	hybrid := NewHybridClient(HybridClientConfig{Mode: ModeAPI, APIBaseURL: server.URL, APIToken: "secret-token"})
	err := hybrid.Publish(PublishRequest{Manifest: validManifest()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
}
