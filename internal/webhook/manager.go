/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/owlclaw/agentcore/internal/apierr"
)

// EndpointStore is the persistence seam the manager writes through; CRUD is
// serialized per endpoint id by the store's own implementation, list is
// snapshot-consistent.
type EndpointStore interface {
	Create(ctx context.Context, e Endpoint) (Endpoint, error)
	Get(ctx context.Context, id string) (Endpoint, bool, error)
	Update(ctx context.Context, e Endpoint) (Endpoint, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter EndpointFilter) ([]Endpoint, error)
}

// InMemoryEndpointStore is the reference EndpointStore backend: a
// mutex-guarded map, required for tests and local deployments.
type InMemoryEndpointStore struct {
	mu    sync.RWMutex
	items map[string]Endpoint
}

// NewInMemoryEndpointStore creates an empty store.
func NewInMemoryEndpointStore() *InMemoryEndpointStore {
	return &InMemoryEndpointStore{items: make(map[string]Endpoint)}
}

func (s *InMemoryEndpointStore) Create(_ context.Context, e Endpoint) (Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.ID] = e
	return e, nil
}

func (s *InMemoryEndpointStore) Get(_ context.Context, id string) (Endpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e, ok, nil
}

func (s *InMemoryEndpointStore) Update(_ context.Context, e Endpoint) (Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; !ok {
		return Endpoint{}, apierr.New(apierr.KindNotFound, "endpoint not found")
	}
	s.items[e.ID] = e
	return e, nil
}

func (s *InMemoryEndpointStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *InMemoryEndpointStore) List(_ context.Context, filter EndpointFilter) ([]Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Endpoint, 0, len(s.items))
	for _, e := range s.items {
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.Enabled != nil && e.Config.Enabled != *filter.Enabled {
			continue
		}
		if filter.TargetAgentID != "" && e.Config.TargetAgentID != filter.TargetAgentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// EndpointManager creates and maintains webhook endpoints with validation,
// grounded on manager.py's WebhookEndpointManager.
type EndpointManager struct {
	store      EndpointStore
	baseURL    string
	tokenBytes int
}

// NewEndpointManager wires a manager over store. tokenBytes is the entropy
// budget for generated auth tokens; spec §9 requires >=24 bytes.
func NewEndpointManager(store EndpointStore, baseURL string, tokenBytes int) *EndpointManager {
	if tokenBytes < 24 {
		tokenBytes = 24
	}
	if baseURL == "" {
		baseURL = "/webhooks"
	}
	return &EndpointManager{store: store, baseURL: strings.TrimRight(baseURL, "/"), tokenBytes: tokenBytes}
}

// ValidateConfig checks an EndpointConfig against spec §4.7's rules,
// reporting the first violation found.
func (m *EndpointManager) ValidateConfig(cfg EndpointConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return apierr.New(apierr.KindValidation, "name is required")
	}
	if strings.TrimSpace(cfg.TargetAgentID) == "" {
		return apierr.New(apierr.KindValidation, "target_agent_id is required")
	}
	auth := cfg.AuthMethod
	switch auth.Type {
	case AuthBearer:
		if strings.TrimSpace(auth.Token) == "" {
			return apierr.New(apierr.KindValidation, "bearer token is required")
		}
	case AuthHMAC:
		if strings.TrimSpace(auth.Secret) == "" || (auth.Algorithm != HMACSHA256 && auth.Algorithm != HMACSHA512) {
			return apierr.New(apierr.KindValidation, "hmac secret and algorithm are required")
		}
	case AuthBasic:
		if strings.TrimSpace(auth.Username) == "" || strings.TrimSpace(auth.Password) == "" {
			return apierr.New(apierr.KindValidation, "basic auth username/password required")
		}
	default:
		return apierr.New(apierr.KindValidation, "unsupported auth method")
	}
	if cfg.TimeoutSeconds != nil && *cfg.TimeoutSeconds <= 0 {
		return apierr.New(apierr.KindValidation, "timeout_seconds must be positive")
	}
	if cfg.RetryPolicy != nil {
		r := cfg.RetryPolicy
		if r.MaxAttempts <= 0 {
			return apierr.New(apierr.KindValidation, "retry max_attempts must be positive")
		}
		if r.InitialDelayMS < 0 || r.MaxDelayMS < 0 {
			return apierr.New(apierr.KindValidation, "retry delays must be non-negative")
		}
		if r.BackoffMultiplier < 1 {
			return apierr.New(apierr.KindValidation, "backoff_multiplier must be >= 1")
		}
	}
	return nil
}

// Create validates cfg, generates an opaque auth token, and persists a new
// endpoint.
func (m *EndpointManager) Create(ctx context.Context, tenantID string, cfg EndpointConfig) (Endpoint, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return Endpoint{}, err
	}
	if tenantID == "" {
		tenantID = "default"
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	token, err := generateToken(m.tokenBytes)
	if err != nil {
		return Endpoint{}, apierr.New(apierr.KindInternal, "token generation failed")
	}
	endpoint := Endpoint{
		ID:        id,
		TenantID:  tenantID,
		URL:       m.baseURL + "/" + id,
		AuthToken: token,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.store.Create(ctx, endpoint)
}

// Get resolves an endpoint by id.
func (m *EndpointManager) Get(ctx context.Context, id string) (Endpoint, bool, error) {
	return m.store.Get(ctx, id)
}

// Update validates and replaces cfg on an existing endpoint.
func (m *EndpointManager) Update(ctx context.Context, id string, cfg EndpointConfig) (Endpoint, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return Endpoint{}, err
	}
	existing, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return Endpoint{}, err
	}
	if !ok {
		return Endpoint{}, apierr.New(apierr.KindNotFound, "endpoint not found")
	}
	existing.Config = cfg
	existing.UpdatedAt = time.Now().UTC()
	return m.store.Update(ctx, existing)
}

// Delete removes an endpoint; after this call the endpoint is unresolvable.
func (m *EndpointManager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// List returns endpoints matching filter.
func (m *EndpointManager) List(ctx context.Context, filter EndpointFilter) ([]Endpoint, error) {
	return m.store.List(ctx, filter)
}

// generateToken draws raw entropy from crypto/rand and stretches it through
// HKDF-SHA256 with an endpoint-token-scoped info label before encoding, so a
// leaked token never reveals the underlying rand.Reader output directly.
func generateToken(nbytes int) (string, error) {
	seed := make([]byte, nbytes)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	kdf := hkdf.New(sha256.New, seed, nil, []byte("owlclaw-webhook-endpoint-token"))
	buf := make([]byte, nbytes)
	if _, err := io.ReadFull(kdf, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
