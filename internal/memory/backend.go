/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package memory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names a pluggable Memory Store implementation.
type Backend string

const (
	BackendInMemory Backend = "inmemory"
	BackendPgVector Backend = "pgvector"
	BackendQdrant   Backend = "qdrant"
)

// ErrBackendNotConfigured is returned by the pgvector/qdrant constructors
// when no connection has been supplied. These backends are named wiring
// points (see SPEC_FULL.md); this module never silently degrades a
// configured remote backend to the in-memory one.
var ErrBackendNotConfigured = errors.New("memory: backend not configured")

// NewPgVectorStore connects a pgx pool as a Store backend. The vector
// similarity search itself (the index, not the engine) is out of scope;
// wiring a DSN here is the seam a full deployment would fill in.
func NewPgVectorStore(ctx context.Context, dsn string, dimensions int) (Store, error) {
	if dsn == "" {
		return nil, ErrBackendNotConfigured
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgVectorStore{pool: pool, dimensions: dimensions}, nil
}

// pgVectorStore is the wiring point for a pgvector-backed Store. Query
// execution is intentionally unimplemented: the spec's Non-goals exclude
// "implementing the vector index itself" (§1); the in-memory backend is the
// reference implementation exercised by the rest of this package.
type pgVectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func (p *pgVectorStore) Dimensions() int { return p.dimensions }

func (p *pgVectorStore) Save(context.Context, Entry) (string, error) {
	return "", errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) Search(context.Context, SearchQuery) ([]ScoredEntry, error) {
	return nil, errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) GetRecent(context.Context, string, string, float64, int) ([]Entry, error) {
	return nil, errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) Archive(context.Context, string, string, []string) error {
	return errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) Delete(context.Context, string, string, []string) error {
	return errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) Count(context.Context, string, string, bool) (int, error) {
	return 0, errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) UpdateAccess(context.Context, string, string, []string) error {
	return errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) ListEntries(context.Context, string, string, ListOrder, int, bool) ([]Entry, error) {
	return nil, errors.New("memory: pgvector backend not implemented in this core")
}
func (p *pgVectorStore) GetExpiredEntryIDs(context.Context, string, string, time.Time, int) ([]string, error) {
	return nil, errors.New("memory: pgvector backend not implemented in this core")
}

// NewQdrantStore is the wiring point for a Qdrant-backed Store, reached over
// plain HTTP. Never implemented beyond configuration validation, for the
// same reason as NewPgVectorStore.
func NewQdrantStore(endpoint string, dimensions int) (Store, error) {
	if endpoint == "" {
		return nil, ErrBackendNotConfigured
	}
	return nil, errors.New("memory: qdrant backend not implemented in this core")
}
