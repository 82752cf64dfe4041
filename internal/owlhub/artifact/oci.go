/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package artifact implements an OCI-registry-backed ArtifactStore for the
// Hub Client, content-addressed by digest, as an alternative to plain HTTP
// download for oci:// skill references.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	orasmemory "oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	mediaTypeSkillContent = "application/vnd.owlclaw.skill.content.v1.tar"
	artifactTypeSkill     = "application/vnd.owlclaw.skill.v1"
)

// Ref names an OCI artifact: registry/repository[:tag|@digest].
type Ref struct {
	Registry string
	Path     string
	Tag      string
	Digest   string
}

func (r Ref) String() string {
	if r.Digest != "" {
		return fmt.Sprintf("%s/%s@%s", r.Registry, r.Path, r.Digest)
	}
	tag := r.Tag
	if tag == "" {
		tag = "latest"
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Path, tag)
}

// ParseRef parses an "oci://registry/path[:tag]" reference.
func ParseRef(reference string) (Ref, error) {
	trimmed := strings.TrimPrefix(reference, "oci://")
	if trimmed == reference {
		return Ref{}, fmt.Errorf("artifact: not an oci reference: %s", reference)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return Ref{}, fmt.Errorf("artifact: malformed oci reference: %s", reference)
	}
	registry, rest := parts[0], parts[1]
	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		return Ref{Registry: registry, Path: rest[:idx], Digest: rest[idx+1:]}, nil
	}
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		return Ref{Registry: registry, Path: rest[:idx], Tag: rest[idx+1:]}, nil
	}
	return Ref{Registry: registry, Path: rest}, nil
}

// Store pushes and pulls skill artifact tarballs to/from an OCI registry,
// grounded on the teacher's internal/skills RegistryClient Push/Pull shape.
type Store struct {
	PlainHTTP bool
	Username  string
	Password  string
}

// NewStore constructs a Store against public/authenticated registries as
// configured by WithAuth/WithPlainHTTP.
func NewStore() *Store { return &Store{} }

// WithAuth sets static registry credentials.
func (s *Store) WithAuth(username, password string) *Store {
	s.Username, s.Password = username, password
	return s
}

// WithPlainHTTP allows unencrypted registries, for local/dev use.
func (s *Store) WithPlainHTTP(plain bool) *Store {
	s.PlainHTTP = plain
	return s
}

// Download implements owlhub.ArtifactStore for oci:// references: it pulls
// the tagged/digested manifest and returns the single content layer's bytes.
func (s *Store) Download(reference string) ([]byte, error) {
	ref, err := ParseRef(reference)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	repo, err := s.repository(ref)
	if err != nil {
		return nil, fmt.Errorf("artifact: connect registry: %w", err)
	}

	store := orasmemory.New()
	pullRef := ref.Tag
	if ref.Digest != "" {
		pullRef = ref.Digest
	}
	if pullRef == "" {
		pullRef = "latest"
	}

	manifestDesc, err := oras.Copy(ctx, repo, pullRef, store, pullRef, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("artifact: pull from registry: %w", err)
	}

	manifestReader, err := store.Fetch(ctx, manifestDesc)
	if err != nil {
		return nil, fmt.Errorf("artifact: fetch manifest: %w", err)
	}
	defer manifestReader.Close()
	manifestBytes, err := io.ReadAll(manifestReader)
	if err != nil {
		return nil, fmt.Errorf("artifact: read manifest: %w", err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("artifact: parse manifest: %w", err)
	}

	for _, layer := range manifest.Layers {
		if layer.MediaType != mediaTypeSkillContent {
			continue
		}
		reader, err := store.Fetch(ctx, layer)
		if err != nil {
			return nil, fmt.Errorf("artifact: fetch content layer: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	}
	return nil, fmt.Errorf("artifact: no content layer in manifest for %s", reference)
}

// PublishResult describes a successful artifact push.
type PublishResult struct {
	Ref    string
	Digest string
	Size   int64
}

// Publish packages content as a single-layer OCI artifact and pushes it to
// ref, tagging it ref.Tag (or "latest").
func (s *Store) Publish(ctx context.Context, ref Ref, content []byte) (*PublishResult, error) {
	store := orasmemory.New()

	contentDesc, err := oras.PushBytes(ctx, store, mediaTypeSkillContent, content)
	if err != nil {
		return nil, fmt.Errorf("artifact: push content to memory: %w", err)
	}

	packOpts := oras.PackManifestOptions{Layers: []ocispec.Descriptor{contentDesc}}
	manifestDesc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, artifactTypeSkill, packOpts)
	if err != nil {
		return nil, fmt.Errorf("artifact: pack manifest: %w", err)
	}

	tag := ref.Tag
	if tag == "" {
		tag = "latest"
	}
	if err := store.Tag(ctx, manifestDesc, tag); err != nil {
		return nil, fmt.Errorf("artifact: tag manifest: %w", err)
	}

	repo, err := s.repository(ref)
	if err != nil {
		return nil, fmt.Errorf("artifact: connect registry: %w", err)
	}
	copyDesc, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("artifact: push to registry: %w", err)
	}

	return &PublishResult{Ref: ref.String(), Digest: copyDesc.Digest.String(), Size: copyDesc.Size}, nil
}

func (s *Store) repository(ref Ref) (*remote.Repository, error) {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", ref.Registry, ref.Path))
	if err != nil {
		return nil, err
	}
	repo.PlainHTTP = s.PlainHTTP
	if s.Username != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Credential: auth.StaticCredential(ref.Registry, auth.Credential{
				Username: s.Username,
				Password: s.Password,
			}),
		}
	}
	return repo, nil
}
