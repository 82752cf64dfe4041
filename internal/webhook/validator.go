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
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/owlclaw/agentcore/internal/apierr"
)

// EndpointReader is the narrow read seam the validator resolves endpoints
// through (the manager, or any store wrapper).
type EndpointReader interface {
	Get(ctx context.Context, id string) (Endpoint, bool, error)
}

var supportedContentTypes = map[string]struct{}{
	"application/json":                  {},
	"application/xml":                   {},
	"text/xml":                          {},
	"application/x-www-form-urlencoded": {},
}

// RequestValidator checks endpoint existence, auth, HMAC signature, and
// content-type before a payload reaches the transformer, grounded on
// validator.py's RequestValidator.
type RequestValidator struct {
	reader EndpointReader
}

// NewRequestValidator wires a validator over reader.
func NewRequestValidator(reader EndpointReader) *RequestValidator {
	return &RequestValidator{reader: reader}
}

// ValidateEndpoint resolves endpoint_id, failing with NotFoundError if
// missing or disabled.
func (v *RequestValidator) ValidateEndpoint(ctx context.Context, endpointID string) (Endpoint, error) {
	endpoint, ok, err := v.reader.Get(ctx, endpointID)
	if err != nil {
		return Endpoint{}, err
	}
	if !ok || !endpoint.Config.Enabled {
		return Endpoint{}, apierr.New(apierr.KindNotFound, "endpoint not found")
	}
	return endpoint, nil
}

func normalizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[strings.ToLower(k)] = v
	}
	return out
}

// ValidateAuth checks the endpoint's configured auth method against the
// request's Authorization header. HMAC is accepted here and verified
// separately by ValidateSignature.
func (v *RequestValidator) ValidateAuth(req HTTPRequest, endpoint Endpoint) error {
	auth := endpoint.Config.AuthMethod
	headers := normalizeHeaders(req.Headers)
	authorization := headers["authorization"]
	switch auth.Type {
	case AuthBearer:
		return validateBearer(authorization, firstNonEmpty(auth.Token, endpoint.AuthToken))
	case AuthBasic:
		return validateBasic(authorization, auth.Username, auth.Password)
	case AuthHMAC:
		return nil
	default:
		return apierr.New(apierr.KindAuth, "unsupported auth method")
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func validateBearer(authorization, expected string) error {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return apierr.New(apierr.KindAuth, "missing bearer token")
	}
	provided := strings.TrimSpace(authorization[len(prefix):])
	if provided == "" || !hmac.Equal([]byte(provided), []byte(expected)) {
		return apierr.New(apierr.KindAuth, "invalid bearer token")
	}
	return nil
}

func validateBasic(authorization, username, password string) error {
	if username == "" || password == "" {
		return apierr.New(apierr.KindAuth, "basic auth credential is not configured")
	}
	const prefix = "Basic "
	if !strings.HasPrefix(authorization, prefix) {
		return apierr.New(apierr.KindAuth, "missing basic auth token")
	}
	encoded := strings.TrimSpace(authorization[len(prefix):])
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return apierr.New(apierr.KindAuth, "invalid basic auth token")
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return apierr.New(apierr.KindAuth, "invalid basic auth token")
	}
	if !hmac.Equal([]byte(parts[0]), []byte(username)) || !hmac.Equal([]byte(parts[1]), []byte(password)) {
		return apierr.New(apierr.KindAuth, "invalid basic auth token")
	}
	return nil
}

// ValidateSignature verifies the X-Signature header against an HMAC of the
// raw body when the endpoint requires it; a no-op for non-HMAC endpoints.
func (v *RequestValidator) ValidateSignature(req HTTPRequest, endpoint Endpoint) error {
	auth := endpoint.Config.AuthMethod
	if auth.Type != AuthHMAC {
		return nil
	}
	if auth.Secret == "" || (auth.Algorithm != HMACSHA256 && auth.Algorithm != HMACSHA512) {
		return apierr.New(apierr.KindSignature, "hmac secret and algorithm are required")
	}
	headers := normalizeHeaders(req.Headers)
	signatureHeader := headers["x-signature"]
	if signatureHeader == "" {
		return apierr.New(apierr.KindSignature, "x-signature header is required")
	}
	mac := hmac.New(newHash(auth.Algorithm), []byte(auth.Secret))
	mac.Write([]byte(req.Body))
	expected := hex.EncodeToString(mac.Sum(nil))
	normalized, ok := normalizeSignature(signatureHeader, string(auth.Algorithm))
	if !ok || !hmac.Equal([]byte(expected), []byte(normalized)) {
		return apierr.New(apierr.KindSignature, "signature verification failed")
	}
	return nil
}

func newHash(alg HMACAlgorithm) func() hash.Hash {
	if alg == HMACSHA512 {
		return sha512.New
	}
	return sha256.New
}

func normalizeSignature(header, algorithm string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(header))
	prefix := algorithm + "="
	if strings.HasPrefix(lower, prefix) {
		return lower[len(prefix):], true
	}
	if strings.HasPrefix(lower, "sha256=") || strings.HasPrefix(lower, "sha512=") {
		return "", false
	}
	return lower, true
}

// ValidateFormat checks the Content-Type header names a supported format.
func (v *RequestValidator) ValidateFormat(req HTTPRequest) error {
	headers := normalizeHeaders(req.Headers)
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(headers["content-type"], ";", 2)[0]))
	if contentType == "" {
		return apierr.New(apierr.KindValidation, "content-type header is required")
	}
	if _, ok := supportedContentTypes[contentType]; !ok {
		return apierr.New(apierr.KindValidation, "unsupported content type").WithDetails(map[string]any{"content_type": contentType})
	}
	return nil
}

// ValidateRequest runs the full pipeline: endpoint resolution, auth, HMAC
// signature, content-type gate — in that order, short-circuiting on the
// first failure.
func (v *RequestValidator) ValidateRequest(ctx context.Context, endpointID string, req HTTPRequest) (Endpoint, error) {
	endpoint, err := v.ValidateEndpoint(ctx, endpointID)
	if err != nil {
		return Endpoint{}, err
	}
	if err := v.ValidateAuth(req, endpoint); err != nil {
		return Endpoint{}, err
	}
	if err := v.ValidateSignature(req, endpoint); err != nil {
		return Endpoint{}, err
	}
	if err := v.ValidateFormat(req); err != nil {
		return Endpoint{}, err
	}
	return endpoint, nil
}
