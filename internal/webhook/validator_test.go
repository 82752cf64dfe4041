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
	"encoding/hex"
	"testing"

	"github.com/owlclaw/agentcore/internal/apierr"
)

func newTestEndpoint(auth AuthMethod) Endpoint {
	return Endpoint{
		ID:        "ep-1",
		TenantID:  "default",
		AuthToken: "endpoint-token",
		Config: EndpointConfig{
			Name:          "orders",
			TargetAgentID: "agent-1",
			AuthMethod:    auth,
			ExecutionMode: ModeAsync,
			Enabled:       true,
		},
	}
}

type staticEndpointReader struct {
	endpoint Endpoint
	ok       bool
}

func (r staticEndpointReader) Get(context.Context, string) (Endpoint, bool, error) {
	return r.endpoint, r.ok, nil
}

func TestRequestValidator_ValidateEndpointNotFound(t *testing.T) {
	v := NewRequestValidator(staticEndpointReader{ok: false})
	_, err := v.ValidateEndpoint(context.Background(), "missing")
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindNotFound {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRequestValidator_BearerAuthRejectsWrongToken(t *testing.T) {
	endpoint := newTestEndpoint(AuthMethod{Type: AuthBearer, Token: "correct-token"})
	v := NewRequestValidator(staticEndpointReader{endpoint: endpoint, ok: true})

	err := v.ValidateAuth(HTTPRequest{Headers: map[string]string{"Authorization": "Bearer wrong"}}, endpoint)
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindAuth {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestRequestValidator_BearerAuthAcceptsCorrectToken(t *testing.T) {
	endpoint := newTestEndpoint(AuthMethod{Type: AuthBearer, Token: "correct-token"})
	v := NewRequestValidator(staticEndpointReader{endpoint: endpoint, ok: true})

	err := v.ValidateAuth(HTTPRequest{Headers: map[string]string{"Authorization": "Bearer correct-token"}}, endpoint)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestRequestValidator_BasicAuthRoundTrip(t *testing.T) {
	endpoint := newTestEndpoint(AuthMethod{Type: AuthBasic, Username: "u", Password: "p"})
	v := NewRequestValidator(staticEndpointReader{endpoint: endpoint, ok: true})

	// "u:p" base64-encoded
	err := v.ValidateAuth(HTTPRequest{Headers: map[string]string{"Authorization": "Basic dTpw"}}, endpoint)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestRequestValidator_SignatureVerification(t *testing.T) {
	secret := "shared-secret"
	body := `{"hello":"world"}`
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	endpoint := newTestEndpoint(AuthMethod{Type: AuthHMAC, Secret: secret, Algorithm: HMACSHA256})
	v := NewRequestValidator(staticEndpointReader{endpoint: endpoint, ok: true})

	req := HTTPRequest{Headers: map[string]string{"X-Signature": sig}, Body: body}
	if err := v.ValidateSignature(req, endpoint); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	tampered := HTTPRequest{Headers: map[string]string{"X-Signature": sig}, Body: body + "x"}
	if err := v.ValidateSignature(tampered, endpoint); err == nil {
		t.Fatal("expected signature mismatch for tampered body")
	}
}

func TestRequestValidator_ValidateFormatRejectsUnsupportedContentType(t *testing.T) {
	v := NewRequestValidator(staticEndpointReader{})
	err := v.ValidateFormat(HTTPRequest{Headers: map[string]string{"Content-Type": "text/plain"}})
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRequestValidator_ValidateRequestFullPipeline(t *testing.T) {
	endpoint := newTestEndpoint(AuthMethod{Type: AuthBearer, Token: "tok"})
	v := NewRequestValidator(staticEndpointReader{endpoint: endpoint, ok: true})

	req := HTTPRequest{
		Headers: map[string]string{"Authorization": "Bearer tok", "Content-Type": "application/json"},
		Body:    `{"a":1}`,
	}
	resolved, err := v.ValidateRequest(context.Background(), "ep-1", req)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resolved.ID != "ep-1" {
		t.Fatalf("expected resolved endpoint ep-1, got %s", resolved.ID)
	}
}
