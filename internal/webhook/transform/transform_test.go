/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package transform

import "testing"

func TestTransformer_ParseJSON(t *testing.T) {
	tr := New()
	parsed, err := tr.Parse(Request{
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    `{"name":"alice","age":30}`,
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Data["name"] != "alice" {
		t.Fatalf("expected name=alice, got %v", parsed.Data["name"])
	}
}

func TestTransformer_ParseFormURLEncoded(t *testing.T) {
	tr := New()
	parsed, err := tr.Parse(Request{
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    "name=bob&age=21",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Data["name"] != "bob" {
		t.Fatalf("expected name=bob, got %v", parsed.Data["name"])
	}
}

func TestTransformer_ParseXML(t *testing.T) {
	tr := New()
	parsed, err := tr.Parse(Request{
		Headers: map[string]string{"Content-Type": "application/xml"},
		Body:    `<order><id>42</id></order>`,
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	order, ok := parsed.Data["order"].(map[string]any)
	if !ok || order["id"] != "42" {
		t.Fatalf("expected order.id=42, got %v", parsed.Data)
	}
}

func TestTransformer_ParseRejectsUnsupportedContentType(t *testing.T) {
	tr := New()
	_, err := tr.Parse(Request{Headers: map[string]string{"Content-Type": "text/plain"}, Body: "x"})
	if err == nil {
		t.Fatal("expected error for unsupported content type")
	}
}

func TestTransformer_TransformAppliesMappingsAndDefaults(t *testing.T) {
	tr := New()
	payload := ParsedPayload{Data: map[string]any{"amount": "19.99"}}
	rule := Rule{
		TargetAgentID: "agent-1",
		Mappings: []FieldMapping{
			{Source: "$.amount", Target: "total", Transform: "number"},
			{Source: "$.missing", Target: "currency", Default: "USD"},
		},
	}
	input, err := tr.Transform(payload, rule)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if input.Parameters["total"] != 19.99 {
		t.Fatalf("expected total=19.99, got %v", input.Parameters["total"])
	}
	if input.Parameters["currency"] != "USD" {
		t.Fatalf("expected currency=USD default, got %v", input.Parameters["currency"])
	}
}

func TestTransformer_TransformAppliesCustomLogic(t *testing.T) {
	tr := New()
	payload := ParsedPayload{Data: map[string]any{"amount": 10.0}}
	rule := Rule{
		TargetAgentID: "agent-1",
		Mappings:      []FieldMapping{{Source: "$.amount", Target: "amount", Transform: "number"}},
		CustomLogic:   `{"doubled": payload["amount"] * 2}`,
	}
	input, err := tr.Transform(payload, rule)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if input.Parameters["doubled"] != 20.0 {
		t.Fatalf("expected doubled=20, got %v", input.Parameters["doubled"])
	}
}

func TestTransformer_ValidateRejectsMissingRequiredField(t *testing.T) {
	tr := New()
	input := AgentInput{Parameters: map[string]any{}}
	schema := map[string]any{"required": []any{"total"}}
	if err := tr.Validate(input, schema); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestTransformer_ValidateRejectsWrongType(t *testing.T) {
	tr := New()
	input := AgentInput{Parameters: map[string]any{"total": "not-a-number"}}
	schema := map[string]any{"properties": map[string]any{"total": map[string]any{"type": "number"}}}
	if err := tr.Validate(input, schema); err == nil {
		t.Fatal("expected type validation error")
	}
}
