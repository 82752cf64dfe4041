/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package transform parses webhook payloads (JSON/XML/form) and maps them
// to an agent input via JSONPath-style field mappings, a sandboxed
// expression for custom logic, and optional target-schema validation.
// Grounded on transformer.py's PayloadTransformer.
package transform

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/owlclaw/agentcore/internal/apierr"
	"github.com/owlclaw/agentcore/internal/webhook/transform/sandbox"
)

// Request is the minimal shape the transformer parses from; it mirrors
// webhook.HTTPRequest without importing the parent package (avoids an
// import cycle — the parent package imports transform, not vice versa).
type Request struct {
	Headers map[string]string
	Body    string
}

// ParsedPayload is the normalized document produced by Parse.
type ParsedPayload struct {
	ContentType string
	Data        map[string]any
	Headers     map[string]string
	RawBody     string
}

// FieldMapping maps one payload field to one agent-input field.
type FieldMapping struct {
	Source    string
	Target    string
	Transform string // "", "string", "number", "boolean", "date", "json"
	Default   any
}

// Rule maps a parsed payload to an agent input.
type Rule struct {
	ID            string
	Name          string
	TargetAgentID string
	Mappings      []FieldMapping
	TargetSchema  map[string]any
	CustomLogic   string
}

// AgentInput is the execution payload produced by Transform.
type AgentInput struct {
	AgentID    string
	Parameters map[string]any
	Context    map[string]any
}

// Transformer parses and maps webhook payloads.
type Transformer struct{}

// New creates a Transformer. It is stateless.
func New() *Transformer { return &Transformer{} }

func extractContentType(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "content-type") {
			return strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
		}
	}
	return ""
}

// Parse parses req's body according to its Content-Type header.
func (t *Transformer) Parse(req Request) (ParsedPayload, error) {
	contentType := extractContentType(req.Headers)
	switch contentType {
	case "application/json":
		data := map[string]any{}
		if req.Body != "" {
			var raw any
			if err := json.Unmarshal([]byte(req.Body), &raw); err != nil {
				return ParsedPayload{}, apierr.New(apierr.KindValidation, "invalid json payload")
			}
			obj, ok := raw.(map[string]any)
			if !ok {
				return ParsedPayload{}, apierr.New(apierr.KindValidation, "invalid json payload")
			}
			data = obj
		}
		return ParsedPayload{ContentType: contentType, Data: data, Headers: req.Headers, RawBody: req.Body}, nil
	case "application/xml", "text/xml":
		root, err := parseXML(req.Body)
		if err != nil {
			return ParsedPayload{}, apierr.New(apierr.KindValidation, "invalid xml payload")
		}
		return ParsedPayload{ContentType: contentType, Data: root, Headers: req.Headers, RawBody: req.Body}, nil
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(req.Body)
		if err != nil {
			return ParsedPayload{}, apierr.New(apierr.KindValidation, "invalid form payload")
		}
		data := map[string]any{}
		for k, v := range values {
			if len(v) == 1 {
				data[k] = v[0]
			} else {
				out := make([]any, len(v))
				for i, s := range v {
					out[i] = s
				}
				data[k] = out
			}
		}
		return ParsedPayload{ContentType: contentType, Data: data, Headers: req.Headers, RawBody: req.Body}, nil
	default:
		return ParsedPayload{}, apierr.New(apierr.KindValidation, "unsupported content type")
	}
}

// xmlNode is a minimal generic XML tree used to convert to map[string]any.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func parseXML(body string) (map[string]any, error) {
	var root xmlNode
	if err := xml.Unmarshal([]byte(body), &root); err != nil {
		return nil, err
	}
	return map[string]any{stripNS(root.XMLName.Local): xmlToValue(root)}, nil
}

func stripNS(tag string) string {
	if idx := strings.LastIndex(tag, "}"); idx >= 0 {
		return tag[idx+1:]
	}
	return tag
}

func xmlToValue(n xmlNode) any {
	if len(n.Nodes) == 0 {
		return strings.TrimSpace(n.Content)
	}
	result := map[string]any{}
	for _, child := range n.Nodes {
		tag := stripNS(child.XMLName.Local)
		value := xmlToValue(child)
		if existing, ok := result[tag]; ok {
			if list, ok := existing.([]any); ok {
				result[tag] = append(list, value)
			} else {
				result[tag] = []any{existing, value}
			}
		} else {
			result[tag] = value
		}
	}
	return result
}

// jsonPathGet descends a "$" or "$.a.b.c" path over data.
func jsonPathGet(data map[string]any, path string) any {
	if path == "$" {
		return data
	}
	if !strings.HasPrefix(path, "$.") {
		return nil
	}
	var current any = data
	for _, part := range strings.Split(path[2:], ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok || current == nil {
			return nil
		}
	}
	return current
}

func assignPath(target map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := target
	for _, key := range parts[:len(parts)-1] {
		child, ok := current[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			current[key] = child
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
}

func convertValue(value any, kind string) (any, error) {
	switch kind {
	case "":
		return value, nil
	case "string":
		if value == nil {
			return "", nil
		}
		return fmt.Sprintf("%v", value), nil
	case "number":
		if value == nil {
			return 0.0, nil
		}
		switch v := value.(type) {
		case float64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, apierr.New(apierr.KindValidation, "number transform requires numeric value")
			}
			return f, nil
		default:
			return nil, apierr.New(apierr.KindValidation, "number transform requires numeric value")
		}
	case "boolean":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			lowered := strings.ToLower(strings.TrimSpace(v))
			switch lowered {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
			return v != "", nil
		case nil:
			return false, nil
		default:
			return true, nil
		}
	case "date":
		switch v := value.(type) {
		case string:
			parsed, err := time.Parse(time.RFC3339, strings.Replace(v, "Z", "+00:00", 1))
			if err != nil {
				return nil, apierr.New(apierr.KindValidation, "date transform requires ISO string")
			}
			return parsed.Format(time.RFC3339), nil
		default:
			return nil, apierr.New(apierr.KindValidation, "date transform requires datetime or ISO string")
		}
	case "json":
		if s, ok := value.(string); ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, apierr.New(apierr.KindValidation, "invalid json transform value")
			}
			return out, nil
		}
		return value, nil
	default:
		return nil, apierr.New(apierr.KindValidation, "unsupported transform type: "+kind)
	}
}

// Transform maps payload to an AgentInput per rule, evaluates the optional
// sandboxed custom-logic expression, and validates against the target
// schema.
func (t *Transformer) Transform(payload ParsedPayload, rule Rule) (AgentInput, error) {
	parameters := map[string]any{}
	for _, mapping := range rule.Mappings {
		raw := jsonPathGet(payload.Data, mapping.Source)
		value := raw
		if value == nil {
			value = mapping.Default
		}
		converted, err := convertValue(value, mapping.Transform)
		if err != nil {
			return AgentInput{}, err
		}
		assignPath(parameters, mapping.Target, converted)
	}
	if rule.CustomLogic != "" {
		result, err := sandbox.Eval(rule.CustomLogic, payload.Data, parameters)
		if err != nil {
			return AgentInput{}, apierr.New(apierr.KindUnprocessable, err.Error())
		}
		obj, ok := result.(map[string]any)
		if !ok {
			return AgentInput{}, apierr.New(apierr.KindUnprocessable, "custom logic must return a dictionary")
		}
		for k, v := range obj {
			parameters[k] = v
		}
	}
	input := AgentInput{
		AgentID:    rule.TargetAgentID,
		Parameters: parameters,
		Context: map[string]any{
			"source":    "webhook",
			"rule_id":   rule.ID,
			"rule_name": rule.Name,
		},
	}
	if err := t.Validate(input, rule.TargetSchema); err != nil {
		return AgentInput{}, err
	}
	return input, nil
}

// Validate checks input.Parameters against a JSON-Schema-like subset:
// required fields and primitive/object type checks.
func (t *Transformer) Validate(input AgentInput, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	if required, ok := schema["required"].([]any); ok {
		for _, f := range required {
			field, _ := f.(string)
			if _, present := input.Parameters[field]; !present {
				return apierr.New(apierr.KindValidation, "missing required field: "+field)
			}
		}
	}
	properties, _ := schema["properties"].(map[string]any)
	for field, spec := range properties {
		value, present := input.Parameters[field]
		if !present {
			continue
		}
		specMap, ok := spec.(map[string]any)
		if !ok {
			continue
		}
		expected, _ := specMap["type"].(string)
		if err := checkType(field, expected, value); err != nil {
			return err
		}
	}
	return nil
}

func checkType(field, expected string, value any) error {
	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			return typeError(field, "string")
		}
	case "number":
		switch value.(type) {
		case float64, int, int64:
		default:
			return typeError(field, "number")
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeError(field, "boolean")
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return typeError(field, "object")
		}
	}
	return nil
}

func typeError(field, expected string) error {
	return apierr.New(apierr.KindValidation, fmt.Sprintf("field %s must be %s", field, expected))
}
