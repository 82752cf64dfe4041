/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package sandbox

import "testing"

func TestEval_DictLiteralWithArithmetic(t *testing.T) {
	payload := map[string]any{"amount": 10.0}
	result, err := Eval(`{"total": payload["amount"] * 2}`, payload, map[string]any{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	obj, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected a dict result, got %T", result)
	}
	if obj["total"] != 20.0 {
		t.Fatalf("expected total=20, got %v", obj["total"])
	}
}

func TestEval_TernaryExpression(t *testing.T) {
	payload := map[string]any{"score": 75.0}
	result, err := Eval(`{"grade": "pass" if payload["score"] >= 60 else "fail"}`, payload, map[string]any{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	obj := result.(map[string]any)
	if obj["grade"] != "pass" {
		t.Fatalf("expected pass, got %v", obj["grade"])
	}
}

func TestEval_BooleanAndAttributeAccess(t *testing.T) {
	payload := map[string]any{"user": map[string]any{"active": true}}
	result, err := Eval(`{"ok": payload.user.active and True}`, payload, map[string]any{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	obj := result.(map[string]any)
	if obj["ok"] != true {
		t.Fatalf("expected ok=true, got %v", obj["ok"])
	}
}

func TestEval_RejectsUnboundName(t *testing.T) {
	_, err := Eval(`{"x": os.system("rm -rf /")}`, map[string]any{}, map[string]any{})
	if err == nil {
		t.Fatal("expected rejection of unsafe identifier")
	}
}

func TestEval_ReturnsNonDictTopLevelValue(t *testing.T) {
	result, err := Eval(`payload["amount"]`, map[string]any{"amount": 5.0}, map[string]any{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if result != 5.0 {
		t.Fatalf("expected 5.0, got %v", result)
	}
}

func TestEval_DivisionByZeroErrors(t *testing.T) {
	_, err := Eval(`{"x": 1 / 0}`, map[string]any{}, map[string]any{})
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestEval_ListIndexingAndComparison(t *testing.T) {
	payload := map[string]any{"items": []any{1.0, 2.0, 3.0}}
	result, err := Eval(`{"big": payload["items"][2] > 2}`, payload, map[string]any{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	obj := result.(map[string]any)
	if obj["big"] != true {
		t.Fatalf("expected big=true, got %v", obj["big"])
	}
}
