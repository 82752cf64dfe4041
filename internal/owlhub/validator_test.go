/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import "testing"

func validManifest() SkillManifest {
	return SkillManifest{
		Name:        "pdf-summarizer",
		Version:     "1.2.3",
		Publisher:   "acme-labs",
		Description: "Summarizes long PDF documents into a short digest.",
		License:     "MIT",
	}
}

func TestValidator_ValidateManifestAccepts(t *testing.T) {
	v := NewValidator()
	result := v.ValidateManifest(validManifest())
	if !result.Valid {
		t.Fatalf("expected valid manifest, got errors: %+v", result.Errors)
	}
}

func TestValidator_ValidateManifestRejectsMissingFields(t *testing.T) {
	v := NewValidator()
	result := v.ValidateManifest(SkillManifest{})
	if result.Valid {
		t.Fatalf("expected invalid manifest")
	}
	if len(result.Errors) != 5 {
		t.Fatalf("expected 5 required-field errors, got %d: %+v", len(result.Errors), result.Errors)
	}
}

func TestValidator_ValidateManifestRejectsNonKebabName(t *testing.T) {
	v := NewValidator()
	m := validManifest()
	m.Name = "PDF_Summarizer"
	result := v.ValidateManifest(m)
	if result.Valid {
		t.Fatalf("expected invalid manifest for non-kebab name")
	}
}

func TestValidator_ValidateManifestRejectsShortDescription(t *testing.T) {
	v := NewValidator()
	m := validManifest()
	m.Description = "too short"
	result := v.ValidateManifest(m)
	if result.Valid {
		t.Fatalf("expected invalid manifest for short description")
	}
}

func TestValidator_ValidateVersion(t *testing.T) {
	v := NewValidator()
	cases := map[string]bool{
		"1.0.0":   true,
		"1.0":     false,
		"v1.0.0":  false,
		"1.0.0-1": true,
	}
	for version, want := range cases {
		if got := v.ValidateVersion(version); got != want {
			t.Fatalf("ValidateVersion(%q) = %v, want %v", version, got, want)
		}
	}
}

func TestValidator_ValidateDependenciesConstraintForms(t *testing.T) {
	v := NewValidator()
	deps := map[string]string{
		"caret-dep":  "^1.2.3",
		"tilde-dep":  "~1.2.3",
		"range-dep":  ">=1.0.0,<2.0.0",
		"exact-dep":  "1.2.3",
		"equals-dep": "=1.2.3",
	}
	result := v.ValidateDependencies(deps)
	if !result.Valid {
		t.Fatalf("expected all constraint forms valid, got errors: %+v", result.Errors)
	}
}

func TestValidator_ValidateDependenciesRejectsBadConstraint(t *testing.T) {
	v := NewValidator()
	deps := map[string]string{"bad-dep": "latest"}
	result := v.ValidateDependencies(deps)
	if result.Valid {
		t.Fatalf("expected invalid constraint to fail")
	}
}

func TestValidator_ValidateDependenciesRejectsNonKebabName(t *testing.T) {
	v := NewValidator()
	deps := map[string]string{"Bad_Dep": "^1.0.0"}
	result := v.ValidateDependencies(deps)
	if result.Valid {
		t.Fatalf("expected non-kebab dependency name to fail")
	}
}
