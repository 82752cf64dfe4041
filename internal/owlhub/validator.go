/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	nameRe                 = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	exactConstraintRe       = regexp.MustCompile(`^(\^|~|=)?\d+\.\d+\.\d+$`)
	rangeConstraintRe       = regexp.MustCompile(`^>=\d+\.\d+\.\d+,<\d+\.\d+\.\d+$`)
)

// ValidationIssue is one validation error or warning.
type ValidationIssue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ValidationResult is the outcome of validating a manifest or dependency
// mapping; a single call reports every violation, not just the first.
type ValidationResult struct {
	Valid    bool               `json:"is_valid"`
	Errors   []ValidationIssue  `json:"errors"`
	Warnings []ValidationIssue  `json:"warnings"`
}

func newResult(errors, warnings []ValidationIssue) ValidationResult {
	return ValidationResult{Valid: len(errors) == 0, Errors: errors, Warnings: warnings}
}

// Validator checks manifest fields and dependency constraint syntax.
type Validator struct{}

// NewValidator constructs a Validator. It holds no state.
func NewValidator() *Validator { return &Validator{} }

// ValidateVersion reports whether version is strict semver.
func (v *Validator) ValidateVersion(version string) bool {
	_, err := semver.StrictNewVersion(strings.TrimSpace(version))
	return err == nil
}

// ValidateManifest validates required fields, naming, description length,
// version, and dependency constraint syntax, collecting every violation.
func (v *Validator) ValidateManifest(m SkillManifest) ValidationResult {
	var errs, warns []ValidationIssue

	required := map[string]string{
		"name":        m.Name,
		"version":     m.Version,
		"publisher":   m.Publisher,
		"description": m.Description,
		"license":     m.License,
	}
	for _, field := range []string{"name", "version", "publisher", "description", "license"} {
		if strings.TrimSpace(required[field]) == "" {
			errs = append(errs, ValidationIssue{Field: field, Message: field + " is required", Severity: "error"})
		}
	}

	if name := strings.TrimSpace(m.Name); name != "" && !nameRe.MatchString(name) {
		errs = append(errs, ValidationIssue{Field: "name", Message: "name must be kebab-case", Severity: "error"})
	}
	if publisher := strings.TrimSpace(m.Publisher); publisher != "" && !nameRe.MatchString(publisher) {
		errs = append(errs, ValidationIssue{Field: "publisher", Message: "publisher must be kebab-case", Severity: "error"})
	}
	if desc := strings.TrimSpace(m.Description); desc != "" {
		if n := len(desc); n < 10 || n > 500 {
			errs = append(errs, ValidationIssue{Field: "description", Message: "description length must be 10-500", Severity: "error"})
		}
	}
	if version := strings.TrimSpace(m.Version); version != "" && !v.ValidateVersion(version) {
		errs = append(errs, ValidationIssue{Field: "version", Message: "version must be semver", Severity: "error"})
	}

	depResult := v.ValidateDependencies(m.Dependencies)
	errs = append(errs, depResult.Errors...)
	warns = append(warns, depResult.Warnings...)

	return newResult(errs, warns)
}

// ValidateDependencies checks that every dependency name is kebab-case and
// every constraint matches one of the four supported syntactic forms.
func (v *Validator) ValidateDependencies(deps map[string]string) ValidationResult {
	var errs, warns []ValidationIssue
	if deps == nil {
		return newResult(errs, warns)
	}
	for name, constraint := range deps {
		if !nameRe.MatchString(name) {
			errs = append(errs, ValidationIssue{Field: "dependencies", Message: "dependency name must be kebab-case", Severity: "error"})
			continue
		}
		trimmed := strings.TrimSpace(constraint)
		if !isValidConstraintSyntax(trimmed) {
			errs = append(errs, ValidationIssue{
				Field:    "dependencies." + name,
				Message:  "invalid version constraint",
				Severity: "error",
			})
		}
	}
	return newResult(errs, warns)
}

func isValidConstraintSyntax(c string) bool {
	if exactConstraintRe.MatchString(c) {
		return true
	}
	return rangeConstraintRe.MatchString(c)
}
