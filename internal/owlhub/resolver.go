/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	blangsemver "github.com/blang/semver/v4"
)

// ErrCircularDependency names the skill where a dependency cycle closed.
type ErrCircularDependency struct{ Name string }

func (e *ErrCircularDependency) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", e.Name)
}

// ErrDependencyConflict names a skill whose resolved version no longer
// satisfies a constraint imposed by another branch of the graph.
type ErrDependencyConflict struct {
	Name       string
	Version    string
	Constraint string
}

func (e *ErrDependencyConflict) Error() string {
	return fmt.Sprintf("dependency conflict: %s@%s does not satisfy %s", e.Name, e.Version, e.Constraint)
}

// ErrMissingDependency names a dependency with no matching candidate.
type ErrMissingDependency struct{ Name string }

func (e *ErrMissingDependency) Error() string {
	return fmt.Sprintf("missing dependency: %s", e.Name)
}

// ErrUnsatisfiableConstraint names a dependency whose constraint no
// candidate version satisfies.
type ErrUnsatisfiableConstraint struct {
	Name       string
	Constraint string
}

func (e *ErrUnsatisfiableConstraint) Error() string {
	return fmt.Sprintf("no version of %s satisfies constraint %s", e.Name, e.Constraint)
}

// CandidateProvider returns every known manifest version for a dependency
// name, in any order; the resolver filters and ranks them itself.
type CandidateProvider func(name string) ([]SkillManifest, error)

// ResolvedNode is one entry in a topologically ordered install plan.
type ResolvedNode struct {
	Name         string
	Version      string
	Publisher    string
	Dependencies map[string]string
	Manifest     SkillManifest
}

// DependencyResolver produces an install plan by DFS over a root manifest's
// dependency graph, detecting cycles and conflicting constraints.
type DependencyResolver struct {
	candidates CandidateProvider
}

// NewDependencyResolver wires a resolver over candidates.
func NewDependencyResolver(candidates CandidateProvider) *DependencyResolver {
	return &DependencyResolver{candidates: candidates}
}

// Resolve returns nodes in post-order (leaves before dependents, root last).
func (r *DependencyResolver) Resolve(root SkillManifest) ([]ResolvedNode, error) {
	visiting := map[string]bool{}
	visited := map[string]bool{}
	resolved := map[string]ResolvedNode{}
	var order []string

	var visit func(m SkillManifest, constraint string) error
	visit = func(m SkillManifest, constraint string) error {
		name := m.Name
		if visited[name] {
			if constraint != "" && !matchConstraint(resolved[name].Version, constraint) {
				return &ErrDependencyConflict{Name: name, Version: resolved[name].Version, Constraint: constraint}
			}
			return nil
		}
		if visiting[name] {
			return &ErrCircularDependency{Name: name}
		}
		visiting[name] = true
		if constraint != "" && !matchConstraint(m.Version, constraint) {
			return &ErrDependencyConflict{Name: name, Version: m.Version, Constraint: constraint}
		}

		for depName, depConstraint := range m.Dependencies {
			candidate, err := r.selectCandidate(depName, depConstraint)
			if err != nil {
				return err
			}
			if err := visit(candidate, depConstraint); err != nil {
				return err
			}
		}

		delete(visiting, name)
		visited[name] = true
		resolved[name] = ResolvedNode{
			Name:         m.Name,
			Version:      m.Version,
			Publisher:    m.Publisher,
			Dependencies: m.Dependencies,
			Manifest:     m,
		}
		order = append(order, name)
		return nil
	}

	if err := visit(root, ""); err != nil {
		return nil, err
	}

	nodes := make([]ResolvedNode, 0, len(order))
	for _, name := range order {
		nodes = append(nodes, resolved[name])
	}
	return nodes, nil
}

func (r *DependencyResolver) selectCandidate(name, constraint string) (SkillManifest, error) {
	all, err := r.candidates(name)
	if err != nil {
		return SkillManifest{}, err
	}
	var named []SkillManifest
	for _, c := range all {
		if c.Name == name {
			named = append(named, c)
		}
	}
	if len(named) == 0 {
		return SkillManifest{}, &ErrMissingDependency{Name: name}
	}
	var valid []SkillManifest
	for _, c := range named {
		if matchConstraint(c.Version, constraint) {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return SkillManifest{}, &ErrUnsatisfiableConstraint{Name: name, Constraint: constraint}
	}
	sort.Slice(valid, func(i, j int) bool {
		return versionLess(valid[i].Version, valid[j].Version)
	})
	return valid[len(valid)-1], nil
}

// matchConstraint implements the four syntactic forms from spec §4.16/§3.
func matchConstraint(version, constraint string) bool {
	text := strings.TrimSpace(constraint)
	if text == "" {
		return true
	}
	current, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return version == text
	}

	switch {
	case strings.HasPrefix(text, "^"):
		base, err := semver.NewVersion(strings.TrimSpace(text[1:]))
		if err != nil {
			return version == text
		}
		upper := semver.New(base.Major()+1, 0, 0, "", "")
		return !current.LessThan(base) && current.LessThan(upper)
	case strings.HasPrefix(text, "~"):
		base, err := semver.NewVersion(strings.TrimSpace(text[1:]))
		if err != nil {
			return version == text
		}
		upper := semver.New(base.Major(), base.Minor()+1, 0, "", "")
		return !current.LessThan(base) && current.LessThan(upper)
	case strings.HasPrefix(text, ">=") && strings.Contains(text, ",<"):
		parts := strings.SplitN(text, ",", 2)
		lowerRaw := strings.TrimSpace(strings.TrimPrefix(parts[0], ">="))
		upperRaw := strings.TrimSpace(strings.TrimPrefix(parts[1], "<"))
		lower, errL := semver.NewVersion(lowerRaw)
		upper, errU := semver.NewVersion(upperRaw)
		if errL != nil || errU != nil {
			return version == lowerRaw
		}
		return !current.LessThan(lower) && current.LessThan(upper)
	case strings.HasPrefix(text, "="):
		return version == strings.TrimSpace(text[1:])
	default:
		return version == text
	}
}

// versionLess compares two plain (non-constraint) version strings, used to
// pick "the latest installed/available version" in client.go. It is kept
// separate from matchConstraint's github.com/Masterminds/semver/v3 parser,
// which is built around range syntax rather than plain ordering.
func versionLess(a, b string) bool {
	va, errA := blangsemver.Parse(a)
	vb, errB := blangsemver.Parse(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return va.LT(vb)
}
