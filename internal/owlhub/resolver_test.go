/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package owlhub

import "testing"

func manifestsByName(manifests ...SkillManifest) CandidateProvider {
	return func(name string) ([]SkillManifest, error) {
		var out []SkillManifest
		for _, m := range manifests {
			if m.Name == name {
				out = append(out, m)
			}
		}
		return out, nil
	}
}

func TestDependencyResolver_ResolveOrdersLeavesBeforeDependents(t *testing.T) {
	base := SkillManifest{Name: "base-tool", Version: "1.0.0", Publisher: "acme"}
	mid := SkillManifest{
		Name: "mid-tool", Version: "1.0.0", Publisher: "acme",
		Dependencies: map[string]string{"base-tool": "^1.0.0"},
	}
	root := SkillManifest{
		Name: "root-tool", Version: "1.0.0", Publisher: "acme",
		Dependencies: map[string]string{"mid-tool": "^1.0.0"},
	}

	resolver := NewDependencyResolver(manifestsByName(base, mid, root))
	nodes, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if nodes[0].Name != "base-tool" || nodes[1].Name != "mid-tool" || nodes[2].Name != "root-tool" {
		t.Fatalf("expected leaves-first order, got %v, %v, %v", nodes[0].Name, nodes[1].Name, nodes[2].Name)
	}
}

func TestDependencyResolver_DetectsCircularDependency(t *testing.T) {
	a := SkillManifest{Name: "a-tool", Version: "1.0.0", Dependencies: map[string]string{"b-tool": "^1.0.0"}}
	b := SkillManifest{Name: "b-tool", Version: "1.0.0", Dependencies: map[string]string{"a-tool": "^1.0.0"}}

	resolver := NewDependencyResolver(manifestsByName(a, b))
	_, err := resolver.Resolve(a)
	if _, ok := err.(*ErrCircularDependency); !ok {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}
}

func TestDependencyResolver_MissingDependency(t *testing.T) {
	root := SkillManifest{Name: "root-tool", Version: "1.0.0", Dependencies: map[string]string{"ghost-tool": "^1.0.0"}}
	resolver := NewDependencyResolver(manifestsByName(root))
	_, err := resolver.Resolve(root)
	if _, ok := err.(*ErrMissingDependency); !ok {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
}

func TestDependencyResolver_UnsatisfiableConstraint(t *testing.T) {
	dep := SkillManifest{Name: "dep-tool", Version: "1.0.0"}
	root := SkillManifest{Name: "root-tool", Version: "1.0.0", Dependencies: map[string]string{"dep-tool": "^2.0.0"}}
	resolver := NewDependencyResolver(manifestsByName(dep, root))
	_, err := resolver.Resolve(root)
	if _, ok := err.(*ErrUnsatisfiableConstraint); !ok {
		t.Fatalf("expected ErrUnsatisfiableConstraint, got %v", err)
	}
}

func TestDependencyResolver_SelectsHighestMatchingVersion(t *testing.T) {
	older := SkillManifest{Name: "dep-tool", Version: "1.1.0"}
	newer := SkillManifest{Name: "dep-tool", Version: "1.5.0"}
	tooNew := SkillManifest{Name: "dep-tool", Version: "2.0.0"}
	root := SkillManifest{Name: "root-tool", Version: "1.0.0", Dependencies: map[string]string{"dep-tool": "^1.0.0"}}

	resolver := NewDependencyResolver(manifestsByName(older, newer, tooNew, root))
	nodes, err := resolver.Resolve(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nodes[0].Version != "1.5.0" {
		t.Fatalf("expected highest matching version 1.5.0, got %s", nodes[0].Version)
	}
}

func TestMatchConstraint(t *testing.T) {
	cases := []struct {
		version    string
		constraint string
		want       bool
	}{
		{"1.2.3", "^1.2.3", true},
		{"1.9.9", "^1.2.3", true},
		{"2.0.0", "^1.2.3", false},
		{"1.2.3", "~1.2.3", true},
		{"1.2.9", "~1.2.3", true},
		{"1.3.0", "~1.2.3", false},
		{"1.5.0", ">=1.0.0,<2.0.0", true},
		{"2.0.0", ">=1.0.0,<2.0.0", false},
		{"1.2.3", "=1.2.3", true},
		{"1.2.4", "=1.2.3", false},
		{"1.2.3", "1.2.3", true},
	}
	for _, c := range cases {
		if got := matchConstraint(c.version, c.constraint); got != c.want {
			t.Fatalf("matchConstraint(%q, %q) = %v, want %v", c.version, c.constraint, got, c.want)
		}
	}
}
