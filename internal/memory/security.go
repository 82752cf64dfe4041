/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package memory

import "strings"

// restrictedKeywords and confidentialKeywords drive the deterministic
// keyword classifier. Order matters: restricted is checked first so a
// content string matching both tiers is classified at the higher one.
var restrictedKeywords = []string{"ssn", "social security", "password", "private key", "credit card"}
var confidentialKeywords = []string{"salary", "confidential", "internal only", "proprietary"}
var internalKeywords = []string{"internal", "staff", "employee"}

// Classifier assigns a SecurityLevel to content by deterministic keyword
// matching. It never calls out to a model; the classification is a pure
// function of the input text.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify returns the SecurityLevel implied by content, defaulting to
// SecurityPublic when no keyword matches.
func (c *Classifier) Classify(content string) SecurityLevel {
	lower := strings.ToLower(content)
	for _, kw := range restrictedKeywords {
		if strings.Contains(lower, kw) {
			return SecurityRestricted
		}
	}
	for _, kw := range confidentialKeywords {
		if strings.Contains(lower, kw) {
			return SecurityConfidential
		}
	}
	for _, kw := range internalKeywords {
		if strings.Contains(lower, kw) {
			return SecurityInternal
		}
	}
	return SecurityPublic
}

// maskedChannels are the channels that should never see confidential or
// restricted content unmasked.
var maskedChannels = map[string]struct{}{
	"mcp":      {},
	"langfuse": {},
}

// SecurityFilter masks entry content according to its SecurityLevel and the
// requesting channel.
type SecurityFilter struct{}

func NewSecurityFilter() *SecurityFilter { return &SecurityFilter{} }

// Mask returns content, redacted if channel is one of the masked channels
// and level is confidential or restricted.
func (f *SecurityFilter) Mask(content string, level SecurityLevel, channel string) string {
	if _, masked := maskedChannels[channel]; !masked {
		return content
	}
	switch level {
	case SecurityConfidential, SecurityRestricted:
		return "[redacted]"
	default:
		return content
	}
}
