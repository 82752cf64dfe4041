/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package memory

import (
	"fmt"
	"strings"
)

// Tokenizer estimates token counts for budget accounting. The default
// approximation is ceil(len/4).
type Tokenizer interface {
	Count(text string) int
}

type defaultTokenizer struct{}

func (defaultTokenizer) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// FixedZone carries the immutable per-run context: the trigger, its
// payload, an optional focus, and any injected instructions.
type FixedZone struct {
	TriggerType  string
	Payload      string
	Focus        string
	Instructions []string
}

// Round is one function-call+response pair in the sliding zone, or a
// summary round produced by compression.
type Round struct {
	Call     string
	Response string
	Summary  string
}

func (r Round) render() string {
	if r.Summary != "" {
		return r.Summary
	}
	return fmt.Sprintf("call: %s\nresponse: %s", r.Call, r.Response)
}

// STM holds one run's short-term memory state: a fixed zone and a sliding
// zone of rounds, compressed under a token budget.
type STM struct {
	Fixed    FixedZone
	Sliding  []Round
	tokenizer Tokenizer
	maxTokens int
}

// NewSTM constructs an STM with the given token budget. A nil tokenizer
// uses the default ceil(len/4) approximation.
func NewSTM(maxTokens int, tokenizer Tokenizer) *STM {
	if tokenizer == nil {
		tokenizer = defaultTokenizer{}
	}
	return &STM{tokenizer: tokenizer, maxTokens: maxTokens}
}

func (s *STM) AddTrigger(triggerType, payload string) {
	s.Fixed.TriggerType = triggerType
	s.Fixed.Payload = payload
	s.recompress()
}

func (s *STM) Inject(instruction string) {
	s.Fixed.Instructions = append(s.Fixed.Instructions, instruction)
	s.recompress()
}

func (s *STM) AddFunctionCall(call string) {
	s.Sliding = append(s.Sliding, Round{Call: call})
	s.recompress()
}

func (s *STM) AddLLMResponse(response string) {
	if n := len(s.Sliding); n > 0 && s.Sliding[n-1].Response == "" && s.Sliding[n-1].Summary == "" {
		s.Sliding[n-1].Response = response
	} else {
		s.Sliding = append(s.Sliding, Round{Response: response})
	}
	s.recompress()
}

// tokenCount sums the serialized representation of the fixed and sliding
// zones.
func (s *STM) tokenCount() int {
	total := s.tokenizer.Count(s.Fixed.TriggerType) + s.tokenizer.Count(s.Fixed.Payload) + s.tokenizer.Count(s.Fixed.Focus)
	for _, inst := range s.Fixed.Instructions {
		total += s.tokenizer.Count(inst)
	}
	for _, r := range s.Sliding {
		total += s.tokenizer.Count(r.render())
	}
	return total
}

// recompress enforces the token budget: if over budget and the sliding zone
// has more than three rounds, the oldest rounds are replaced by a single
// summary round.
func (s *STM) recompress() {
	if s.maxTokens <= 0 {
		return
	}
	for s.tokenCount() > s.maxTokens && len(s.Sliding) > 3 {
		keep := s.Sliding[len(s.Sliding)-3:]
		compressedCount := len(s.Sliding) - 3
		summary := Round{Summary: fmt.Sprintf("[%d earlier rounds summarized]", compressedCount)}
		s.Sliding = append([]Round{summary}, keep...)
		if compressedCount <= 1 {
			break
		}
	}
}

// Render produces a structured Markdown section with fixed headers. An
// empty state renders "## Short-term context\n(empty)".
func (s *STM) Render() string {
	if s.Fixed.TriggerType == "" && s.Fixed.Payload == "" && len(s.Fixed.Instructions) == 0 && len(s.Sliding) == 0 {
		return "## Short-term context\n(empty)"
	}
	var b strings.Builder
	b.WriteString("## Short-term context\n")
	b.WriteString("### Trigger\n")
	fmt.Fprintf(&b, "- type: %s\n", s.Fixed.TriggerType)
	fmt.Fprintf(&b, "- payload: %s\n", s.Fixed.Payload)
	if s.Fixed.Focus != "" {
		fmt.Fprintf(&b, "- focus: %s\n", s.Fixed.Focus)
	}
	if len(s.Fixed.Instructions) > 0 {
		b.WriteString("### Instructions\n")
		for _, inst := range s.Fixed.Instructions {
			fmt.Fprintf(&b, "- %s\n", inst)
		}
	}
	b.WriteString("### Rounds\n")
	for _, r := range s.Sliding {
		fmt.Fprintf(&b, "- %s\n", r.render())
	}
	return b.String()
}
