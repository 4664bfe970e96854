// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardrails screens pipeline inputs and outputs: prompt-injection
// detection and neutralization, PII redaction, and the grounding-score gate.
//
// Detection is lexical (fixed regex set). A low-signal match is still a
// match: the pipeline refuses on detection rather than trying to repair the
// query. The Detector interface exists so a semantic classifier can replace
// the pattern set without touching callers.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianGate/services/gatekeeper/datatypes"
)

const (
	emailPlaceholder       = "[EMAIL_REDACTED]"
	phonePlaceholder       = "[PHONE_REDACTED]"
	instructionPlaceholder = "[INSTRUCTION_REMOVED]"

	DefaultGroundingThreshold = 0.62
)

// Ordered, case-insensitive. Order is part of the contract: detection
// reports the first pattern that fires.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all|above)\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all|above)\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(previous|all|above)\s+(instructions?|commands?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a?\s*\w+`),
	regexp.MustCompile(`(?i)system\s*:\s*`),
	regexp.MustCompile(`(?i)<\s*system\s*>`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)sudo\s+mode`),
	regexp.MustCompile(`(?i)developer\s+mode`),
	regexp.MustCompile(`(?i)admin\s+mode`),
	regexp.MustCompile(`(?i)root\s+access`),
	regexp.MustCompile(`(?i)\[INST\]|\[/INST\]`),
	regexp.MustCompile(`(?i)<\|.*?\|>`),
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

// General international first, then progressively more specific formats.
// Matches already containing a placeholder are skipped so a second pass is
// a no-op.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	regexp.MustCompile(`\+971[-.\s]?\d{1,2}[-.\s]?\d{3}[-.\s]?\d{4}`),
	regexp.MustCompile(`\b05\d[-.\s]?\d{3}[-.\s]?\d{4}\b`),
}

// Detector decides whether text carries a prompt-injection attempt.
type Detector interface {
	Detect(text string) (bool, string)
}

// Config toggles the individual guardrails. All gates default to on when
// built through config.Load; a zero Config disables everything, which is
// only useful in tests.
type Config struct {
	EnableInjectionDetection bool
	EnablePIIRedaction       bool
	EnableGroundingCheck     bool
	GroundingThreshold       float64
}

// Engine applies the configured guardrails. Safe for concurrent use: all
// state is immutable after construction.
type Engine struct {
	cfg      Config
	detector Detector
}

var _ Detector = (*patternDetector)(nil)

type patternDetector struct{}

func (patternDetector) Detect(text string) (bool, string) {
	for _, re := range injectionPatterns {
		if m := re.FindString(text); m != "" {
			return true, fmt.Sprintf("Potential prompt injection detected: '%s'", m)
		}
	}
	return false, ""
}

// NewEngine builds an Engine. A GroundingThreshold <= 0 selects the default.
func NewEngine(cfg Config) *Engine {
	if cfg.GroundingThreshold <= 0 {
		cfg.GroundingThreshold = DefaultGroundingThreshold
	}
	return &Engine{cfg: cfg, detector: patternDetector{}}
}

// NewEngineWithDetector swaps the lexical detector for a custom one.
func NewEngineWithDetector(cfg Config, d Detector) *Engine {
	e := NewEngine(cfg)
	if d != nil {
		e.detector = d
	}
	return e
}

// GroundingThreshold reports the configured refusal threshold.
func (e *Engine) GroundingThreshold() float64 { return e.cfg.GroundingThreshold }

// =============================================================================
// Injection
// =============================================================================

// DetectPromptInjection reports whether text matches an injection pattern,
// with a reason embedding the matched substring. Always (false, "") when
// detection is disabled.
func (e *Engine) DetectPromptInjection(text string) (bool, string) {
	if !e.cfg.EnableInjectionDetection {
		return false, ""
	}
	return e.detector.Detect(text)
}

// NeutralizeInjection replaces every injection-pattern match with a fixed
// placeholder. Applied even when the pipeline refuses, so logs never carry
// the live payload.
func (e *Engine) NeutralizeInjection(text string) string {
	for _, re := range injectionPatterns {
		text = re.ReplaceAllString(text, instructionPlaceholder)
	}
	return text
}

// =============================================================================
// PII
// =============================================================================

// RedactPII replaces emails then phone numbers with placeholders and returns
// the redacted text plus "kind:value" items for audit logging. Identity when
// redaction is disabled. Idempotent: placeholders contain neither digits nor
// '@' so a second pass matches nothing.
func (e *Engine) RedactPII(text string) (string, []string) {
	if !e.cfg.EnablePIIRedaction {
		return text, nil
	}
	var items []string
	for _, m := range emailPattern.FindAllString(text, -1) {
		text = strings.ReplaceAll(text, m, emailPlaceholder)
		items = append(items, "email:"+m)
	}
	for _, re := range phonePatterns {
		for _, m := range re.FindAllString(text, -1) {
			if strings.Contains(m, emailPlaceholder) || strings.Contains(m, phonePlaceholder) {
				continue
			}
			text = strings.ReplaceAll(text, m, phonePlaceholder)
			items = append(items, "phone:"+m)
		}
	}
	return text, items
}

// =============================================================================
// Grounding
// =============================================================================

// ValidateGroundingScore gates generation on retrieval quality. Returns
// ok=false with a user-facing refusal naming the score and threshold when
// score is below the configured threshold. Always ok when the check is
// disabled.
func (e *Engine) ValidateGroundingScore(score float64) (bool, string) {
	if !e.cfg.EnableGroundingCheck {
		return true, ""
	}
	if score < e.cfg.GroundingThreshold {
		return false, fmt.Sprintf(
			"I don't have enough relevant information to answer this question confidently (grounding score: %.2f, threshold: %.2f). Try rephrasing or providing more context.",
			score, e.cfg.GroundingThreshold)
	}
	return true, ""
}

// =============================================================================
// Composite passes
// =============================================================================

// ProcessQuery runs the input-side guardrails in order: injection detection,
// neutralization, then PII redaction of the surviving text.
func (e *Engine) ProcessQuery(query string) datatypes.QueryGuardrailResult {
	result := datatypes.QueryGuardrailResult{OriginalQuery: query, ProcessedQuery: query}

	if detected, reason := e.DetectPromptInjection(query); detected {
		result.InjectionDetected = true
		result.InjectionReason = reason
		result.ProcessedQuery = e.NeutralizeInjection(query)
		result.Warnings = append(result.Warnings, reason)
	}

	redacted, items := e.RedactPII(result.ProcessedQuery)
	if len(items) > 0 {
		result.PIIRedacted = true
		result.RedactedItems = items
		result.ProcessedQuery = redacted
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Redacted %d PII item(s) from query", len(items)))
	}
	return result
}

// ProcessResponse runs the output-side guardrails (PII redaction only).
func (e *Engine) ProcessResponse(response string) datatypes.ResponseGuardrailResult {
	result := datatypes.ResponseGuardrailResult{OriginalResponse: response, ProcessedResponse: response}
	redacted, items := e.RedactPII(response)
	if len(items) > 0 {
		result.PIIRedacted = true
		result.RedactedItems = items
		result.ProcessedResponse = redacted
	}
	return result
}
