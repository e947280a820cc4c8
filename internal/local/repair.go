// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"regexp"
	"strings"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// REPAIR RULES
// =============================================================================

// RepairRule rewrites one known defect of on-device model output.
type RepairRule struct {
	Name  string
	Apply func(string) string
}

var (
	leadingZerosRe   = regexp.MustCompile(`([:\s\[,])0+(\d+)`)
	quotedBooleansRe = regexp.MustCompile(`(?i)"(true|false)"`)
)

// RepairRules are applied in order by Repair.
var RepairRules = []RepairRule{
	{
		// "hour": 07 is not valid JSON.
		Name: "leading-zeros",
		Apply: func(s string) string {
			return leadingZerosRe.ReplaceAllString(s, "${1}${2}")
		},
	},
	{
		Name: "quoted-booleans",
		Apply: func(s string) string {
			return quotedBooleansRe.ReplaceAllStringFunc(s, func(m string) string {
				return strings.ToLower(strings.Trim(m, `"`))
			})
		},
	},
}

// Repair applies every rule in RepairRules to raw and reports whether any of
// them changed the text.
func Repair(raw string) (string, bool) {
	out := raw
	for _, rule := range RepairRules {
		out = rule.Apply(out)
	}
	return out, out != raw
}

// RuleByName returns the named repair rule.
func RuleByName(name string) (RepairRule, bool) {
	for _, r := range RepairRules {
		if r.Name == name {
			return r, true
		}
	}
	return RepairRule{}, false
}

// NormalizeBooleans applies the quoted-booleans rule to decoded arguments,
// including values nested in objects and arrays. It reports whether any
// value changed. The calls are modified in place.
func NormalizeBooleans(calls []tools.FunctionCall) bool {
	changed := false
	for _, c := range calls {
		for k, v := range c.Arguments {
			if nv, ok := normalizeBoolean(v); ok {
				c.Arguments[k] = nv
				changed = true
			}
		}
	}
	return changed
}

func normalizeBoolean(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		switch strings.ToLower(val) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case map[string]any:
		changed := false
		for k, child := range val {
			if nv, ok := normalizeBoolean(child); ok {
				val[k] = nv
				changed = true
			}
		}
		return val, changed
	case []any:
		changed := false
		for i, child := range val {
			if nv, ok := normalizeBoolean(child); ok {
				val[i] = nv
				changed = true
			}
		}
		return val, changed
	}
	return v, false
}
