// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// ReasonOK is the Verdict reason for a valid result.
const ReasonOK = "ok"

// punctuation matches everything that is not a letter, digit, underscore or space.
var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}]`)

// Validate checks every call in result against the catalog and the user text.
// The first failing rule decides the verdict; a result is valid only if all of
// its calls pass. Pure and never panics.
func Validate(result InferenceResult, catalog *tools.Catalog, userText string) Verdict {
	if len(result.FunctionCalls) == 0 {
		return Verdict{Reason: "no function calls returned"}
	}

	msgClean := cleanText(userText)
	for _, call := range result.FunctionCalls {
		if v := validateCall(call, catalog, msgClean); !v.Valid {
			return v
		}
	}
	return Verdict{Valid: true, Reason: ReasonOK}
}

func validateCall(call tools.FunctionCall, catalog *tools.Catalog, msgClean string) Verdict {
	spec, ok := catalog.Lookup(call.Name)
	if !ok {
		return Verdict{Reason: "hallucinated tool name: " + call.Name}
	}

	for _, name := range spec.Parameters.RequiredNames() {
		if _, present := call.Arguments[name]; !present {
			return Verdict{Reason: fmt.Sprintf("missing required param '%s' in %s", name, call.Name)}
		}
	}

	// Declared order keeps the reported reason stable; undeclared arguments
	// are never inspected.
	for _, p := range spec.Parameters.Params {
		value, present := call.Arguments[p.Name]
		if !present {
			continue
		}
		switch p.Type {
		case tools.TypeInteger:
			if !coercibleToInt(value) {
				return Verdict{Reason: fmt.Sprintf("param '%s' not coercible to int", p.Name)}
			}
		case tools.TypeNumber:
			if !coercibleToNumber(value) {
				return Verdict{Reason: fmt.Sprintf("param '%s' not coercible to number", p.Name)}
			}
		case tools.TypeString:
			if v := checkGrounded(p, value, msgClean); !v.Valid {
				return v
			}
		}
	}
	return Verdict{Valid: true, Reason: ReasonOK}
}

// ============================================================================
// TYPE COERCION
// ============================================================================

// coercibleToInt accepts integral numbers and strings holding a base-10
// integer. Booleans are rejected.
func coercibleToInt(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return isIntegral(x)
	case float32:
		return isIntegral(float64(x))
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return true
		}
		_, ok := new(big.Int).SetString(x.String(), 10)
		return ok
	case string:
		_, ok := new(big.Int).SetString(strings.TrimSpace(x), 10)
		return ok
	default:
		return false
	}
}

func coercibleToNumber(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := x.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err == nil
	default:
		return false
	}
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// ============================================================================
// GROUNDING
// ============================================================================

// checkGrounded rejects empty required strings and string values that share no
// word with the user text.
func checkGrounded(p tools.Param, value any, msgClean string) Verdict {
	s := stringify(value)
	if strings.TrimSpace(s) == "" {
		if p.Required {
			return Verdict{Reason: fmt.Sprintf("required string param '%s' is empty", p.Name)}
		}
		return Verdict{Valid: true, Reason: ReasonOK}
	}

	valClean := cleanText(s)
	if valClean == "" || strings.Contains(msgClean, valClean) {
		return Verdict{Valid: true, Reason: ReasonOK}
	}

	for _, w := range strings.Fields(valClean) {
		if strings.Contains(msgClean, w) {
			return Verdict{Valid: true, Reason: ReasonOK}
		}
	}
	return Verdict{Reason: "hallucinated string not in prompt: " + s}
}

// cleanText NFC-normalizes, lower-cases and strips punctuation.
func cleanText(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	return strings.TrimSpace(punctuation.ReplaceAllString(s, ""))
}

// stringify renders an argument the way it would appear in text.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
