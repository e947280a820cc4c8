// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jeranaias/fcrouter/internal/tools"
)

// CloudThreshold is the preflight score at or above which the on-device model
// is skipped.
const CloudThreshold = 0.40

// Signal weights. The composite is not clamped; its maximum is 1.03.
const (
	weightLength     = 0.10
	weightVerbs      = 0.20
	weightMultiStep  = 0.40
	weightNegation   = 0.20
	weightToolCount  = 0.10
	weightSimilarity = 0.10
)

// ============================================================================
// VOCABULARY
// ============================================================================

var actionVerbs = []string{
	"look up", "send", "text", "get", "check",
	"find", "set", "create", "remind", "play",
	"start", "search", "book", "wake", "call",
}

type verbMatcher struct {
	verb string
	re   *regexp.Regexp // nil for multi-word verbs, which match by substring
}

// verbMatchers is actionVerbs ordered longest first.
var verbMatchers = func() []verbMatcher {
	verbs := append([]string(nil), actionVerbs...)
	sort.SliceStable(verbs, func(i, j int) bool { return len(verbs[i]) > len(verbs[j]) })

	out := make([]verbMatcher, len(verbs))
	for i, v := range verbs {
		out[i] = verbMatcher{verb: v}
		if !strings.Contains(v, " ") {
			out[i].re = regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
		}
	}
	return out
}()

var negationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnot\b`),
	regexp.MustCompile(`\bnever\b`),
	regexp.MustCompile(`\bexcept\b`),
	regexp.MustCompile(`\bwithout\b`),
	regexp.MustCompile(`\bno\b`),
	regexp.MustCompile(`\bif\b`),
	regexp.MustCompile(`\bunless\b`),
	regexp.MustCompile(`\bonly\s+when\b`),
	regexp.MustCompile(`\bonly\s+if\b`),
	regexp.MustCompile(`\bwhen\b`),
}

// ============================================================================
// SIGNALS
// ============================================================================

// Signals is the per-signal breakdown of a preflight score.
type Signals struct {
	WordCount     int      `json:"word_count"`
	Verbs         []string `json:"verbs"`
	NegationHits  int      `json:"negation_hits"`
	ToolCount     int      `json:"tool_count"`
	MaxSimilarity float64  `json:"max_similarity"`

	Length         float64 `json:"length"`
	VerbScore      float64 `json:"verb_score"`
	MultiStep      float64 `json:"multi_step"`
	Negation       float64 `json:"negation"`
	ToolCountScore float64 `json:"tool_count_score"`
	Similarity     float64 `json:"similarity"`
}

// Score returns the weighted composite.
func (s Signals) Score() float64 {
	return s.Length*weightLength +
		s.VerbScore*weightVerbs +
		s.MultiStep*weightMultiStep +
		s.Negation*weightNegation +
		s.ToolCountScore*weightToolCount +
		s.Similarity*weightSimilarity
}

// Cloud reports whether the score routes straight to the cloud.
func (s Signals) Cloud() bool {
	return s.Score() >= CloudThreshold
}

func (s Signals) String() string {
	return fmt.Sprintf("score=%.2f length=%.1f(%dw) verbs=%.1f(%d) multi=%.1f neg=%.1f(%d) tools=%.1f(%d) sim=%.1f(%.2f)",
		s.Score(), s.Length, s.WordCount, s.VerbScore, len(s.Verbs), s.MultiStep,
		s.Negation, s.NegationHits, s.ToolCountScore, s.ToolCount, s.Similarity, s.MaxSimilarity)
}

// Score predicts how likely the on-device model is to fail on text with the
// given catalog. Pure and deterministic.
func Score(text string, catalog *tools.Catalog) float64 {
	return Breakdown(text, catalog).Score()
}

// Breakdown computes every preflight signal for text and catalog.
func Breakdown(text string, catalog *tools.Catalog) Signals {
	msg := strings.ToLower(text)
	var s Signals

	s.WordCount = len(strings.Fields(text))
	s.Length = ladder(float64(s.WordCount), []float64{8, 20, 40}, []float64{0, 0.2, 0.5, 0.8}, true)

	s.Verbs = matchVerbs(msg)
	switch n := len(s.Verbs); {
	case n <= 1:
		s.VerbScore = 0
	case n == 2:
		s.VerbScore = 0.8
	default:
		s.VerbScore = 1.0
	}

	if (strings.Contains(msg, " and ") && len(s.Verbs) > 1) || len(s.Verbs) > 1 {
		s.MultiStep = 1.0
	}

	for _, re := range negationPatterns {
		if re.MatchString(msg) {
			s.NegationHits++
		}
	}
	switch {
	case s.NegationHits == 0:
		s.Negation = 0
	case s.NegationHits == 1:
		s.Negation = 0.3
	case s.NegationHits == 2:
		s.Negation = 0.6
	default:
		s.Negation = 0.9
	}

	s.ToolCount = catalog.Len()
	s.ToolCountScore = ladder(float64(s.ToolCount), []float64{2, 5, 10}, []float64{0, 0.2, 0.5, 0.8}, true)

	s.MaxSimilarity = maxToolSimilarity(catalog)
	s.Similarity = ladder(s.MaxSimilarity, []float64{0.2, 0.4, 0.6}, []float64{0, 0.3, 0.6, 0.9}, false)

	return s
}

// ladder maps v onto steps. With inclusive set, v <= bounds[i] picks steps[i];
// otherwise v < bounds[i] does. Values past the last bound take the last step.
func ladder(v float64, bounds, steps []float64, inclusive bool) float64 {
	for i, b := range bounds {
		if (inclusive && v <= b) || (!inclusive && v < b) {
			return steps[i]
		}
	}
	return steps[len(steps)-1]
}

func matchVerbs(msg string) []string {
	var found []string
	for _, m := range verbMatchers {
		if m.re == nil {
			if strings.Contains(msg, m.verb) {
				found = append(found, m.verb)
			}
			continue
		}
		if m.re.MatchString(msg) {
			found = append(found, m.verb)
		}
	}
	return found
}

// maxToolSimilarity is the largest Jaccard similarity between the word sets of
// any two tools' "name description".
func maxToolSimilarity(catalog *tools.Catalog) float64 {
	specs := catalog.Specs()
	sets := make([]map[string]struct{}, len(specs))
	for i, s := range specs {
		sets[i] = wordSet(s.Name + " " + s.Description)
	}

	best := 0.0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			if sim := jaccard(sets[i], sets[j]); sim > best {
				best = sim
			}
		}
	}
	return best
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
