// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"fmt"
	"math"
	"strings"

	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// CASE DEFINITIONS
// =============================================================================

// Case is one named routing request with the calls it should produce.
type Case struct {
	Name        string
	Description string
	Messages    []router.Message
	Catalog     *tools.Catalog
	Expect      []ExpectedCall
}

// ExpectedCall is a call a case must produce. Only the listed arguments are
// checked; strings compare case-insensitively and numbers by value.
type ExpectedCall struct {
	Name      string
	Arguments map[string]any
}

// Prompt returns the case's user text.
func (c Case) Prompt() string {
	return router.UserText(c.Messages)
}

func userMessage(text string) []router.Message {
	return []router.Message{{Role: router.RoleUser, Content: text}}
}

// =============================================================================
// STANDARD CASES
// =============================================================================

// StandardCases returns the routing benchmark suite. Each case carries the
// built-in tools it needs, so results are comparable across catalogs.
func StandardCases() []Case {
	builtin := tools.Builtin()
	return []Case{
		{
			Name:        "alarm_10am",
			Description: "single alarm, exact hour",
			Messages:    userMessage("Set an alarm for 10 AM."),
			Catalog:     builtin.Subset("set_alarm"),
			Expect:      []ExpectedCall{{Name: "set_alarm", Arguments: map[string]any{"hour": 10, "minute": 0}}},
		},
		{
			Name:        "alarm_9am",
			Description: "single alarm, exact hour",
			Messages:    userMessage("Set an alarm for 9 AM."),
			Catalog:     builtin.Subset("set_alarm"),
			Expect:      []ExpectedCall{{Name: "set_alarm", Arguments: map[string]any{"hour": 9, "minute": 0}}},
		},
		{
			Name:        "alarm_6am",
			Description: "alarm phrased as a wake-up request",
			Messages:    userMessage("Wake me up at 6 AM."),
			Catalog:     builtin.Subset("set_alarm"),
			Expect:      []ExpectedCall{{Name: "set_alarm", Arguments: map[string]any{"hour": 6, "minute": 0}}},
		},
		{
			Name:        "reminder_meeting",
			Description: "reminder with a grounded title and time",
			Messages:    userMessage("Remind me about the meeting at 3:00 PM."),
			Catalog:     builtin.Subset("create_reminder"),
			Expect:      []ExpectedCall{{Name: "create_reminder", Arguments: map[string]any{"time": "3:00 PM"}}},
		},
		{
			Name:        "timer_7min",
			Description: "countdown timer",
			Messages:    userMessage("Set a timer for 7 minutes."),
			Catalog:     builtin.Subset("set_timer"),
			Expect:      []ExpectedCall{{Name: "set_timer", Arguments: map[string]any{"minutes": 7}}},
		},
		{
			Name:        "alarm_730",
			Description: "alarm with minutes, full catalog",
			Messages:    userMessage("Set an alarm for 7:30 AM"),
			Catalog:     builtin,
			Expect:      []ExpectedCall{{Name: "set_alarm", Arguments: map[string]any{"hour": 7, "minute": 30}}},
		},
		{
			Name:        "play_bohemian",
			Description: "music playback, full catalog",
			Messages:    userMessage("Play Bohemian Rhapsody"),
			Catalog:     builtin,
			Expect:      []ExpectedCall{{Name: "play_music", Arguments: map[string]any{"song": "Bohemian Rhapsody"}}},
		},
		{
			Name:        "timer_10min",
			Description: "countdown timer, full catalog",
			Messages:    userMessage("Set a timer for 10 minutes"),
			Catalog:     builtin,
			Expect:      []ExpectedCall{{Name: "set_timer", Arguments: map[string]any{"minutes": 10}}},
		},
		{
			Name:        "text_dave_weather",
			Description: "two intents in one request",
			Messages:    userMessage("Text Dave saying I'll be late and check the weather in Chicago."),
			Catalog:     builtin.Subset("get_weather", "set_timer", "send_message", "play_music"),
			Expect: []ExpectedCall{
				{Name: "send_message", Arguments: map[string]any{"recipient": "Dave"}},
				{Name: "get_weather", Arguments: map[string]any{"location": "Chicago"}},
			},
		},
	}
}

// =============================================================================
// MATCHING
// =============================================================================

// Check compares produced calls against the expectations. Every expected call
// must be matched by a distinct produced call; extra calls fail the case. The
// returned reason is empty on success.
func Check(expect []ExpectedCall, got []tools.FunctionCall) (bool, string) {
	if len(got) != len(expect) {
		return false, fmt.Sprintf("expected %d call(s), got %d", len(expect), len(got))
	}

	used := make([]bool, len(got))
	for _, want := range expect {
		found := false
		var lastReason string
		for i, call := range got {
			if used[i] || call.Name != want.Name {
				continue
			}
			if reason := matchArguments(want.Arguments, call.Arguments); reason != "" {
				lastReason = reason
				continue
			}
			used[i] = true
			found = true
			break
		}
		if !found {
			if lastReason != "" {
				return false, fmt.Sprintf("%s: %s", want.Name, lastReason)
			}
			return false, fmt.Sprintf("missing call %s", want.Name)
		}
	}
	return true, ""
}

func matchArguments(want, got map[string]any) string {
	for key, w := range want {
		g, ok := got[key]
		if !ok {
			return fmt.Sprintf("missing argument %q", key)
		}
		if !valueMatches(w, g) {
			return fmt.Sprintf("argument %q: want %v, got %v", key, w, g)
		}
	}
	return ""
}

func valueMatches(want, got any) bool {
	if wn, ok := number(want); ok {
		gn, ok := number(got)
		return ok && math.Abs(wn-gn) < 1e-9
	}
	ws, ok := want.(string)
	if !ok {
		return fmt.Sprint(want) == fmt.Sprint(got)
	}
	gs, ok := got.(string)
	return ok && strings.EqualFold(strings.TrimSpace(ws), strings.TrimSpace(gs))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
