// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jeranaias/fcrouter/internal/router"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope every command prints with --json.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// writeJSON prints data, or err when non-nil, as a JSONResponse and returns err.
func writeJSON(w io.Writer, command string, data any, err error) error {
	if err != nil {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return err
	}
	return NewJSONResponse(command, data).Write(w)
}

// =============================================================================
// RESULT RENDERING
// =============================================================================

// PrintResult renders a routing result: source, confidences, total time and
// each call with indented arguments.
func PrintResult(w io.Writer, label string, res router.Result) {
	fmt.Fprintf(w, "\n%s\n\n", TitleStyle.Render("=== "+label+" ==="))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Source:"), RenderSource(res.Source, res.Local()))
	if res.Confidence != nil {
		fmt.Fprintf(w, "%s%.4f\n", RenderLabel("Confidence:"), *res.Confidence)
	}
	if res.LocalConfidence != nil {
		fmt.Fprintf(w, "%s%.4f\n", RenderLabel("Local confidence:"), *res.LocalConfidence)
	}
	fmt.Fprintf(w, "%s%.2fms\n", RenderLabel("Total time:"), res.TotalTimeMs)

	if len(res.FunctionCalls) == 0 {
		fmt.Fprintf(w, "%s\n", WarningStyle.Render("No function calls."))
		return
	}
	for _, call := range res.FunctionCalls {
		args, err := json.MarshalIndent(call.Arguments, "", "  ")
		if err != nil {
			args = []byte(fmt.Sprint(call.Arguments))
		}
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Function:"), HighlightStyle.Render(call.Name))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Arguments:"), args)
	}
}

// PrintExplain renders the preflight signals and the controller trace.
func PrintExplain(w io.Writer, signals router.Signals, res router.Result) {
	fmt.Fprintf(w, "\n%s\n", SectionStyle.Render("Preflight"))
	row := func(name string, value float64, detail string) {
		fmt.Fprintf(w, "  %s%-6.2f %s\n", RenderLabel(name, 14), value, DimStyle.Render(detail))
	}
	row("length", signals.Length, fmt.Sprintf("%d words", signals.WordCount))
	row("verbs", signals.VerbScore, fmt.Sprintf("%v", signals.Verbs))
	row("multi-step", signals.MultiStep, "")
	row("negation", signals.Negation, fmt.Sprintf("%d hits", signals.NegationHits))
	row("tool count", signals.ToolCountScore, fmt.Sprintf("%d tools", signals.ToolCount))
	row("similarity", signals.Similarity, fmt.Sprintf("max jaccard %.2f", signals.MaxSimilarity))

	decision := SuccessStyle.Render("on-device")
	if signals.Cloud() {
		decision = CloudStyle.Render("cloud")
	}
	fmt.Fprintf(w, "  %s%-6.2f %s (threshold %.2f)\n", RenderLabel("score", 14), signals.Score(), decision, router.CloudThreshold)

	fmt.Fprintf(w, "\n%s\n", SectionStyle.Render("Trace"))
	for i, step := range res.Trace {
		line := fmt.Sprintf("  %d. %-16s calls=%d", i+1, step.State, step.Calls)
		if step.ElapsedMs > 0 {
			line += fmt.Sprintf(" time=%.2fms", step.ElapsedMs)
		}
		if step.Confidence > 0 {
			line += fmt.Sprintf(" conf=%.4f", step.Confidence)
		}
		if step.Malformed {
			line += " repaired"
		}
		if step.Verdict != nil {
			style := SuccessStyle
			if !step.Verdict.Valid {
				style = ErrorStyle
			}
			line += " " + style.Render(step.Verdict.String())
		}
		fmt.Fprintln(w, line)
	}
}
