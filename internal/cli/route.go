// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fcrouter/internal/router"
)

type routeOptions struct {
	messagesFile string
	explain      bool
	threshold    float64
}

func newRouteCmd(root *rootOptions) *cobra.Command {
	var opts routeOptions

	cmd := &cobra.Command{
		Use:   "route [text...]",
		Short: "Route one request and print the resulting function calls",
		Example: `  fcrouter route "Set an alarm for 7:30 AM"
  fcrouter route --explain "Text Dave I'm late and check the weather"
  fcrouter route --messages conversation.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := routeMessages(args, opts.messagesFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var threshold *float64
			if cmd.Flags().Changed("threshold") {
				if opts.threshold < 0 || opts.threshold > 1 {
					return &UsageError{Message: "--threshold must be between 0 and 1"}
				}
				threshold = &opts.threshold
			}

			app, err := root.app(cmd.Context(), AppOptions{DecisionLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			return runRoute(cmd.Context(), app, root.out, messages, threshold, opts.explain, root.jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&opts.messagesFile, "messages", "m", "", "JSON file holding a message array ('-' for stdin)")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "show preflight signals and the escalation trace")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "confidence threshold passed to the on-device model")
	return cmd
}

// routeResult is the --json payload of route.
type routeResult struct {
	router.Result
	LocationIntent bool            `json:"location_intent"`
	Signals        *router.Signals `json:"signals,omitempty"`
}

func runRoute(ctx context.Context, app *App, w io.Writer, messages []router.Message, threshold *float64, explain, asJSON bool) error {
	userText := router.UserText(messages)
	res := app.Route(ctx, messages, threshold)
	intent := router.DetectLocationIntent(userText)

	var signals router.Signals
	if explain {
		signals = router.Breakdown(userText, app.Catalog.Catalog())
	}

	if asJSON {
		out := routeResult{Result: res, LocationIntent: intent}
		if explain {
			out.Signals = &signals
		}
		return writeJSON(w, "route", out, nil)
	}

	PrintResult(w, "Hybrid", res)
	if intent {
		fmt.Fprintf(w, "%s\n", DimStyle.Render("Location intent detected."))
	}
	if explain {
		PrintExplain(w, signals, res)
	}
	return nil
}

// routeMessages builds the conversation from positional text or a JSON file.
func routeMessages(args []string, file string, stdin io.Reader) ([]router.Message, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	switch {
	case file != "" && text != "":
		return nil, &UsageError{Message: "give either text or --messages, not both"}
	case file == "" && text == "":
		return nil, &UsageError{Message: "nothing to route: pass text or --messages"}
	case file == "":
		return []router.Message{{Role: router.RoleUser, Content: text}}, nil
	}

	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	var messages []router.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, &UsageError{Message: fmt.Sprintf("invalid messages file: %v", err)}
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, &UsageError{Message: fmt.Sprintf("invalid role '%s' at message %d", m.Role, i)}
		}
	}
	if !router.HasUserMessage(messages) {
		return nil, &UsageError{Message: "messages must include at least one user message"}
	}
	return messages, nil
}
