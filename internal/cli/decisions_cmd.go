// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fcrouter/internal/storage"
	"github.com/jeranaias/fcrouter/internal/util"
)

func newDecisionsCmd(root *rootOptions) *cobra.Command {
	var limit int

	openLog := func() (*storage.DecisionLog, error) {
		if !root.cfg.Storage.Enabled {
			return nil, &UsageError{Message: "decision log is disabled (storage.enabled = false)"}
		}
		path, err := root.cfg.DecisionDBPath()
		if err != nil {
			return nil, err
		}
		return storage.Open(path, storage.WithLogger(root.logger.Named("decisions")))
	}

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent routing decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return &UsageError{Message: "--limit must be positive"}
			}
			dl, err := openLog()
			if err != nil {
				return err
			}
			defer dl.Close()

			entries, err := dl.List(cmd.Context(), limit)
			if root.jsonOutput {
				return writeJSON(root.out, "decisions", entries, err)
			}
			if err != nil {
				return NewCommandError("decisions", "list", err)
			}
			printDecisions(root.out, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of decisions to show")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one decision with its trace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dl, err := openLog()
				if err != nil {
					return err
				}
				defer dl.Close()

				e, err := dl.Get(cmd.Context(), args[0])
				if root.jsonOutput || err != nil {
					return writeJSON(root.out, "decisions show", e, err)
				}
				printDecision(root.out, e)
				return nil
			},
		},
		&cobra.Command{
			Use:   "summary",
			Short: "Aggregate decisions by routing path",
			RunE: func(cmd *cobra.Command, _ []string) error {
				dl, err := openLog()
				if err != nil {
					return err
				}
				defer dl.Close()

				paths, err := dl.Summary(cmd.Context())
				if root.jsonOutput {
					return writeJSON(root.out, "decisions summary", paths, err)
				}
				if err != nil {
					return NewCommandError("decisions", "summary", err)
				}
				fmt.Fprintf(root.out, "%s\n", TitleStyle.Render("Decisions by path"))
				for _, p := range paths {
					fmt.Fprintf(root.out, "  %-18s %6d  avg score %.2f  avg %s  empty %d\n",
						p.Path, p.Count, p.AvgScore, util.FormatMs(p.AvgTimeMs), p.EmptyResult)
				}
				return nil
			},
		},
	)
	return cmd
}

func printDecisions(w io.Writer, entries []storage.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No decisions recorded yet."))
		return
	}
	// id, time, path, duration and calls take 80 columns
	textWidth := max(GetTerminalWidth()-80, 24)
	for _, e := range entries {
		names := make([]string, len(e.FunctionCalls))
		for i, c := range e.FunctionCalls {
			names[i] = c.Name
		}
		calls := strings.Join(names, ",")
		if calls == "" {
			calls = "-"
		}
		fmt.Fprintf(w, "%s  %s  %s %9s  %s  %s\n",
			DimStyle.Render(e.ID[:min(8, len(e.ID))]),
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			util.PadRight(string(e.Path), 16),
			util.FormatMs(e.TotalTimeMs),
			HighlightStyle.Render(util.PadRight(util.TruncateWidth(calls, 24), 24)),
			util.TruncateWidth(e.UserText, textWidth),
		)
	}
}

func printDecision(w io.Writer, e storage.Entry) {
	fmt.Fprintf(w, "%s%s\n", RenderLabel("ID:"), e.ID)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Time:"), e.CreatedAt.Local().Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Request:"), e.UserText)
	fmt.Fprintf(w, "%s%.2f (%s)\n", RenderLabel("Score:"), e.Score, e.Signals)
	fmt.Fprintf(w, "%s%t\n", RenderLabel("Location intent:"), e.LocationIntent)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Wall time:"), util.FormatMs(e.WallTimeMs))

	res := e.Result()
	PrintResult(w, "Result", res)
	PrintExplain(w, e.Signals, res)
}
