// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/benchmark"
	"github.com/jeranaias/fcrouter/internal/util"
)

type benchOptions struct {
	cases  []string
	noSave bool
}

func newBenchCmd(root *rootOptions) *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the routing benchmark against the configured adapters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cases, err := selectCases(opts.cases)
			if err != nil {
				return err
			}

			app, err := root.app(cmd.Context(), AppOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			runner := benchmark.NewRunner(app.Controller, app.Logger.Named("bench"))
			if !root.jsonOutput {
				fmt.Fprintf(root.out, "%s\n%s\n", TitleStyle.Render("Routing benchmark: "+app.EngineLabel()), RenderSeparator())
				runner.OnCase = func(cr benchmark.CaseResult) { printCase(root.out, cr) }
			}

			result, runErr := runner.Run(cmd.Context(), app.EngineLabel(), cases)

			var saved string
			if !opts.noSave {
				store, err := benchmark.NewStorage()
				if err == nil {
					saved, err = store.Save(result)
				}
				if err != nil {
					app.Logger.Warn("BENCHMARK_SAVE_FAILED", zap.Error(err))
				} else {
					saved = filepath.Join(store.Dir(), saved)
				}
			}

			if root.jsonOutput {
				if err := writeJSON(root.out, "bench", result, runErr); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(root.out, "%s\n%s\n", RenderSeparator(), result.Summary())
				if saved != "" {
					fmt.Fprintf(root.out, "%s\n", DimStyle.Render("Saved to "+saved))
				}
			}

			if runErr != nil {
				return runErr
			}
			if result.Failed > 0 {
				return &CommandError{Command: "bench", Err: fmt.Errorf("%d of %d cases failed", result.Failed, len(result.Cases)), Code: ExitBenchFailed}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.cases, "case", nil, "run only the named cases (repeatable)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not write results to ~/.fcrouter/benchmarks")
	return cmd
}

// selectCases filters the standard suite by name, keeping suite order.
func selectCases(names []string) ([]benchmark.Case, error) {
	all := benchmark.StandardCases()
	if len(names) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}

	var out []benchmark.Case
	for _, c := range all {
		if want[c.Name] {
			out = append(out, c)
			delete(want, c.Name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for n := range want {
			unknown = append(unknown, n)
		}
		return nil, &UsageError{Message: "unknown benchmark case(s): " + strings.Join(unknown, ", ")}
	}
	return out, nil
}

func printCase(w io.Writer, cr benchmark.CaseResult) {
	status := RenderStatus(string(cr.Status))
	line := fmt.Sprintf("%s %s %s %10s", status,
		util.PadRight(cr.Name, 18),
		util.PadRight(util.TruncateWidth(cr.Source, 30), 30),
		util.FormatMs(cr.TotalTimeMs))
	fmt.Fprintln(w, line)
	if cr.Error != "" {
		fmt.Fprintf(w, "       %s\n", DimStyle.Render(cr.Error))
	}
}
