// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fcrouter/internal/ollama"
	"github.com/jeranaias/fcrouter/internal/util"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed on the Ollama server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := ollama.NewClientWithConfig(&ollama.ClientConfig{
				BaseURL:      root.cfg.Local.OllamaURL,
				Timeout:      root.cfg.LocalTimeout(),
				DefaultModel: root.cfg.Local.OllamaModel,
			})
			models, err := client.ListModels(cmd.Context())
			if root.jsonOutput {
				return writeJSON(root.out, "models", models, err)
			}
			if err != nil {
				return NewCommandError("models", "list", err)
			}
			printModels(root.out, models, client.GetDefaultModel())
			return nil
		},
	}
}

func printModels(w io.Writer, models []ollama.ModelInfo, configured string) {
	if len(models) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No models installed. Run: ollama pull "+configured))
		return
	}

	found := false
	for _, m := range models {
		marker := "  "
		name := util.PadRight(util.TruncateWidth(m.Name, 32), 32)
		if m.Matches(configured) {
			found = true
			marker = SuccessStyle.Render("* ")
			name = HighlightStyle.Render(name)
		}
		fmt.Fprintf(w, "%s%s %s %s %s\n", marker, name,
			util.PadRight(m.FormatSize(), 10),
			util.PadRight(m.Details.ParameterSize, 8),
			DimStyle.Render(m.Details.QuantizationLevel))
	}
	if !found {
		fmt.Fprintf(w, "%s configured model %s is not installed\n", RenderStatus("warn"), configured)
	}
}
