// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fcrouter/internal/tools"
	"github.com/jeranaias/fcrouter/internal/util"
)

func newToolsCmd(root *rootOptions) *cobra.Command {
	var onDevice bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the active tool catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, closer, err := catalogSource(root.cfg.Catalog, false, root.logger)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			catalog := source.Catalog()
			if onDevice {
				catalog = catalog.OnDevice()
			}
			if root.jsonOutput {
				return writeJSON(root.out, "tools", catalog, nil)
			}
			printCatalog(root.out, catalog)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onDevice, "on-device", false, "only tools that can run on-device")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate <file>",
			Short: "Check a catalog file (JSON, YAML or TOML)",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				catalog, err := tools.LoadFile(args[0])
				if err != nil {
					return NewCommandError("tools", "validate", err)
				}
				fmt.Fprintf(root.out, "%s %s: %d tools\n", RenderStatus("ok"), args[0], catalog.Len())
				return nil
			},
		},
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write the active catalog to a file; the extension picks the format",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				source, closer, err := catalogSource(root.cfg.Catalog, false, root.logger)
				if err != nil {
					return err
				}
				if closer != nil {
					defer closer.Close()
				}
				if err := tools.WriteFile(args[0], source.Catalog()); err != nil {
					return NewCommandError("tools", "export", err)
				}
				fmt.Fprintf(root.out, "Wrote %d tools to %s\n", source.Catalog().Len(), args[0])
				return nil
			},
		},
	)
	return cmd
}

func printCatalog(w io.Writer, c *tools.Catalog) {
	fmt.Fprintf(w, "%s\n", TitleStyle.Render(fmt.Sprintf("%d tools", c.Len())))
	descWidth := max(GetTerminalWidth()-34, 20)
	for _, spec := range c.Specs() {
		where := CloudStyle.Render(util.PadRight("cloud", 7))
		if spec.OnDevice {
			where = SuccessStyle.Render(util.PadRight("device", 7))
		}

		params := make([]string, 0, len(spec.Parameters.Params))
		for _, p := range spec.Parameters.Params {
			name := p.Name + ":" + string(p.Type)
			if !p.Required {
				name += "?"
			}
			params = append(params, name)
		}

		fmt.Fprintf(w, "  %s %s %s\n",
			HighlightStyle.Render(util.PadRight(spec.Name, 22)),
			where,
			DimStyle.Render(util.TruncateWidth(spec.Description, descWidth)))
		if len(params) > 0 {
			fmt.Fprintf(w, "  %-22s %s\n", "", strings.Join(params, ", "))
		}
	}
}
