// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/fcrouter/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with secrets redacted",
			RunE: func(*cobra.Command, []string) error {
				if root.jsonOutput {
					return writeJSON(root.out, "config show", root.cfg.Redacted(), nil)
				}
				fmt.Fprintln(root.out, root.cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value, e.g. cloud.provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				value, err := root.cfg.Get(args[0])
				if err != nil {
					return &UsageError{Message: err.Error()}
				}
				if config.IsSecretKey(args[0]) && fmt.Sprint(value) != "" {
					value = "[REDACTED]"
				}
				if root.jsonOutput {
					return writeJSON(root.out, "config get", map[string]any{args[0]: value}, nil)
				}
				fmt.Fprintln(root.out, value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set one value and save the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				path, err := configFilePath(root.configPath)
				if err != nil {
					return err
				}
				// Edit the file contents, not the effective config, so
				// environment overrides are never written to disk.
				onDisk, err := config.LoadRaw(path)
				if err != nil {
					return NewCommandError("config", "set", err)
				}
				if err := onDisk.Set(args[0], args[1]); err != nil {
					return &UsageError{Message: err.Error()}
				}
				check := onDisk.Clone()
				check.SetDefaults()
				if err := check.Validate(); err != nil {
					return err
				}
				if err := saveConfig(path, onDisk); err != nil {
					return NewCommandError("config", "set", err)
				}
				_ = root.cfg.Set(args[0], args[1])
				fmt.Fprintf(root.out, "%s %s updated\n", RenderStatus("ok"), args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List every settable key",
			RunE: func(*cobra.Command, []string) error {
				keys := config.GetAllKeys()
				if root.jsonOutput {
					return writeJSON(root.out, "config keys", keys, nil)
				}
				for _, k := range keys {
					fmt.Fprintln(root.out, k)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			RunE: func(*cobra.Command, []string) error {
				path, err := configFilePath(root.configPath)
				if err != nil {
					return err
				}
				fmt.Fprintln(root.out, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file if none exists",
			RunE: func(*cobra.Command, []string) error {
				path, err := config.ConfigPathTOML()
				if err != nil {
					return err
				}
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(root.out, "%s %s already exists\n", RenderStatus("warn"), path)
					return nil
				}
				if err := config.SaveTOML(config.Default(), path); err != nil {
					return NewCommandError("config", "init", err)
				}
				fmt.Fprintf(root.out, "%s wrote %s\n", RenderStatus("ok"), path)
				return nil
			},
		},
	)
	return cmd
}

// configFilePath returns the --config path or the default TOML location.
func configFilePath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return config.ConfigPathTOML()
}

// saveConfig writes cfg to path in the format its extension names.
func saveConfig(path string, cfg *config.Config) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
