// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/util"
)

var replCommands = []string{"/explain", "/threshold", "/tools", "/stats", "/help", "/quit"}

func newReplCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Route requests interactively, one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := RequiresTTY("run the repl"); err != nil {
				return err
			}

			app, err := root.app(cmd.Context(), AppOptions{Watch: true, DecisionLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			input := newLineReader()
			defer input.Close()

			session := &replSession{app: app, out: root.out}
			fmt.Fprintf(root.out, "%s\n%s\n",
				TitleStyle.Render("fcrouter repl: "+app.EngineLabel()+" / "+app.Config.Cloud.Provider),
				DimStyle.Render("Type a request to route it. /help lists commands, Ctrl+D exits."))

			for {
				line, err := input.ReadInput("route> ")
				if err != nil {
					fmt.Fprintln(root.out)
					session.printStats()
					return nil
				}
				if !session.handle(cmd.Context(), line) {
					session.printStats()
					return nil
				}
			}
		},
	}
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader provides history and line editing for the repl.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(s string) []string {
		if !strings.HasPrefix(s, "/") {
			return nil
		}
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, s) {
				out = append(out, c)
			}
		}
		return out
	})

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "repl_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput reads one line. Ctrl+C and Ctrl+D both return an error.
func (r *lineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (r *lineReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

type replSession struct {
	app       *App
	out       io.Writer
	explain   bool
	threshold *float64
}

// handle processes one input line. It returns false when the session ends.
func (s *replSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if strings.HasPrefix(line, "/") {
		cont, err := s.command(line)
		if err != nil {
			fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		return cont
	}

	messages := []router.Message{{Role: router.RoleUser, Content: line}}
	if err := runRoute(ctx, s.app, s.out, messages, s.threshold, s.explain, false); err != nil {
		fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	}
	return true
}

func (s *replSession) command(line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return false, nil
	case "/explain":
		s.explain = !s.explain
		fmt.Fprintf(s.out, "explain %s\n", onOff(s.explain))
	case "/threshold":
		if len(fields) < 2 {
			s.threshold = nil
			fmt.Fprintln(s.out, "threshold cleared")
			return true, nil
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || v < 0 || v > 1 {
			return true, fmt.Errorf("threshold must be a number between 0 and 1")
		}
		s.threshold = &v
		fmt.Fprintf(s.out, "threshold %.2f\n", v)
	case "/tools":
		printCatalog(s.out, s.app.Catalog.Catalog())
	case "/stats":
		s.printStats()
	case "/help":
		fmt.Fprintln(s.out, strings.Join(replCommands, "  "))
	default:
		return true, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return true, nil
}

func (s *replSession) printStats() {
	sum := s.app.Stats.Snapshot().Summary()
	if sum.Total == 0 {
		return
	}
	fmt.Fprintf(s.out, "%s %d routed, %s on-device, %d escalations, avg %s\n",
		SectionStyle.Render("Session:"), sum.Total, util.FormatPercent(sum.OnDeviceRatio),
		sum.Escalations, util.FormatMs(sum.AvgTimeMs))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
