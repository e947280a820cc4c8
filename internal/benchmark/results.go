// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/telemetry"
	"github.com/jeranaias/fcrouter/internal/tools"
	"github.com/jeranaias/fcrouter/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result contains the complete output of one benchmark run.
type Result struct {
	Label         string        `json:"label"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	Cases         []CaseResult  `json:"cases"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	OnDevice      int           `json:"on_device"`
	Accuracy      float64       `json:"accuracy"`
	OnDeviceRatio float64       `json:"on_device_ratio"`
	AvgTimeMs     float64       `json:"avg_time_ms"`
}

// CaseResult contains the outcome of a single case.
type CaseResult struct {
	Name        string               `json:"name"`
	Prompt      string               `json:"prompt"`
	Status      Status               `json:"status"`
	Source      string               `json:"source,omitempty"`
	Path        telemetry.Path       `json:"path,omitempty"`
	Score       float64              `json:"score"`
	TotalTimeMs float64              `json:"total_time_ms"` // reported by the router
	WallTime    time.Duration        `json:"wall_time"`
	Calls       []tools.FunctionCall `json:"calls"`
	Error       string               `json:"error,omitempty"`
}

// Status indicates the outcome of a case.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// =============================================================================
// RESULT STORAGE
// =============================================================================

// Storage handles saving and loading benchmark results.
type Storage struct {
	dir string
}

// NewStorage creates a storage instance under the config directory
// (~/.fcrouter/benchmarks by default).
func NewStorage() (*Storage, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStorageWithDir(filepath.Join(dir, "benchmarks"))
}

// NewStorageWithDir creates a storage instance with a custom directory.
func NewStorageWithDir(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create benchmark directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Storage) Dir() string {
	return s.dir
}

// Save writes a result to disk and returns the file name.
func (s *Storage) Save(result *Result) (string, error) {
	stamp := result.StartTime
	if stamp.IsZero() {
		stamp = time.Now()
	}
	filename := fmt.Sprintf("%s_%s.json", sanitizeFilename(result.Label), stamp.Format("20060102-150405.000"))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := util.AtomicWriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	return filename, nil
}

// Load reads a result from disk.
func (s *Storage) Load(filename string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// List returns all result files, newest first.
func (s *Storage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	type file struct {
		name string
		mod  time.Time
	}
	files := make([]file, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: entry.Name(), mod: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].name > files[j].name
		}
		return files[i].mod.After(files[j].mod)
	})

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// Latest returns the most recent result for a label.
func (s *Storage) Latest(label string) (*Result, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	prefix := sanitizeFilename(label) + "_"
	for _, file := range files {
		if strings.HasPrefix(file, prefix) {
			return s.Load(file)
		}
	}
	return nil, fmt.Errorf("no results found for %s", label)
}

// sanitizeFilename replaces characters that aren't safe in file names.
func sanitizeFilename(name string) string {
	if name == "" {
		return "run"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', ' ', '*', '?', '<', '>', '|', '"':
			return '_'
		}
		return r
	}, name)
}

// =============================================================================
// SUMMARY GENERATION
// =============================================================================

// Summary returns a text summary of the result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Run: %s\n"+
			"Duration: %s\n"+
			"Cases: %d passed, %d failed\n"+
			"Accuracy: %s\n"+
			"On-device: %s\n"+
			"Avg time: %s",
		r.Label,
		FormatDuration(r.Duration),
		r.Passed,
		r.Failed,
		util.FormatPercent(r.Accuracy),
		util.FormatPercent(r.OnDeviceRatio),
		util.FormatMs(r.AvgTimeMs),
	)
}

// Failures returns the cases that did not pass.
func (r *Result) Failures() []CaseResult {
	var out []CaseResult
	for _, c := range r.Cases {
		if c.Status != StatusPassed {
			out = append(out, c)
		}
	}
	return out
}
