// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const jsonCatalog = `{
  "tools": [
    {
      "name": "set_timer",
      "description": "Set a countdown timer",
      "on_device": true,
      "parameters": {
        "type": "object",
        "properties": {"minutes": {"type": "integer", "description": "Minutes"}},
        "required": ["minutes"]
      }
    },
    {
      "name": "get_weather",
      "description": "Weather",
      "parameters": {
        "type": "object",
        "properties": {
          "location": {"type": "string", "description": "City"},
          "units": {"type": "string", "description": "metric or imperial"}
        },
        "required": ["location"]
      }
    }
  ]
}`

const yamlCatalog = `
tools:
  - name: set_timer
    description: Set a countdown timer
    on_device: true
    parameters:
      type: object
      properties:
        minutes:
          type: integer
          description: Minutes
      required: [minutes]
  - name: get_weather
    description: Weather
    parameters:
      type: object
      properties:
        location:
          type: string
          description: City
        units:
          type: string
          description: metric or imperial
      required: [location]
`

const tomlCatalogDoc = `
[[tools]]
name = "set_timer"
description = "Set a countdown timer"
on_device = true

  [[tools.params]]
  name = "minutes"
  type = "integer"
  description = "Minutes"
  required = true

[[tools]]
name = "get_weather"
description = "Weather"

  [[tools.params]]
  name = "location"
  type = "string"
  description = "City"
  required = true

  [[tools.params]]
  name = "units"
  type = "string"
  description = "metric or imperial"
`

func assertSampleCatalog(t *testing.T, c *Catalog) {
	t.Helper()
	require.Equal(t, []string{"set_timer", "get_weather"}, c.Names())

	timer, _ := c.Lookup("set_timer")
	assert.True(t, timer.OnDevice)
	assert.Equal(t, []string{"minutes"}, timer.Parameters.RequiredNames())

	weather, _ := c.Lookup("get_weather")
	assert.False(t, weather.OnDevice)
	require.Len(t, weather.Parameters.Params, 2)
	assert.Equal(t, "location", weather.Parameters.Params[0].Name)
	assert.Equal(t, "units", weather.Parameters.Params[1].Name)
	assert.False(t, weather.Parameters.Params[1].Required)
}

func TestParse_AllFormats(t *testing.T) {
	cases := map[Format]string{
		FormatJSON: jsonCatalog,
		FormatYAML: yamlCatalog,
		FormatTOML: tomlCatalogDoc,
	}
	for format, doc := range cases {
		t.Run(string(format), func(t *testing.T) {
			c, err := Parse([]byte(doc), format)
			require.NoError(t, err)
			assertSampleCatalog(t, c)
		})
	}
}

func TestParseJSON_BareArray(t *testing.T) {
	doc := `[{"name":"ping","description":"","parameters":{"type":"object","properties":{},"required":[]}}]`
	c, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, c.Names())
}

func TestParseJSON_SchemaViolations(t *testing.T) {
	docs := map[string]string{
		"missing tools":      `{"catalog": []}`,
		"bad param type":     `{"tools":[{"name":"x","parameters":{"type":"object","properties":{"a":{"type":"date"}}}}]}`,
		"empty name":         `{"tools":[{"name":"","parameters":{"type":"object","properties":{}}}]}`,
		"parameters not obj": `{"tools":[{"name":"x","parameters":{"type":"array","properties":{}}}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(doc))
			require.Error(t, err)
			var schemaErr *SchemaError
			assert.True(t, errors.As(err, &schemaErr), "want SchemaError, got %v", err)
		})
	}
}

func TestParseTOML_InvalidType(t *testing.T) {
	doc := `
[[tools]]
name = "x"
  [[tools.params]]
  name = "when"
  type = "datetime"
`
	_, err := ParseTOML([]byte(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidType))
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json": FormatJSON, "b.YAML": FormatYAML, "c.yml": FormatYAML, "d.toml": FormatTOML,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatFromPath("catalog.xml")
	assert.Error(t, err)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.toml", "out.yaml", "out.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, Builtin()))

			c, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, Builtin().Names(), c.Names())
			assert.Equal(t, Builtin().OnDevice().Names(), c.OnDevice().Names())
		})
	}
}

func TestWriteFile_YAMLKeepsParameterOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	spec := ToolSpec{
		Name:        "send_message",
		Description: "Send a message",
		OnDevice:    true,
		Parameters: ParamSchema{Params: []Param{
			{Name: "recipient", Type: TypeString, Description: "Who", Required: true},
			{Name: "message", Type: TypeString, Description: "What"},
			{Name: "attachment", Type: TypeString, Description: "Optional file"},
		}},
	}
	require.NoError(t, WriteFile(path, MustCatalog(spec)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Less(t, strings.Index(text, "recipient:"), strings.Index(text, "message:"))
	assert.Less(t, strings.Index(text, "message:"), strings.Index(text, "attachment:"))

	c, err := LoadFile(path)
	require.NoError(t, err)
	got, ok := c.Lookup("send_message")
	require.True(t, ok)
	assert.True(t, got.OnDevice)
	assert.Equal(t, []string{"recipient"}, got.Parameters.RequiredNames())
	names := make([]string, len(got.Parameters.Params))
	for i, p := range got.Parameters.Params {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"recipient", "message", "attachment"}, names)
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonCatalog), 0644))

	swapped := make(chan *Catalog, 4)
	w, err := NewWatcher(path, WithDebounce(20*time.Millisecond), OnSwap(func(c *Catalog) { swapped <- c }))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 2, w.Catalog().Len())

	updated := `[{"name":"only","description":"","parameters":{"type":"object","properties":{},"required":[]}}]`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	select {
	case c := <-swapped:
		assert.Equal(t, []string{"only"}, c.Names())
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.Equal(t, []string{"only"}, w.Catalog().Names())
}

func TestWatcher_KeepsPreviousOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlCatalog), 0644))

	core, logs := observer.New(zapcore.InfoLevel)
	w, err := NewWatcher(path, WithDebounce(time.Hour), WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, 1, logs.FilterMessage("CATALOG_WATCH_STARTED").Len())

	require.NoError(t, os.WriteFile(path, []byte("tools: [ {name: "), 0644))
	assert.Error(t, w.Reload())
	assert.Equal(t, []string{"set_timer", "get_weather"}, w.Catalog().Names())
	assert.Equal(t, 1, logs.FilterMessage("CATALOG_RELOAD_FAILED").Len())
}

func TestNewWatcher_InitialLoadMustSucceed(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
