// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears credentials
// inherited from the developer's shell.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FCROUTER_HOME", dir)
	for _, name := range []string{
		"GEMINI_API_KEY", "FCROUTER_GEMINI_KEY", "OPENAI_API_KEY", "FCROUTER_OPENAI_KEY",
		"FCROUTER_CLOUD_PROVIDER", "FCROUTER_LOCAL_ENGINE", "FCROUTER_ADDR", "FCROUTER_AUTH_TOKEN",
		"FCROUTER_LOG_LEVEL", "FCROUTER_LOG_FORMAT", "FCROUTER_CONFIDENCE_THRESHOLD",
	} {
		t.Setenv(name, "")
	}
	return dir
}

// =============================================================================
// DEFAULTS
// =============================================================================

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if cfg.Version == "" {
		t.Error("Default config should have a version")
	}
	if cfg.Local.Engine != "ollama" {
		t.Errorf("Expected default engine 'ollama', got '%s'", cfg.Local.Engine)
	}
	if cfg.Local.MaxTokens != 256 {
		t.Errorf("Expected default max tokens 256, got %d", cfg.Local.MaxTokens)
	}
	if cfg.Cloud.Provider != "gemini" || cfg.Cloud.GeminiModel != "gemini-2.5-flash" {
		t.Errorf("Unexpected cloud defaults: %s/%s", cfg.Cloud.Provider, cfg.Cloud.GeminiModel)
	}
	if cfg.Routing.ConfidenceThreshold != 0 {
		t.Errorf("Expected zero confidence threshold, got %v", cfg.Routing.ConfidenceThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Local.Engine = "BRIDGE"
	cfg.SetDefaults()

	assert.Equal(t, "bridge", cfg.Local.Engine)
	assert.Equal(t, "gemini", cfg.Cloud.Provider)
	assert.Equal(t, 3, cfg.Cloud.MaxRetries)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.Equal(t, int64(1<<20), cfg.Server.BodyLimitBytes)
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// VALIDATION
// =============================================================================

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{name: "valid default config", mutate: func(c *Config) {}},
		{name: "threshold above one", mutate: func(c *Config) { c.Routing.ConfidenceThreshold = 1.5 }, wantField: "routing.confidence_threshold"},
		{name: "threshold at one", mutate: func(c *Config) { c.Routing.ConfidenceThreshold = 1 }},
		{name: "unknown engine", mutate: func(c *Config) { c.Local.Engine = "llamafile" }, wantField: "local.engine"},
		{name: "bad ollama url", mutate: func(c *Config) { c.Local.OllamaURL = "localhost:11434" }, wantField: "local.ollama_url"},
		{name: "bridge url only checked for bridge", mutate: func(c *Config) { c.Local.BridgeURL = "" }},
		{name: "bad bridge url", mutate: func(c *Config) { c.Local.Engine = "bridge"; c.Local.BridgeURL = "ftp://x" }, wantField: "local.bridge_url"},
		{name: "unknown provider", mutate: func(c *Config) { c.Cloud.Provider = "anthropic" }, wantField: "cloud.provider"},
		{name: "openai without model", mutate: func(c *Config) { c.Cloud.Provider = "openai"; c.Cloud.OpenAIModel = "" }, wantField: "cloud.openai_model"},
		{name: "retries out of range", mutate: func(c *Config) { c.Cloud.MaxRetries = 0 }, wantField: "cloud.max_retries"},
		{name: "negative cloud rate", mutate: func(c *Config) { c.Cloud.RateLimit = -1 }, wantField: "cloud.rate_limit"},
		{name: "addr without port", mutate: func(c *Config) { c.Server.Addr = "localhost" }, wantField: "server.addr"},
		{name: "negative max entries", mutate: func(c *Config) { c.Storage.MaxEntries = -1 }, wantField: "storage.max_entries"},
		{name: "zero max entries keeps everything", mutate: func(c *Config) { c.Storage.MaxEntries = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantField: "log.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantField: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "want ValidateErrors, got %v", err)
			assert.Equal(t, tt.wantField, verrs[0].Field)
		})
	}
}

func TestValidateErrors_Error(t *testing.T) {
	errs := ValidateErrors{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}
	if got := errs.Error(); got != "a: bad; b: worse" {
		t.Errorf("Error() = %q", got)
	}
	if got := (ValidateErrors{}).Error(); got != "no validation errors" {
		t.Errorf("empty Error() = %q", got)
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	c := Default()
	c.Local.Engine = "x"
	c.Cloud.Provider = "y"
	c.Log.Level = "z"

	var verrs ValidateErrors
	require.True(t, errors.As(c.Validate(), &verrs))
	assert.Len(t, verrs, 3)
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "generic")
	t.Setenv("FCROUTER_GEMINI_KEY", "specific")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FCROUTER_LOCAL_ENGINE", "bridge")
	t.Setenv("FCROUTER_ADDR", "0.0.0.0:9000")
	t.Setenv("FCROUTER_CONFIDENCE_THRESHOLD", "0.7")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "specific", cfg.Cloud.GeminiKey)
	assert.Equal(t, "sk-test", cfg.Cloud.OpenAIKey)
	assert.Equal(t, "bridge", cfg.Local.Engine)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.InDelta(t, 0.7, cfg.Routing.ConfidenceThreshold, 1e-9)
}

func TestConfig_ApplyEnvOverrides_IgnoresBadFloat(t *testing.T) {
	isolate(t)
	t.Setenv("FCROUTER_CONFIDENCE_THRESHOLD", "high")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Zero(t, cfg.Routing.ConfidenceThreshold)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FCROUTER_OLLAMA_MODEL=from-dotenv\n"), 0600))
	t.Setenv("FCROUTER_OLLAMA_MODEL", "")
	os.Unsetenv("FCROUTER_OLLAMA_MODEL")

	t.Chdir(t.TempDir())
	require.NoError(t, LoadDotEnv())
	assert.Equal(t, "from-dotenv", os.Getenv("FCROUTER_OLLAMA_MODEL"))
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Local, cfg.Local)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Cloud.Provider = "openai"
	cfg.Cloud.OpenAIKey = "sk-secret"
	cfg.Catalog.Path = "/etc/fcrouter/tools.yaml"
	cfg.Routing.ConfidenceThreshold = 0.7
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# fcrouter configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PrefersTOML(t *testing.T) {
	dir := isolate(t)

	jsonCfg := Default()
	jsonCfg.Local.OllamaModel = "from-json"
	require.NoError(t, SaveJSON(jsonCfg, filepath.Join(dir, "config.json")))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-json", cfg.Local.OllamaModel)

	tomlCfg := Default()
	tomlCfg.Local.OllamaModel = "from-toml"
	require.NoError(t, SaveTOML(tomlCfg, filepath.Join(dir, "config.toml")))

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from-toml", cfg.Local.OllamaModel)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cloud]\nprovider = \"openai\"\n"), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Cloud.Provider)
	assert.Equal(t, "ollama", cfg.Local.Engine)

	// loading tightens permissions
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[local]\nengine = \"gpu\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	var verrs ValidateErrors
	assert.True(t, errors.As(err, &verrs))
}

// =============================================================================
// GET / SET
// =============================================================================

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("cloud.provider")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "gemini" {
		t.Errorf("Get('cloud.provider') = %v, want 'gemini'", val)
	}

	tests := []struct {
		key   string
		value interface{}
		want  interface{}
	}{
		{"cloud.provider", "openai", "openai"},
		{"cloud.max_retries", "5", 5},
		{"routing.confidence_threshold", "0.25", 0.25},
		{"catalog.watch", "no", false},
		{"storage.enabled", true, true},
		{"storage.max_entries", "500", 500},
		{"server.body_limit_bytes", "2048", int64(2048)},
		{"local.max-tokens", 128, 128},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, cfg.Set(tt.key, tt.value))
			got, err := cfg.Get(strings.ReplaceAll(tt.key, "-", "_"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "invalid.key", "cloud", "cloud.provider.name", "cloud.nope"} {
		if _, err := cfg.Get(bad); err == nil {
			t.Errorf("Get(%q) should return error", bad)
		}
	}
	if err := cfg.Set("cloud.max_retries", "many"); err == nil {
		t.Error("Set() with non-integer should return error")
	}
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "version")
	assert.Contains(t, keys, "routing.confidence_threshold")
	assert.Contains(t, keys, "cloud.gemini_key")
	assert.Contains(t, keys, "log.format")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

// =============================================================================
// COPY & DISPLAY
// =============================================================================

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Version = "original"

	clone := original.Clone()
	clone.Version = "cloned"
	clone.Cloud.GeminiKey = "k"

	if original.Version != "original" || original.Cloud.GeminiKey != "" {
		t.Error("Clone should create an independent copy")
	}
}

func TestConfig_StringRedacts(t *testing.T) {
	cfg := Default()
	cfg.Cloud.GeminiKey = "AIza-secret"
	cfg.Server.AuthToken = "tok-secret"

	s := cfg.String()
	assert.NotContains(t, s, "AIza-secret")
	assert.NotContains(t, s, "tok-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "AIza-secret", cfg.Cloud.GeminiKey, "String must not mutate the receiver")

	assert.True(t, IsSecretKey("cloud.openai_key"))
	assert.False(t, IsSecretKey("cloud.provider"))
}

func TestConfig_Derived(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	assert.Equal(t, "", cfg.CloudKey())
	cfg.Cloud.GeminiKey = "g"
	cfg.Cloud.OpenAIKey = "o"
	assert.Equal(t, "g", cfg.CloudKey())
	cfg.Cloud.Provider = "openai"
	assert.Equal(t, "o", cfg.CloudKey())

	p, err := cfg.DecisionDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "decisions.db"), p)

	assert.Equal(t, int64(30), int64(cfg.LocalTimeout().Seconds()))
}

func TestLoadRaw_SkipsEnvOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("GEMINI_API_KEY", "from-env")

	raw, err := LoadRaw(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), raw)

	path := filepath.Join(dir, "config.toml")
	cfg := Default()
	cfg.Local.OllamaModel = "custom"
	require.NoError(t, SaveTOML(cfg, path))

	raw, err = LoadRaw(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", raw.Local.OllamaModel)
	assert.Empty(t, raw.Cloud.GeminiKey, "env keys must not leak into the file copy")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", loaded.Cloud.GeminiKey)
}
