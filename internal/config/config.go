// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"github.com/jeranaias/fcrouter/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete fcrouter configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Routing RoutingConfig `toml:"routing" json:"routing"`
	Local   LocalConfig   `toml:"local" json:"local"`
	Cloud   CloudConfig   `toml:"cloud" json:"cloud"`
	Catalog CatalogConfig `toml:"catalog" json:"catalog"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// RoutingConfig contains request-level routing settings.
type RoutingConfig struct {
	// ConfidenceThreshold is forwarded to the on-device runtime. Routing
	// decisions never read it.
	ConfidenceThreshold float64 `toml:"confidence_threshold" json:"confidence_threshold"`
	// Trace includes the visited states in printed results.
	Trace bool `toml:"trace" json:"trace"`
}

// LocalConfig contains on-device engine configuration.
type LocalConfig struct {
	// Engine is "ollama" or "bridge".
	Engine      string `toml:"engine" json:"engine"`
	OllamaURL   string `toml:"ollama_url" json:"ollama_url"`
	OllamaModel string `toml:"ollama_model" json:"ollama_model"`
	BridgeURL   string `toml:"bridge_url" json:"bridge_url"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
	MaxTokens   int    `toml:"max_tokens" json:"max_tokens"`
}

// CloudConfig contains cloud provider configuration.
type CloudConfig struct {
	// Provider is "gemini" or "openai".
	Provider      string  `toml:"provider" json:"provider"`
	GeminiKey     string  `toml:"gemini_key" json:"gemini_key"`
	GeminiModel   string  `toml:"gemini_model" json:"gemini_model"`
	OpenAIKey     string  `toml:"openai_key" json:"openai_key"`
	OpenAIModel   string  `toml:"openai_model" json:"openai_model"`
	OpenAIBaseURL string  `toml:"openai_base_url" json:"openai_base_url"`
	TimeoutSecs   int     `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries    int     `toml:"max_retries" json:"max_retries"`
	RateLimit     float64 `toml:"rate_limit" json:"rate_limit"` // requests per second, 0 = unlimited
	Burst         int     `toml:"burst" json:"burst"`
}

// CatalogConfig selects the tool catalog.
type CatalogConfig struct {
	// Path to a JSON, YAML or TOML catalog. Empty uses the built-in tools.
	Path string `toml:"path" json:"path"`
	// Watch reloads the catalog when the file changes.
	Watch bool `toml:"watch" json:"watch"`
	// OnDeviceOnly restricts the built-in catalog to on-device tools.
	OnDeviceOnly bool `toml:"on_device_only" json:"on_device_only"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Addr      string `toml:"addr" json:"addr"`
	AuthToken string `toml:"auth_token" json:"auth_token"`
	// RateLimit is requests per second per client, 0 = unlimited.
	RateLimit        float64 `toml:"rate_limit" json:"rate_limit"`
	Burst            int     `toml:"burst" json:"burst"`
	BodyLimitBytes   int64   `toml:"body_limit_bytes" json:"body_limit_bytes"`
	ReadTimeoutSecs  int     `toml:"read_timeout_secs" json:"read_timeout_secs"`
	WriteTimeoutSecs int     `toml:"write_timeout_secs" json:"write_timeout_secs"`
}

// StorageConfig controls the decision log.
type StorageConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path of the SQLite file. Empty uses ~/.fcrouter/decisions.db.
	Path string `toml:"path" json:"path"`
	// MaxEntries bounds the log; older decisions are pruned. 0 keeps everything.
	MaxEntries int `toml:"max_entries" json:"max_entries"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`   // debug, info, warn, error
	Format string `toml:"format" json:"format"` // console or json
	File   string `toml:"file" json:"file"`     // empty logs to stderr
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Routing: RoutingConfig{
			ConfidenceThreshold: 0.0,
		},

		Local: LocalConfig{
			Engine:      "ollama",
			OllamaURL:   "http://127.0.0.1:11434",
			OllamaModel: "functiongemma",
			BridgeURL:   "http://127.0.0.1:8765",
			TimeoutSecs: 30,
			MaxTokens:   256,
		},

		Cloud: CloudConfig{
			Provider:    "gemini",
			GeminiModel: "gemini-2.5-flash",
			OpenAIModel: "openai/gpt-4o-mini",
			TimeoutSecs: 60,
			MaxRetries:  3,
			RateLimit:   2,
			Burst:       4,
		},

		Catalog: CatalogConfig{
			Watch: true,
		},

		Server: ServerConfig{
			Addr:             "127.0.0.1:8787",
			RateLimit:        10,
			Burst:            20,
			BodyLimitBytes:   1 << 20,
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 120,
		},

		Storage: StorageConfig{
			Enabled:    true,
			MaxEntries: 10000,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the fcrouter configuration directory. FCROUTER_HOME
// overrides the default ~/.fcrouter.
func ConfigDir() (string, error) {
	if dir := os.Getenv("FCROUTER_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".fcrouter"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions tightens config files to 0600 since they may hold
// API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the environment win, and missing files
// are ignored.
func LoadDotEnv() error {
	paths := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	// defaults, with any load error for informational purposes
	cfg = Default()
	final, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	return final, loadErr
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Unset fields keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// LoadRaw reads the file at path over the defaults without environment
// overrides or validation, so it can be edited and saved back. A missing
// file yields the defaults.
func LoadRaw(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# fcrouter configuration file\n")
	buf.WriteString("# Generated by fcrouter - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns ValidateErrors listing
// every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Routing
	if c.Routing.ConfidenceThreshold < 0 || c.Routing.ConfidenceThreshold > 1 {
		add("routing.confidence_threshold", "must be between 0 and 1, got %v", c.Routing.ConfidenceThreshold)
	}

	// Local
	switch strings.ToLower(c.Local.Engine) {
	case "ollama":
		if err := validateURL(c.Local.OllamaURL); err != nil {
			add("local.ollama_url", "invalid URL: %v", err)
		}
	case "bridge":
		if err := validateURL(c.Local.BridgeURL); err != nil {
			add("local.bridge_url", "invalid URL: %v", err)
		}
	default:
		add("local.engine", "invalid engine '%s', must be one of: ollama, bridge", c.Local.Engine)
	}
	if c.Local.TimeoutSecs < 0 {
		add("local.timeout_secs", "cannot be negative")
	}
	if c.Local.MaxTokens < 0 {
		add("local.max_tokens", "cannot be negative")
	}

	// Cloud
	switch strings.ToLower(c.Cloud.Provider) {
	case "gemini":
	case "openai":
		if c.Cloud.OpenAIModel == "" {
			add("cloud.openai_model", "required when provider is openai")
		}
		if c.Cloud.OpenAIBaseURL != "" {
			if err := validateURL(c.Cloud.OpenAIBaseURL); err != nil {
				add("cloud.openai_base_url", "invalid URL: %v", err)
			}
		}
	default:
		add("cloud.provider", "invalid provider '%s', must be one of: gemini, openai", c.Cloud.Provider)
	}
	if c.Cloud.MaxRetries < 1 || c.Cloud.MaxRetries > 10 {
		add("cloud.max_retries", "must be between 1 and 10, got %d", c.Cloud.MaxRetries)
	}
	if c.Cloud.RateLimit < 0 {
		add("cloud.rate_limit", "cannot be negative")
	}
	if c.Cloud.TimeoutSecs < 0 {
		add("cloud.timeout_secs", "cannot be negative")
	}

	// Server
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "invalid listen address '%s': %v", c.Server.Addr, err)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}
	if c.Server.BodyLimitBytes < 0 {
		add("server.body_limit_bytes", "cannot be negative")
	}

	// Storage
	if c.Storage.MaxEntries < 0 {
		add("storage.max_entries", "cannot be negative")
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: console, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	if c.Local.Engine == "" {
		c.Local.Engine = d.Local.Engine
	}
	c.Local.Engine = strings.ToLower(c.Local.Engine)
	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = d.Local.OllamaURL
	}
	if c.Local.OllamaModel == "" {
		c.Local.OllamaModel = d.Local.OllamaModel
	}
	if c.Local.BridgeURL == "" {
		c.Local.BridgeURL = d.Local.BridgeURL
	}
	if c.Local.TimeoutSecs == 0 {
		c.Local.TimeoutSecs = d.Local.TimeoutSecs
	}
	if c.Local.MaxTokens == 0 {
		c.Local.MaxTokens = d.Local.MaxTokens
	}

	if c.Cloud.Provider == "" {
		c.Cloud.Provider = d.Cloud.Provider
	}
	c.Cloud.Provider = strings.ToLower(c.Cloud.Provider)
	if c.Cloud.GeminiModel == "" {
		c.Cloud.GeminiModel = d.Cloud.GeminiModel
	}
	if c.Cloud.OpenAIModel == "" {
		c.Cloud.OpenAIModel = d.Cloud.OpenAIModel
	}
	if c.Cloud.TimeoutSecs == 0 {
		c.Cloud.TimeoutSecs = d.Cloud.TimeoutSecs
	}
	if c.Cloud.MaxRetries == 0 {
		c.Cloud.MaxRetries = d.Cloud.MaxRetries
	}
	if c.Cloud.Burst == 0 {
		c.Cloud.Burst = d.Cloud.Burst
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = d.Server.Burst
	}
	if c.Server.BodyLimitBytes == 0 {
		c.Server.BodyLimitBytes = d.Server.BodyLimitBytes
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = d.Server.ReadTimeoutSecs
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = d.Server.WriteTimeoutSecs
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - GEMINI_API_KEY, FCROUTER_GEMINI_KEY: cloud.gemini_key
//   - OPENAI_API_KEY, FCROUTER_OPENAI_KEY: cloud.openai_key
//   - FCROUTER_CLOUD_PROVIDER: cloud.provider
//   - FCROUTER_OPENAI_BASE_URL, FCROUTER_OPENAI_MODEL
//   - FCROUTER_LOCAL_ENGINE: local.engine
//   - FCROUTER_OLLAMA_URL, FCROUTER_OLLAMA_MODEL, FCROUTER_BRIDGE_URL
//   - FCROUTER_CATALOG: catalog.path
//   - FCROUTER_CONFIDENCE_THRESHOLD: routing.confidence_threshold
//   - FCROUTER_ADDR, FCROUTER_AUTH_TOKEN: server settings
//   - FCROUTER_DB: storage.path
//   - FCROUTER_LOG_LEVEL, FCROUTER_LOG_FORMAT: log settings
//
// The FCROUTER_ variants of the API keys win over the generic names.
func (c *Config) ApplyEnvOverrides() {
	setString := func(dst *string, names ...string) {
		for _, n := range names {
			if v := os.Getenv(n); v != "" {
				*dst = v
			}
		}
	}

	setString(&c.Cloud.GeminiKey, "GEMINI_API_KEY", "FCROUTER_GEMINI_KEY")
	setString(&c.Cloud.OpenAIKey, "OPENAI_API_KEY", "FCROUTER_OPENAI_KEY")
	setString(&c.Cloud.Provider, "FCROUTER_CLOUD_PROVIDER")
	setString(&c.Cloud.OpenAIBaseURL, "FCROUTER_OPENAI_BASE_URL")
	setString(&c.Cloud.OpenAIModel, "FCROUTER_OPENAI_MODEL")

	setString(&c.Local.Engine, "FCROUTER_LOCAL_ENGINE")
	setString(&c.Local.OllamaURL, "FCROUTER_OLLAMA_URL")
	setString(&c.Local.OllamaModel, "FCROUTER_OLLAMA_MODEL")
	setString(&c.Local.BridgeURL, "FCROUTER_BRIDGE_URL")

	setString(&c.Catalog.Path, "FCROUTER_CATALOG")
	setString(&c.Server.Addr, "FCROUTER_ADDR")
	setString(&c.Server.AuthToken, "FCROUTER_AUTH_TOKEN")
	setString(&c.Storage.Path, "FCROUTER_DB")
	setString(&c.Log.Level, "FCROUTER_LOG_LEVEL")
	setString(&c.Log.Format, "FCROUTER_LOG_FORMAT")

	if v := os.Getenv("FCROUTER_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Routing.ConfidenceThreshold = f
		}
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// LocalTimeout returns the on-device request timeout.
func (c *Config) LocalTimeout() time.Duration {
	return time.Duration(c.Local.TimeoutSecs) * time.Second
}

// CloudTimeout returns the cloud request timeout.
func (c *Config) CloudTimeout() time.Duration {
	return time.Duration(c.Cloud.TimeoutSecs) * time.Second
}

// CloudKey returns the API key of the selected provider.
func (c *Config) CloudKey() string {
	if c.Cloud.Provider == "openai" {
		return c.Cloud.OpenAIKey
	}
	return c.Cloud.GeminiKey
}

// DecisionDBPath returns the decision log path, defaulting into ConfigDir.
func (c *Config) DecisionDBPath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "decisions.db"), nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "cloud.provider").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup resolves a dot-notation key against the toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, strings.ReplaceAll(strings.ToLower(part), "-", "_"))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("toml")
		if f.Type.Kind() != reflect.Struct {
			keys = append(keys, name)
			continue
		}
		for j := 0; j < f.Type.NumField(); j++ {
			keys = append(keys, name+"."+f.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// IsSecretKey reports whether a dot-notation key holds a credential.
func IsSecretKey(key string) bool {
	switch key {
	case "cloud.gemini_key", "cloud.openai_key", "server.auth_token":
		return true
	}
	return false
}

// =============================================================================
// COPY & DISPLAY
// =============================================================================

// Clone returns a copy of the configuration. Config holds no maps or
// slices, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with credentials replaced by "[REDACTED]".
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, s := range []*string{&safe.Cloud.GeminiKey, &safe.Cloud.OpenAIKey, &safe.Server.AuthToken} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	return safe
}

// String returns the configuration as JSON with credentials redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
