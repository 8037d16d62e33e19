// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.rigchat/config.toml
//   - ~/.rigchat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Version      string `toml:"version" json:"version"`
	DefaultModel string `toml:"default_model" json:"default_model"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`

	Server     ServerConfig     `toml:"server" json:"server"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Chat       ChatConfig       `toml:"chat" json:"chat"`
	Health     HealthConfig     `toml:"health" json:"health"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Log        LogConfig        `toml:"log" json:"log"`
	UI         UIConfig         `toml:"ui" json:"ui"`
}

// ServerConfig locates the Ollama server.
type ServerConfig struct {
	URL                string `toml:"url" json:"url"`
	RequestTimeoutSecs int    `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// GenerationConfig holds sampling defaults. Unset fields use the model's defaults.
type GenerationConfig struct {
	Temperature *float64 `toml:"temperature,omitempty" json:"temperature,omitempty"`
	TopK        *int     `toml:"top_k,omitempty" json:"top_k,omitempty"`
	TopP        *float64 `toml:"top_p,omitempty" json:"top_p,omitempty"`
	MaxTokens   *int     `toml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// ChatConfig tunes the streaming session.
type ChatConfig struct {
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`
	HistoryLimit      int `toml:"history_limit" json:"history_limit"`
	SidebarLimit      int `toml:"sidebar_limit" json:"sidebar_limit"`
}

// HealthConfig tunes the server health monitor.
type HealthConfig struct {
	IntervalSecs int `toml:"interval_secs" json:"interval_secs"`
	TimeoutSecs  int `toml:"timeout_secs" json:"timeout_secs"`
}

// StorageConfig locates the chat database.
type StorageConfig struct {
	// DatabasePath is empty for ~/.rigchat/rigchat.db.
	DatabasePath string `toml:"database_path" json:"database_path"`
}

// LogConfig configures logrus output.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	// File is where the TUI logs; empty means ~/.rigchat/rigchat.log.
	File string `toml:"file" json:"file"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme     string `toml:"theme" json:"theme"`
	Markdown  bool   `toml:"markdown" json:"markdown"`
	ShowStats bool   `toml:"show_stats" json:"show_stats"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version:      CurrentVersion,
		DefaultModel: "",

		Server: ServerConfig{
			URL:                ollama.DefaultBaseURL,
			RequestTimeoutSecs: 300,
		},

		Chat: ChatConfig{
			StreamTimeoutSecs: 60,
			HistoryLimit:      1000,
			SidebarLimit:      100,
		},

		Health: HealthConfig{
			IntervalSecs: 30,
			TimeoutSecs:  5,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},

		UI: UIConfig{
			Theme:     "dark",
			Markdown:  true,
			ShowStats: true,
		},
	}
}

// SetDefaults fills zero-value fields with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if c.Chat.StreamTimeoutSecs == 0 {
		c.Chat.StreamTimeoutSecs = d.Chat.StreamTimeoutSecs
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = d.Chat.HistoryLimit
	}
	if c.Chat.SidebarLimit == 0 {
		c.Chat.SidebarLimit = d.Chat.SidebarLimit
	}
	if c.Health.IntervalSecs == 0 {
		c.Health.IntervalSecs = d.Health.IntervalSecs
	}
	if c.Health.TimeoutSecs == 0 {
		c.Health.TimeoutSecs = d.Health.TimeoutSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
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
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// DatabasePath resolves the chat database location.
func (c *Config) DatabasePath() string {
	if c.Storage.DatabasePath != "" {
		return expandHome(c.Storage.DatabasePath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "rigchat.db"
	}
	return filepath.Join(dir, "rigchat.db")
}

// LogFile resolves the log file used in TUI mode.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "rigchat.log"
	}
	return filepath.Join(dir, "rigchat.log")
}

// StreamTimeout bounds how long a streaming reply may go without a terminal event.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Chat.StreamTimeoutSecs) * time.Second
}

// RequestTimeout bounds non-streaming API requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// HealthInterval is the polling interval of the health monitor.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Health.IntervalSecs) * time.Second
}

// HealthTimeout bounds one health probe.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Health.TimeoutSecs) * time.Second
}

// GenerationOptions returns sampling options, or nil when none are set.
func (c *Config) GenerationOptions() *ollama.Options {
	g := c.Generation
	opts := &ollama.Options{
		Temperature: g.Temperature,
		TopK:        g.TopK,
		TopP:        g.TopP,
		NumPredict:  g.MaxTokens,
	}
	if opts.IsZero() {
		return nil
	}
	return opts
}

// ClientConfig builds the ollama client settings.
func (c *Config) ClientConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL:       c.Server.URL,
		Timeout:       c.RequestTimeout(),
		HealthTimeout: c.HealthTimeout(),
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.rigchat/config.toml, then config.json, falling back to
// defaults. Environment overrides are applied last. A file that fails to
// parse is reported alongside the defaults.
func Load() (*Config, error) {
	var loadErr error

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadFromPath(path)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadFromPath(path)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
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

// LoadFromPath loads one file with defaults, env overrides and validation.
// Files ending in .json are read as JSON, anything else as TOML.
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

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigchat configuration file\n")
	buf.WriteString("# Generated by rigchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as JSON atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
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

// Validate checks the configuration and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		switch {
		case err != nil:
			add("server.url", "invalid URL: %v", err)
		case u.Scheme != "http" && u.Scheme != "https":
			add("server.url", "scheme must be http or https, got '%s'", u.Scheme)
		case u.Host == "":
			add("server.url", "missing host")
		}
	}
	if c.Server.RequestTimeoutSecs < 0 {
		add("server.request_timeout_secs", "must not be negative")
	}

	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("generation.temperature", "must be between 0 and 2, got %g", *t)
	}
	if k := c.Generation.TopK; k != nil && *k < 1 {
		add("generation.top_k", "must be at least 1, got %d", *k)
	}
	if p := c.Generation.TopP; p != nil && (*p <= 0 || *p > 1) {
		add("generation.top_p", "must be in (0, 1], got %g", *p)
	}
	if m := c.Generation.MaxTokens; m != nil && *m < 1 && *m != -1 {
		add("generation.max_tokens", "must be positive or -1 for unlimited, got %d", *m)
	}

	if c.Chat.StreamTimeoutSecs < 0 || c.Chat.StreamTimeoutSecs > 3600 {
		add("chat.stream_timeout_secs", "must be between 0 and 3600, got %d", c.Chat.StreamTimeoutSecs)
	}
	if c.Chat.HistoryLimit < 0 {
		add("chat.history_limit", "must not be negative")
	}
	if c.Chat.SidebarLimit < 0 {
		add("chat.sidebar_limit", "must not be negative")
	}

	if c.Health.IntervalSecs < 0 {
		add("health.interval_secs", "must not be negative")
	}
	if c.Health.TimeoutSecs < 0 {
		add("health.timeout_secs", "must not be negative")
	}

	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
		default:
			add("log.level", "invalid level '%s'", c.Log.Level)
		}
	}
	if c.Log.Format != "" {
		switch strings.ToLower(c.Log.Format) {
		case "text", "json":
		default:
			add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
		}
	}

	if c.UI.Theme != "" {
		switch strings.ToLower(c.UI.Theme) {
		case "dark", "light", "auto":
		default:
			add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGCHAT_MODEL: overrides default_model
//   - RIGCHAT_OLLAMA_URL: overrides server.url (OLLAMA_HOST is used when unset)
//   - RIGCHAT_DB: overrides storage.database_path
//   - RIGCHAT_LOG_LEVEL: overrides log.level
//   - RIGCHAT_LOG_FORMAT: overrides log.format
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("RIGCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}

	if u := os.Getenv("RIGCHAT_OLLAMA_URL"); u != "" {
		c.Server.URL = u
	} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Server.URL = host
	}

	if db := os.Getenv("RIGCHAT_DB"); db != "" {
		c.Storage.DatabasePath = db
	}
	if level := os.Getenv("RIGCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("RIGCHAT_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dot notation (e.g. "chat.history_limit").
// Unset optional values are returned as nil.
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, nil
		}
		return field.Elem().Interface(), nil
	}
	return field.Interface(), nil
}

// Set assigns a value by dot notation. String values are converted to the
// field's type; an empty string clears an optional value.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	if field.Kind() == reflect.Ptr {
		if s, ok := value.(string); ok && (s == "" || strings.EqualFold(s, "unset")) {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		ptr := reflect.New(field.Type().Elem())
		if err := setFieldValue(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
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
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes") || strings.EqualFold(strVal, "on")
			}
			field.SetBool(boolVal)
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

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"default_model",
		"system_prompt",
		"server.url",
		"server.request_timeout_secs",
		"generation.temperature",
		"generation.top_k",
		"generation.top_p",
		"generation.max_tokens",
		"chat.stream_timeout_secs",
		"chat.history_limit",
		"chat.sidebar_limit",
		"health.interval_secs",
		"health.timeout_secs",
		"storage.database_path",
		"log.level",
		"log.format",
		"log.file",
		"ui.theme",
		"ui.markdown",
		"ui.show_stats",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	g := &clone.Generation
	if c.Generation.Temperature != nil {
		v := *c.Generation.Temperature
		g.Temperature = &v
	}
	if c.Generation.TopK != nil {
		v := *c.Generation.TopK
		g.TopK = &v
	}
	if c.Generation.TopP != nil {
		v := *c.Generation.TopP
		g.TopP = &v
	}
	if c.Generation.MaxTokens != nil {
		v := *c.Generation.MaxTokens
		g.MaxTokens = &v
	}
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
