package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor helpers.
//
// Example (~/.botgpt/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8000
// database:
//   driver: sqlite
//   dsn: bot_gpt.db
// cache:
//   ttl_seconds: 300
// context:
//   window_size: 10
//   retrieval_top_k: 2
// llm:
//   provider: openai
//   base_url: https://api.groq.com/openai/v1
//   model: llama-3.3-70b-versatile
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - CACHE_TTL, BOTGPT_PORT, BOTGPT_LLM_API_KEY and GROQ_API_KEY override the file.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Context  ContextConfig  `yaml:"context"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type CacheConfig struct {
	// TTLSeconds <= 0 disables expiry. Nil means DefaultCacheTTL.
	TTLSeconds *int `yaml:"ttl_seconds"`
}

type ContextConfig struct {
	WindowSize    *int `yaml:"window_size"`
	RetrievalTopK *int `yaml:"retrieval_top_k"`
}

// LLMConfig selects the chat model provider used for replies and summaries.
type LLMConfig struct {
	Provider           string                 `yaml:"provider"` // openai, deepseek, anthropic, ollama, google, ark, qwen, qianfan, mock
	BaseURL            string                 `yaml:"base_url"`
	APIKey             string                 `yaml:"api_key"`
	Model              string                 `yaml:"model"`
	Temperature        *float32               `yaml:"temperature"`
	MaxTokens          *int                   `yaml:"max_tokens"`
	SummaryTemperature *float32               `yaml:"summary_temperature"`
	SummaryMaxTokens   *int                   `yaml:"summary_max_tokens"`
	TimeoutSeconds     int                    `yaml:"timeout_seconds"`
	Extra              map[string]interface{} `yaml:"extra"` // vendor specific, e.g. ark region
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8000
	DefaultDriver        = "sqlite"
	DefaultDSN           = "bot_gpt.db"
	DefaultCacheTTL      = 300
	DefaultWindowSize    = 10
	DefaultRetrievalTopK = 2
	DefaultLogLevel      = "info"

	DefaultTemperature        float32 = 0.7
	DefaultMaxTokens                  = 512
	DefaultSummaryTemperature float32 = 0.3
	DefaultSummaryMaxTokens           = 200

	ProviderMock = "mock"

	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "llama-3.3-70b-versatile"
)

// SupportedDrivers lists the database drivers accepted by database.driver.
var SupportedDrivers = map[string]struct{}{
	"sqlite":   {},
	"mysql":    {},
	"postgres": {},
}

// SupportedProviders lists the accepted llm.provider values.
var SupportedProviders = map[string]struct{}{
	"openai":     {},
	"custom":     {},
	"deepseek":   {},
	"anthropic":  {},
	"google":     {},
	"ark":        {},
	"ollama":     {},
	"qianfan":    {},
	"qwen":       {},
	ProviderMock: {},
}

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".botgpt")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.botgpt/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}
	return LoadFile(configFile)
}

// LoadFile reads the config at path, applies environment overrides and validates.
func LoadFile(configFile string) (*AppConfig, string, error) {
	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", fmt.Errorf("%w (in environment)", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w in %s", err, configFile)
	}

	return cfg, configFile, nil
}

// applyEnv applies the supported environment variable overrides.
func (c *AppConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL")); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL %q", v)
		}
		c.Cache.TTLSeconds = ptr(ttl)
	}

	if v := strings.TrimSpace(os.Getenv("BOTGPT_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BOTGPT_PORT %q", v)
		}
		c.Server.Port = ptr(port)
	}

	if v := strings.TrimSpace(os.Getenv("BOTGPT_LLM_API_KEY")); v != "" {
		c.LLM.APIKey = v
	}

	// Groq exposes an OpenAI-compatible endpoint.
	if v := strings.TrimSpace(os.Getenv("GROQ_API_KEY")); v != "" && c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
		c.LLM.APIKey = v
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = groqBaseURL
		}
		if c.LLM.Model == "" {
			c.LLM.Model = groqModel
		}
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Host()) == "" {
		return errors.New("invalid server.host (empty)")
	}
	if port := c.Port(); port < 1 || port > 65535 {
		return fmt.Errorf("invalid server.port %d", port)
	}
	if _, ok := SupportedDrivers[c.DatabaseDriver()]; !ok {
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if _, ok := SupportedProviders[c.LLMProvider()]; !ok {
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if w := c.WindowSize(); w < 1 {
		return fmt.Errorf("invalid context.window_size %d", w)
	}
	if k := c.RetrievalTopK(); k < 0 {
		return fmt.Errorf("invalid context.retrieval_top_k %d", k)
	}
	return nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server:   ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Database: DatabaseConfig{Driver: DefaultDriver, DSN: DefaultDSN},
		Cache:    CacheConfig{TTLSeconds: ptr(DefaultCacheTTL)},
		Context:  ContextConfig{WindowSize: ptr(DefaultWindowSize), RetrievalTopK: ptr(DefaultRetrievalTopK)},
		LLM:      LLMConfig{Provider: ProviderMock},
		Log:      LogConfig{Level: DefaultLogLevel},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) DatabaseDriver() string {
	if c == nil || strings.TrimSpace(c.Database.Driver) == "" {
		return DefaultDriver
	}
	return strings.ToLower(strings.TrimSpace(c.Database.Driver))
}

func (c *AppConfig) DatabaseDSN() string {
	if c == nil || strings.TrimSpace(c.Database.DSN) == "" {
		return DefaultDSN
	}
	return c.Database.DSN
}

// CacheTTL returns the conversation cache TTL. Zero means no expiry.
func (c *AppConfig) CacheTTL() time.Duration {
	if c == nil || c.Cache.TTLSeconds == nil {
		return DefaultCacheTTL * time.Second
	}
	if *c.Cache.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(*c.Cache.TTLSeconds) * time.Second
}

func (c *AppConfig) WindowSize() int {
	if c == nil || c.Context.WindowSize == nil {
		return DefaultWindowSize
	}
	return *c.Context.WindowSize
}

func (c *AppConfig) RetrievalTopK() int {
	if c == nil || c.Context.RetrievalTopK == nil {
		return DefaultRetrievalTopK
	}
	return *c.Context.RetrievalTopK
}

// LLMProvider returns the configured provider, or "mock" when none is set.
func (c *AppConfig) LLMProvider() string {
	if c == nil || strings.TrimSpace(c.LLM.Provider) == "" {
		return ProviderMock
	}
	return strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

func (c *AppConfig) LogLevel() string {
	if c == nil || c.Log.Level == "" {
		return DefaultLogLevel
	}
	return c.Log.Level
}

func (l LLMConfig) ReplyTemperature() float32 {
	if l.Temperature == nil {
		return DefaultTemperature
	}
	return *l.Temperature
}

func (l LLMConfig) ReplyMaxTokens() int {
	if l.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *l.MaxTokens
}

func (l LLMConfig) SummaryTemp() float32 {
	if l.SummaryTemperature == nil {
		return DefaultSummaryTemperature
	}
	return *l.SummaryTemperature
}

func (l LLMConfig) SummaryTokens() int {
	if l.SummaryMaxTokens == nil {
		return DefaultSummaryMaxTokens
	}
	return *l.SummaryMaxTokens
}

// Timeout bounds a single provider call. Zero means no extra bound.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func ptr[T any](v T) *T { return &v }
