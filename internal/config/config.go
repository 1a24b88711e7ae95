// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Corphon/CampaignStudio/internal/utils"
)

// Generation backends.
const (
	BackendHTTP = "http"
	BackendLLM  = "llm"
)

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig holds all application settings.
type AppConfig struct {
	// Base
	Port      string `json:"port" yaml:"port"`
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	ExportDir string `json:"export_dir" yaml:"export_dir"`
	LogDir    string `json:"log_dir" yaml:"log_dir"`
	LogMode   string `json:"log_mode" yaml:"log_mode"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
	DebugMode bool   `json:"debug_mode" yaml:"debug_mode"`

	// Generation
	GenerationBackend        string `json:"generation_backend" yaml:"generation_backend"`
	ContentServiceURL        string `json:"content_service_url" yaml:"content_service_url"`
	ContentServiceKey        string `json:"content_service_key,omitempty" yaml:"content_service_key"`
	GenerationTimeoutSeconds int    `json:"generation_timeout_seconds" yaml:"generation_timeout_seconds"`
	DefaultTone              string `json:"default_tone" yaml:"default_tone"`
	MaxResponseKB            int    `json:"max_response_kb" yaml:"max_response_kb"`

	// Sessions
	SessionTTLMinutes int `json:"session_ttl_minutes" yaml:"session_ttl_minutes"`
	RateLimitPerMin   int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// LLM backend
	LLMProvider string            `json:"llm_provider" yaml:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config" yaml:"llm_config"`

	// SecretPassphrase seals API keys in the persisted config file. Never persisted itself.
	SecretPassphrase string `json:"-" yaml:"-"`
}

// GenerationTimeout returns the per-request timeout.
func (c *AppConfig) GenerationTimeout() time.Duration {
	if c.GenerationTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

// MaxResponseBytes caps how much of a content service response is read.
func (c *AppConfig) MaxResponseBytes() int64 {
	if c.MaxResponseKB <= 0 {
		return 4 << 20
	}
	return int64(c.MaxResponseKB) << 10
}

// SessionTTL returns the idle lifetime of a campaign session.
func (c *AppConfig) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Clone returns a copy safe to mutate.
func (c *AppConfig) Clone() *AppConfig {
	out := *c
	out.LLMConfig = make(map[string]string, len(c.LLMConfig))
	for k, v := range c.LLMConfig {
		out.LLMConfig[k] = v
	}
	return &out
}

// Validate checks settings the services depend on.
func (c *AppConfig) Validate() error {
	switch c.GenerationBackend {
	case BackendHTTP:
		if c.ContentServiceURL == "" {
			return fmt.Errorf("generation backend %q requires CONTENT_SERVICE_URL", BackendHTTP)
		}
	case BackendLLM:
		if c.LLMProvider == "" {
			return fmt.Errorf("generation backend %q requires LLM_PROVIDER", BackendLLM)
		}
	default:
		return fmt.Errorf("unknown generation backend %q", c.GenerationBackend)
	}
	return nil
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:                     "8080",
		DataDir:                  "data",
		LogDir:                   "logs",
		LogMode:                  "development",
		LogLevel:                 "info",
		DebugMode:                true,
		GenerationBackend:        BackendHTTP,
		GenerationTimeoutSeconds: 60,
		DefaultTone:              "professional",
		MaxResponseKB:            4096,
		SessionTTLMinutes:        120,
		RateLimitPerMin:          30,
		LLMProvider:              "anthropic",
		LLMConfig:                map[string]string{},
	}
}

// Load builds the configuration: defaults, then the optional YAML file named by
// CONFIG_FILE, then environment variables (a .env file is read first if present).
func Load() (*AppConfig, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.ExportDir = getEnv("EXPORT_DIR", cfg.ExportDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.LogMode = getEnv("LOG_MODE", cfg.LogMode)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DebugMode = getEnvBool("DEBUG_MODE", cfg.DebugMode)
	cfg.GenerationBackend = strings.ToLower(getEnv("GENERATION_BACKEND", cfg.GenerationBackend))
	cfg.ContentServiceURL = getEnv("CONTENT_SERVICE_URL", cfg.ContentServiceURL)
	cfg.ContentServiceKey = getEnv("CONTENT_SERVICE_KEY", cfg.ContentServiceKey)
	cfg.GenerationTimeoutSeconds = getEnvInt("GENERATION_TIMEOUT", cfg.GenerationTimeoutSeconds)
	cfg.DefaultTone = getEnv("DEFAULT_TONE", cfg.DefaultTone)
	cfg.MaxResponseKB = getEnvInt("MAX_RESPONSE_KB", cfg.MaxResponseKB)
	cfg.SessionTTLMinutes = getEnvInt("SESSION_TTL", cfg.SessionTTLMinutes)
	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMin)
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.SecretPassphrase = getEnv("CONFIG_SECRET", "")

	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLMConfig["api_key"] = key
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLMConfig["default_model"] = model
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.LLMConfig["base_url"] = baseURL
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = filepath.Join(cfg.DataDir, "exports")
	}

	if cfg.GenerationBackend == BackendHTTP && cfg.ContentServiceURL == "" {
		utils.GetLogger().Warn("CONTENT_SERVICE_URL not set; full generation will use sample content", nil)
	}

	return cfg, nil
}

func applyYAML(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	llm := cfg.LLMConfig
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	// yaml replaces the map wholesale; keep defaults for keys the file omits
	for k, v := range llm {
		if _, ok := cfg.LLMConfig[k]; !ok {
			if cfg.LLMConfig == nil {
				cfg.LLMConfig = map[string]string{}
			}
			cfg.LLMConfig[k] = v
		}
	}
	if cfg.LLMConfig == nil {
		cfg.LLMConfig = map[string]string{}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		utils.GetLogger().Warn("ignoring non-numeric environment value", map[string]interface{}{"key": key})
		return defaultValue
	}
	return n
}

// InitConfig installs base as the current configuration, merging provider settings saved
// by a previous run under dataDir/config.json, and persists the result.
func InitConfig(base *AppConfig) error {
	if base == nil {
		return fmt.Errorf("base config is nil")
	}
	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(base.DataDir, "config.json")
	merged := base.Clone()

	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil {
			// saved provider settings win unless the environment set them explicitly
			if os.Getenv("LLM_PROVIDER") == "" && saved.LLMProvider != "" {
				merged.LLMProvider = saved.LLMProvider
			}
			for k, v := range saved.LLMConfig {
				if _, set := merged.LLMConfig[k]; set {
					continue
				}
				plain, err := utils.OpenSecret(v, base.SecretPassphrase)
				if err != nil {
					utils.GetLogger().Warn("cannot open saved secret; ignoring", map[string]interface{}{"key": k})
					continue
				}
				merged.LLMConfig[k] = plain
			}
			if merged.ContentServiceKey == "" && saved.ContentServiceKey != "" {
				if plain, err := utils.OpenSecret(saved.ContentServiceKey, base.SecretPassphrase); err == nil {
					merged.ContentServiceKey = plain
				}
			}
		}
	}

	currentConfig = merged
	return saveLocked()
}

// GetCurrentConfig returns a copy of the current configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		cfg, err := Load()
		if err != nil {
			return defaults()
		}
		return cfg
	}
	return currentConfig.Clone()
}

// UpdateLLMConfig switches the LLM provider settings and persists them.
func UpdateLLMConfig(provider string, llmConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config not initialized")
	}
	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = make(map[string]string, len(llmConfig))
	for k, v := range llmConfig {
		currentConfig.LLMConfig[k] = v
	}
	return saveLocked()
}

// SaveConfig persists the current configuration.
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no config to save")
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out := currentConfig.Clone()
	pass := currentConfig.SecretPassphrase
	for k, v := range out.LLMConfig {
		if isSecretKey(k) {
			sealed, err := utils.SealSecret(v, pass)
			if err != nil {
				return fmt.Errorf("seal %s: %w", k, err)
			}
			out.LLMConfig[k] = sealed
		}
	}
	sealedKey, err := utils.SealSecret(out.ContentServiceKey, pass)
	if err != nil {
		return fmt.Errorf("seal content service key: %w", err)
	}
	out.ContentServiceKey = sealedKey

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(configFile, data, 0600)
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "key") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

// resetForTest clears the package state.
func resetForTest() {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = nil
	configFile = ""
}
