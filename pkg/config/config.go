// Package config provides configuration loading, validation, and the model
// registry for the voxcrew backend.
//
// A single global Config instance is maintained in memory, protected by a
// mutex, loaded once at startup from an optional YAML file plus environment
// overrides. GetConfig returns the config BY VALUE to prevent external
// mutation. Model capacity data (context windows, output ceilings) is
// hardcoded in KnownModels and not user-configurable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"voxcrew/pkg/logx"
)

// Provider constants for LLM client selection.
const (
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Model name constants for the default provider pairings.
const (
	ModelGeminiFlash   = "gemini-2.5-flash"
	ModelGeminiPro     = "gemini-2.5-pro"
	ModelGeminiTTS     = "gemini-2.5-flash-preview-tts"
	ModelClaudeHaiku   = "claude-3-5-haiku-latest"
	ModelClaudeSonnet  = "claude-sonnet-4-5"
	ModelGPT4oMini     = "gpt-4o-mini"
	ModelGPT5          = "gpt-5"
	ModelOllamaDefault = "qwen2.5-coder:7b"
)

// ModelInfo contains static capacity information about a known LLM model.
type ModelInfo struct {
	Provider         string // API provider
	MaxContextTokens int    // Maximum context window size in tokens
	MaxOutputTokens  int    // Maximum output tokens per request
}

// KnownModels registry contains capacity information for the models we pair
// with the fast and quality tiers.
//
//nolint:gochecknoglobals // Intentional global for static model registry
var KnownModels = map[string]ModelInfo{
	ModelGeminiFlash: {
		Provider:         ProviderGoogle,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  8192,
	},
	ModelGeminiPro: {
		Provider:         ProviderGoogle,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
	ModelClaudeHaiku: {
		Provider:         ProviderAnthropic,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	ModelClaudeSonnet: {
		Provider:         ProviderAnthropic,
		MaxContextTokens: 200000,
		MaxOutputTokens:  64000,
	},
	ModelGPT4oMini: {
		Provider:         ProviderOpenAI,
		MaxContextTokens: 128000,
		MaxOutputTokens:  16384,
	},
	ModelGPT5: {
		Provider:         ProviderOpenAI,
		MaxContextTokens: 400000,
		MaxOutputTokens:  128000,
	},
	ModelOllamaDefault: {
		Provider:         ProviderOllama,
		MaxContextTokens: 32768,
		MaxOutputTokens:  8192,
	},
}

// ModelsConfig names the model backing each tier.
type ModelsConfig struct {
	Fast    string `yaml:"fast"`
	Quality string `yaml:"quality"`
}

// VoicesConfig maps agent roles to prebuilt TTS voice names.
type VoicesConfig struct {
	Architect string `yaml:"architect"`
	Backend   string `yaml:"backend"`
	Frontend  string `yaml:"frontend"`
	QA        string `yaml:"qa"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"` // optional basic auth; empty disables auth
}

// Config is the root configuration document.
type Config struct {
	Provider      string       `yaml:"provider"`
	Models        ModelsConfig `yaml:"models"`
	Voices        VoicesConfig `yaml:"voices"`
	Server        ServerConfig `yaml:"server"`
	DBPath        string       `yaml:"db_path"`
	OllamaHost    string       `yaml:"ollama_host"`
	PrometheusURL string       `yaml:"prometheus_url"`
	SpeechEnabled bool         `yaml:"speech_enabled"`
}

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	mu     sync.RWMutex
	logger *logx.Logger
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// defaults returns the baseline configuration before file and env overrides.
func defaults() *Config {
	return &Config{
		Provider: ProviderGoogle,
		Models: ModelsConfig{
			Fast:    ModelGeminiFlash,
			Quality: ModelGeminiPro,
		},
		Voices: VoicesConfig{
			Architect: "Charon",
			Backend:   "Kore",
			Frontend:  "Puck",
			QA:        "Fenrir",
		},
		Server: ServerConfig{
			Addr: ":8420",
		},
		DBPath:        "voxcrew.db",
		OllamaHost:    "http://localhost:11434",
		SpeechEnabled: true,
	}
}

// LoadConfig initializes the global config from an optional YAML file path
// and environment overrides. Must be called once at startup.
func LoadConfig(path string) error {
	mu.Lock()
	defer mu.Unlock()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		getLogger().Info("Loaded config from %s", path)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return err
	}

	config = cfg
	return nil
}

// applyEnvOverrides layers environment variables over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXCREW_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("VOXCREW_MODEL_FAST"); v != "" {
		cfg.Models.Fast = v
	}
	if v := os.Getenv("VOXCREW_MODEL_QUALITY"); v != "" {
		cfg.Models.Quality = v
	}
	if v := os.Getenv("VOXCREW_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VOXCREW_PASSWORD"); v != "" {
		cfg.Server.Password = v
	}
	if v := os.Getenv("VOXCREW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.OllamaHost = v
	}
	if v := os.Getenv("PROMETHEUS_URL"); v != "" {
		cfg.PrometheusURL = v
	}
	if v := os.Getenv("VOXCREW_SPEECH"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.SpeechEnabled = enabled
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Provider {
	case ProviderGoogle, ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q (valid: %s, %s, %s, %s)",
			cfg.Provider, ProviderGoogle, ProviderAnthropic, ProviderOpenAI, ProviderOllama)
	}
	if cfg.Models.Fast == "" || cfg.Models.Quality == "" {
		return fmt.Errorf("both fast and quality models must be configured")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	return nil
}

// GetConfig returns the current configuration by value.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()

	if config == nil {
		return Config{}, fmt.Errorf("config not loaded - call LoadConfig first")
	}
	return *config, nil
}

// ModelFor returns capacity info for a model name, inferring conservative
// defaults for models missing from the registry.
func ModelFor(name string) ModelInfo {
	if info, ok := KnownModels[name]; ok {
		return info
	}
	return ModelInfo{MaxContextTokens: 32768, MaxOutputTokens: 4096}
}

// APIKeyEnvVar returns the environment variable (and secrets file key)
// holding the API key for a provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case ProviderGoogle:
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// VoiceForRole returns the configured voice name for an agent role label,
// defaulting to the architect voice for unknown labels.
func (v *VoicesConfig) VoiceForRole(role string) string {
	switch role {
	case "backend":
		return v.Backend
	case "frontend":
		return v.Frontend
	case "qa":
		return v.QA
	default:
		return v.Architect
	}
}

// Reset clears the singleton for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	config = nil
}
