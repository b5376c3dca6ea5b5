package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted in llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderDemo   = "demo"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	Sessions SessionsConfig
	Uploads  UploadsConfig
	Log      LogConfig
}

// LLMConfig holds the provider configuration
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Referer      string        `mapstructure:"referer"`
	Title        string        `mapstructure:"title"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Models       ModelsConfig  `mapstructure:"models"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ProbeOnStart bool          `mapstructure:"probe_on_start"`
	ReprobeAfter time.Duration `mapstructure:"reprobe_after"`
	PDFCharLimit int           `mapstructure:"pdf_char_limit"`
	Audio        AudioConfig   `mapstructure:"audio"`
	// CountTokens logs a tiktoken estimate of every request.
	CountTokens  bool          `mapstructure:"count_tokens"`
}

// ModelsConfig holds the model identifier per request class. Empty entries
// are filled with the selected provider's defaults.
type ModelsConfig struct {
	Primary       string `mapstructure:"primary"`
	Fallback      string `mapstructure:"fallback"`
	CostEfficient string `mapstructure:"cost_efficient"`
	Fast          string `mapstructure:"fast"`
	Vision        string `mapstructure:"vision"`
	Audio         string `mapstructure:"audio"`
}

// AudioConfig bounds the upload-then-poll audio path.
type AudioConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// SessionsConfig is the session store capacity policy.
type SessionsConfig struct {
	MaxSessions   int           `mapstructure:"max_sessions"`
	TTL           time.Duration `mapstructure:"ttl"`
	ContextWindow int           `mapstructure:"context_window"`
}

// UploadsConfig locates stored files and their catalogue.
type UploadsConfig struct {
	Dir    string `mapstructure:"dir"`
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"llm.base_url", "llm.referer", "llm.title", "llm.system_prompt",
		"llm.models.primary", "llm.models.fallback", "llm.models.cost_efficient",
		"llm.models.fast", "llm.models.vision", "llm.models.audio",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("llm.pdf_char_limit", 0)
	v.SetDefault("llm.count_tokens", false)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.probe_on_start", true)
	v.SetDefault("llm.reprobe_after", "0s")
	v.SetDefault("llm.audio.poll_interval", "2s")
	v.SetDefault("llm.audio.max_wait", "60s")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.max_upload_bytes", 16*1024*1024)
	v.SetDefault("sessions.max_sessions", 1000)
	v.SetDefault("sessions.ttl", "24h")
	v.SetDefault("sessions.context_window", 6)
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.db_path", "uploads.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH) and overlays THELP_* environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory for config.yaml and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("THELP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "THELP_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.LLM.Provider = strings.ToLower(config.LLM.Provider)

	return &config, nil
}
