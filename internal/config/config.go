// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Enhancer  EnhancerConfig  `mapstructure:"enhancer" yaml:"enhancer"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// LoggerConfig controls the zap logger and optional file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	AllowOrigins    []string      `mapstructure:"allow_origins" yaml:"allow_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// BrowserConfig controls the headless browser process.
type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	Args           []string `mapstructure:"args" yaml:"args"`
	UserAgent      string   `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth  int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// NetworkConfig holds per-interaction timing budgets for the automation engine.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	ClickTimeout      time.Duration `mapstructure:"click_timeout" yaml:"click_timeout"`
}

// GeneratorConfig controls web-generation dispatch and throttling.
type GeneratorConfig struct {
	DefaultSite   string        `mapstructure:"default_site" yaml:"default_site"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RatePerMinute int           `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	Burst         int           `mapstructure:"burst" yaml:"burst"`
}

// EnhancerConfig controls the prompt-rewriting client.
type EnhancerConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"` // "ollama" or "gemini"
	URL      string        `mapstructure:"url" yaml:"url"`
	Model    string        `mapstructure:"model" yaml:"model"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BackendConfig points at the first-party generation backend (ComfyUI).
type BackendConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	HealthTimeout time.Duration `mapstructure:"health_timeout" yaml:"health_timeout"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout" yaml:"submit_timeout"`
}

// DatabaseConfig holds the usage-counter store connection. An empty DSN
// disables persistence; counters then degrade to in-process no-ops.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// OutputConfig controls where downloaded artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers the default value for every key on the given viper
// instance. Called before reading the config file so that a partial file works.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "genweaver")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)

	v.SetDefault("network.navigation_timeout", 30*time.Second)
	v.SetDefault("network.post_load_wait", 1500*time.Millisecond)
	v.SetDefault("network.probe_timeout", 5*time.Second)
	v.SetDefault("network.click_timeout", 3*time.Second)

	v.SetDefault("generator.default_site", "https://lmarena.ai")
	v.SetDefault("generator.timeout", 30*time.Second)
	v.SetDefault("generator.rate_per_minute", 6)
	v.SetDefault("generator.burst", 2)

	v.SetDefault("enhancer.provider", "ollama")
	v.SetDefault("enhancer.url", "http://localhost:11434")
	v.SetDefault("enhancer.model", "llama3.2")
	v.SetDefault("enhancer.timeout", 30*time.Second)

	v.SetDefault("backend.url", "http://localhost:8188")
	v.SetDefault("backend.health_timeout", 5*time.Second)
	v.SetDefault("backend.submit_timeout", 60*time.Second)

	v.SetDefault("output.dir", "./outputs")
}

// Load reads configuration from the given file (or the default search paths
// when cfgFile is empty) plus GENWEAVER_* environment overrides.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home + "/.genweaver")
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("GENWEAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
