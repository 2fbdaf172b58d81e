package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    App    `mapstructure:"app"`
	Remote Remote `mapstructure:"remote"`
	Batch  Batch  `mapstructure:"batch"`
	Store  Store  `mapstructure:"store"`
	HTTP   HTTP   `mapstructure:"http"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
	TempRoot string `mapstructure:"temp_root"`
	BaseURL  string `mapstructure:"base_url"`
}

type Remote struct {
	Mode             string        `mapstructure:"mode"`
	APIKey           string        `mapstructure:"api_key"`
	Endpoint         string        `mapstructure:"endpoint"`
	Model            string        `mapstructure:"model"`
	Prompt           string        `mapstructure:"prompt"`
	Transport        string        `mapstructure:"transport"`
	RatioTable       string        `mapstructure:"ratio_table"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollMaxAttempts  int           `mapstructure:"poll_max_attempts"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	DownloadAttempts int           `mapstructure:"download_attempts"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	SimLatency       time.Duration `mapstructure:"sim_latency"`
	SimFailMarkers   []string      `mapstructure:"sim_fail_markers"`
}

type Batch struct {
	Concurrency int           `mapstructure:"concurrency"`
	StaggerMin  time.Duration `mapstructure:"stagger_min"`
	StaggerMax  time.Duration `mapstructure:"stagger_max"`
	Retention   time.Duration `mapstructure:"retention"`
	CPUWorkers  int           `mapstructure:"cpu_workers"`
}

type Store struct {
	Backend     string        `mapstructure:"backend"`
	Path        string        `mapstructure:"path"`
	RedisURL    string        `mapstructure:"redis_url"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	TTL         time.Duration `mapstructure:"ttl"`
}

type HTTP struct {
	Listen         string `mapstructure:"listen"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

const EnvPrefix = "IMGADAPT"

const defaultPrompt = "Translate all text in the image to Russian, keep the layout, fonts and colors unchanged."

// SetDefaults registers every known key so env overrides apply even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.temp_root", "temp")
	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("remote.mode", "simulate")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.endpoint", "https://api.apimart.ai")
	v.SetDefault("remote.model", "gpt-4o-image")
	v.SetDefault("remote.prompt", defaultPrompt)
	v.SetDefault("remote.transport", "inline")
	v.SetDefault("remote.ratio_table", "default")
	v.SetDefault("remote.poll_interval", "5s")
	v.SetDefault("remote.poll_max_attempts", 60)
	v.SetDefault("remote.request_timeout", "60s")
	v.SetDefault("remote.retry_attempts", 3)
	v.SetDefault("remote.download_attempts", 5)
	v.SetDefault("remote.retry_backoff", "1s")
	v.SetDefault("remote.sim_latency", "200ms")
	v.SetDefault("remote.sim_fail_markers", []string{})

	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("batch.stagger_min", "1s")
	v.SetDefault("batch.stagger_max", "2s")
	v.SetDefault("batch.retention", "30m")
	v.SetDefault("batch.cpu_workers", runtime.NumCPU())

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "temp/status")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.redis_prefix", "imgadapt:batch")
	v.SetDefault("store.ttl", "1h")

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.max_upload_bytes", 256<<20)
}

// Load reads config.toml from the given directories (when present), applies IMGADAPT_* env overrides
// and decodes the result.
func Load(v *viper.Viper, paths ...string) (Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("error reading config file %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Remote.Mode {
	case "simulate", "real":
	default:
		return fmt.Errorf("invalid remote.mode %q", c.Remote.Mode)
	}

	switch c.Remote.Transport {
	case "inline", "url":
	default:
		return fmt.Errorf("invalid remote.transport %q", c.Remote.Transport)
	}

	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Batch.StaggerMax < c.Batch.StaggerMin {
		return fmt.Errorf("batch.stagger_max %s is below batch.stagger_min %s", c.Batch.StaggerMax, c.Batch.StaggerMin)
	}
	if c.HTTP.MaxUploadBytes < 1 {
		return fmt.Errorf("http.max_upload_bytes must be positive, got %d", c.HTTP.MaxUploadBytes)
	}
	if c.Remote.PollMaxAttempts < 1 || c.Remote.RetryAttempts < 1 || c.Remote.DownloadAttempts < 1 {
		return errors.New("remote attempt counts must be positive")
	}

	return nil
}
