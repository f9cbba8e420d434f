package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/michaelbrown/codetutor/internal/sandbox"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	RPS           float64 `mapstructure:"rps"`
	Burst         int     `mapstructure:"burst"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type DockerConfig struct {
	Memory    string            `mapstructure:"memory"`
	Network   bool              `mapstructure:"network"`
	PidsLimit int               `mapstructure:"pids_limit"`
	Images    map[string]string `mapstructure:"images"`
}

type SandboxConfig struct {
	Timeout   time.Duration     `mapstructure:"timeout"`
	MaxOutput int               `mapstructure:"max_output"`
	TempDir   string            `mapstructure:"temp_dir"`
	Isolation string            `mapstructure:"isolation"`
	Commands  map[string]string `mapstructure:"commands"`
	Docker    DockerConfig      `mapstructure:"docker"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Events  EventsConfig  `mapstructure:"events"`
}

// Load reads configuration from path, or from codetutor.yaml in the working
// directory or $HOME/.codetutor when path is empty. A missing file is only an
// error when path was given explicitly. Environment variables prefixed with
// CODETUTOR_ override file values, and a .env file in the working directory
// is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codetutor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.codetutor")
	}

	v.SetEnvPrefix("CODETUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in values written as ${VAR}
	cfg.Storage.DBPath = expandEnv(cfg.Storage.DBPath)
	cfg.Sandbox.TempDir = expandEnv(cfg.Sandbox.TempDir)
	for i, b := range cfg.Events.Kafka.Brokers {
		cfg.Events.Kafka.Brokers[i] = expandEnv(b)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	policy := sandbox.DefaultPolicy()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit.rps", 5)
	v.SetDefault("server.rate_limit.burst", 10)
	v.SetDefault("server.rate_limit.max_concurrent", 8)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".codetutor", "codetutor.db"))
	v.SetDefault("sandbox.timeout", "10s")
	v.SetDefault("sandbox.max_output", 10000)
	v.SetDefault("sandbox.temp_dir", filepath.Join(os.TempDir(), "codetutor"))
	v.SetDefault("sandbox.isolation", policy.Isolation)
	v.SetDefault("sandbox.commands", map[string]string{})
	v.SetDefault("sandbox.docker.memory", policy.MaxMemory)
	v.SetDefault("sandbox.docker.network", policy.Network)
	v.SetDefault("sandbox.docker.pids_limit", policy.PidsLimit)
	v.SetDefault("sandbox.docker.images", policy.Images)
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "codetutor.executions")
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// Policy converts the sandbox settings into an isolation policy. Images from
// the config file are merged over the built-in map.
func (c SandboxConfig) Policy() sandbox.Policy {
	p := sandbox.DefaultPolicy()
	if c.Isolation != "" {
		p.Isolation = c.Isolation
	}
	if c.Docker.Memory != "" {
		p.MaxMemory = c.Docker.Memory
	}
	if c.Docker.PidsLimit > 0 {
		p.PidsLimit = c.Docker.PidsLimit
	}
	p.Network = c.Docker.Network
	for lang, img := range c.Docker.Images {
		p.Images[lang] = img
	}
	return p
}
