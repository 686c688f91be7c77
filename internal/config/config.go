package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig `yaml:"server"`
	Sampler   SamplerCfg   `yaml:"sampler"`
	Commands  CommandsCfg  `yaml:"commands"`
	Endpoints EndpointsCfg `yaml:"endpoints"`
	History   HistoryCfg   `yaml:"history"`
	Health    HealthCfg    `yaml:"health"`
	Log       LogCfg       `yaml:"log"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"` // overridden by the positional argument
	Backlog        int           `yaml:"backlog"`
	ReadBufferSize int           `yaml:"read_buffer_size"`
	ReadTimeout    time.Duration `yaml:"read_timeout"` // 0 disables the deadline
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReuseAddr      bool          `yaml:"reuse_addr"`
	ReusePort      bool          `yaml:"reuse_port"`
}

type SamplerCfg struct {
	Interval time.Duration `yaml:"interval"`
	Source   string        `yaml:"source"` // "command" or "native"
}

type CommandsCfg struct {
	Shell    string `yaml:"shell"`
	Stat     string `yaml:"stat"`
	Hostname string `yaml:"hostname"`
	CPUName  string `yaml:"cpu_name"`
}

type EndpointsCfg struct {
	StaticCacheTTL time.Duration `yaml:"static_cache_ttl"`
}

type HistoryCfg struct {
	Path       string `yaml:"path"` // empty disables the store
	MaxEntries int    `yaml:"max_entries"`
}

type HealthCfg struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type LogCfg struct {
	Level string `yaml:"level"`
}

const (
	SourceCommand = "command"
	SourceNative  = "native"
)

func Default() Config {
	return Config{
		Server: ServerConfig{
			Backlog:        1,
			ReadBufferSize: 256,
			WriteTimeout:   10 * time.Second,
			ReuseAddr:      true,
			ReusePort:      true,
		},
		Sampler: SamplerCfg{
			Interval: 1 * time.Second,
			Source:   SourceCommand,
		},
		Commands: CommandsCfg{
			Shell:    "/bin/sh",
			Stat:     "head -n 1 /proc/stat",
			Hostname: "cat /proc/sys/kernel/hostname | tr -d '\\n'",
			CPUName:  "cat /proc/cpuinfo | grep 'model name' | head -n 1 | cut -f 2 -d ':' | awk '{$1=$1}1' | tr -d '\\n'",
		},
		History: HistoryCfg{
			Path:       "",
			MaxEntries: 1000,
		},
		Health: HealthCfg{
			Enabled: false,
			Port:    "9090",
		},
		Log: LogCfg{
			Level: "info",
		},
	}
}

// Load merges: defaults <- yaml <- env
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Server.Backlog <= 0 {
		cfg.Server.Backlog = 1
	}
	if cfg.Server.ReadBufferSize <= 0 {
		cfg.Server.ReadBufferSize = 256
	}
	if cfg.Sampler.Interval <= 0 {
		return cfg, errors.New("sampler.interval must be positive")
	}
	switch cfg.Sampler.Source {
	case SourceCommand, SourceNative:
	case "":
		cfg.Sampler.Source = SourceCommand
	default:
		return cfg, fmt.Errorf("sampler.source: unknown source %q", cfg.Sampler.Source)
	}
	if cfg.Commands.Shell == "" {
		return cfg, errors.New("commands.shell is required")
	}
	if cfg.History.MaxEntries <= 0 {
		cfg.History.MaxEntries = 1000
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	// Server
	if v := os.Getenv("SYSQUERYD_BACKLOG"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Backlog = n
		}
	}
	if v := os.Getenv("SYSQUERYD_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SYSQUERYD_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Sampler
	if v := os.Getenv("SYSQUERYD_SAMPLE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sampler.Interval = d
		}
	}
	if v := os.Getenv("SYSQUERYD_SAMPLE_SOURCE"); v != "" {
		cfg.Sampler.Source = strings.ToLower(v)
	}

	// Endpoints
	if v := os.Getenv("SYSQUERYD_STATIC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Endpoints.StaticCacheTTL = d
		}
	}

	// History/Health/Log
	if v, ok := os.LookupEnv("SYSQUERYD_HISTORY_PATH"); ok {
		cfg.History.Path = v
	}
	if v := os.Getenv("SYSQUERYD_HEALTH"); v != "" {
		cfg.Health.Enabled = (v == "1" || strings.EqualFold(v, "true"))
	}
	if v := os.Getenv("SYSQUERYD_HEALTH_PORT"); v != "" {
		cfg.Health.Port = v
	}
	if v := os.Getenv("SYSQUERYD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// ValidatePort accepts only a non-empty string of decimal digits naming a
// port in 1..65535.
func ValidatePort(arg string) (int, error) {
	if arg == "" {
		return 0, errors.New("port is empty")
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("port %q is not numerical", arg)
		}
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %q out of range", arg)
	}
	return n, nil
}
