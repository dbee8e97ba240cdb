package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Node      NodeConfig      `json:"node" yaml:"node"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr" yaml:"bindAddr"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

type NodeConfig struct {
	CallTimeout   string `json:"callTimeout" yaml:"callTimeout"`     // read operations, e.g. "5s"
	MutateTimeout string `json:"mutateTimeout" yaml:"mutateTimeout"` // mutating operations, e.g. "30s"
}

type ReconcileConfig struct {
	Interval    string `json:"interval" yaml:"interval"` // e.g. "30s"
	MaxAttempts int    `json:"maxAttempts" yaml:"maxAttempts"`
}

type AuthConfig struct {
	// AdminToken bootstraps access before any user record exists.
	AdminToken string `json:"adminToken" yaml:"adminToken"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		Node: NodeConfig{
			CallTimeout:   getEnv("NODE_CALL_TIMEOUT", "5s"),
			MutateTimeout: getEnv("NODE_MUTATE_TIMEOUT", "30s"),
		},
		Reconcile: ReconcileConfig{
			Interval:    getEnv("RECONCILE_INTERVAL", "30s"),
			MaxAttempts: getEnvInt("RECONCILE_MAX_ATTEMPTS", 10),
		},
		Auth: AuthConfig{
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Node.CallTimeout == "" {
		cfg.Node.CallTimeout = "5s"
	}
	if cfg.Node.MutateTimeout == "" {
		cfg.Node.MutateTimeout = "30s"
	}
	if cfg.Reconcile.Interval == "" {
		cfg.Reconcile.Interval = "30s"
	}
	if cfg.Reconcile.MaxAttempts == 0 {
		cfg.Reconcile.MaxAttempts = 10
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if strings.HasSuffix(filePath, ".yaml") || strings.HasSuffix(filePath, ".yml") {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
		return nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
