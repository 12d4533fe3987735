// Package config loads scheduler configuration from environment variables,
// with an optional YAML file providing lower-priority defaults.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `yaml:"host"     env:"DB_HOST"`
	Port     string `yaml:"port"     env:"DB_PORT"`
	Name     string `yaml:"name"     env:"DB_NAME"`
	User     string `yaml:"user"     env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	SSLMode  string `yaml:"sslmode"  env:"DB_SSLMODE"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SetDefaults fills in Database fields left unset.
func (d *Database) SetDefaults() {
	if d.Port == "" {
		d.Port = "5432"
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = 25
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 5
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = 5 * time.Minute
	}
}

// Config is the root configuration for the scheduler service.
type Config struct {
	DB Database `yaml:"database"`

	SchedulerMaxWorkers          int     `yaml:"scheduler_max_workers"           env:"SCHEDULER_MAX_WORKERS"`
	EnableEmbeddedScheduler      bool    `yaml:"enable_embedded_scheduler"       env:"ENABLE_EMBEDDED_SCHEDULER"`
	EnableRequestCoordinator     bool    `yaml:"enable_request_coordinator"      env:"ENABLE_REQUEST_COORDINATOR"`
	RequestCoordinatorWindowSecs float64 `yaml:"request_coordinator_window_secs" env:"REQUEST_COORDINATOR_WINDOW_SECONDS"`
	CORSOrigins                  string  `yaml:"cors_origins"                    env:"CORS_ORIGINS"`

	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`

	ElasticsearchURL string `yaml:"elasticsearch_url" env:"ELASTICSEARCH_URL"`

	Logging LoggingConfig `yaml:"logging"`

	ServerAddress string `yaml:"server_address" env:"SERVER_ADDRESS"`

	// sawEmbeddedScheduler and sawRequestCoordinator record whether their
	// env vars were present, so SetDefaults can tell "unset" from "false"
	// for flags that default to true.
	sawEmbeddedScheduler  bool
	sawRequestCoordinator bool
}

// LoggingConfig mirrors the logger package's Config shape for embedding.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEV"`
}

// CORSOriginList splits CORSOrigins on commas. An unset value denies all
// origins.
func (c *Config) CORSOriginList() []string {
	if strings.TrimSpace(c.CORSOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetDefaults fills in Config fields left unset after loading.
func (c *Config) SetDefaults() {
	c.DB.SetDefaults()
	if c.SchedulerMaxWorkers <= 0 {
		c.SchedulerMaxWorkers = 5
	}
	if c.RequestCoordinatorWindowSecs <= 0 {
		c.RequestCoordinatorWindowSecs = 1.0
	}
	if c.ServerAddress == "" {
		c.ServerAddress = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	// Boolean env defaults: true unless explicitly disabled. SetDefaults
	// runs after env overrides, so an explicit "false" has already landed;
	// these flags simply need a true default when the var was never set.
	if !c.sawEmbeddedScheduler {
		c.EnableEmbeddedScheduler = true
	}
	if !c.sawRequestCoordinator {
		c.EnableRequestCoordinator = true
	}
}

// Load reads environment variables (and .env files) into a Config.
// An optional YAML file at path supplies lower-priority defaults; pass ""
// to skip file loading entirely.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	var cfg Config

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	seen := applyEnvOverrides(&cfg)
	cfg.sawEmbeddedScheduler = seen["ENABLE_EMBEDDED_SCHEDULER"]
	cfg.sawRequestCoordinator = seen["ENABLE_REQUEST_COORDINATOR"]
	cfg.SetDefaults()

	return &cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides walks the struct applying `env:"..."` tagged values from
// the process environment, and returns the set of env var names that were
// actually present (so bool defaults can distinguish unset from false).
func applyEnvOverrides(cfg any) map[string]bool {
	seen := map[string]bool{}
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	applyEnvToStruct(v, seen)
	return seen
}

func applyEnvToStruct(v reflect.Value, seen map[string]bool) {
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			applyEnvToStruct(field, seen)
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envVal, ok := os.LookupEnv(envTag)
		if !ok || envVal == "" {
			continue
		}
		seen[envTag] = true
		setFieldFromString(field, envVal)
	}
}

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Bool:
		field.SetBool(parseBool(val))
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
