// Package config loads shopflow configuration from YAML or JSON files and
// the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Supported LLM providers and store drivers.
var (
	Providers = []string{"openai", "anthropic", "google", "mock"}
	Drivers   = []string{"memory", "sqlite", "mysql", "redis"}
)

// Config is the full application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log" json:"log"`
	LLM    LLMConfig    `yaml:"llm" json:"llm"`
	Pmall  PmallConfig  `yaml:"pmall" json:"pmall"`
	Store  StoreConfig  `yaml:"store" json:"store"`
	Engine EngineConfig `yaml:"engine" json:"engine"`
	Server ServerConfig `yaml:"server" json:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	APIKey      string  `yaml:"api_key" json:"api_key"`
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

type PmallConfig struct {
	BaseURL  string   `yaml:"base_url" json:"base_url"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"password"`
	Timeout  Duration `yaml:"timeout" json:"timeout"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver" json:"driver"`
	DSN    string      `yaml:"dsn" json:"dsn"`
	Redis  RedisConfig `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
}

type EngineConfig struct {
	MaxSteps        int      `yaml:"max_steps" json:"max_steps"`
	StepTimeout     Duration `yaml:"step_timeout" json:"step_timeout"`
	LockTTL         Duration `yaml:"lock_ttl" json:"lock_ttl"`
	DistributedLock bool     `yaml:"distributed_lock" json:"distributed_lock"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr" json:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Default returns a configuration that is valid without any file.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.7},
		Pmall: PmallConfig{
			BaseURL:  "http://localhost:8080",
			Username: "piao",
			Password: "123456",
			Timeout:  Duration(15 * time.Second),
		},
		Store: StoreConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "shopflow:",
				TTL:    Duration(24 * time.Hour),
			},
		},
		Engine: EngineConfig{MaxSteps: 50, LockTTL: Duration(30 * time.Second)},
		Server: ServerConfig{Addr: ":8088", ShutdownTimeout: Duration(5 * time.Second)},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	return LoadWith(path, Env())
}

// LoadWith is Load with the overrides read from v instead of the bare
// environment. Callers bind command-line flags to v to layer them on top.
func LoadWith(path string, v *viper.Viper) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
		}
	}

	if err := cfg.apply(v); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envBindings maps override keys to environment variables.
var envBindings = map[string]string{
	KeyProvider:          "SHOPFLOW_LLM_PROVIDER",
	"llm.model":          "OPENAI_MODEL",
	"llm.base_url":       "OPENAI_BASE_URL",
	"llm.openai_api_key": "OPENAI_API_KEY",
	"llm.anthropic_key":  "ANTHROPIC_API_KEY",
	"llm.google_key":     "GOOGLE_API_KEY",
	"pmall.base_url":     "PMALL_API_URL",
	"pmall.username":     "PMALL_USERNAME",
	"pmall.password":     "PMALL_PASSWORD",
	KeyStoreDriver:       "SHOPFLOW_STORE_DRIVER",
	KeyStoreDSN:          "SHOPFLOW_STORE_DSN",
	"store.redis.addr":   "SHOPFLOW_REDIS_ADDR",
	KeyLogLevel:          "SHOPFLOW_LOG_LEVEL",
	"engine.max_steps":   "SHOPFLOW_MAX_STEPS",
}

// Override keys that command-line flags bind to.
const (
	KeyProvider    = "llm.provider"
	KeyStoreDriver = "store.driver"
	KeyStoreDSN    = "store.dsn"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

// Env returns a viper instance with the override keys bound to their
// environment variables.
func Env() *viper.Viper {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// LoadDotEnv loads KEY=value pairs from the given files, or from .env in
// the working directory when none are given. Variables already set keep
// their values and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) apply(v *viper.Viper) error {
	str := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	str(KeyProvider, &c.LLM.Provider)
	str("llm.model", &c.LLM.Model)
	str("llm.base_url", &c.LLM.BaseURL)
	switch c.LLM.Provider {
	case "anthropic":
		str("llm.anthropic_key", &c.LLM.APIKey)
	case "google":
		str("llm.google_key", &c.LLM.APIKey)
	default:
		str("llm.openai_api_key", &c.LLM.APIKey)
	}

	str("pmall.base_url", &c.Pmall.BaseURL)
	str("pmall.username", &c.Pmall.Username)
	str("pmall.password", &c.Pmall.Password)

	str(KeyStoreDriver, &c.Store.Driver)
	str(KeyStoreDSN, &c.Store.DSN)
	str("store.redis.addr", &c.Store.Redis.Addr)
	str(KeyLogLevel, &c.Log.Level)
	str(KeyLogFormat, &c.Log.Format)

	if s := v.GetString("engine.max_steps"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("SHOPFLOW_MAX_STEPS: %w", err)
		}
		c.Engine.MaxSteps = n
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if !contains(Providers, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %v", c.LLM.Provider, Providers))
	}
	if !contains(Drivers, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver %q is not one of %v", c.Store.Driver, Drivers))
	}
	if (c.Store.Driver == "sqlite" || c.Store.Driver == "mysql") && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver))
	}
	if c.Store.Driver == "redis" && c.Store.Redis.Addr == "" {
		errs = append(errs, errors.New("store.redis.addr is required for driver redis"))
	}
	if c.Engine.DistributedLock && c.Store.Redis.Addr == "" {
		errs = append(errs, errors.New("engine.distributed_lock needs store.redis.addr"))
	}
	if strings.TrimSpace(c.Pmall.BaseURL) == "" {
		errs = append(errs, errors.New("pmall.base_url is required"))
	}
	if c.Engine.MaxSteps <= 0 {
		errs = append(errs, errors.New("engine.max_steps must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Duration is a time.Duration written as "15s" in YAML and JSON.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML accepts duration strings and plain integer seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// UnmarshalJSON accepts duration strings and plain integer seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
