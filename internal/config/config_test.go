package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Engine.MaxSteps)
	assert.Equal(t, 15*time.Second, cfg.Pmall.Timeout.Std())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "shopflow.yaml", `
log: {level: debug, format: json}
llm: {provider: anthropic, model: claude-3-5-sonnet-latest}
pmall: {base_url: "http://mall:8080", timeout: 3s}
store:
  driver: sqlite
  dsn: /tmp/threads.db
  redis: {ttl: 90}
engine: {max_steps: 20, step_timeout: 1m}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 0.7, cfg.LLM.Temperature, "unset fields keep defaults")
	assert.Equal(t, "http://mall:8080", cfg.Pmall.BaseURL)
	assert.Equal(t, "piao", cfg.Pmall.Username)
	assert.Equal(t, 3*time.Second, cfg.Pmall.Timeout.Std())
	assert.Equal(t, 90*time.Second, cfg.Store.Redis.TTL.Std())
	assert.Equal(t, time.Minute, cfg.Engine.StepTimeout.Std())
	assert.Equal(t, 20, cfg.Engine.MaxSteps)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "shopflow.json", `{"store": {"driver": "redis", "redis": {"addr": "cache:6379", "ttl": "2h"}}, "server": {"shutdown_timeout": 10}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Store.Redis.TTL.Std())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Std())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOPFLOW_LLM_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("PMALL_API_URL", "http://env-mall")
	t.Setenv("SHOPFLOW_STORE_DRIVER", "mysql")
	t.Setenv("SHOPFLOW_STORE_DSN", "user:pw@tcp(db)/shop")
	t.Setenv("SHOPFLOW_MAX_STEPS", "75")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "http://env-mall", cfg.Pmall.BaseURL)
	assert.Equal(t, "mysql", cfg.Store.Driver)
	assert.Equal(t, 75, cfg.Engine.MaxSteps)

	t.Setenv("SHOPFLOW_MAX_STEPS", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "SHOPFLOW_MAX_STEPS")
}

// unsetenv clears key for the test and restores it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadDotEnv(t *testing.T) {
	unsetenv(t, "PMALL_USERNAME")
	unsetenv(t, "PMALL_PASSWORD")
	t.Setenv("PMALL_API_URL", "http://shell-mall")

	path := writeFile(t, ".env", "PMALL_USERNAME=dotenv-user\nPMALL_PASSWORD=dotenv-pw\nPMALL_API_URL=http://dotenv-mall\n")
	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-user", cfg.Pmall.Username)
	assert.Equal(t, "dotenv-pw", cfg.Pmall.Password)
	assert.Equal(t, "http://shell-mall", cfg.Pmall.BaseURL, "the shell environment wins over .env")
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv_Malformed(t *testing.T) {
	path := writeFile(t, ".env", "PMALL_USERNAME='unterminated\n")
	assert.ErrorContains(t, LoadDotEnv(path), ".env")
}

func TestLoadWith_SetValuesBeatEnv(t *testing.T) {
	t.Setenv("SHOPFLOW_LLM_PROVIDER", "openai")
	t.Setenv("SHOPFLOW_LOG_LEVEL", "warn")

	v := Env()
	v.Set(KeyProvider, "mock")
	cfg, err := LoadWith("", v)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }, "llm.provider"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }, "store.dsn"},
		{"empty pmall url", func(c *Config) { c.Pmall.BaseURL = " " }, "pmall.base_url"},
		{"zero max steps", func(c *Config) { c.Engine.MaxSteps = 0 }, "max_steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "pmall: {timeout: soon}"))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestDuration_RoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1m30s\n", string(out))
}
