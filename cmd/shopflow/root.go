package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/shopflow/internal/app"
	"github.com/dshills/shopflow/internal/config"
	"github.com/dshills/shopflow/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "shopflow",
	Short:         "Conversational ordering and product listing for a pmall shop",
	Long:          `shopflow drives resumable LLM workflows that place orders and list products against a pmall backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var files []string
		if f, _ := cmd.Flags().GetString("env-file"); f != "" {
			files = append(files, f)
		}
		return config.LoadDotEnv(files...)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("env-file", "", "Environment file to load (default .env, if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("store", "", "Checkpoint store driver: memory, sqlite, mysql or redis")
	rootCmd.PersistentFlags().String("dsn", "", "Store DSN (sqlite path or mysql DSN)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider: openai, anthropic, google or mock")
}

// loadConfig reads the config file, then environment and flag overrides.
// Flags win over the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	v := config.Env()
	for key, flag := range map[string]string{
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
		config.KeyStoreDriver: "store",
		config.KeyStoreDSN:    "dsn",
		config.KeyProvider:    "provider",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return config.Config{}, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return config.LoadWith(path, v)
}

// openApp builds the workflows for cmd.
func openApp(cmd *cobra.Command) (*app.App, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, config.Config{}, err
	}
	logger := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return a, cfg, nil
}
