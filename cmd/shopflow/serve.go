package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/shopflow/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves the thread API for every workflow, plus /metrics and /healthz. SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, cfg, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handler := server.NewHandler(a, a.Registry, a.Logger)
		return server.Run(ctx, cfg.Server.Addr, handler, cfg.Server.ShutdownTimeout.Std(), a.Logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (default from config, :8088)")
}
