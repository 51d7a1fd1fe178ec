package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/execgate/internal/config"
	"github.com/jkaninda/execgate/internal/observability"
	"github.com/jkaninda/execgate/internal/server"
	goutils "github.com/jkaninda/go-utils"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gateway tools over MCP on stdin/stdout",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `execgate --config path` and `execgate serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	}
}

// runServe starts execgate as an MCP stdio server. Logs go to stderr;
// stdout carries only protocol frames.
func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(goutils.Env("EXECGATE_CONFIG", serveConfigPath), logger)
	if err != nil {
		return err
	}

	c, err := initComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics/health HTTP server (optional).
	if c.Metrics != nil {
		obsServer := observability.NewServer(cfg.Observability.Metrics.ListenAddr, c.Metrics, c.Health, logger)
		go func() {
			if err := obsServer.Start(ctx); err != nil {
				logger.Error("observability server exited", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Error("stopping observability server", slog.String("error", err.Error()))
			}
		}()
	}

	srv, err := server.New("execgate", version, c.Registry, logger)
	if err != nil {
		return err
	}

	logger.Info("serving MCP on stdio", slog.Any("tools", c.Registry.List()))
	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
