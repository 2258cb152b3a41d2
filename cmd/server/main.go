package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/config"
	"github.com/garyjia/invoice-reconciliation/internal/container"
	httpapi "github.com/garyjia/invoice-reconciliation/internal/interfaces/http"
	"github.com/garyjia/invoice-reconciliation/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice reconciliation server",
		zap.String("version", httpapi.Version),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize container", zap.Error(err))
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	var inbox httpapi.InboxStatusProvider
	if c.Inbox() != nil {
		inbox = c.Inbox()
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, c.Service(), c.Catalog(), inbox, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
