package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/api"
	"github.com/yourusername/sc-fetch-go/internal/app"
	"github.com/yourusername/sc-fetch-go/internal/infrastructure"
	"github.com/yourusername/sc-fetch-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(config.Logging.Level, config.Logging.Format, config.Logging.OutputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting sc-fetch server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("extractor", config.Extractor.Binary))

	for _, dir := range []string{config.Download.BaseDir, config.Download.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	repo, err := infrastructure.NewSQLiteJobRepository(config.History.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize job history", zap.Error(err))
	}
	defer repo.Close()

	invoker := infrastructure.NewInvoker(log)
	archiver := infrastructure.NewArchiver(log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)
	broadcaster := app.NewBroadcaster(log)

	jobMgr := app.NewJobManager(repo, invoker, archiver, broadcaster, notifier, config, log)
	defer jobMgr.Stop()

	router := api.SetupRouter(jobMgr, broadcaster, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
