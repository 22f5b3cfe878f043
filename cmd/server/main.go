package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clinic-sync-service/internal/api"
	"clinic-sync-service/internal/config"
	"clinic-sync-service/internal/connectivity"
	"clinic-sync-service/internal/facade"
	"clinic-sync-service/internal/logger"
	"clinic-sync-service/internal/remote"
	"clinic-sync-service/internal/store"
	"clinic-sync-service/internal/sync"
)

func main() {
	// Load Config
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting clinic sync service")

	// Init Local Store
	localStore, err := store.NewSQLiteStore(cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to init local store", zap.Error(err))
	}
	defer localStore.Close()

	// Remote API client
	remoteClient := remote.NewHTTPClient(cfg.Remote)

	// Connectivity Monitor (probes the remote health endpoint)
	monitor := connectivity.NewProber(func(ctx context.Context) error {
		_, err := remoteClient.Get(ctx, cfg.Remote.HealthPath)
		return err
	}, cfg.Connectivity.GetProbeInterval())
	monitor.Start()

	// Sync Queue Manager
	queue := sync.NewManager(cfg.Sync, localStore, remoteClient, monitor)
	if err := queue.Start(); err != nil {
		logger.Log.Fatal("Failed to start sync manager", zap.Error(err))
	}

	// Data Access Facade
	svc := facade.New(localStore, remoteClient, monitor, queue)

	// Init API
	handler := api.NewHandler(svc, queue, cfg.Server)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server shutdown failed", zap.Error(err))
	}

	queue.Stop()
	monitor.Stop()
}
