package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loanscore/config"
	"loanscore/db"
	lhttp "loanscore/http"
	"loanscore/logging"
	"loanscore/ml"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	port := flag.Int("port", 0, "listen port (overrides config)")
	modelPath := flag.String("model_path", "", "model artifact path (overrides config)")
	encodersPath := flag.String("encoders_path", "", "encoder artifact path (overrides config)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Http.Port = *port
	}
	if *modelPath != "" {
		cfg.Artifacts.ModelPath = *modelPath
	}
	if *encodersPath != "" {
		cfg.Artifacts.EncodersPath = *encodersPath
	}

	logger, err := logging.New(cfg.LogOptions())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2. Load artifacts; the service never starts without a usable model
	predictor, err := ml.LoadPredictor(cfg.Artifacts.ModelPath, cfg.Artifacts.EncodersPath)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}
	logger.Info("model loaded",
		zap.String("model_path", cfg.Artifacts.ModelPath),
		zap.Strings("features", predictor.Schema().Features),
	)

	// 3. Open the run log when configured
	var runs lhttp.RunLog
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open run log", zap.Error(err))
		}
		defer store.Close()
		runs = store
	}

	// 4. Start HTTP server
	server, err := lhttp.NewServer(lhttp.ServerConfig{
		Port:         cfg.Http.Port,
		Timeout:      cfg.Http.Timeout,
		CacheSize:    cfg.Http.CacheSize,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
	}, predictor, runs, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
