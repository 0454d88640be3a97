package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"loanscore/config"
	"loanscore/db"
	"loanscore/logging"
	"loanscore/ml"
	"loanscore/pipeline"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	input := flag.String("input", "", "dataset to score (.csv or .xlsx)")
	output := flag.String("output", "", "result file (overrides config)")
	watchDir := flag.String("watch", "", "score every dataset dropped into this directory")
	outputDir := flag.String("output_dir", "", "directory for results in watch mode")
	modelPath := flag.String("model_path", "", "model artifact path (overrides config)")
	encodersPath := flag.String("encoders_path", "", "encoder artifact path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *input != "" {
		cfg.Batch.Input = *input
	}
	if *output != "" {
		cfg.Batch.Output = *output
	}
	if *watchDir != "" {
		cfg.Batch.WatchDir = *watchDir
	}
	if *outputDir != "" {
		cfg.Batch.OutputDir = *outputDir
	}
	if *modelPath != "" {
		cfg.Artifacts.ModelPath = *modelPath
	}
	if *encodersPath != "" {
		cfg.Artifacts.EncodersPath = *encodersPath
	}
	if cfg.Batch.Input == "" && cfg.Batch.WatchDir == "" {
		log.Fatal("input or watch is required")
	}

	logger, err := logging.New(cfg.LogOptions())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	runner := pipeline.NewRunner(logger, nil)
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open run log", zap.Error(err))
		}
		defer store.Close()
		runner.Store = store
	}

	batch := pipeline.BatchOptions{
		Input:            cfg.Batch.Input,
		Output:           cfg.Batch.Output,
		Encoding:         cfg.Data.Encoding,
		PredictionColumn: cfg.Data.PredictionColumn,
		ModelPath:        cfg.Artifacts.ModelPath,
		EncodersPath:     cfg.Artifacts.EncodersPath,
	}

	if cfg.Batch.WatchDir == "" {
		result, err := runner.BatchPredict(batch)
		if err != nil {
			logger.Fatal("batch prediction failed", zap.Error(err))
		}
		fmt.Printf("%d rows scored, %d approved, saved to %s\n", result.Rows, result.Positives, result.Output)
		return
	}

	predictor, err := ml.LoadPredictor(cfg.Artifacts.ModelPath, cfg.Artifacts.EncodersPath)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runner.Watch(ctx, predictor, pipeline.WatchOptions{
		Dir:       cfg.Batch.WatchDir,
		OutputDir: cfg.Batch.OutputDir,
		Settle:    cfg.Batch.Settle,
		Batch:     batch,
	}); err != nil {
		logger.Fatal("watch failed", zap.Error(err))
	}
}
