package main

import (
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"loanscore/config"
	"loanscore/db"
	"loanscore/logging"
	"loanscore/ml"
	"loanscore/pipeline"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	data := flag.String("data", "", "training dataset (.csv or .xlsx)")
	modelType := flag.String("model_type", "", "random_forest or decision_tree")
	nEstimators := flag.Int("n_estimators", 0, "number of trees in the forest")
	maxDepth := flag.Int("max_depth", -1, "max tree depth, 0 for unlimited")
	testRatio := flag.Float64("test_ratio", -1, "held-out fraction")
	seed := flag.Int64("seed", 0, "random seed for split and training")
	modelPath := flag.String("model_path", "", "model output path")
	encodersPath := flag.String("encoders_path", "", "encoder table output path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *data == "" {
		log.Fatal("data is required")
	}
	if *modelType != "" {
		cfg.ML.ModelType = *modelType
	}
	if *nEstimators > 0 {
		cfg.ML.NEstimators = *nEstimators
	}
	if *maxDepth >= 0 {
		cfg.ML.MaxDepth = *maxDepth
	}
	if *testRatio >= 0 {
		cfg.ML.TestRatio = *testRatio
	}
	if *seed != 0 {
		cfg.ML.Seed = *seed
	}
	if *modelPath != "" {
		cfg.Artifacts.ModelPath = *modelPath
	}
	if *encodersPath != "" {
		cfg.Artifacts.EncodersPath = *encodersPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid options: %v", err)
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

	result, err := runner.Train(pipeline.TrainOptions{
		Dataset:       *data,
		Encoding:      cfg.Data.Encoding,
		IDColumn:      cfg.Data.IDColumn,
		LabelColumn:   cfg.Data.LabelColumn,
		PositiveLabel: cfg.Data.PositiveLabel,
		NegativeLabel: cfg.Data.NegativeLabel,
		ModelType:     cfg.ML.ModelType,
		Params: ml.Hyperparams{
			NEstimators:     cfg.ML.NEstimators,
			MaxDepth:        cfg.ML.MaxDepth,
			MinSamplesSplit: cfg.ML.MinSamplesSplit,
			MaxFeatures:     cfg.ML.MaxFeatures,
			Seed:            cfg.ML.Seed,
		},
		TestRatio:    cfg.ML.TestRatio,
		ModelPath:    cfg.Artifacts.ModelPath,
		EncodersPath: cfg.Artifacts.EncodersPath,
	})
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	if result.TestRows > 0 {
		fmt.Print(result.Report.String())
	}
	fmt.Printf("model saved to %s\n", cfg.Artifacts.ModelPath)
	fmt.Printf("encoders saved to %s\n", cfg.Artifacts.EncodersPath)
}
