package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loanscore/dataset"
	"loanscore/db"
	"loanscore/ml"
)

// RunStore persists run summaries. *db.Store satisfies it.
type RunStore interface {
	RecordTraining(run db.TrainingRun) error
	RecordBatch(run db.BatchRun) error
}

// Runner executes the training and batch scoring workflows.
type Runner struct {
	Logger *zap.Logger
	// Store is optional; nil disables the run log.
	Store RunStore
}

func NewRunner(logger *zap.Logger, store RunStore) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Logger: logger, Store: store}
}

type TrainOptions struct {
	Dataset       string
	Encoding      string
	IDColumn      string
	LabelColumn   string
	PositiveLabel string
	NegativeLabel string
	ModelType     string
	Params        ml.Hyperparams
	TestRatio     float64
	ModelPath     string
	EncodersPath  string
}

type TrainResult struct {
	RunID     string
	Rows      int
	TrainRows int
	TestRows  int
	Report    ml.Report
	Artifact  *ml.ModelArtifact
	Encoders  ml.EncoderTable
	// TestIndices are the dataset rows held out for evaluation.
	TestIndices []int
}

// Train fits encoders and a classifier on opts.Dataset and writes both artifacts.
func (r *Runner) Train(opts TrainOptions) (*TrainResult, error) {
	if opts.ModelPath == "" || opts.EncodersPath == "" {
		return nil, errors.New("model path and encoders path are required")
	}
	runID := uuid.NewString()
	logger := r.Logger.With(zap.String("run_id", runID), zap.String("dataset", opts.Dataset))

	ds, err := dataset.Read(opts.Dataset, dataset.Options{Encoding: opts.Encoding})
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset %s has no rows", opts.Dataset)
	}
	for _, column := range []string{opts.IDColumn, opts.LabelColumn} {
		if !ds.Has(column) {
			return nil, &ml.MissingColumnError{Column: column}
		}
	}

	rawLabels, err := ds.Column(opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	labels, err := ml.EncodeLabels(opts.LabelColumn, rawLabels, opts.PositiveLabel, opts.NegativeLabel)
	if err != nil {
		return nil, err
	}

	schema, encoders, err := ml.FitSchema(ds, opts.IDColumn, opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	matrix, err := schema.Matrix(ds, encoders)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset encoded",
		zap.Int("rows", ds.Len()),
		zap.Strings("features", schema.Features),
		zap.Strings("categorical", encoders.Columns()),
	)

	trainIdx, testIdx := ml.TrainTestSplit(len(matrix), opts.TestRatio, opts.Params.Seed)
	trainX, trainY := ml.SelectRows(matrix, labels, trainIdx)
	testX, testY := ml.SelectRows(matrix, labels, testIdx)

	classifier, err := ml.NewClassifier(opts.ModelType, opts.Params)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := classifier.Train(trainX, trainY); err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	logger.Info("model trained",
		zap.String("model_type", opts.ModelType),
		zap.Int("train_rows", len(trainX)),
		zap.Duration("elapsed", time.Since(start)),
	)

	predicted := make([]int, len(testX))
	for i, row := range testX {
		label, _, err := classifier.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate model: %w", err)
		}
		predicted[i] = label
	}
	report, err := ml.Evaluate(testY, predicted)
	if err != nil {
		return nil, err
	}
	if report.Total == 0 {
		logger.Warn("no rows held out, skipping evaluation")
	} else {
		logger.Info("classification report",
			zap.Float64("accuracy", report.Accuracy),
			zap.Float64("precision", report.Classes[1].Precision),
			zap.Float64("recall", report.Classes[1].Recall),
			zap.Float64("f1", report.Classes[1].F1),
		)
	}

	artifact, err := ml.NewModelArtifact(classifier, schema)
	if err != nil {
		return nil, err
	}
	artifact.Metadata = ml.ModelMetadata{
		RunID:     runID,
		Dataset:   opts.Dataset,
		TrainedAt: time.Now().UTC(),
		TrainRows: len(trainX),
		TestRows:  len(testX),
		Report:    report,
	}
	if err := ml.SaveArtifacts(opts.ModelPath, opts.EncodersPath, artifact, encoders); err != nil {
		return nil, err
	}
	logger.Info("artifacts saved",
		zap.String("model_path", opts.ModelPath),
		zap.String("encoders_path", opts.EncodersPath),
	)

	if r.Store != nil {
		run := db.TrainingRun{
			ID:           runID,
			ModelType:    opts.ModelType,
			Dataset:      opts.Dataset,
			Rows:         ds.Len(),
			TrainRows:    len(trainX),
			TestRows:     len(testX),
			Accuracy:     report.Accuracy,
			Precision:    report.Classes[1].Precision,
			Recall:       report.Classes[1].Recall,
			F1:           report.Classes[1].F1,
			ModelPath:    opts.ModelPath,
			EncodersPath: opts.EncodersPath,
			TrainedAt:    artifact.Metadata.TrainedAt,
		}
		if err := r.Store.RecordTraining(run); err != nil {
			logger.Warn("failed to record training run", zap.Error(err))
		}
	}

	return &TrainResult{
		RunID:       runID,
		Rows:        ds.Len(),
		TrainRows:   len(trainX),
		TestRows:    len(testX),
		Report:      report,
		Artifact:    artifact,
		Encoders:    encoders,
		TestIndices: testIdx,
	}, nil
}
