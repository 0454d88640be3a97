package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loanscore/dataset"
	"loanscore/db"
	"loanscore/ml"
)

type BatchOptions struct {
	Input            string
	Output           string
	Encoding         string
	PredictionColumn string
	ModelPath        string
	EncodersPath     string
}

type BatchResult struct {
	RunID     string
	Rows      int
	Positives int
	Output    string
}

// BatchPredict loads the artifacts and scores opts.Input into opts.Output.
func (r *Runner) BatchPredict(opts BatchOptions) (*BatchResult, error) {
	predictor, err := ml.LoadPredictor(opts.ModelPath, opts.EncodersPath)
	if err != nil {
		return nil, err
	}
	return r.Score(predictor, opts)
}

// Score appends a prediction column to every row of opts.Input and writes the result.
// Any bad row aborts the run before the output file is created.
func (r *Runner) Score(predictor *ml.Predictor, opts BatchOptions) (*BatchResult, error) {
	runID := uuid.NewString()
	logger := r.Logger.With(zap.String("run_id", runID), zap.String("input", opts.Input))

	ds, err := dataset.Read(opts.Input, dataset.Options{Encoding: opts.Encoding})
	if err != nil {
		return nil, err
	}
	matrix, err := predictor.Schema().Matrix(ds, predictor.Encoders())
	if err != nil {
		return nil, err
	}

	predictions := make([]string, len(matrix))
	positives := 0
	for i, vector := range matrix {
		class, _, err := predictor.Classify(vector)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		predictions[i] = ml.DecodePrediction(class)
		if class == 1 {
			positives++
		}
	}

	out, err := ds.AppendColumn(opts.PredictionColumn, predictions)
	if err != nil {
		return nil, err
	}
	if err := dataset.Write(opts.Output, out); err != nil {
		return nil, err
	}
	logger.Info("predictions saved",
		zap.String("output", opts.Output),
		zap.Int("rows", ds.Len()),
		zap.Int("approved", positives),
	)

	if r.Store != nil {
		run := db.BatchRun{
			ID:        runID,
			Input:     opts.Input,
			Output:    opts.Output,
			Rows:      ds.Len(),
			Positives: positives,
			ModelPath: opts.ModelPath,
			RanAt:     time.Now().UTC(),
		}
		if err := r.Store.RecordBatch(run); err != nil {
			logger.Warn("failed to record batch run", zap.Error(err))
		}
	}

	return &BatchResult{RunID: runID, Rows: ds.Len(), Positives: positives, Output: opts.Output}, nil
}
