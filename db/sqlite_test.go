package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreRecordsRuns(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	older := TrainingRun{ID: "run-1", ModelType: "decision_tree", Rows: 10, Accuracy: 0.7, TrainedAt: now.Add(-time.Hour)}
	newer := TrainingRun{ID: "run-2", ModelType: "random_forest", Rows: 12, TrainRows: 10, TestRows: 2, Accuracy: 0.9, F1: 0.8, TrainedAt: now}
	for _, run := range []TrainingRun{older, newer} {
		if err := store.RecordTraining(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	runs, err := store.RecentTraining(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" || runs[0].ModelType != "random_forest" || runs[0].TestRows != 2 {
		t.Fatalf("unexpected newest run: %+v", runs[0])
	}

	if err := store.RecordBatch(BatchRun{ID: "batch-1", Input: "in.csv", Output: "out.csv", Rows: 3, Positives: 2, RanAt: now}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batches, err := store.RecentBatches(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 || batches[0].Positives != 2 || batches[0].Output != "out.csv" {
		t.Fatalf("unexpected batches: %+v", batches)
	}

	if err := store.RecordTraining(older); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}
