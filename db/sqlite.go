package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store records training and batch runs in SQLite.
type Store struct {
	db *sql.DB
}

// TrainingRun is one row of training_runs.
type TrainingRun struct {
	ID           string    `json:"id"`
	ModelType    string    `json:"model_type"`
	Dataset      string    `json:"dataset"`
	Rows         int       `json:"rows"`
	TrainRows    int       `json:"train_rows"`
	TestRows     int       `json:"test_rows"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	F1           float64   `json:"f1"`
	ModelPath    string    `json:"model_path"`
	EncodersPath string    `json:"encoders_path"`
	TrainedAt    time.Time `json:"trained_at"`
}

// BatchRun is one row of batch_runs.
type BatchRun struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Rows      int       `json:"rows"`
	Positives int       `json:"positives"`
	ModelPath string    `json:"model_path"`
	RanAt     time.Time `json:"ran_at"`
}

// Open initializes the SQLite database
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id TEXT PRIMARY KEY,
        model_type VARCHAR(32),
        dataset TEXT,
        row_count INTEGER,
        train_rows INTEGER,
        test_rows INTEGER,
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        model_path TEXT,
        encoders_path TEXT,
        trained_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS batch_runs (
        id TEXT PRIMARY KEY,
        input TEXT,
        output TEXT,
        row_count INTEGER,
        positives INTEGER,
        model_path TEXT,
        ran_at DATETIME
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordTraining(run TrainingRun) error {
	_, err := s.db.Exec(`
        INSERT INTO training_runs (id, model_type, dataset, row_count, train_rows, test_rows,
            accuracy, precision, recall, f1, model_path, encoders_path, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelType, run.Dataset, run.Rows, run.TrainRows, run.TestRows,
		run.Accuracy, run.Precision, run.Recall, run.F1, run.ModelPath, run.EncodersPath, run.TrainedAt,
	)
	return err
}

func (s *Store) RecordBatch(run BatchRun) error {
	_, err := s.db.Exec(`
        INSERT INTO batch_runs (id, input, output, row_count, positives, model_path, ran_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.Output, run.Rows, run.Positives, run.ModelPath, run.RanAt,
	)
	return err
}

// RecentTraining returns the latest training runs, newest first.
func (s *Store) RecentTraining(limit int) ([]TrainingRun, error) {
	rows, err := s.db.Query(`
        SELECT id, model_type, dataset, row_count, train_rows, test_rows,
            accuracy, precision, recall, f1, model_path, encoders_path, trained_at
        FROM training_runs
        ORDER BY trained_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ID, &run.ModelType, &run.Dataset, &run.Rows, &run.TrainRows, &run.TestRows,
			&run.Accuracy, &run.Precision, &run.Recall, &run.F1, &run.ModelPath, &run.EncodersPath, &run.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecentBatches returns the latest batch runs, newest first.
func (s *Store) RecentBatches(limit int) ([]BatchRun, error) {
	rows, err := s.db.Query(`
        SELECT id, input, output, row_count, positives, model_path, ran_at
        FROM batch_runs
        ORDER BY ran_at DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BatchRun
	for rows.Next() {
		var run BatchRun
		if err := rows.Scan(&run.ID, &run.Input, &run.Output, &run.Rows, &run.Positives, &run.ModelPath, &run.RanAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
