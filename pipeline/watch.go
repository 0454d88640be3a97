package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"loanscore/ml"
)

const predictedSuffix = "_predicted"

type WatchOptions struct {
	Dir       string
	OutputDir string
	// Settle is how long a file must go without events before it is scored.
	Settle time.Duration
	Batch  BatchOptions
}

// Watch scores every .csv or .xlsx file created or rewritten in opts.Dir until ctx is done.
// A file that fails to score is logged and skipped.
func (r *Runner) Watch(ctx context.Context, predictor *ml.Predictor, opts WatchOptions) error {
	if opts.OutputDir == "" {
		opts.OutputDir = opts.Dir
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", opts.Dir, err)
	}
	r.Logger.Info("watching for datasets", zap.String("dir", opts.Dir), zap.String("output_dir", opts.OutputDir))

	ticker := time.NewTicker(max(opts.Settle/2, 10*time.Millisecond))
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !scoreable(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.Logger.Warn("watcher error", zap.Error(err))
		case now := <-ticker.C:
			for _, name := range settled(pending, now, opts.Settle) {
				delete(pending, name)
				batch := opts.Batch
				batch.Input = name
				batch.Output = PredictedPath(name, opts.OutputDir)
				if _, err := r.Score(predictor, batch); err != nil {
					r.Logger.Error("failed to score dataset", zap.String("input", name), zap.Error(err))
				}
			}
		}
	}
}

// PredictedPath names the result file for input inside dir.
func PredictedPath(input, dir string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(dir, base+predictedSuffix+ext)
}

func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	names := make([]string, 0, len(pending))
	for name, last := range pending {
		if now.Sub(last) >= settle {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// scoreable skips hidden temp files and our own outputs.
func scoreable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".csv" && ext != ".xlsx" {
		return false
	}
	return !strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), predictedSuffix)
}
