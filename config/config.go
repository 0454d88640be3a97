// Package config 加载 train / batch / serve 三个程序共用的 YAML 配置
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"loanscore/logging"
)

// DefaultPath 默认配置文件
const DefaultPath = "config.yaml"

// Config 应用配置
type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		CacheSize    int           `yaml:"cache_size"` // 负数表示禁用缓存
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Data struct {
		IDColumn         string `yaml:"id_column"`
		LabelColumn      string `yaml:"label_column"`
		PositiveLabel    string `yaml:"positive_label"`
		NegativeLabel    string `yaml:"negative_label"`
		Encoding         string `yaml:"encoding"`
		PredictionColumn string `yaml:"prediction_column"`
	} `yaml:"data"`
	ML struct {
		ModelType       string  `yaml:"model_type"`
		NEstimators     int     `yaml:"n_estimators"`
		MaxDepth        int     `yaml:"max_depth"`
		MinSamplesSplit int     `yaml:"min_samples_split"`
		MaxFeatures     int     `yaml:"max_features"`
		TestRatio       float64 `yaml:"test_ratio"`
		Seed            int64   `yaml:"seed"`
	} `yaml:"ml"`
	Artifacts struct {
		ModelPath    string `yaml:"model_path"`
		EncodersPath string `yaml:"encoders_path"`
	} `yaml:"artifacts"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Batch struct {
		Input     string        `yaml:"input"`
		Output    string        `yaml:"output"`
		WatchDir  string        `yaml:"watch_dir"`
		OutputDir string        `yaml:"output_dir"`
		Settle    time.Duration `yaml:"settle"`
	} `yaml:"batch"`
}

// Default 返回全部字段都已填充默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load 读取配置文件; 文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	// Look for config in root even if run from cmd/
	if _, err := os.Stat(path); os.IsNotExist(err) {
		parent := filepath.Join("..", path)
		if filepath.IsAbs(path) {
			return Default(), nil
		}
		if _, err := os.Stat(parent); err != nil {
			return Default(), nil
		}
		path = parent
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	// 空文件等同于全部使用默认值
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查无法用默认值修正的配置
func (c *Config) Validate() error {
	if c.ML.TestRatio < 0 || c.ML.TestRatio >= 1 {
		return fmt.Errorf("ml.test_ratio must be in [0, 1), got %v", c.ML.TestRatio)
	}
	switch c.ML.ModelType {
	case "random_forest", "decision_tree":
	default:
		return fmt.Errorf("unsupported ml.model_type %q", c.ML.ModelType)
	}
	if c.Data.PositiveLabel == c.Data.NegativeLabel {
		return fmt.Errorf("data.positive_label and data.negative_label must differ")
	}
	return nil
}

// LogOptions 返回日志配置
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 5000
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if c.Http.CacheSize == 0 {
		c.Http.CacheSize = 1024
	}
	if c.Http.MaxBodyBytes == 0 {
		c.Http.MaxBodyBytes = 1 << 20
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}

	if c.Data.IDColumn == "" {
		c.Data.IDColumn = "LoanID"
	}
	if c.Data.LabelColumn == "" {
		c.Data.LabelColumn = "LoanStatus"
	}
	if c.Data.PositiveLabel == "" {
		c.Data.PositiveLabel = "Y"
	}
	if c.Data.NegativeLabel == "" {
		c.Data.NegativeLabel = "N"
	}
	if c.Data.Encoding == "" {
		c.Data.Encoding = "utf-8"
	}
	if c.Data.PredictionColumn == "" {
		c.Data.PredictionColumn = "PredictedLoanStatus"
	}

	if c.ML.ModelType == "" {
		c.ML.ModelType = "random_forest"
	}
	if c.ML.NEstimators == 0 {
		c.ML.NEstimators = 100
	}
	if c.ML.MinSamplesSplit == 0 {
		c.ML.MinSamplesSplit = 2
	}
	if c.ML.TestRatio == 0 {
		c.ML.TestRatio = 0.2
	}
	if c.ML.Seed == 0 {
		c.ML.Seed = 42
	}

	if c.Artifacts.ModelPath == "" {
		c.Artifacts.ModelPath = filepath.Join("models", "loan_model.json")
	}
	if c.Artifacts.EncodersPath == "" {
		c.Artifacts.EncodersPath = filepath.Join("models", "label_encoders.json")
	}

	if c.Batch.Output == "" {
		c.Batch.Output = "PredictedLoanResults.csv"
	}
	if c.Batch.Settle == 0 {
		c.Batch.Settle = 500 * time.Millisecond
	}
}
