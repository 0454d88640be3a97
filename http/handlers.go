package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"loanscore/db"
	"loanscore/ml"
	"loanscore/monitoring"
)

// Model 是服务依赖的预测器，*ml.Predictor 满足该接口
type Model interface {
	Schema() *ml.Schema
	Vector(record map[string]string) ([]float64, error)
	Classify(vector []float64) (int, float64, error)
}

// RunLog 提供最近的训练和批量预测记录，*db.Store 满足该接口
type RunLog interface {
	RecentTraining(limit int) ([]db.TrainingRun, error)
	RecentBatches(limit int) ([]db.BatchRun, error)
}

// Handlers 持有处理器共享的依赖
type Handlers struct {
	model   Model
	cache   *predictionCache
	metrics *monitoring.MetricsCollector
	runs    RunLog
	logger  *zap.Logger
}

// PredictResponse 预测结果
type PredictResponse struct {
	Prediction string `json:"prediction"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterHandlers 注册路由
func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("GET /api/runs", h.handleRuns)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.Observe(metricPredictDuration, time.Since(start).Seconds(), nil)
	}()

	record, err := decodeRecord(r.Body, h.model.Schema())
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.reject(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.reject(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	vector, err := h.model.Vector(record)
	if err != nil {
		if ml.IsInputError(err) {
			h.reject(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to encode record", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		h.reject(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if prediction, ok := h.cache.Get(vector); ok {
		h.metrics.IncrCounter(metricCacheHits, nil)
		h.respond(w, prediction)
		return
	}

	class, _, err := h.model.Classify(vector)
	if err != nil {
		h.logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		h.reject(w, http.StatusInternalServerError, "internal server error")
		return
	}
	prediction := ml.DecodePrediction(class)
	h.cache.Add(vector, prediction)

	h.respond(w, prediction)
}

func (h *Handlers) respond(w http.ResponseWriter, prediction string) {
	h.metrics.IncrCounter(metricPredictions, map[string]string{"prediction": prediction})
	writeJSON(w, http.StatusOK, PredictResponse{Prediction: prediction})
}

func (h *Handlers) reject(w http.ResponseWriter, status int, message string) {
	h.metrics.IncrCounter(metricRejected, map[string]string{"status": strconv.Itoa(status)})
	writeError(w, status, message)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.SetGauge(metricCacheEntries, float64(h.cache.Len()), nil)
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := h.metrics.ExportPrometheus(w); err != nil {
		h.logger.Warn("failed to write metrics", zap.Error(err))
	}
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	h.metrics.SetGauge(metricCacheEntries, float64(h.cache.Len()), nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"system":   h.metrics.GetSystemStats(),
		"metrics":  h.metrics.Snapshot(),
		"features": h.model.Schema().Features,
	})
}

func (h *Handlers) handleRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "run log is not configured")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}

	training, err := h.runs.RecentTraining(limit)
	if err != nil {
		h.logger.Error("failed to query training runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	batches, err := h.runs.RecentBatches(limit)
	if err != nil {
		h.logger.Error("failed to query batch runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"training": training,
		"batches":  batches,
	})
}

const (
	metricPredictions     = "predictions_total"
	metricRejected        = "prediction_requests_rejected_total"
	metricCacheHits       = "prediction_cache_hits_total"
	metricCacheEntries    = "prediction_cache_entries"
	metricPredictDuration = "predict_duration_seconds"
)

func newMetrics() *monitoring.MetricsCollector {
	mc := monitoring.NewMetricsCollector()
	mc.Describe(metricPredictions, monitoring.MetricTypeCounter, "Predictions served by outcome")
	mc.Describe(metricRejected, monitoring.MetricTypeCounter, "Prediction requests answered with an error")
	mc.Describe(metricCacheHits, monitoring.MetricTypeCounter, "Predictions served from the cache")
	mc.Describe(metricCacheEntries, monitoring.MetricTypeGauge, "Entries in the prediction cache")
	mc.Describe(metricPredictDuration, monitoring.MetricTypeHistogram, "Time spent handling a prediction request in seconds")
	return mc
}

// decodeRecord 把JSON对象转换为特征记录，只保留模型使用的特征
func decodeRecord(body io.Reader, schema *ml.Schema) (map[string]string, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if raw == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("unexpected data after JSON object")
	}

	record := make(map[string]string, len(schema.Features))
	for _, column := range schema.Features {
		value, ok := raw[column]
		if !ok {
			return nil, &ml.MissingColumnError{Column: column}
		}
		switch v := value.(type) {
		case nil:
			record[column] = ""
		case string:
			record[column] = v
		case json.Number:
			record[column] = v.String()
		default:
			return nil, &ml.InvalidValueError{Column: column, Value: fmt.Sprint(v), Reason: "expected a string or a number"}
		}
	}
	return record, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
