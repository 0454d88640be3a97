package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"loanscore/db"
	"loanscore/ml"
)

type fakeClassifier struct {
	label int
	err   error
	calls int
	panic bool
}

func (f *fakeClassifier) Train(features [][]float64, labels []int) error { return nil }

func (f *fakeClassifier) Predict(features []float64) (int, float64, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.label, 1, f.err
}

func newTestServer(t *testing.T, classifier *fakeClassifier, config ServerConfig) http.Handler {
	return newTestServerWithRuns(t, classifier, config, nil)
}

func newTestServerWithRuns(t *testing.T, classifier *fakeClassifier, config ServerConfig, runs RunLog) http.Handler {
	t.Helper()
	schema := &ml.Schema{
		IDColumn:    "LoanID",
		LabelColumn: "LoanStatus",
		Features:    []string{"Gender", "ApplicantIncome"},
		Categorical: map[string]bool{"Gender": true},
		Medians:     map[string]float64{"ApplicantIncome": 4000},
	}
	encoders := ml.EncoderTable{"Gender": ml.FitLabelEncoder([]string{"Male", "Female"})}
	predictor, err := ml.NewPredictor(schema, encoders, classifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server, err := NewServer(config, predictor, runs, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return server.Handler()
}

func TestHealthHandler(t *testing.T) {
	handler := newTestServer(t, &fakeClassifier{}, DefaultServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	expected := `{"status":"ok"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestHandlePredict(t *testing.T) {
	tests := []struct {
		name   string
		label  int
		body   string
		status int
		want   string
	}{
		{name: "approved", label: 1, body: `{"Gender":"Male","ApplicantIncome":5849}`, status: http.StatusOK, want: "Y"},
		{name: "rejected", label: 0, body: `{"Gender":"Female","ApplicantIncome":"3000"}`, status: http.StatusOK, want: "N"},
		{name: "extra fields ignored", label: 1, body: `{"LoanID":"LP1","LoanStatus":"N","Extra":true,"Gender":"Male","ApplicantIncome":1}`, status: http.StatusOK, want: "Y"},
		{name: "null numeric uses median", label: 1, body: `{"Gender":"Male","ApplicantIncome":null}`, status: http.StatusOK, want: "Y"},
		{name: "unseen category", body: `{"Gender":"Other","ApplicantIncome":1}`, status: http.StatusBadRequest},
		{name: "missing feature", body: `{"Gender":"Male"}`, status: http.StatusBadRequest},
		{name: "bad number", body: `{"Gender":"Male","ApplicantIncome":"lots"}`, status: http.StatusBadRequest},
		{name: "nested value", body: `{"Gender":["Male"],"ApplicantIncome":1}`, status: http.StatusBadRequest},
		{name: "invalid json", body: `{"Gender":`, status: http.StatusBadRequest},
		{name: "not an object", body: `null`, status: http.StatusBadRequest},
		{name: "empty body", body: ``, status: http.StatusBadRequest},
		{name: "trailing newline", label: 1, body: "{\"Gender\":\"Male\",\"ApplicantIncome\":1}\n", status: http.StatusOK, want: "Y"},
		{name: "trailing garbage", body: `{"Gender":"Male","ApplicantIncome":1} garbage`, status: http.StatusBadRequest},
		{name: "second object", body: `{"Gender":"Male","ApplicantIncome":1}{}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeClassifier{label: tt.label}, DefaultServerConfig())
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.status != http.StatusOK {
				var payload errorResponse
				if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil || payload.Error == "" {
					t.Fatalf("expected error body, got %s", rr.Body.String())
				}
				return
			}
			var payload PredictResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if payload.Prediction != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, payload.Prediction)
			}
		})
	}
}

func TestHandlePredictWrongMethod(t *testing.T) {
	handler := newTestServer(t, &fakeClassifier{}, DefaultServerConfig())
	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestHandlePredictClassifierFailure(t *testing.T) {
	handler := newTestServer(t, &fakeClassifier{err: errors.New("corrupt tree")}, DefaultServerConfig())
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"Gender":"Male","ApplicantIncome":1}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "corrupt tree") {
		t.Fatal("internal error details leaked to the client")
	}
}

func TestHandlePredictRecoversPanic(t *testing.T) {
	handler := newTestServer(t, &fakeClassifier{panic: true}, DefaultServerConfig())
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"Gender":"Male","ApplicantIncome":1}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestHandlePredictBodyTooLarge(t *testing.T) {
	config := DefaultServerConfig()
	config.MaxBodyBytes = 16
	handler := newTestServer(t, &fakeClassifier{}, config)
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"Gender":"Male","ApplicantIncome":123456789}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestHandlePredictUsesCache(t *testing.T) {
	classifier := &fakeClassifier{label: 1}
	handler := newTestServer(t, classifier, DefaultServerConfig())
	bodies := []string{
		`{"Gender":"Male","ApplicantIncome":5849}`,
		`{"Gender":"Male","ApplicantIncome":"5849"}`,
		`{"Gender":"Female","ApplicantIncome":5849}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}
	if classifier.calls != 2 {
		t.Fatalf("expected 2 classifier calls, got %d", classifier.calls)
	}

	classifier = &fakeClassifier{label: 1}
	config := DefaultServerConfig()
	config.CacheSize = 0
	handler = newTestServer(t, classifier, config)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(bodies[0]))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if classifier.calls != 2 {
		t.Fatalf("expected cache to be disabled, got %d calls", classifier.calls)
	}
}

func TestPredictionCache(t *testing.T) {
	cache, err := newPredictionCache(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cache.Add([]float64{1, 2.5}, "Y")
	if got, ok := cache.Get([]float64{1, 2.5}); !ok || got != "Y" {
		t.Fatalf("expected cached Y, got %q %v", got, ok)
	}
	cache.Add([]float64{0, 0}, "N")
	if _, ok := cache.Get([]float64{1, 2.5}); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}

	var disabled *predictionCache
	disabled.Add([]float64{1}, "Y")
	if _, ok := disabled.Get([]float64{1}); ok {
		t.Fatal("disabled cache returned an entry")
	}
}

func TestNewServerRequiresModel(t *testing.T) {
	if _, err := NewServer(DefaultServerConfig(), nil, nil, nil); err == nil {
		t.Fatal("expected error for nil model")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(t, &fakeClassifier{label: 1}, DefaultServerConfig())
	for _, body := range []string{
		`{"Gender":"Male","ApplicantIncome":1}`,
		`{"Gender":"Male","ApplicantIncome":1}`,
		`{"Gender":"Other","ApplicantIncome":1}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	out := rr.Body.String()
	for _, want := range []string{
		`predictions_total{prediction="Y"} 2`,
		`prediction_cache_hits_total 1`,
		`prediction_requests_rejected_total{status="400"} 1`,
		`prediction_cache_entries 1`,
		`predict_duration_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats struct {
		Features []string `json:"features"`
		Metrics  []struct {
			Name string `json:"name"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(stats.Features) != 2 || len(stats.Metrics) == 0 {
		t.Fatalf("unexpected stats: %s", rr.Body.String())
	}
}

func TestRunsEndpoint(t *testing.T) {
	handler := newTestServer(t, &fakeClassifier{}, DefaultServerConfig())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a run log, got %d", rr.Code)
	}

	store, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()
	if err := store.RecordTraining(db.TrainingRun{ID: "run-1", ModelType: "random_forest", Accuracy: 0.8, TrainedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RecordBatch(db.BatchRun{ID: "batch-1", Rows: 3, RanAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler = newTestServerWithRuns(t, &fakeClassifier{}, DefaultServerConfig(), store)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Training []db.TrainingRun `json:"training"`
		Batches  []db.BatchRun    `json:"batches"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Training) != 1 || payload.Training[0].ID != "run-1" {
		t.Fatalf("unexpected training runs: %+v", payload.Training)
	}
	if len(payload.Batches) != 1 || payload.Batches[0].Rows != 3 {
		t.Fatalf("unexpected batch runs: %+v", payload.Batches)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}
}
