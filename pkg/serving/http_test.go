package serving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
	"github.com/synaptica-ai/symptomscan/pkg/gateway/middleware"
	"github.com/synaptica-ai/symptomscan/pkg/serving/inference"
	"github.com/synaptica-ai/symptomscan/pkg/serving/predictor"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if eventType == models.EventPredictionCompleted {
		p.events = append(p.events, data)
	}
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *predictor.Registry, *recordingPublisher) {
	t.Helper()
	reg, err := predictor.NewRegistry(predictor.Source{Dir: "inference/testdata"})
	require.NoError(t, err)
	events := &recordingPublisher{}
	router := mux.NewRouter()
	NewHandler(inference.NewService(reg, inference.DefaultOptions(), nil), events).Register(router)
	return middleware.Logging(router), reg, events
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	h, _, events := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/predict", `{"symptoms":["Headache","High fever","Cough"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp models.PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Influenza", resp.PrimaryPrediction)
	assert.Equal(t, 97.2, resp.Confidence)
	assert.Equal(t, "High", resp.ConfidenceLevel)
	assert.Equal(t, []models.TopPrediction{
		{Disease: "Influenza", Confidence: 97.2},
		{Disease: "Common Cold", Confidence: 2.6},
	}, resp.TopPredictions)
	assert.Equal(t, 3, resp.MatchedCount)
	assert.Equal(t, "fixture-2024.1", resp.ModelInfo.Version)

	require.Len(t, events.events, 1)
	assert.Equal(t, "Influenza", events.events[0]["primary_prediction"])
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), events.events[0]["request_id"])
}

func TestPredictResponseKeepsEmptyLists(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/predict", `{"symptoms":["xyz"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, []interface{}{}, raw["symptoms_analyzed"])
	assert.Equal(t, []interface{}{}, raw["recommendations"])
	assert.Equal(t, []interface{}{"Consult with a healthcare professional for proper diagnosis and treatment"}, raw["symptom_advice"])
	assert.NotEmpty(t, raw["disclaimer"])
	assert.Equal(t, []interface{}{"xyz"}, raw["unmatched_symptoms"])
	assert.Equal(t, inference.NoSymptomsNote, raw["note"])
}

func TestPredictRejectsBadInput(t *testing.T) {
	h, _, events := newTestRouter(t)

	cases := map[string]string{
		"not json":        `{`,
		"missing field":   `{}`,
		"null field":      `{"symptoms":null}`,
		"not a list":      `{"symptoms":"Cough"}`,
		"non-string item": `{"symptoms":["Cough", 3]}`,
		"null item":       `{"symptoms":["Cough", null]}`,
		"empty list":      `{"symptoms":[]}`,
		"only blanks":     `{"symptoms":["  "]}`,
	}
	for name, body := range cases {
		rec := do(t, h, http.MethodPost, "/api/v1/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), name)
		assert.False(t, resp.Success, name)
		assert.NotEmpty(t, resp.Error, name)
	}
	assert.Empty(t, events.events)
}

func TestPredictWithoutModel(t *testing.T) {
	h, reg, _ := newTestRouter(t)
	reg.Close()

	rec := do(t, h, http.MethodPost, "/api/v1/predict", `{"symptoms":["Cough"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"prediction model is not available"}`, rec.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/ready", "").Code)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	h, _, events := newTestRouter(t)
	limited := middleware.BodyLimit(32)(h)

	body := `{"symptoms":["Headache","High fever","Cough","Fatigue"]}`
	rec := do(t, limited, http.MethodPost, "/api/v1/predict", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"request body exceeds 32 bytes"}`, rec.Body.String())

	rec = do(t, limited, http.MethodPost, "/api/v1/predict/batch", `{"scans":[{"id":"a","symptoms":["Headache","Cough"]}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, events.events)

	rec = do(t, limited, http.MethodPost, "/api/v1/predict", `{"symptoms":["Cough"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBatchEndpoint(t *testing.T) {
	h, _, events := newTestRouter(t)

	body := `{"scans":[
		{"id":"scan-1","symptoms":["Headache","High fever","Cough"]},
		{"id":"scan-2","symptoms":[]},
		{"id":"scan-3","symptoms":"Cough"},
		{"id":"scan-4","symptoms":["Nausea","Vomiting"]}
	]}`
	rec := do(t, h, http.MethodPost, "/api/v1/predict/batch", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.BatchPredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 4)
	assert.Equal(t, "Influenza", resp.Items[0].Result.PrimaryPrediction)
	assert.Equal(t, "symptoms must be a non-empty list", resp.Items[1].Error)
	assert.Nil(t, resp.Items[1].Result)
	assert.Equal(t, "symptoms must be a list", resp.Items[2].Error)
	assert.Equal(t, "scan-4", resp.Items[3].ID)
	assert.Equal(t, "Gastroenteritis", resp.Items[3].Result.PrimaryPrediction)
	assert.Len(t, events.events, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/predict/batch", `{"scans":[]}`).Code)
}

func TestSymptomsAndModelsEndpoints(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/symptoms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var symptoms models.SymptomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &symptoms))
	assert.Equal(t, 10, symptoms.Total)
	assert.Contains(t, symptoms.Symptoms, "High fever")

	rec = do(t, h, http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"fixture-2024.1"`)

	rec = do(t, h, http.MethodPost, "/api/v1/models/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"algorithm":"gaussian_nb"`)
}

func TestHealthAndMetrics(t *testing.T) {
	h, _, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ready", "").Code)

	do(t, h, http.MethodPost, "/api/v1/predict", `{"symptoms":["Cough"]}`)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "symptomscan_predict_requests_total")
}
