package metrics

import (
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, name string) int64 {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	m := regexp.MustCompile(`(?m)^` + name + ` (\d+)$`).FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2, "metric %s missing", name)
	v, err := strconv.ParseInt(m[1], 10, 64)
	require.NoError(t, err)
	return v
}

func TestWritePrometheusFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, "text/plain; version=0.0.4", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE symptomscan_predict_requests_total counter")
	assert.Contains(t, body, "# HELP symptomscan_model_reloads_total")
}

func TestObservePrediction(t *testing.T) {
	before := scrape(t, "symptomscan_predict_invalid_total")
	requests := scrape(t, "symptomscan_predict_requests_total")

	ObservePrediction(OutcomeInvalid, 10)
	ObservePrediction(OutcomeSuccess, 20)

	assert.Equal(t, before+1, scrape(t, "symptomscan_predict_invalid_total"))
	assert.Equal(t, requests+2, scrape(t, "symptomscan_predict_requests_total"))
}

func TestObserveRecognition(t *testing.T) {
	unmatched := scrape(t, "symptomscan_unmatched_symptoms_total")
	none := scrape(t, "symptomscan_no_symptoms_recognized_total")

	ObserveRecognition(0, 3)
	ObserveRecognition(2, 1)

	assert.Equal(t, unmatched+4, scrape(t, "symptomscan_unmatched_symptoms_total"))
	assert.Equal(t, none+1, scrape(t, "symptomscan_no_symptoms_recognized_total"))
}
