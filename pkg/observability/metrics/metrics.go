package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	predictRequests     atomic.Int64
	predictSucceeded    atomic.Int64
	predictInvalid      atomic.Int64
	predictFailed       atomic.Int64
	unmatchedSymptoms   atomic.Int64
	noSymptomsMatched   atomic.Int64
	batchItems          atomic.Int64
	cacheHits           atomic.Int64
	cacheMisses         atomic.Int64
	modelReloads        atomic.Int64
	modelReloadFailures atomic.Int64
	latencyMicros       atomic.Int64
	eventsPublished     atomic.Int64
	eventsFailed        atomic.Int64
)

// Outcome of one inference call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalid
	OutcomeFailure
)

func Init() {}

// ObservePrediction records one finished inference and its latency.
func ObservePrediction(outcome Outcome, micros int64) {
	predictRequests.Add(1)
	latencyMicros.Add(micros)
	switch outcome {
	case OutcomeSuccess:
		predictSucceeded.Add(1)
	case OutcomeInvalid:
		predictInvalid.Add(1)
	default:
		predictFailed.Add(1)
	}
}

// ObserveRecognition records how many inputs did not match the vocabulary.
func ObserveRecognition(recognized, unmatched int) {
	unmatchedSymptoms.Add(int64(unmatched))
	if recognized == 0 {
		noSymptomsMatched.Add(1)
	}
}

func ObserveBatch(items int) {
	batchItems.Add(int64(items))
}

func ObserveCache(hit bool) {
	if hit {
		cacheHits.Add(1)
		return
	}
	cacheMisses.Add(1)
}

func ObserveReload(ok bool) {
	if ok {
		modelReloads.Add(1)
		return
	}
	modelReloadFailures.Add(1)
}

func ObserveEvent(ok bool) {
	if ok {
		eventsPublished.Add(1)
		return
	}
	eventsFailed.Add(1)
}

type sample struct {
	name  string
	kind  string
	help  string
	value *atomic.Int64
}

var samples = []sample{
	{"symptomscan_predict_requests_total", "counter", "Inference requests handled.", &predictRequests},
	{"symptomscan_predict_success_total", "counter", "Inference requests that returned a result.", &predictSucceeded},
	{"symptomscan_predict_invalid_total", "counter", "Inference requests rejected as invalid input.", &predictInvalid},
	{"symptomscan_predict_failed_total", "counter", "Inference requests that failed inside the service.", &predictFailed},
	{"symptomscan_predict_latency_microseconds_sum", "counter", "Total time spent in inference.", &latencyMicros},
	{"symptomscan_unmatched_symptoms_total", "counter", "Submitted symptoms not found in the vocabulary.", &unmatchedSymptoms},
	{"symptomscan_no_symptoms_recognized_total", "counter", "Requests where no symptom was recognized.", &noSymptomsMatched},
	{"symptomscan_batch_items_total", "counter", "Scans submitted through the batch endpoint.", &batchItems},
	{"symptomscan_result_cache_hits_total", "counter", "Result cache hits.", &cacheHits},
	{"symptomscan_result_cache_misses_total", "counter", "Result cache misses.", &cacheMisses},
	{"symptomscan_model_reloads_total", "counter", "Successful model reloads.", &modelReloads},
	{"symptomscan_model_reload_failures_total", "counter", "Model reloads rejected during validation.", &modelReloadFailures},
	{"symptomscan_events_published_total", "counter", "Prediction events handed to the broker.", &eventsPublished},
	{"symptomscan_events_failed_total", "counter", "Prediction events that could not be published.", &eventsFailed},
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, s := range samples {
		fmt.Fprintf(w, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", s.name, s.kind)
		fmt.Fprintf(w, "%s %d\n", s.name, s.value.Load())
	}
}

// Handler serves WritePrometheus.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WritePrometheus(w)
	})
}
