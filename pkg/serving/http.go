package serving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
	"github.com/synaptica-ai/symptomscan/pkg/gateway/middleware"
	"github.com/synaptica-ai/symptomscan/pkg/observability/metrics"
	"github.com/synaptica-ai/symptomscan/pkg/serving/inference"
)

// MaxBatchScans bounds one batch request.
const MaxBatchScans = 50

var (
	errSymptomsMissing = errors.New("symptoms field is required")
	errSymptomsNotList = errors.New("symptoms must be a list")
	errSymptomsType    = errors.New("symptoms must contain only strings")
)

// EventPublisher delivers prediction events. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, data map[string]interface{}) error
}

type Handler struct {
	service *inference.Service
	events  EventPublisher
}

// NewHandler serves service over HTTP. events may be nil.
func NewHandler(service *inference.Service, events EventPublisher) *Handler {
	return &Handler{service: service, events: events}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/predict/batch", h.handleBatch).Methods(http.MethodPost)
	api.HandleFunc("/symptoms", h.handleSymptoms).Methods(http.MethodGet)
	api.HandleFunc("/models", h.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/models/reload", h.handleReload).Methods(http.MethodPost)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "model not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if !decodeBody(w, r, &req) {
		metrics.ObservePrediction(metrics.OutcomeInvalid, 0)
		return
	}
	symptoms, err := decodeSymptoms(req.Symptoms)
	if err != nil {
		metrics.ObservePrediction(metrics.OutcomeInvalid, 0)
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.predict(r.Context(), symptoms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchPredictRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Scans) == 0 {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("scans must be a non-empty list"))
		return
	}
	if len(req.Scans) > MaxBatchScans {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("too many scans in one batch"))
		return
	}
	metrics.ObserveBatch(len(req.Scans))

	items := make([]models.BatchItem, len(req.Scans))
	scans := make([][]string, 0, len(req.Scans))
	slots := make([]int, 0, len(req.Scans))
	for i, scan := range req.Scans {
		items[i].ID = scan.ID
		symptoms, err := decodeSymptoms(scan.Symptoms)
		if err != nil {
			metrics.ObservePrediction(metrics.OutcomeInvalid, 0)
			items[i].Error = err.Error()
			continue
		}
		scans = append(scans, symptoms)
		slots = append(slots, i)
	}

	for j, outcome := range h.service.InferBatch(r.Context(), scans) {
		i := slots[j]
		resp, err := h.complete(r.Context(), outcome.Result, outcome.Err, outcome.Latency)
		if err != nil {
			items[i].Error = publicMessage(err)
			continue
		}
		items[i].Result = resp
	}
	if err := r.Context().Err(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BatchPredictResponse{Success: true, Items: items})
}

// predict runs one inference and its side effects.
func (h *Handler) predict(ctx context.Context, symptoms []string) (*models.PredictResponse, error) {
	start := time.Now()
	res, err := h.service.Infer(ctx, symptoms)
	return h.complete(ctx, res, err, time.Since(start))
}

// complete records metrics for one inference and, on success, logs and
// publishes it.
func (h *Handler) complete(ctx context.Context, res *inference.Result, err error, latency time.Duration) (*models.PredictResponse, error) {
	if err != nil {
		outcome := metrics.OutcomeFailure
		if inference.IsKind(err, inference.InvalidInput) {
			outcome = metrics.OutcomeInvalid
		}
		metrics.ObservePrediction(outcome, latency.Microseconds())
		return nil, err
	}
	metrics.ObservePrediction(metrics.OutcomeSuccess, latency.Microseconds())

	resp := res.Response()
	requestID := middleware.RequestID(ctx)
	logger.WithRequest(requestID).WithFields(logrus.Fields{
		"primary":    resp.PrimaryPrediction,
		"confidence": resp.Confidence,
		"matched":    resp.MatchedCount,
		"unmatched":  len(resp.UnmatchedSymptoms),
		"cached":     res.Cached,
		"latency_ms": latency.Milliseconds(),
	}).Info("Prediction completed")
	h.publish(ctx, requestID, res, latency)
	return &resp, nil
}

func (h *Handler) publish(ctx context.Context, requestID string, res *inference.Result, latency time.Duration) {
	if h.events == nil {
		return
	}
	top := make([]interface{}, len(res.Predictions))
	for i, p := range res.Predictions {
		top[i] = map[string]interface{}{"disease": p.Condition, "confidence": p.Confidence}
	}
	recognized := make([]interface{}, len(res.Recognized))
	for i, s := range res.Recognized {
		recognized[i] = s
	}
	data := map[string]interface{}{
		"request_id":         requestID,
		"model_version":      res.Model.Version,
		"symptoms":           recognized,
		"matched_count":      len(res.Recognized),
		"unmatched_count":    len(res.Unmatched),
		"primary_prediction": res.Primary.Condition,
		"confidence":         res.Primary.Confidence,
		"confidence_level":   res.Band,
		"top_predictions":    top,
		"latency_ms":         float64(latency.Microseconds()) / 1000.0,
	}
	// Delivery must not outlive or fail the request.
	err := h.events.PublishEvent(context.WithoutCancel(ctx), models.EventPredictionCompleted, data)
	metrics.ObserveEvent(err == nil)
	if err != nil {
		logger.WithRequest(requestID).WithError(err).Warn("Failed to publish prediction event")
	}
}

func (h *Handler) handleSymptoms(w http.ResponseWriter, r *http.Request) {
	symptoms, err := h.service.Symptoms()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SymptomsResponse{Success: true, Symptoms: symptoms, Total: len(symptoms)})
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.ModelStatus()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "model": status})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Reload(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "model": status})
}

// decodeBody writes the error response itself and reports whether v was
// decoded. Bodies cut off by middleware.BodyLimit get 413.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			models.NewErrorResponse(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
		return false
	}
	writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("request body must be a JSON object"))
	return false
}

// decodeSymptoms tells a missing field from a wrongly typed one.
func decodeSymptoms(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errSymptomsMissing
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errSymptomsNotList
	}
	out := make([]string, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '"' {
			return nil, errSymptomsType
		}
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return nil, errSymptomsType
		}
	}
	return out, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if inference.IsKind(err, inference.InvalidInput) {
		status = http.StatusBadRequest
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusBadRequest {
		logger.WithRequest(middleware.RequestID(r.Context())).WithError(err).Error("Request failed")
	}
	writeJSON(w, status, models.NewErrorResponse(publicMessage(err)))
}

// publicMessage hides wrapped internal errors from callers.
func publicMessage(err error) string {
	var ie *inference.Error
	if errors.As(err, &ie) {
		return ie.Msg
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "request cancelled"
	}
	return "prediction failed"
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response")
	}
}
