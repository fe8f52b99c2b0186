package serving

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
)

// AuditStore is the subset of Repository the audit endpoints need.
type AuditStore interface {
	Record(ctx context.Context, log PredictionLog) error
	Recent(ctx context.Context, limit int) ([]PredictionLog, error)
	Get(ctx context.Context, id uuid.UUID) (PredictionLog, error)
}

// AuditHandler turns prediction events into logs and serves them back.
type AuditHandler struct {
	store AuditStore
}

func NewAuditHandler(store AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

func (h *AuditHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/predictions/recent", h.handleRecent).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/predictions/{id}", h.handleGet).Methods(http.MethodGet)
}

// HandleEvent stores prediction.completed events. Other event types are
// acknowledged and skipped; a storage failure is returned so the message is
// redelivered.
func (h *AuditHandler) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != models.EventPredictionCompleted {
		return nil
	}
	log, err := LogFromEvent(event)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Dropping malformed prediction event")
		return nil
	}
	return h.store.Record(ctx, log)
}

func (h *AuditHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	logs, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list prediction logs")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("failed to list prediction logs"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "items": logs})
}

func (h *AuditHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("invalid prediction log id"))
		return
	}
	log, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrLogNotFound) {
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse(err.Error()))
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to get prediction log")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("failed to get prediction log"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "item": log})
}
