package serving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrLogNotFound is returned when no prediction log has the requested id.
var ErrLogNotFound = errors.New("prediction log not found")

// PredictionLog is the persistence model for prediction auditing. It holds no
// user identifiers.
type PredictionLog struct {
	ID                uuid.UUID         `gorm:"primaryKey;column:id" json:"id"`
	EventID           string            `gorm:"column:event_id;uniqueIndex" json:"event_id"`
	RequestID         string            `gorm:"column:request_id;index" json:"request_id"`
	ModelVersion      string            `gorm:"column:model_version" json:"model_version"`
	PrimaryPrediction string            `gorm:"column:primary_prediction" json:"primary_prediction"`
	Confidence        float64           `gorm:"column:confidence" json:"confidence"`
	MatchedCount      int               `gorm:"column:matched_count" json:"matched_count"`
	UnmatchedCount    int               `gorm:"column:unmatched_count" json:"unmatched_count"`
	Payload           datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	LatencyMs         float64           `gorm:"column:latency_ms" json:"latency_ms"`
	CreatedAt         time.Time         `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository handles prediction logs queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

// LogFromEvent maps a prediction.completed event to a row.
func LogFromEvent(event models.Event) (PredictionLog, error) {
	if event.Type != models.EventPredictionCompleted {
		return PredictionLog{}, fmt.Errorf("unexpected event type %q", event.Type)
	}
	primary, _ := event.Data["primary_prediction"].(string)
	if primary == "" {
		return PredictionLog{}, errors.New("event has no primary prediction")
	}
	created := event.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	requestID, _ := event.Data["request_id"].(string)
	version, _ := event.Data["model_version"].(string)
	return PredictionLog{
		ID:                uuid.New(),
		EventID:           event.ID,
		RequestID:         requestID,
		ModelVersion:      version,
		PrimaryPrediction: primary,
		Confidence:        number(event.Data["confidence"]),
		MatchedCount:      int(number(event.Data["matched_count"])),
		UnmatchedCount:    int(number(event.Data["unmatched_count"])),
		Payload:           datatypes.JSONMap(event.Data),
		LatencyMs:         number(event.Data["latency_ms"]),
		CreatedAt:         created.UTC(),
	}, nil
}

// number reads a JSON number that may have been decoded as float64 or kept as
// an int before encoding.
func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Record stores log, ignoring redelivered events.
func (r *Repository) Record(ctx context.Context, log PredictionLog) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&PredictionLog{}).Where("event_id = ?", log.EventID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&log).Error
}

// Recent returns the most recent prediction logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []PredictionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (PredictionLog, error) {
	var log PredictionLog
	err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PredictionLog{}, ErrLogNotFound
	}
	return log, err
}

// CleanupExpired deletes logs older than retention and returns how many went.
func (r *Repository) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&PredictionLog{})
	return res.RowsAffected, res.Error
}
