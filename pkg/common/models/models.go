package models

import (
	"encoding/json"
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // prediction.completed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const EventPredictionCompleted = "prediction.completed"

// Inference API
type PredictRequest struct {
	// Kept raw so the handler can tell a missing field from a wrongly typed one.
	Symptoms json.RawMessage `json:"symptoms"`
}

type TopPrediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

type ModelInfo struct {
	Accuracy      float64 `json:"accuracy"`
	TotalDiseases int     `json:"total_diseases"`
	TotalSymptoms int     `json:"total_symptoms"`
	Version       string  `json:"version,omitempty"`
}

type PredictResponse struct {
	Success           bool            `json:"success"`
	PrimaryPrediction string          `json:"primary_prediction"`
	Confidence        float64         `json:"confidence"`
	ConfidenceLevel   string          `json:"confidence_level"`
	TopPredictions    []TopPrediction `json:"top_predictions"`
	MatchedCount      int             `json:"matched_count"`
	TotalSymptoms     int             `json:"total_symptoms"`
	SymptomsAnalyzed  []string        `json:"symptoms_analyzed"`
	UnmatchedSymptoms []string        `json:"unmatched_symptoms"`
	Recommendations   []string        `json:"recommendations"`
	SymptomAdvice     []string        `json:"symptom_advice"`
	Disclaimer        string          `json:"disclaimer,omitempty"`
	ModelInfo         ModelInfo       `json:"model_info"`
	Note              string          `json:"note,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message}
}

// Batch re-analysis of saved scans
type BatchScan struct {
	ID       string          `json:"id"`
	Symptoms json.RawMessage `json:"symptoms"`
}

type BatchPredictRequest struct {
	Scans []BatchScan `json:"scans"`
}

type BatchItem struct {
	ID     string           `json:"id"`
	Result *PredictResponse `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type BatchPredictResponse struct {
	Success bool        `json:"success"`
	Items   []BatchItem `json:"items"`
}

type SymptomsResponse struct {
	Success  bool     `json:"success"`
	Symptoms []string `json:"symptoms"`
	Total    int      `json:"total"`
}

type ModelStatus struct {
	Version     string    `json:"version"`
	Algorithm   string    `json:"algorithm"`
	Fingerprint string    `json:"fingerprint"`
	Accuracy    float64   `json:"accuracy"`
	Diseases    int       `json:"total_diseases"`
	Symptoms    int       `json:"total_symptoms"`
	LoadedAt    time.Time `json:"loaded_at"`
}
