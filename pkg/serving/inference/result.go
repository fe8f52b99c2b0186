package inference

import (
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
	"github.com/synaptica-ai/symptomscan/pkg/features"
	"github.com/synaptica-ai/symptomscan/pkg/serving/ranking"
)

// Result is one successful inference. It is built per request and never
// shared.
type Result struct {
	Primary         ranking.Prediction
	Band            string
	Predictions     []ranking.Prediction
	Recognized      []string
	Unmatched       []string
	Recommendations []string
	SymptomAdvice   []string
	Disclaimer      string
	Model           models.ModelInfo
	Note            string
	Features        features.Vector
	Cached          bool
}

// Response renders the result in the public API shape.
func (r *Result) Response() models.PredictResponse {
	top := make([]models.TopPrediction, len(r.Predictions))
	for i, p := range r.Predictions {
		top[i] = models.TopPrediction{Disease: p.Condition, Confidence: p.Confidence}
	}
	return models.PredictResponse{
		Success:           true,
		PrimaryPrediction: r.Primary.Condition,
		Confidence:        r.Primary.Confidence,
		ConfidenceLevel:   r.Band,
		TopPredictions:    top,
		MatchedCount:      len(r.Recognized),
		TotalSymptoms:     len(r.Recognized) + len(r.Unmatched),
		SymptomsAnalyzed:  r.Recognized,
		UnmatchedSymptoms: r.Unmatched,
		Recommendations:   r.Recommendations,
		SymptomAdvice:     r.SymptomAdvice,
		Disclaimer:        r.Disclaimer,
		ModelInfo:         r.Model,
		Note:              r.Note,
	}
}
