package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/synaptica-ai/symptomscan/pkg/catalog"
)

// ConfidencePrecision is the number of decimal places kept in confidences.
const ConfidencePrecision = 1

const (
	BandHigh   = "High"
	BandMedium = "Medium"
	BandLow    = "Low"
)

// Prediction is one candidate condition. Confidence is Probability as a
// percentage rounded to ConfidencePrecision places.
type Prediction struct {
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

type Options struct {
	TopK          int
	MinConfidence float64
}

func DefaultOptions() Options {
	return Options{TopK: 4, MinConfidence: 0.5}
}

// Confidence converts a probability into a rounded percentage.
func Confidence(p float64) float64 {
	scale := math.Pow(10, ConfidencePrecision)
	return math.Round(p*100*scale) / scale
}

// Rank orders the distribution by probability, breaking exact ties by catalog
// position, and keeps at most opts.TopK entries. Entries at or below
// opts.MinConfidence are dropped except the first, so rank 0 is always the
// classifier's argmax.
func Rank(probs []float64, classes []string, cat *catalog.Catalog, opts Options) ([]Prediction, error) {
	if len(probs) == 0 || len(probs) != len(classes) {
		return nil, fmt.Errorf("distribution has %d values for %d classes", len(probs), len(classes))
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}

	position := make(map[string]int, len(classes))
	preds := make([]Prediction, len(classes))
	for i, class := range classes {
		pos, ok := cat.Position(class)
		if !ok {
			return nil, fmt.Errorf("class %q is not in the catalog", class)
		}
		position[class] = pos
		preds[i] = Prediction{Condition: class, Probability: probs[i], Confidence: Confidence(probs[i])}
	}

	sort.SliceStable(preds, func(a, b int) bool {
		if preds[a].Probability != preds[b].Probability {
			return preds[a].Probability > preds[b].Probability
		}
		return position[preds[a].Condition] < position[preds[b].Condition]
	})

	out := make([]Prediction, 0, opts.TopK)
	for i, p := range preds {
		if len(out) == opts.TopK {
			break
		}
		if i > 0 && p.Confidence <= opts.MinConfidence {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

// Band buckets a confidence for display.
func Band(confidence float64) string {
	switch {
	case confidence >= 70:
		return BandHigh
	case confidence >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// Recommendations returns the advice attached to the primary condition, never
// nil.
func Recommendations(cat *catalog.Catalog, primary string) []string {
	return cat.Recommendations(primary)
}
