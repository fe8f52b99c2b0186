// Package linear implements inference for multinomial logistic regression.
package linear

import (
	"fmt"

	"github.com/synaptica-ai/symptomscan/pkg/ml"
)

// Weights are serialized per class: Weights[c] holds one coefficient per
// feature and Bias[c] the intercept.
type Weights struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

type Softmax struct {
	coefficients [][]float64
	bias         []float64
}

func NewSoftmax(w Weights, classes, features int) (*Softmax, error) {
	if classes == 0 || features == 0 {
		return nil, fmt.Errorf("model needs at least one class and feature")
	}
	if len(w.Weights) != classes {
		return nil, fmt.Errorf("weights has %d rows, want %d", len(w.Weights), classes)
	}
	if len(w.Bias) != classes {
		return nil, fmt.Errorf("bias has %d entries, want %d", len(w.Bias), classes)
	}
	if !ml.Finite(w.Bias) {
		return nil, fmt.Errorf("bias contains non-finite values")
	}
	s := &Softmax{
		coefficients: make([][]float64, classes),
		bias:         append([]float64(nil), w.Bias...),
	}
	for i, row := range w.Weights {
		if len(row) != features {
			return nil, fmt.Errorf("weights[%d] has %d columns, want %d", i, len(row), features)
		}
		if !ml.Finite(row) {
			return nil, fmt.Errorf("weights[%d] contains non-finite values", i)
		}
		s.coefficients[i] = append([]float64(nil), row...)
	}
	return s, nil
}

func (s *Softmax) Classes() int {
	return len(s.bias)
}

func (s *Softmax) Features() int {
	return len(s.coefficients[0])
}

// Logits returns the per-class linear scores.
func (s *Softmax) Logits(sample []float64) ([]float64, error) {
	if len(sample) != s.Features() {
		return nil, fmt.Errorf("sample has %d features, model expects %d", len(sample), s.Features())
	}
	logits := make([]float64, len(s.bias))
	for i := range logits {
		logits[i] = dot(s.coefficients[i], sample) + s.bias[i]
	}
	return logits, nil
}

func (s *Softmax) PredictProba(sample []float64) ([]float64, error) {
	logits, err := s.Logits(sample)
	if err != nil {
		return nil, err
	}
	return ml.Softmax(logits), nil
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}
