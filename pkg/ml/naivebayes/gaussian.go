// Package naivebayes implements inference for Gaussian naive Bayes models
// exported by the training pipeline.
package naivebayes

import (
	"fmt"
	"math"

	"github.com/synaptica-ai/symptomscan/pkg/ml"
)

// Params are the fitted parameters as serialized in model artifacts. Rows are
// classes, columns are features.
type Params struct {
	ClassPrior []float64   `json:"class_prior"`
	Theta      [][]float64 `json:"theta"`
	Var        [][]float64 `json:"var"`
	Epsilon    float64     `json:"epsilon"`
}

// Gaussian is a read-only fitted model. Per-class normalizers are computed
// once so prediction only evaluates the quadratic term.
type Gaussian struct {
	theta   [][]float64
	invVar  [][]float64
	logNorm []float64
}

func NewGaussian(p Params, classes, features int) (*Gaussian, error) {
	if classes == 0 || features == 0 {
		return nil, fmt.Errorf("model needs at least one class and feature")
	}
	if len(p.ClassPrior) != classes {
		return nil, fmt.Errorf("class_prior has %d entries, want %d", len(p.ClassPrior), classes)
	}
	if err := checkMatrix("theta", p.Theta, classes, features); err != nil {
		return nil, err
	}
	if err := checkMatrix("var", p.Var, classes, features); err != nil {
		return nil, err
	}
	if p.Epsilon < 0 || math.IsNaN(p.Epsilon) || math.IsInf(p.Epsilon, 0) {
		return nil, fmt.Errorf("epsilon must be a non-negative number")
	}

	var priorSum float64
	for i, prior := range p.ClassPrior {
		if !(prior > 0) || math.IsInf(prior, 0) {
			return nil, fmt.Errorf("class_prior[%d] must be positive", i)
		}
		priorSum += prior
	}
	if math.Abs(priorSum-1) > ml.SumTolerance {
		return nil, fmt.Errorf("class_prior sums to %g", priorSum)
	}

	g := &Gaussian{
		theta:   make([][]float64, classes),
		invVar:  make([][]float64, classes),
		logNorm: make([]float64, classes),
	}
	for i := 0; i < classes; i++ {
		g.theta[i] = append([]float64(nil), p.Theta[i]...)
		g.invVar[i] = make([]float64, features)
		norm := math.Log(p.ClassPrior[i])
		for j := 0; j < features; j++ {
			v := p.Var[i][j] + p.Epsilon
			if !(v > 0) {
				return nil, fmt.Errorf("var[%d][%d] must be positive", i, j)
			}
			g.invVar[i][j] = 1 / v
			norm -= 0.5 * math.Log(2*math.Pi*v)
		}
		g.logNorm[i] = norm
	}
	return g, nil
}

func (g *Gaussian) Classes() int {
	return len(g.logNorm)
}

func (g *Gaussian) Features() int {
	return len(g.theta[0])
}

// JointLogLikelihood returns log P(c) + log P(x|c) for every class.
func (g *Gaussian) JointLogLikelihood(sample []float64) ([]float64, error) {
	if len(sample) != g.Features() {
		return nil, fmt.Errorf("sample has %d features, model expects %d", len(sample), g.Features())
	}
	jll := make([]float64, len(g.logNorm))
	for i := range g.logNorm {
		var quad float64
		for j, x := range sample {
			d := x - g.theta[i][j]
			quad += d * d * g.invVar[i][j]
		}
		jll[i] = g.logNorm[i] - 0.5*quad
	}
	return jll, nil
}

func (g *Gaussian) PredictProba(sample []float64) ([]float64, error) {
	jll, err := g.JointLogLikelihood(sample)
	if err != nil {
		return nil, err
	}
	return ml.Softmax(jll), nil
}

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("%s has %d rows, want %d", name, len(m), rows)
	}
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%s[%d] has %d columns, want %d", name, i, len(row), cols)
		}
		if !ml.Finite(row) {
			return fmt.Errorf("%s[%d] contains non-finite values", name, i)
		}
	}
	return nil
}
