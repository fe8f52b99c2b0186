package naivebayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/symptomscan/pkg/ml"
)

func twoClassParams() Params {
	return Params{
		ClassPrior: []float64{0.5, 0.5},
		Theta:      [][]float64{{0}, {1}},
		Var:        [][]float64{{0.25}, {0.25}},
	}
}

func TestPredictProbaMatchesClosedForm(t *testing.T) {
	g, err := NewGaussian(twoClassParams(), 2, 1)
	require.NoError(t, err)

	probs, err := g.PredictProba([]float64{1})
	require.NoError(t, err)
	require.NoError(t, ml.CheckDistribution(probs))

	// Equal priors and variances: the log-odds are (1-0)^2 / (2*0.25) = 2.
	assert.InDelta(t, 0.880797, probs[1], 1e-6)
	assert.InDelta(t, 0.119203, probs[0], 1e-6)
}

func TestPredictProbaUsesPriors(t *testing.T) {
	params := twoClassParams()
	params.ClassPrior = []float64{0.9, 0.1}
	g, err := NewGaussian(params, 2, 1)
	require.NoError(t, err)

	probs, err := g.PredictProba([]float64{0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, probs[0], 1e-9)
}

func TestPredictProbaRejectsWrongLength(t *testing.T) {
	g, err := NewGaussian(twoClassParams(), 2, 1)
	require.NoError(t, err)

	_, err = g.PredictProba([]float64{1, 0})
	assert.Error(t, err)
}

func TestNewGaussianValidation(t *testing.T) {
	tests := map[string]func(p *Params){
		"prior count":    func(p *Params) { p.ClassPrior = []float64{1} },
		"prior sum":      func(p *Params) { p.ClassPrior = []float64{0.5, 0.6} },
		"prior positive": func(p *Params) { p.ClassPrior = []float64{0, 1} },
		"theta rows":     func(p *Params) { p.Theta = p.Theta[:1] },
		"var cols":       func(p *Params) { p.Var = [][]float64{{0.1, 0.1}, {0.1}} },
		"var positive":   func(p *Params) { p.Var = [][]float64{{0}, {0.1}} },
		"epsilon":        func(p *Params) { p.Epsilon = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			params := twoClassParams()
			mutate(&params)
			_, err := NewGaussian(params, 2, 1)
			assert.Error(t, err)
		})
	}
}

func TestEpsilonRescuesZeroVariance(t *testing.T) {
	params := twoClassParams()
	params.Var = [][]float64{{0}, {0}}
	params.Epsilon = 1e-3

	g, err := NewGaussian(params, 2, 1)
	require.NoError(t, err)
	probs, err := g.PredictProba([]float64{1})
	require.NoError(t, err)
	assert.NoError(t, ml.CheckDistribution(probs))
	assert.InDelta(t, 1.0, probs[1], 1e-9)
}
