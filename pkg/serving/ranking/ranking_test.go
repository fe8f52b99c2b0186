package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/symptomscan/pkg/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Condition{
		{Name: "Common Cold", Recommendations: []string{"Rest"}},
		{Name: "Influenza", Recommendations: []string{"Monitor your temperature", "Stay hydrated"}},
		{Name: "Migraine"},
		{Name: "Dermatitis"},
	}, nil)
	require.NoError(t, err)
	return cat
}

func conditions(preds []Prediction) []string {
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = p.Condition
	}
	return out
}

func TestConfidenceRounding(t *testing.T) {
	cases := map[float64]float64{
		0.97213: 97.2,
		0.02649: 2.6,
		0.00251: 0.3,
		1.0:     100,
		0:       0,
		0.33333: 33.3,
	}
	for p, want := range cases {
		assert.InDelta(t, want, Confidence(p), 1e-9, "probability %v", p)
	}
}

func TestRankOrdersByConfidence(t *testing.T) {
	cat := testCatalog(t)
	preds, err := Rank([]float64{0.1, 0.6, 0.25, 0.05}, cat.Names(), cat, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Influenza", "Migraine", "Common Cold", "Dermatitis"}, conditions(preds))
	assert.Equal(t, 60.0, preds[0].Confidence)
	for i := 1; i < len(preds); i++ {
		assert.GreaterOrEqual(t, preds[i-1].Confidence, preds[i].Confidence)
	}
}

func TestRankBreaksTiesByCatalogOrder(t *testing.T) {
	cat := testCatalog(t)
	// Classes arrive in a different order than the catalog.
	classes := []string{"Dermatitis", "Migraine", "Influenza", "Common Cold"}
	preds, err := Rank([]float64{0.25, 0.25, 0.25, 0.25}, classes, cat, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Common Cold", "Influenza", "Migraine", "Dermatitis"}, conditions(preds))
}

func TestRankPrimaryIsArgmaxWhenRoundedValuesTie(t *testing.T) {
	cat := testCatalog(t)
	// Both round to 50.0; the larger raw probability still wins.
	preds, err := Rank([]float64{0.49996, 0.50004, 0, 0}, cat.Names(), cat, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Influenza", "Common Cold"}, conditions(preds))
	assert.Equal(t, 50.0, preds[0].Confidence)
	assert.Equal(t, 0.50004, preds[0].Probability)

	preds, err = Rank([]float64{0.19995, 0.40001, 0.40004, 0}, cat.Names(), cat, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Migraine", "Influenza", "Common Cold"}, conditions(preds))
}

func TestRankDropsConfidenceAtThreshold(t *testing.T) {
	cat := testCatalog(t)
	// 0.005 is exactly 0.5%, which is not above the cutoff.
	preds, err := Rank([]float64{0.989, 0.005, 0.006, 0}, cat.Names(), cat, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Common Cold", "Migraine"}, conditions(preds))
	assert.Equal(t, 0.6, preds[1].Confidence)
}

func TestRankFiltersLowConfidenceButKeepsPrimary(t *testing.T) {
	cat := testCatalog(t)
	preds, err := Rank([]float64{0.026, 0.972, 0.002, 0}, cat.Names(), cat, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Influenza", "Common Cold"}, conditions(preds))

	preds, err = Rank([]float64{0.25, 0.25, 0.25, 0.25}, cat.Names(), cat, Options{TopK: 4, MinConfidence: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"Common Cold"}, conditions(preds))
}

func TestRankHonoursTopK(t *testing.T) {
	cat := testCatalog(t)
	preds, err := Rank([]float64{0.4, 0.3, 0.2, 0.1}, cat.Names(), cat, Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, preds, 2)
}

func TestRankRejectsMismatchedInput(t *testing.T) {
	cat := testCatalog(t)
	_, err := Rank([]float64{1}, cat.Names(), cat, DefaultOptions())
	require.Error(t, err)

	_, err = Rank([]float64{1}, []string{"Unknown"}, cat, DefaultOptions())
	require.Error(t, err)
}

func TestBand(t *testing.T) {
	cases := map[float64]string{
		75:   BandHigh,
		70:   BandHigh,
		69.9: BandMedium,
		55:   BandMedium,
		50:   BandMedium,
		49.9: BandLow,
		30:   BandLow,
	}
	for confidence, want := range cases {
		assert.Equal(t, want, Band(confidence), "confidence %v", confidence)
	}
}

func TestRecommendations(t *testing.T) {
	cat := testCatalog(t)
	assert.Equal(t, []string{"Monitor your temperature", "Stay hydrated"}, Recommendations(cat, "Influenza"))

	none := Recommendations(cat, "Dermatitis")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
