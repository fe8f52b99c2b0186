package predictor

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/symptomscan/pkg/features"
	"github.com/synaptica-ai/symptomscan/pkg/ml"
	"github.com/synaptica-ai/symptomscan/pkg/observability/metrics"
)

func copyFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for dst, src := range files {
		content, err := os.ReadFile(src)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, dst), content, 0o644))
	}
	return dir
}

func encode(t *testing.T, b *Bundle, symptoms ...string) features.Vector {
	t.Helper()
	vec, err := features.Encode(b.Vocabulary, symptoms)
	require.NoError(t, err)
	return vec
}

func TestSourceLoadGaussian(t *testing.T) {
	b, err := Source{Dir: "testdata"}.Load()
	require.NoError(t, err)

	assert.Equal(t, "fixture-2024.1", b.Version)
	assert.Equal(t, AlgorithmGaussianNB, b.Algorithm)
	assert.Len(t, b.Fingerprint, 16)
	assert.Equal(t, 10, b.Vocabulary.Size())

	dist, err := b.Predict(encode(t, b, "Headache", "High fever", "Cough"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Common Cold", "Influenza", "Migraine", "Gastroenteritis", "Dermatitis"}, dist.Labels)
	assert.InDelta(t, 0.972, dist.Probabilities[1], 0.001)
	assert.InDelta(t, 0.026, dist.Probabilities[0], 0.001)
	require.NoError(t, ml.CheckDistribution(dist.Probabilities))
}

func TestBundleAppliesCatalogAliases(t *testing.T) {
	b, err := Source{Dir: "testdata"}.Load()
	require.NoError(t, err)

	label, ok := b.Vocabulary.Lookup("Tummy Ache")
	require.True(t, ok)
	assert.Equal(t, "Stomach pain", label)
}

func TestZeroVectorStillPredicts(t *testing.T) {
	b, err := Source{Dir: "testdata"}.Load()
	require.NoError(t, err)

	dist, err := b.Predict(make(features.Vector, b.Vocabulary.Size()))
	require.NoError(t, err)
	assert.InDelta(t, 0.844, dist.Probabilities[4], 0.001)
}

func TestSourceLoadSoftmaxWithoutCatalog(t *testing.T) {
	b, err := Source{Dir: "testdata/softmax"}.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Allergy", "Bronchitis", "Eczema"}, b.Catalog.Names())

	uniform, err := b.Predict(make(features.Vector, 3))
	require.NoError(t, err)
	for _, p := range uniform.Probabilities {
		assert.InDelta(t, 1.0/3, p, 1e-9)
	}

	dist, err := b.Predict(encode(t, b, "Itching", "Skin rash"))
	require.NoError(t, err)
	assert.Greater(t, dist.Probabilities[2], dist.Probabilities[0])
	assert.Greater(t, dist.Probabilities[0], dist.Probabilities[1])
}

func TestPredictRejectsWrongVectorLength(t *testing.T) {
	b, err := Source{Dir: "testdata"}.Load()
	require.NoError(t, err)

	_, err = b.Predict(features.Vector{1, 0})
	require.Error(t, err)
}

func TestSourceLoadRejectsInvalidArtifact(t *testing.T) {
	_, err := Source{Dir: "testdata/invalid"}.Load()
	require.Error(t, err)

	_, err = Source{Dir: "testdata/missing"}.Load()
	require.Error(t, err)
}

func TestSourceLoadRejectsMismatchedCatalog(t *testing.T) {
	dir := copyFixture(t, map[string]string{"model.json": "testdata/model.json"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte("conditions:\n  - name: Common Cold\n"), 0o644))

	_, err := Source{Dir: dir}.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Influenza")
}

func TestStaticRegistry(t *testing.T) {
	b, err := Source{Dir: "testdata"}.Load()
	require.NoError(t, err)

	reg := NewStaticRegistry(b)
	got, err := reg.Current()
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = reg.Reload(context.Background())
	require.Error(t, err)

	reg.Close()
	_, err = reg.Current()
	assert.ErrorIs(t, err, ErrNoBundle)
}

func TestReloadHonoursCancelledContext(t *testing.T) {
	reg, err := NewRegistry(Source{Dir: "testdata"})
	require.NoError(t, err)
	before, err := reg.Current()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reg.Reload(ctx)
	require.ErrorIs(t, err, context.Canceled)

	after, err := reg.Current()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestNewRegistryFailsWithoutArtifacts(t *testing.T) {
	_, err := NewRegistry(Source{Dir: t.TempDir()})
	require.Error(t, err)
}

func TestReloadFailureKeepsPreviousBundle(t *testing.T) {
	dir := copyFixture(t, map[string]string{
		"model.json":   "testdata/model.json",
		"catalog.yaml": "testdata/catalog.yaml",
	})
	reg, err := NewRegistry(Source{Dir: dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("{"), 0o644))
	_, err = reg.Reload(context.Background())
	require.Error(t, err)

	current, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, "fixture-2024.1", current.Version)

	softmax, err := os.ReadFile("testdata/softmax/model.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), softmax, 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "catalog.yaml")))

	next, err := reg.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "softmax-fixture-1", next.Version)
	assert.NotEqual(t, current.Fingerprint, next.Fingerprint)
}

func TestConcurrentReadsDuringReload(t *testing.T) {
	dir := copyFixture(t, map[string]string{
		"model.json":   "testdata/model.json",
		"catalog.yaml": "testdata/catalog.yaml",
	})
	reg, err := NewRegistry(Source{Dir: dir})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b, err := reg.Current()
				if !assert.NoError(t, err) {
					return
				}
				vec, err := features.Encode(b.Vocabulary, []string{"Nausea", "Vomiting"})
				if !assert.NoError(t, err) {
					return
				}
				dist, err := b.Predict(vec)
				if !assert.NoError(t, err) {
					return
				}
				assert.InDelta(t, 0.805, dist.Probabilities[3], 0.001)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := reg.Reload(context.Background())
		require.NoError(t, err)
	}
	wg.Wait()
}

func reloadCount(t *testing.T, name string) int64 {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	m := regexp.MustCompile(`(?m)^` + name + ` (\d+)$`).FindStringSubmatch(rec.Body.String())
	require.Len(t, m, 2)
	v, err := strconv.ParseInt(m[1], 10, 64)
	require.NoError(t, err)
	return v
}

func watch(t *testing.T, reg *Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		reg.Watch(ctx, 10*time.Millisecond)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatchReloadsChangedArtifacts(t *testing.T) {
	dir := copyFixture(t, map[string]string{
		"model.json":   "testdata/model.json",
		"catalog.yaml": "testdata/catalog.yaml",
	})
	reg, err := NewRegistry(Source{Dir: dir})
	require.NoError(t, err)
	reloads := reloadCount(t, "symptomscan_model_reloads_total")
	watch(t, reg)

	softmax, err := os.ReadFile("testdata/softmax/model.json")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "catalog.yaml")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), softmax, 0o644))

	require.Eventually(t, func() bool {
		b, err := reg.Current()
		return err == nil && b.Version == "softmax-fixture-1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Greater(t, reloadCount(t, "symptomscan_model_reloads_total"), reloads)
}

func TestWatchDoesNotRetryBrokenArtifact(t *testing.T) {
	dir := copyFixture(t, map[string]string{
		"model.json":   "testdata/model.json",
		"catalog.yaml": "testdata/catalog.yaml",
	})
	reg, err := NewRegistry(Source{Dir: dir})
	require.NoError(t, err)
	failures := reloadCount(t, "symptomscan_model_reload_failures_total")
	watch(t, reg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("{"), 0o644))

	// Once the failed attempt is recorded the broken stamp counts as seen.
	require.Eventually(t, func() bool {
		return !reg.changed() && reloadCount(t, "symptomscan_model_reload_failures_total") > failures
	}, 2*time.Second, 10*time.Millisecond)

	seen := reloadCount(t, "symptomscan_model_reload_failures_total")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, seen, reloadCount(t, "symptomscan_model_reload_failures_total"))

	current, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, "fixture-2024.1", current.Version)
}
