package predictor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/synaptica-ai/symptomscan/pkg/catalog"
	"github.com/synaptica-ai/symptomscan/pkg/common/models"
	"github.com/synaptica-ai/symptomscan/pkg/features"
	"github.com/synaptica-ai/symptomscan/pkg/ml"
	"github.com/synaptica-ai/symptomscan/pkg/ml/linear"
	"github.com/synaptica-ai/symptomscan/pkg/ml/naivebayes"
	"github.com/synaptica-ai/symptomscan/pkg/vocabulary"
)

// Classifier maps a feature vector to one probability per model class.
// Implementations are read-only after construction.
type Classifier interface {
	Classes() int
	Features() int
	PredictProba(sample []float64) ([]float64, error)
}

// Bundle is everything one model version needs to serve requests. It is never
// mutated after NewBundle returns, so requests share it without locking.
type Bundle struct {
	Version     string
	Algorithm   string
	Accuracy    float64
	Fingerprint string
	LoadedAt    time.Time
	Vocabulary  *vocabulary.Vocabulary
	Catalog     *catalog.Catalog

	classifier Classifier
	// toCatalog[i] is the catalog position of model output i.
	toCatalog []int
}

// Distribution holds one probability per condition, in catalog order.
type Distribution struct {
	Labels        []string
	Probabilities []float64
}

// NewBundle wires an artifact to its catalog. A nil catalog is derived from
// the artifact's classes.
func NewBundle(art *Artifact, cat *catalog.Catalog, fingerprint string, opts ...vocabulary.Option) (*Bundle, error) {
	var err error
	if cat == nil {
		if cat, err = catalog.FromLabels(art.Classes); err != nil {
			return nil, err
		}
	}
	if err := cat.Covers(art.Classes); err != nil {
		return nil, err
	}

	vocabOpts := append([]vocabulary.Option{vocabulary.WithAliases(cat.Aliases())}, opts...)
	vocab, err := vocabulary.New(art.Symptoms, vocabOpts...)
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}

	classifier, err := newClassifier(art)
	if err != nil {
		return nil, fmt.Errorf("build %s classifier: %w", art.Algorithm, err)
	}

	toCatalog := make([]int, len(art.Classes))
	for i, class := range art.Classes {
		toCatalog[i], _ = cat.Position(class)
	}

	return &Bundle{
		Version:     art.Version,
		Algorithm:   art.Algorithm,
		Accuracy:    art.Accuracy,
		Fingerprint: fingerprint,
		LoadedAt:    time.Now().UTC(),
		Vocabulary:  vocab,
		Catalog:     cat,
		classifier:  classifier,
		toCatalog:   toCatalog,
	}, nil
}

func newClassifier(art *Artifact) (Classifier, error) {
	classes, features := len(art.Classes), len(art.Symptoms)
	switch art.Algorithm {
	case AlgorithmGaussianNB:
		return naivebayes.NewGaussian(*art.GaussianNB, classes, features)
	case AlgorithmSoftmax:
		return linear.NewSoftmax(*art.Softmax, classes, features)
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", art.Algorithm)
	}
}

// Predict runs the classifier and checks the numeric contract. Errors wrapping
// ml.ErrInvalidDistribution mean the model produced an unusable output.
func (b *Bundle) Predict(vec features.Vector) (Distribution, error) {
	if len(vec) != b.Vocabulary.Size() {
		return Distribution{}, fmt.Errorf("vector has %d slots, vocabulary has %d", len(vec), b.Vocabulary.Size())
	}
	raw, err := b.classifier.PredictProba(vec)
	if err != nil {
		return Distribution{}, err
	}
	if len(raw) != len(b.toCatalog) {
		return Distribution{}, fmt.Errorf("%w: %d outputs for %d classes", ml.ErrInvalidDistribution, len(raw), len(b.toCatalog))
	}
	if err := ml.CheckDistribution(raw); err != nil {
		return Distribution{}, err
	}

	probs := make([]float64, len(raw))
	for i, p := range raw {
		probs[b.toCatalog[i]] = p
	}
	return Distribution{Labels: b.Catalog.Names(), Probabilities: probs}, nil
}

// Status describes the bundle for the models endpoint.
func (b *Bundle) Status() models.ModelStatus {
	return models.ModelStatus{
		Version:     b.Version,
		Algorithm:   b.Algorithm,
		Fingerprint: b.Fingerprint,
		Accuracy:    b.Accuracy,
		Diseases:    b.Catalog.Len(),
		Symptoms:    b.Vocabulary.Size(),
		LoadedAt:    b.LoadedAt,
	}
}

// Source locates model artifacts on disk.
type Source struct {
	Dir          string
	ModelFile    string
	CatalogFile  string
	PartialMatch bool
}

func (s Source) modelPath() string {
	name := s.ModelFile
	if name == "" {
		name = "model.json"
	}
	return filepath.Join(s.Dir, name)
}

func (s Source) catalogPath() string {
	name := s.CatalogFile
	if name == "" {
		name = "catalog.yaml"
	}
	return filepath.Join(s.Dir, name)
}

// Load reads, validates and assembles a complete bundle. The catalog file is
// optional.
func (s Source) Load() (*Bundle, error) {
	modelBytes, err := os.ReadFile(filepath.Clean(s.modelPath()))
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	art, err := ParseArtifact(modelBytes)
	if err != nil {
		return nil, err
	}

	var cat *catalog.Catalog
	catalogBytes, err := os.ReadFile(filepath.Clean(s.catalogPath()))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		catalogBytes = nil
	case err != nil:
		return nil, fmt.Errorf("read catalog: %w", err)
	default:
		if cat, err = catalog.Parse(catalogBytes); err != nil {
			return nil, err
		}
	}

	return NewBundle(art, cat, fingerprint(modelBytes, catalogBytes), vocabulary.WithPartialMatch(s.PartialMatch))
}

// Stamp summarizes the artifact files' size and modification time so a
// watcher can detect replacement without reading them.
func (s Source) Stamp() (string, error) {
	stamp := ""
	for _, path := range []string{s.modelPath(), s.catalogPath()} {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			stamp += "-;"
			continue
		}
		if err != nil {
			return "", err
		}
		stamp += fmt.Sprintf("%d:%d;", info.ModTime().UnixNano(), info.Size())
	}
	return stamp, nil
}
