package predictor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/synaptica-ai/symptomscan/pkg/ml/linear"
	"github.com/synaptica-ai/symptomscan/pkg/ml/naivebayes"
)

const (
	AlgorithmGaussianNB = "gaussian_nb"
	AlgorithmSoftmax    = "softmax"
)

// Artifact is the serialized model exported by training: the symptom
// vocabulary in feature order, the class labels in output order and the
// parameters of exactly one model family.
type Artifact struct {
	Version    string             `json:"version"`
	Algorithm  string             `json:"algorithm"`
	Accuracy   float64            `json:"accuracy"`
	Symptoms   []string           `json:"symptoms"`
	Classes    []string           `json:"classes"`
	GaussianNB *naivebayes.Params `json:"gaussian_nb,omitempty"`
	Softmax    *linear.Weights    `json:"softmax,omitempty"`
}

// ParseArtifact validates content against the artifact schema, then checks
// the invariants the schema cannot express.
func ParseArtifact(content []byte) (*Artifact, error) {
	if err := validateSchema(content); err != nil {
		return nil, err
	}
	var art Artifact
	if err := json.Unmarshal(content, &art); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := art.validate(); err != nil {
		return nil, err
	}
	return &art, nil
}

func (a *Artifact) validate() error {
	if math.IsNaN(a.Accuracy) || a.Accuracy < 0 || a.Accuracy > 1 {
		return fmt.Errorf("accuracy %g outside [0,1]", a.Accuracy)
	}
	if err := uniqueLabels("classes", a.Classes); err != nil {
		return err
	}
	switch a.Algorithm {
	case AlgorithmGaussianNB:
		if a.GaussianNB == nil {
			return fmt.Errorf("algorithm %s without gaussian_nb parameters", a.Algorithm)
		}
	case AlgorithmSoftmax:
		if a.Softmax == nil {
			return fmt.Errorf("algorithm %s without softmax parameters", a.Algorithm)
		}
	default:
		return fmt.Errorf("unsupported algorithm %q", a.Algorithm)
	}
	return nil
}

func uniqueLabels(field string, labels []string) error {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("%s contains a blank label", field)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%s contains %q twice", field, l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

func fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
