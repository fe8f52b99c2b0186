package features

import (
	"fmt"

	"github.com/synaptica-ai/symptomscan/pkg/vocabulary"
)

// Vector is the binary symptom encoding fed to classifiers: one slot per
// vocabulary entry, 1 when the symptom was recognized.
type Vector []float64

// Encode builds the feature vector for recognized canonical labels. The result
// always has vocab.Size() slots; an empty set yields the zero vector.
func Encode(vocab *vocabulary.Vocabulary, recognized []string) (Vector, error) {
	vec := make(Vector, vocab.Size())
	for _, label := range recognized {
		idx, ok := vocab.Index(label)
		if !ok {
			return nil, fmt.Errorf("symptom %q is not in the vocabulary", label)
		}
		vec[idx] = 1
	}
	return vec, nil
}

// Active counts set slots.
func (v Vector) Active() int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

func (v Vector) IsZero() bool {
	return v.Active() == 0
}
