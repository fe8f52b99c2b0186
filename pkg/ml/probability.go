// Package ml holds the numeric helpers shared by the model families.
package ml

import (
	"errors"
	"fmt"
	"math"
)

// SumTolerance is how far a distribution may drift from 1.
const SumTolerance = 1e-6

var ErrInvalidDistribution = errors.New("invalid probability distribution")

// Softmax turns logits (or joint log-likelihoods) into probabilities using
// the log-sum-exp shift.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	max := math.Inf(-1)
	for _, l := range logits {
		if l > max {
			max = l
		}
	}
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// CheckDistribution verifies probs are finite, non-negative and sum to 1
// within SumTolerance.
func CheckDistribution(probs []float64) error {
	if len(probs) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidDistribution)
	}
	var sum float64
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: class %d is not finite", ErrInvalidDistribution, i)
		}
		if p < 0 {
			return fmt.Errorf("%w: class %d is negative", ErrInvalidDistribution, i)
		}
		sum += p
	}
	if math.Abs(sum-1) > SumTolerance {
		return fmt.Errorf("%w: sums to %g", ErrInvalidDistribution, sum)
	}
	return nil
}

// Finite reports whether every value in values is a real number.
func Finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
