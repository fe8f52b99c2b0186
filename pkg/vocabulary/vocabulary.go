package vocabulary

import (
	"errors"
	"fmt"
	"strings"
)

// minPartialLength guards the substring fallback against one or two letter
// inputs matching most of the vocabulary.
const minPartialLength = 3

// Vocabulary is the ordered set of canonical symptom labels. A label's index is
// its permanent feature slot. Vocabulary is immutable after New and safe for
// concurrent use.
type Vocabulary struct {
	labels     []string
	normalized []string
	index      map[string]int
	aliases    map[string]int
	partial    bool
}

type Option func(*options)

type options struct {
	aliases map[string]string
	partial bool
}

// WithAliases adds alternative spellings. Keys are aliases, values must be
// canonical labels.
func WithAliases(aliases map[string]string) Option {
	return func(o *options) {
		o.aliases = aliases
	}
}

// WithPartialMatch enables the substring fallback used when neither the
// canonical labels nor the aliases match exactly.
func WithPartialMatch(enabled bool) Option {
	return func(o *options) {
		o.partial = enabled
	}
}

func New(labels []string, opts ...Option) (*Vocabulary, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if len(labels) == 0 {
		return nil, errors.New("vocabulary is empty")
	}

	v := &Vocabulary{
		labels:     make([]string, len(labels)),
		normalized: make([]string, len(labels)),
		index:      make(map[string]int, len(labels)),
		aliases:    make(map[string]int, len(o.aliases)),
		partial:    o.partial,
	}
	for i, label := range labels {
		key := Normalize(label)
		if key == "" {
			return nil, fmt.Errorf("vocabulary entry %d is blank", i)
		}
		if prev, dup := v.index[key]; dup {
			return nil, fmt.Errorf("vocabulary entries %q and %q collide", labels[prev], label)
		}
		v.labels[i] = label
		v.normalized[i] = key
		v.index[key] = i
	}

	for alias, canonical := range o.aliases {
		key := Normalize(alias)
		if key == "" {
			return nil, fmt.Errorf("alias for %q is blank", canonical)
		}
		target, ok := v.index[Normalize(canonical)]
		if !ok {
			return nil, fmt.Errorf("alias %q points at unknown symptom %q", alias, canonical)
		}
		if existing, clash := v.index[key]; clash && existing != target {
			return nil, fmt.Errorf("alias %q shadows symptom %q", alias, v.labels[existing])
		}
		v.aliases[key] = target
	}

	return v, nil
}

func (v *Vocabulary) Size() int {
	return len(v.labels)
}

// Labels returns a copy of the canonical labels in feature order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Index reports the feature slot of a canonical label.
func (v *Vocabulary) Index(label string) (int, bool) {
	i, ok := v.index[Normalize(label)]
	if !ok || v.labels[i] != label {
		return 0, false
	}
	return i, true
}

// Lookup resolves a raw label to its canonical form.
func (v *Vocabulary) Lookup(raw string) (string, bool) {
	i, ok := v.resolve(Normalize(raw))
	if !ok {
		return "", false
	}
	return v.labels[i], true
}

func (v *Vocabulary) resolve(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	if i, ok := v.index[key]; ok {
		return i, true
	}
	if i, ok := v.aliases[key]; ok {
		return i, true
	}
	if !v.partial || len([]rune(key)) < minPartialLength {
		return 0, false
	}
	for i, label := range v.normalized {
		if strings.Contains(label, key) || strings.Contains(key, label) {
			return i, true
		}
	}
	return 0, false
}

// Selection is one request's symptoms split by whether they matched.
type Selection struct {
	// Recognized holds canonical labels in first-seen order.
	Recognized []string
	// Unmatched holds the trimmed caller input in first-seen order.
	Unmatched []string
}

// Total is the number of distinct, non-blank inputs.
func (s Selection) Total() int {
	return len(s.Recognized) + len(s.Unmatched)
}

// Partition deduplicates raws and splits them into recognized and unmatched.
// Inputs resolving to the same canonical label count once; unmatched inputs
// collapse on their normalized form. Blank inputs are dropped.
func (v *Vocabulary) Partition(raws []string) Selection {
	sel := Selection{
		Recognized: []string{},
		Unmatched:  []string{},
	}
	seen := make(map[int]struct{}, len(raws))
	seenUnmatched := make(map[string]struct{})

	for _, raw := range raws {
		key := Normalize(raw)
		if key == "" {
			continue
		}
		if i, ok := v.resolve(key); ok {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			sel.Recognized = append(sel.Recognized, v.labels[i])
			continue
		}
		if _, dup := seenUnmatched[key]; dup {
			continue
		}
		seenUnmatched[key] = struct{}{}
		sel.Unmatched = append(sel.Unmatched, strings.TrimSpace(raw))
	}

	return sel
}
