package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Condition struct {
	Name            string   `yaml:"name" json:"name"`
	Recommendations []string `yaml:"recommendations" json:"recommendations"`
}

// AdviceRule attaches advice to any recognized symptom containing one of its
// keywords, compared case-insensitively.
type AdviceRule struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Advice   []string `yaml:"advice" json:"advice"`
}

// Advice is guidance that does not depend on the predicted condition.
type Advice struct {
	General    []string
	Rules      []AdviceRule
	Disclaimer string
}

type document struct {
	Conditions    []Condition       `yaml:"conditions"`
	Aliases       map[string]string `yaml:"aliases"`
	GeneralAdvice []string          `yaml:"general_advice"`
	SymptomAdvice []AdviceRule      `yaml:"symptom_advice"`
	Disclaimer    string            `yaml:"disclaimer"`
}

// Catalog is the ordered set of condition labels a model may emit. Its order
// is the canonical tie-break order for ranking.
type Catalog struct {
	conditions []Condition
	index      map[string]int
	aliases    map[string]string
	advice     Advice
}

func Load(path string) (*Catalog, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

func Parse(content []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Conditions) == 0 {
		return nil, errors.New("condition catalog empty")
	}
	cat, err := New(doc.Conditions, doc.Aliases)
	if err != nil {
		return nil, err
	}
	return cat.WithAdvice(Advice{
		General:    doc.GeneralAdvice,
		Rules:      doc.SymptomAdvice,
		Disclaimer: doc.Disclaimer,
	})
}

func New(conditions []Condition, aliases map[string]string) (*Catalog, error) {
	c := &Catalog{
		conditions: make([]Condition, 0, len(conditions)),
		index:      make(map[string]int, len(conditions)),
		aliases:    make(map[string]string, len(aliases)),
	}
	for _, cond := range conditions {
		name := strings.TrimSpace(cond.Name)
		if name == "" {
			return nil, errors.New("condition with empty name")
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate condition %q", name)
		}
		c.index[name] = len(c.conditions)
		c.conditions = append(c.conditions, Condition{Name: name, Recommendations: trimAll(cond.Recommendations)})
	}
	for alias, target := range aliases {
		c.aliases[alias] = target
	}
	return c, nil
}

// WithAdvice sets the catalog-wide advice. It is meant to be called while the
// catalog is being built, before it is shared.
func (c *Catalog) WithAdvice(a Advice) (*Catalog, error) {
	rules := make([]AdviceRule, 0, len(a.Rules))
	for i, rule := range a.Rules {
		keywords := make([]string, 0, len(rule.Keywords))
		for _, k := range rule.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("symptom advice rule %d has no keywords", i)
		}
		rules = append(rules, AdviceRule{Keywords: keywords, Advice: trimAll(rule.Advice)})
	}
	c.advice = Advice{
		General:    trimAll(a.General),
		Rules:      rules,
		Disclaimer: strings.TrimSpace(a.Disclaimer),
	}
	return c, nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// FromLabels builds a catalog without recommendations, keeping labels' order.
func FromLabels(labels []string) (*Catalog, error) {
	conditions := make([]Condition, len(labels))
	for i, label := range labels {
		conditions[i] = Condition{Name: label}
	}
	return New(conditions, nil)
}

func (c *Catalog) Len() int {
	return len(c.conditions)
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.conditions))
	for i, cond := range c.conditions {
		names[i] = cond.Name
	}
	return names
}

// Position reports a condition's tie-break rank.
func (c *Catalog) Position(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Recommendations returns a copy of the advice for name; unknown names and
// conditions without advice yield an empty, non-nil slice.
func (c *Catalog) Recommendations(name string) []string {
	i, ok := c.index[name]
	if !ok {
		return []string{}
	}
	out := make([]string, len(c.conditions[i].Recommendations))
	copy(out, c.conditions[i].Recommendations)
	return out
}

// SymptomAdvice returns the general advice followed by the advice of every
// rule with a keyword contained in one of symptoms. Duplicates keep their
// first position. The result is empty, never nil, when the catalog has none.
func (c *Catalog) SymptomAdvice(symptoms []string) []string {
	out := make([]string, 0, len(c.advice.General))
	seen := make(map[string]struct{})
	add := func(items []string) {
		for _, item := range items {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	add(c.advice.General)

	lowered := make([]string, len(symptoms))
	for i, s := range symptoms {
		lowered[i] = strings.ToLower(s)
	}
	for _, rule := range c.advice.Rules {
		if matchesAny(lowered, rule.Keywords) {
			add(rule.Advice)
		}
	}
	return out
}

func matchesAny(symptoms, keywords []string) bool {
	for _, s := range symptoms {
		for _, k := range keywords {
			if strings.Contains(s, k) {
				return true
			}
		}
	}
	return false
}

// Disclaimer is appended to every response when set.
func (c *Catalog) Disclaimer() string {
	return c.advice.Disclaimer
}

// Aliases returns symptom aliases declared next to the conditions.
func (c *Catalog) Aliases() map[string]string {
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// Covers checks that classes and the catalog name exactly the same conditions.
func (c *Catalog) Covers(classes []string) error {
	seen := make(map[string]struct{}, len(classes))
	var missing []string
	for _, class := range classes {
		seen[class] = struct{}{}
		if _, ok := c.index[class]; !ok {
			missing = append(missing, class)
		}
	}
	var extra []string
	for _, cond := range c.conditions {
		if _, ok := seen[cond.Name]; !ok {
			extra = append(extra, cond.Name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return fmt.Errorf("catalog does not match model classes (missing %v, unknown %v)", missing, extra)
}
