// Package vocabulary loads the weighted welding-domain vocabulary from YAML
// and exposes text enhancement for embedding, plus process/material
// normalization. The vocabulary is immutable after Load and safe for
// concurrent reads.
package vocabulary

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// WeightedCategory is one vocabulary category with its emphasis weight.
type WeightedCategory struct {
	Weight float64  `yaml:"weight"`
	Terms  []string `yaml:"terms"`
}

type file struct {
	Categories        map[string]WeightedCategory `yaml:"categories"`
	PrimaryProcesses  []string                    `yaml:"primary_processes"`
	TechnicalAcronyms []string                    `yaml:"technical_acronyms"`
	ProcessAliases    map[string]string           `yaml:"process_aliases"`
	Materials         map[string]string           `yaml:"materials"`
	Industries        []string                    `yaml:"industries"`
	Applications      []string                    `yaml:"applications"`
}

// Vocabulary is the loaded domain vocabulary.
type Vocabulary struct {
	categories map[string]WeightedCategory

	primaryProcesses  []string
	technicalAcronyms []string
	processAliases    map[string]string
	materials         map[string]string
	materialKeys      []string // longest first, so "acero inoxidable" wins over "acero"
	industries        []string
	applications      []string

	// orderedTerms caches category terms sorted longest-first so that
	// multi-word terms match before their substrings. categoryNames fixes
	// the iteration order so Enhance output is deterministic.
	orderedTerms  map[string][]string
	categoryNames []string
}

// Load reads the vocabulary YAML. A missing or malformed file is fatal at
// startup per the error design.
func Load(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("vocabulary %s has no categories", path)
	}

	v := &Vocabulary{
		categories:        f.Categories,
		primaryProcesses:  f.PrimaryProcesses,
		technicalAcronyms: f.TechnicalAcronyms,
		processAliases:    lowerKeys(f.ProcessAliases),
		materials:         lowerKeys(f.Materials),
		industries:        f.Industries,
		applications:      f.Applications,
		orderedTerms:      make(map[string][]string, len(f.Categories)),
	}
	for k := range v.materials {
		v.materialKeys = append(v.materialKeys, k)
	}
	sort.Slice(v.materialKeys, func(i, j int) bool {
		if len(v.materialKeys[i]) != len(v.materialKeys[j]) {
			return len(v.materialKeys[i]) > len(v.materialKeys[j])
		}
		return v.materialKeys[i] < v.materialKeys[j]
	})
	for name, cat := range f.Categories {
		terms := make([]string, len(cat.Terms))
		for i, t := range cat.Terms {
			terms[i] = strings.ToLower(t)
		}
		sort.Slice(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
		v.orderedTerms[name] = terms
		v.categoryNames = append(v.categoryNames, name)
	}
	sort.Strings(v.categoryNames)

	log.Info().
		Int("categories", len(f.Categories)).
		Int("aliases", len(f.ProcessAliases)).
		Str("path", path).
		Msg("Domain vocabulary loaded")
	return v, nil
}

// Enhance appends a weighted expansion of every matched domain term to the
// text. The category weight sets how often a term is repeated (weight 3.0
// repeats it twice, 2.0 once); process terms additionally get a "welding
// process" annotation. The enhanced text biases embedding similarity toward
// domain-critical tokens without changing dimensionality.
func (v *Vocabulary) Enhance(text string) string {
	lower := strings.ToLower(text)
	var sb strings.Builder
	sb.WriteString(text)

	for _, name := range v.categoryNames {
		repeats := int(v.CategoryWeight(name)) - 1
		if repeats < 1 {
			repeats = 1
		}
		for _, term := range v.orderedTerms[name] {
			if !strings.Contains(lower, term) {
				continue
			}
			for i := 0; i < repeats; i++ {
				sb.WriteString(" ")
				sb.WriteString(term)
			}
			if name == "processes" {
				sb.WriteString(" welding process")
			}
		}
	}
	return sb.String()
}

// CategoryWeight returns the emphasis weight of a vocabulary category,
// 1.0 when unknown.
func (v *Vocabulary) CategoryWeight(name string) float64 {
	if c, ok := v.categories[name]; ok {
		return c.Weight
	}
	return 1.0
}

// Terms returns the lowercased terms of a category, longest first.
func (v *Vocabulary) Terms(category string) []string {
	return v.orderedTerms[category]
}

// PrimaryProcesses enumerates the canonical welding process names.
func (v *Vocabulary) PrimaryProcesses() []string { return v.primaryProcesses }

// TechnicalAcronyms enumerates the recognized process acronyms.
func (v *Vocabulary) TechnicalAcronyms() []string { return v.technicalAcronyms }

// Industries enumerates the known industry values.
func (v *Vocabulary) Industries() []string { return v.industries }

// Applications enumerates the known application values.
func (v *Vocabulary) Applications() []string { return v.applications }

// NormalizeProcess maps a loose process string to the canonical enum value
// (e.g. "gmaw" -> "MIG"). The second return is false when the string is
// neither canonical nor a known alias.
func (v *Vocabulary) NormalizeProcess(s string) (string, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", false
	}
	for _, p := range v.primaryProcesses {
		if strings.EqualFold(p, s) {
			return p, true
		}
	}
	if canonical, ok := v.processAliases[s]; ok {
		return canonical, true
	}
	return "", false
}

// NormalizeMaterial maps a loose material string (any supported language) to
// its canonical form, e.g. "acero inoxidable" -> "stainless_steel".
func (v *Vocabulary) NormalizeMaterial(s string) (string, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", false
	}
	if m, ok := v.materials[s]; ok {
		return m, true
	}
	// Multi-word materials may appear inside a longer phrase.
	for _, key := range v.materialKeys {
		if strings.Contains(s, key) {
			return v.materials[key], true
		}
	}
	return "", false
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
