package intent

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/beedev/sparky/pkg/models"
)

// ModeConfig is the parsed mode_detection.yaml: signal phrases for the
// expert and guided scoring axes plus the guided-flow trigger phrases.
type ModeConfig struct {
	ExpertSignals       []string            `yaml:"expert_signals"`
	GuidedSignals       []string            `yaml:"guided_signals"`
	ExpertWeight        float64             `yaml:"expert_weight"`
	GuidedWeight        float64             `yaml:"guided_weight"`
	ConfidenceThreshold float64             `yaml:"confidence_threshold"`
	GuidedFlows         map[string][]string `yaml:"guided_flows"`

	flowNames []string
}

// LoadModeConfig reads and validates the mode-detection configuration.
func LoadModeConfig(path string) (*ModeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mode config: %w", err)
	}
	var cfg ModeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse mode config %s: %w", path, err)
	}
	if cfg.ExpertWeight == 0 {
		cfg.ExpertWeight = 0.4
	}
	if cfg.GuidedWeight == 0 {
		cfg.GuidedWeight = 0.3
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	cfg.flowNames = make([]string, 0, len(cfg.GuidedFlows))
	for name := range cfg.GuidedFlows {
		cfg.flowNames = append(cfg.flowNames, name)
	}
	sort.Strings(cfg.flowNames)
	return &cfg, nil
}

// DetectGuidedFlow returns the name of the first guided-flow scenario whose
// trigger phrase appears in the query, or "".
func (c *ModeConfig) DetectGuidedFlow(query string) string {
	q := strings.ToLower(query)
	for _, name := range c.flowNames {
		for _, phrase := range c.GuidedFlows[name] {
			if strings.Contains(q, phrase) {
				return name
			}
		}
	}
	return ""
}

// ExpertiseSignals is the breakdown behind a mode decision, kept for the
// trace and for tests.
type ExpertiseSignals struct {
	TechnicalTerms int
	NumericSpecs   int
	ExpertPhrases  int
	GuidedPhrases  int
	Specificity    float64
	HistoryLean    float64
	ExpertScore    float64
	GuidedScore    float64
}

// DetectExpertise classifies the query into EXPERT, GUIDED or HYBRID.
//
// Four weighted sub-scores feed the expert score: expert vocabulary hits
// (named product models, processes, technical phrases, acronyms) at 0.4,
// query complexity (numeric specs, length, several processes) at 0.3, the
// technical share of the recent history at 0.2 and model-level specificity
// at 0.1. Two or more guided phrases force GUIDED regardless of the
// expert score; otherwise an expert score at or above 0.7 yields EXPERT
// and the middle ground is HYBRID.
func (c *ModeConfig) DetectExpertise(query string, expertTerms, processTerms, history []string) (models.ExpertiseMode, ExpertiseSignals) {
	q := strings.ToLower(query)
	var sig ExpertiseSignals

	sig.TechnicalTerms = countHits(q, expertTerms)
	sig.NumericSpecs = countNumericSpecs(q)
	for _, p := range c.ExpertSignals {
		if strings.Contains(q, p) {
			sig.ExpertPhrases++
		}
	}
	for _, p := range c.GuidedSignals {
		if strings.Contains(q, p) {
			sig.GuidedPhrases++
		}
	}
	sig.Specificity = specificity(q)
	sig.HistoryLean = historyLean(history, expertTerms)

	complexity := float64(sig.NumericSpecs)
	if len(strings.Fields(q)) >= 8 {
		complexity++
	}
	if countHits(q, processTerms) >= 2 {
		complexity++
	}

	sig.ExpertScore = 0.4*capUnit(float64(sig.TechnicalTerms+sig.ExpertPhrases)/3) +
		0.3*capUnit(complexity/2) +
		0.2*sig.HistoryLean +
		0.1*sig.Specificity
	sig.GuidedScore = capUnit(float64(sig.GuidedPhrases) / 2)

	switch {
	case sig.GuidedPhrases >= 2:
		return models.ModeGuided, sig
	case sig.ExpertScore >= c.ConfidenceThreshold:
		return models.ModeExpert, sig
	case sig.GuidedPhrases > 0 && sig.ExpertScore < 0.3:
		return models.ModeGuided, sig
	default:
		return models.ModeHybrid, sig
	}
}

// countNumericSpecs counts number+unit pairs like "300 amps", "400a",
// "5mm", "230V".
func countNumericSpecs(q string) int {
	return len(numericSpecRe.FindAllString(q, -1))
}

func countHits(text string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if containsWord(text, strings.ToLower(term)) {
			hits++
		}
	}
	return hits
}

// historyLean is the share of the last ten history entries that carry
// technical content or an explicit EXPERT classification.
func historyLean(history, expertTerms []string) float64 {
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	if len(history) == 0 {
		return 0
	}
	expert := 0
	for _, h := range history {
		if models.ExpertiseMode(strings.ToUpper(h)) == models.ModeExpert ||
			countHits(strings.ToLower(h), expertTerms) > 0 {
			expert++
		}
	}
	return float64(expert) / float64(len(history))
}

// specificity reports whether the query names a concrete product model or
// asks for a compatible or replacement part.
func specificity(q string) float64 {
	for _, f := range productFamilies {
		if containsWord(q, f) && modelTokenRe.MatchString(q) {
			return 1
		}
	}
	for _, w := range []string{"compatible", "replacement"} {
		if strings.Contains(q, w) {
			return 1
		}
	}
	return 0
}

func capUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// containsWord matches term as a whole word inside text.
func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		leftOK := start == 0 || !isAlnum(text[start-1])
		rightOK := end == len(text) || !isAlnum(text[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
