// Package intent implements the first pipeline agent: language handling,
// expertise-mode detection, product-mention matching and structured
// requirement extraction. The processor is fail-open: when the LLM is
// unreachable it degrades to pattern extraction with capped confidence and
// never returns an error for a non-empty query.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/llm"
	"github.com/beedev/sparky/internal/vocabulary"
	"github.com/beedev/sparky/pkg/models"
)

// ErrEmptyQuery is returned for blank input, the one case with no fallback.
var ErrEmptyQuery = errors.New("empty query")

// Processor is Agent 1.
type Processor struct {
	llm   llm.Client
	vocab *vocabulary.Vocabulary
	modes *ModeConfig
	log   zerolog.Logger
}

// NewProcessor wires the intent processor.
func NewProcessor(client llm.Client, vocab *vocabulary.Vocabulary, modes *ModeConfig, log zerolog.Logger) *Processor {
	return &Processor{
		llm:   client,
		vocab: vocab,
		modes: modes,
		log:   log.With().Str("agent", "intent").Logger(),
	}
}

// Process runs the full intent pipeline over one query.
func (p *Processor) Process(ctx context.Context, query string, userCtx models.UserContext) (*models.ProcessedIntent, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	intent := &models.ProcessedIntent{
		OriginalQuery: query,
		UserContext:   userCtx,
	}

	// Language: an explicit preference wins over detection.
	lang, langConf := DetectLanguage(query)
	if userCtx.PreferredLanguage != "" {
		lang, langConf = userCtx.PreferredLanguage, 1.0
	}
	intent.DetectedLanguage = lang
	intent.LanguageConfidence = langConf

	working := query
	if lang != "en" {
		working = TranslateToEnglish(lang, query)
	}
	intent.TranslatedQuery = working

	// Deterministic scans run before any LLM call.
	if match, ok := MatchProduct(working); ok {
		intent.MentionedProduct = match.Mentioned
		intent.Application = match.Application
		intent.Confidence = match.Confidence
	}
	intent.GuidedFlow = p.modes.DetectGuidedFlow(working)

	// Expert vocabulary spans named models, processes, technical phrases
	// and acronyms; the recent history (explicit classifications plus
	// previous queries) feeds the history lean.
	expertTerms := append([]string{}, p.vocab.Terms("product_names")...)
	expertTerms = append(expertTerms, p.vocab.Terms("processes")...)
	expertTerms = append(expertTerms, p.vocab.Terms("technical_terms")...)
	expertTerms = append(expertTerms, p.vocab.TechnicalAcronyms()...)
	history := append([]string{}, userCtx.ExpertiseHistory...)
	history = append(history, userCtx.PreviousQueries...)
	mode, signals := p.modes.DetectExpertise(working, expertTerms, p.vocab.Terms("processes"), history)
	intent.Mode = mode

	// Structured extraction, falling back to patterns.
	ext, err := extractLLM(ctx, p.llm, working)
	llmUsed := err == nil
	if err != nil {
		p.log.Warn().Err(err).Msg("llm extraction failed, using pattern fallback")
		intent.Errors = append(intent.Errors, fmt.Sprintf("llm extraction: %v", err))
		ext = extractPatterns(working, p.vocab)
	}

	p.applyExtraction(ctx, intent, ext, llmUsed)
	p.scoreIntent(intent, ext, llmUsed)

	p.log.Info().
		Str("language", intent.DetectedLanguage).
		Str("mode", string(intent.Mode)).
		Strs("processes", intent.Processes).
		Str("material", intent.Material).
		Float64("confidence", intent.Confidence).
		Bool("llm", llmUsed).
		Int("expert_phrases", signals.ExpertPhrases).
		Msg("intent processed")

	return intent, nil
}

// applyExtraction folds the extraction into the intent, normalizing
// processes and materials onto the canonical vocabulary.
func (p *Processor) applyExtraction(ctx context.Context, intent *models.ProcessedIntent, ext *extraction, llmUsed bool) {
	known, unknown := normalizeProcesses(ext.Processes, p.vocab)
	if len(unknown) > 0 && llmUsed {
		known = append(known, p.remapProcesses(ctx, unknown)...)
	}
	intent.Processes = known

	if ext.Material != "" {
		if m, ok := p.vocab.NormalizeMaterial(ext.Material); ok {
			intent.Material = m
		} else {
			intent.Material = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(ext.Material), " ", "_"))
		}
	}

	intent.PowerWatts = ext.PowerWatts
	intent.CurrentAmps = ext.CurrentAmps
	intent.Voltage = ext.Voltage
	intent.ThicknessMM = ext.ThicknessMM
	intent.Environment = environmentFixup(ext.Environment)
	if intent.Application == "" {
		intent.Application = ext.Application
	}
	intent.Industry = ext.Industry
}

// remapProcesses asks the LLM once to map unrecognized process names onto
// the canonical set. Failures just drop the unknowns.
func (p *Processor) remapProcesses(ctx context.Context, unknown []string) []string {
	prompt := fmt.Sprintf(
		`Map these welding process names onto the canonical set [MIG, TIG, MMA, SAW, FCAW, GOUGING]: %s. Reply with JSON: {"processes": [...]}. Drop anything that does not map.`,
		strings.Join(unknown, ", "))

	reply, err := p.llm.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		p.log.Debug().Err(err).Strs("unknown", unknown).Msg("process remap failed")
		return nil
	}
	var out struct {
		Processes []string `json:"processes"`
	}
	if err := llm.ParseJSON(reply, &out); err != nil {
		return nil
	}
	mapped, _ := normalizeProcesses(out.Processes, p.vocab)
	return mapped
}

// keyParams are the slots counted toward completeness, in reporting order.
var keyParams = []string{"processes", "material", "current_amps", "environment", "application"}

// scoreIntent computes confidence, completeness and the clarification
// decision. Confidence blends extraction quality (0.7), language certainty
// (0.2) and a mode factor (0.1, EXPERT leaning up, GUIDED down);
// pattern-fallback runs are capped at 0.3.
func (p *Processor) scoreIntent(intent *models.ProcessedIntent, ext *extraction, llmUsed bool) {
	present := map[string]bool{
		"processes":    len(intent.Processes) > 0,
		"material":     intent.Material != "",
		"current_amps": intent.CurrentAmps > 0 || intent.PowerWatts > 0,
		"environment":  intent.Environment != "",
		"application":  intent.Application != "",
	}
	filled := 0
	for _, k := range keyParams {
		if present[k] {
			filled++
		} else {
			intent.MissingParams = append(intent.MissingParams, k)
		}
	}
	intent.Completeness = float64(filled) / float64(len(keyParams))

	langConf := intent.LanguageConfidence
	if intent.DetectedLanguage == "en" {
		langConf = 1.0
	}
	modeFactor := 1.0
	switch intent.Mode {
	case models.ModeExpert:
		modeFactor = 1.1
	case models.ModeGuided:
		modeFactor = 0.9
	}
	confidence := 0.7*ext.Confidence + 0.2*langConf + 0.1*modeFactor
	if confidence > 1 {
		confidence = 1
	}
	if !llmUsed && confidence > 0.3 {
		confidence = 0.3
	}
	// A deterministic product match is stronger evidence than anything the
	// LLM reports about a vague query.
	if intent.MentionedProduct != "" && intent.Confidence > confidence {
		confidence = intent.Confidence
	}
	intent.Confidence = confidence

	if intent.Confidence < 0.6 || (intent.Mode == models.ModeGuided && !present["processes"] && !present["material"]) {
		intent.NeedsClarification = true
		intent.ClarificationQuestions = clarificationQuestions(intent)
	}
}

// clarificationQuestions builds at most three questions targeting the
// highest-value missing slots.
func clarificationQuestions(intent *models.ProcessedIntent) []string {
	var qs []string
	for _, missing := range intent.MissingParams {
		switch missing {
		case "processes":
			qs = append(qs, "Which welding process do you plan to use (MIG, TIG, MMA)?")
		case "material":
			qs = append(qs, "What material will you be welding?")
		case "current_amps":
			qs = append(qs, "What amperage or power output do you need?")
		case "environment":
			qs = append(qs, "Will you be welding indoors, outdoors, or in a workshop?")
		}
		if len(qs) == 3 {
			break
		}
	}
	return qs
}
