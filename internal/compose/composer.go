// Package compose implements the third pipeline agent: business re-ranking
// of the scored packages and generation of the user-facing response in the
// detected language.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/config"
	"github.com/beedev/sparky/internal/intent"
	"github.com/beedev/sparky/pkg/models"
)

// Composer is Agent 3.
type Composer struct {
	cfg config.EngineConfig
	log zerolog.Logger
}

// NewComposer wires the response composer.
func NewComposer(cfg config.EngineConfig, log zerolog.Logger) *Composer {
	return &Composer{cfg: cfg, log: log.With().Str("agent", "compose").Logger()}
}

// Compose re-ranks the packages with the business factor and renders the
// final response. It never fails for valid inputs; an empty recommendation
// set produces a follow-up response.
func (c *Composer) Compose(recs *models.ScoredRecommendations, intentResult *models.ProcessedIntent) *models.Response {
	level := explanationLevel(intentResult.Mode)
	resp := &models.Response{
		ExplanationLevel: level,
		ResponseLanguage: intentResult.DetectedLanguage,
	}

	if len(recs.Packages) == 0 {
		c.composeEmpty(resp, recs, intentResult)
		return resp
	}

	packages := make([]models.WeldingPackage, len(recs.Packages))
	copy(packages, recs.Packages)
	c.rerank(packages, intentResult)

	resp.Packages = packages
	resp.TrinityFormationRate = recs.TrinityFormationRate
	resp.NeedsFollowUp = recs.NeedsFollowUp
	resp.FollowUpQuestions = recs.FollowUpQuestions
	resp.OverallConfidence = meanScore(packages)
	resp.SatisfactionScore = satisfaction(packages, recs, intentResult)

	c.render(resp, packages, intentResult)
	c.translate(resp, intentResult.DetectedLanguage)

	c.log.Info().
		Str("level", string(level)).
		Str("language", resp.ResponseLanguage).
		Int("packages", len(packages)).
		Float64("satisfaction", resp.SatisfactionScore).
		Msg("response composed")
	return resp
}

// rerank folds the business factor into the ranking: final = 0.7·original
// + 0.3·business, then re-sorts with the same deterministic tie-breaks the
// engine uses.
func (c *Composer) rerank(packages []models.WeldingPackage, intentResult *models.ProcessedIntent) {
	for i := range packages {
		pkg := &packages[i]
		business := c.manufacturerShare(pkg) + tierFit(pkg, intentResult.UserContext) + complianceFactor(pkg)
		pkg.BusinessAdjustment = business
		pkg.Score = 0.7*pkg.Score + 0.3*business
	}
	sort.SliceStable(packages, func(i, j int) bool {
		a, b := &packages[i], &packages[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CombinedSales != b.CombinedSales {
			return a.CombinedSales > b.CombinedSales
		}
		if a.TotalPrice != b.TotalPrice {
			return a.TotalPrice < b.TotalPrice
		}
		return a.PackageID < b.PackageID
	})
}

// manufacturerShare scores the preferred-manufacturer share of the trinity
// components, capped at 0.3.
func (c *Composer) manufacturerShare(pkg *models.WeldingPackage) float64 {
	components := pkg.Components()
	if len(components) == 0 {
		return 0
	}
	preferred := 0
	for _, comp := range components {
		for _, m := range c.cfg.PreferredManufacturers {
			if strings.EqualFold(comp.Manufacturer, m) {
				preferred++
				break
			}
		}
	}
	return 0.3 * float64(preferred) / float64(len(components))
}

// tierFit scores how the package's price tier matches the buyer: large
// organizations lean toward premium setups above 5000, everyone else
// toward the 1000 to 5000 mid range. Packages without a known price score
// the neutral half.
func tierFit(pkg *models.WeldingPackage, userCtx models.UserContext) float64 {
	if pkg.TotalPrice <= 0 {
		return 0.1
	}
	if isLargeOrganization(userCtx.Organization) {
		if pkg.TotalPrice > 5000 {
			return 0.2
		}
		return 0.05
	}
	if pkg.TotalPrice >= 1000 && pkg.TotalPrice <= 5000 {
		return 0.2
	}
	return 0.05
}

// isLargeOrganization guesses buyer size from the organization name. An
// industrial-sounding name or a corporate legal form counts as large.
func isLargeOrganization(org string) bool {
	for _, f := range strings.Fields(strings.ToLower(org)) {
		switch strings.Trim(f, ".,") {
		case "industries", "industrial", "manufacturing", "shipyard", "shipyards",
			"corp", "corporation", "group", "ab", "gmbh", "inc", "ltd", "plc":
			return true
		}
	}
	return false
}

func complianceFactor(pkg *models.WeldingPackage) float64 {
	if pkg.TrinityCompliance {
		return 0.2
	}
	return 0.2 * pkg.ComplianceScore
}

func explanationLevel(mode models.ExpertiseMode) models.ExplanationLevel {
	switch mode {
	case models.ModeExpert:
		return models.ExplanationTechnical
	case models.ModeGuided:
		return models.ExplanationEducational
	default:
		return models.ExplanationBalanced
	}
}

func meanScore(packages []models.WeldingPackage) float64 {
	if len(packages) == 0 {
		return 0
	}
	total := 0.0
	for i := range packages {
		total += packages[i].Score
	}
	return total / float64(len(packages))
}

// satisfaction predicts user satisfaction: 0.6·mean score + 0.3·trinity
// rate + 0.1·strategy-mode alignment.
func satisfaction(packages []models.WeldingPackage, recs *models.ScoredRecommendations, intentResult *models.ProcessedIntent) float64 {
	aligned := 0.5
	switch {
	case intentResult.Mode == models.ModeExpert && recs.Metadata.Strategy == models.StrategyGraphFocused:
		aligned = 1.0
	case intentResult.Mode == models.ModeGuided && recs.Metadata.Strategy == models.StrategyGuidedFlow:
		aligned = 1.0
	case intentResult.Mode == models.ModeHybrid && recs.Metadata.Strategy == models.StrategyHybrid:
		aligned = 1.0
	}
	return 0.6*meanScore(packages) + 0.3*recs.TrinityFormationRate + 0.1*aligned
}

// composeEmpty renders the no-results response.
func (c *Composer) composeEmpty(resp *models.Response, recs *models.ScoredRecommendations, intentResult *models.ProcessedIntent) {
	resp.Title = "No matching welding packages found"
	resp.Summary = "I could not find a package matching your requirements yet. A few more details would help me narrow it down."
	resp.NeedsFollowUp = true
	resp.FollowUpQuestions = recs.FollowUpQuestions
	if len(resp.FollowUpQuestions) == 0 {
		resp.FollowUpQuestions = []string{"Could you tell me more about what you want to weld?"}
	}
	resp.NextSteps = []string{"Answer the follow-up questions so I can search again."}
	if resp.ExplanationLevel == models.ExplanationEducational {
		resp.NextSteps = append(resp.NextSteps, "In the meantime, line up basic safety equipment: helmet, gloves and protective clothing.")
	}
	c.translate(resp, intentResult.DetectedLanguage)
}

// translate maps the user-facing strings back into the detected language.
// Structured fields and product names stay untouched.
func (c *Composer) translate(resp *models.Response, lang string) {
	if lang == "" || lang == "en" {
		return
	}
	resp.Title = intent.TranslateFromEnglish(lang, resp.Title)
	resp.Summary = intent.TranslateFromEnglish(lang, resp.Summary)
	resp.DetailedExplanation = intent.TranslateFromEnglish(lang, resp.DetailedExplanation)
	for i := range resp.PackageDescriptions {
		resp.PackageDescriptions[i].Title = intent.TranslateFromEnglish(lang, resp.PackageDescriptions[i].Title)
		resp.PackageDescriptions[i].Body = intent.TranslateFromEnglish(lang, resp.PackageDescriptions[i].Body)
	}
	for i := range resp.NextSteps {
		resp.NextSteps[i] = intent.TranslateFromEnglish(lang, resp.NextSteps[i])
	}
	for i := range resp.FollowUpQuestions {
		resp.FollowUpQuestions[i] = intent.TranslateFromEnglish(lang, resp.FollowUpQuestions[i])
	}
}

// render fills the prose fields for the chosen explanation level.
func (c *Composer) render(resp *models.Response, packages []models.WeldingPackage, intentResult *models.ProcessedIntent) {
	top := &packages[0]

	resp.Title = fmt.Sprintf("Recommended welding package: %s", componentName(top.PowerSource))
	resp.Summary = summaryLine(top, len(packages), intentResult)

	for i := range packages {
		resp.PackageDescriptions = append(resp.PackageDescriptions, describePackage(&packages[i], resp.ExplanationLevel))
	}

	switch resp.ExplanationLevel {
	case models.ExplanationTechnical:
		resp.TechnicalNotes = technicalNotes(top)
		resp.DetailedExplanation = fmt.Sprintf(
			"Ranked %d packages. The top package scores %.2f with compliance %.2f, compatibility %.2f, sales %.2f and price consistency %.2f.",
			len(packages), top.Score, top.ComplianceScore, top.CompatibilityScore, top.SalesScore, top.PriceConsistency)
	case models.ExplanationEducational:
		resp.DetailedExplanation = "A complete welding setup needs three core parts: the power source creates the welding arc, the wire feeder delivers filler wire at a steady speed, and the cooler keeps the torch from overheating during longer welds."
		resp.NextSteps = []string{
			"Start with the power source and make sure it covers your material thickness.",
			"Add the matching wire feeder and cooler from the same package.",
			"Consider safety equipment before your first weld.",
		}
	default:
		resp.DetailedExplanation = fmt.Sprintf(
			"These %d packages combine proven component pairings with your stated requirements. The top recommendation is bought together most often.",
			len(packages))
	}

	resp.RelatedQuestions = relatedQuestions(intentResult)
}

func summaryLine(top *models.WeldingPackage, count int, intentResult *models.ProcessedIntent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d welding package options. The best match pairs the %s", count, componentName(top.PowerSource))
	if top.Feeder != nil {
		fmt.Fprintf(&sb, " with the %s", top.Feeder.Name)
	}
	if top.Cooler != nil {
		fmt.Fprintf(&sb, " and the %s cooler", top.Cooler.Name)
	}
	sb.WriteString(".")
	if len(intentResult.Processes) > 0 {
		fmt.Fprintf(&sb, " Suited for %s welding.", strings.Join(intentResult.Processes, "/"))
	}
	return sb.String()
}

func describePackage(pkg *models.WeldingPackage, level models.ExplanationLevel) models.PackageDescription {
	desc := models.PackageDescription{
		PackageID: pkg.PackageID,
		Title:     componentName(pkg.PowerSource),
	}

	var parts []string
	for _, comp := range pkg.Components() {
		parts = append(parts, fmt.Sprintf("%s (%s)", comp.Name, comp.Category))
	}
	for _, acc := range pkg.Accessories {
		parts = append(parts, acc.Name)
	}
	desc.Body = strings.Join(parts, ", ")

	if pkg.TrinityCompliance {
		desc.Highlights = append(desc.Highlights, "Complete power source, wire feeder and cooler set")
	}
	if pkg.CombinedSales > 0 {
		desc.Highlights = append(desc.Highlights, fmt.Sprintf("Bought together %d times", pkg.CombinedSales))
	}
	if level == models.ExplanationTechnical && pkg.TotalPrice > 0 {
		desc.Highlights = append(desc.Highlights, fmt.Sprintf("List price %.0f", pkg.TotalPrice))
	}
	return desc
}

func technicalNotes(pkg *models.WeldingPackage) []string {
	var notes []string
	for _, comp := range pkg.Components() {
		keys := make([]string, 0, len(comp.Specifications))
		for k := range comp.Specifications {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			notes = append(notes, fmt.Sprintf("%s: %s = %s", comp.Name, k, comp.Specifications[k]))
		}
	}
	return notes
}

func relatedQuestions(intentResult *models.ProcessedIntent) []string {
	var qs []string
	if intentResult.Material == "" {
		qs = append(qs, "What material thickness will you typically weld?")
	}
	if len(intentResult.Processes) > 0 {
		qs = append(qs, fmt.Sprintf("Do you need consumables for %s welding?", intentResult.Processes[0]))
	}
	qs = append(qs, "Would you like compatible accessories for this package?")
	return qs
}

func componentName(p *models.Product) string {
	if p == nil {
		return "selected components"
	}
	return p.Name
}
