package recommend

import "github.com/beedev/sparky/pkg/models"

// ChooseStrategy routes the intent onto one of the closed strategies.
// Guided-flow scenarios win outright; graph-focused requires a confident
// expert; everything else runs hybrid.
func ChooseStrategy(intent *models.ProcessedIntent) models.Strategy {
	if intent.GuidedFlow != "" {
		return models.StrategyGuidedFlow
	}
	if intent.Mode == models.ModeExpert && intent.Confidence > 0.7 {
		return models.StrategyGraphFocused
	}
	return models.StrategyHybrid
}
