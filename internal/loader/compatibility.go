package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// relationship types the serving core understands. REQUIRES and EXCLUDES
// pass through for future use but load the same way.
var ruleTypes = map[string]bool{
	"COMPATIBLE_WITH": true,
	"DETERMINES":      true,
	"REQUIRES":        true,
	"EXCLUDES":        true,
}

// LoadCompatibility ingests the compatibility rules. Edges are replaced
// per source product and rule type (delete-then-create), so a re-run with
// an updated rule file converges instead of accumulating stale edges.
// Rules referencing unknown products go to MissingRefs.
func (l *Loader) LoadCompatibility(ctx context.Context, path string) (*models.LoadReport, error) {
	report := newReport(path)

	rules, err := readJSONFile[models.CompatibilityRule](path, "compatibility_rules")
	if err != nil {
		return nil, err
	}

	var gins []string
	ginSet := map[string]bool{}
	for _, r := range rules {
		for _, g := range []string{r.SourceGIN, r.TargetGIN} {
			if g != "" && !ginSet[g] {
				ginSet[g] = true
				gins = append(gins, g)
			}
		}
	}
	existing, err := l.existingGINs(ctx, gins)
	if err != nil {
		return nil, err
	}

	// First pass over valid rules: clear the edges being reloaded.
	cleared := map[string]bool{}
	var batch []graph.BatchStatement

	for i, rule := range rules {
		ruleType, confidence, err := validateRule(rule)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("rule %d: %v", i, err))
			continue
		}
		if !existing[rule.SourceGIN] {
			report.Skipped++
			report.MissingRefs = append(report.MissingRefs, rule.SourceGIN)
			continue
		}
		if !existing[rule.TargetGIN] {
			report.Skipped++
			report.MissingRefs = append(report.MissingRefs, rule.TargetGIN)
			continue
		}

		clearKey := rule.SourceGIN + "|" + ruleType
		if !cleared[clearKey] {
			cleared[clearKey] = true
			batch = append(batch, graph.BatchStatement{
				Stmt: fmt.Sprintf(`
					MATCH (s:Product {gin: $source})-[r:%s]->()
					DELETE r`, ruleType),
				Params: map[string]any{"source": rule.SourceGIN},
			})
		}

		batch = append(batch, compatibilityEdge(ruleType, rule, confidence))
		if rule.Bidirectional {
			reverse := rule
			reverse.SourceGIN, reverse.TargetGIN = rule.TargetGIN, rule.SourceGIN
			if !cleared[reverse.SourceGIN+"|"+ruleType] {
				cleared[reverse.SourceGIN+"|"+ruleType] = true
				batch = append(batch, graph.BatchStatement{
					Stmt: fmt.Sprintf(`
						MATCH (s:Product {gin: $source})-[r:%s]->()
						DELETE r`, ruleType),
					Params: map[string]any{"source": reverse.SourceGIN},
				})
			}
			batch = append(batch, compatibilityEdge(ruleType, reverse, confidence))
		}
		report.Created++

		if len(batch) >= batchSize {
			batch = l.flush(ctx, batch, report)
		}
	}
	l.flush(ctx, batch, report)

	l.log.Info().
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("missing_refs", len(report.MissingRefs)).
		Str("path", path).
		Msg("compatibility rules loaded")
	return finish(report), nil
}

// validateRule checks the rule shape and returns the normalized type and
// clamped confidence. Confidence outside [0,1] clamps to 0.95, the
// convention for "asserted but unverified".
func validateRule(rule models.CompatibilityRule) (string, float64, error) {
	ruleType := strings.ToUpper(strings.TrimSpace(rule.RuleType))
	if !ruleTypes[ruleType] {
		return "", 0, fmt.Errorf("unknown rule_type %q", rule.RuleType)
	}
	if rule.SourceGIN == "" || rule.TargetGIN == "" {
		return "", 0, fmt.Errorf("rule %s: missing source or target gin", rule.RuleID)
	}
	if rule.SourceGIN == rule.TargetGIN {
		return "", 0, fmt.Errorf("rule %s: self reference %s", rule.RuleID, rule.SourceGIN)
	}

	confidence := rule.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0.95
	}
	return ruleType, confidence, nil
}

// compatibilityEdge builds the CREATE statement for one directed edge. The
// rule type is validated against the closed set before reaching the query
// text.
func compatibilityEdge(ruleType string, rule models.CompatibilityRule, confidence float64) graph.BatchStatement {
	return graph.BatchStatement{
		Stmt: fmt.Sprintf(`
			MATCH (s:Product {gin: $source})
			MATCH (t:Product {gin: $target})
			CREATE (s)-[:%s {rule_id: $rule_id, confidence: $confidence}]->(t)`, ruleType),
		Params: map[string]any{
			"source":     rule.SourceGIN,
			"target":     rule.TargetGIN,
			"rule_id":    rule.RuleID,
			"confidence": confidence,
		},
	}
}
