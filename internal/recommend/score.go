package recommend

import (
	"math"
	"strings"

	"github.com/beedev/sparky/pkg/models"
)

// Package score weights. They sum to 1.0 before bonuses.
const (
	weightCompliance    = 0.4
	weightCompatibility = 0.3
	weightSales         = 0.2
	weightPrice         = 0.1

	maxIntentBonus = 0.15

	// Combined sales at or above this saturate the sales score.
	salesSaturation = 300
)

// scorePackages fills every score field and the final ranked score.
func (e *Engine) scorePackages(packages []models.WeldingPackage, intent *models.ProcessedIntent) {
	for i := range packages {
		pkg := &packages[i]

		pkg.ComplianceScore = complianceScore(pkg)
		if pkg.CompatibilityScore == 0 {
			pkg.CompatibilityScore = compatAssembled
		}
		pkg.CombinedSales = combinedSales(pkg)
		pkg.SalesScore = math.Min(1, float64(pkg.CombinedSales)/salesSaturation)
		pkg.PriceConsistency, pkg.TotalPrice = priceConsistency(pkg)
		pkg.IntentBonus = intentBonus(pkg, intent)
		pkg.BusinessAdjustment = e.businessAdjustment(pkg)

		score := weightCompliance*pkg.ComplianceScore +
			weightCompatibility*pkg.CompatibilityScore +
			weightSales*pkg.SalesScore +
			weightPrice*pkg.PriceConsistency +
			pkg.IntentBonus +
			pkg.BusinessAdjustment

		if intent.Mode == models.ModeExpert {
			multiplier := e.cfg.ExpertMultiplier
			if multiplier <= 0 {
				multiplier = 1.1
			}
			score *= multiplier
		}
		pkg.Score = math.Min(1, score)
	}
}

// complianceScore weighs the trinity slots: the power source carries 0.4,
// feeder and cooler 0.3 each.
func complianceScore(pkg *models.WeldingPackage) float64 {
	score := 0.0
	if pkg.PowerSource != nil {
		score += 0.4
	}
	if pkg.Feeder != nil {
		score += 0.3
	}
	if pkg.Cooler != nil {
		score += 0.3
	}
	return score
}

func combinedSales(pkg *models.WeldingPackage) int64 {
	var total int64
	for _, c := range pkg.Components() {
		total += c.SalesFrequency
	}
	return total
}

// priceConsistency scores how uniformly the components are priced: one
// minus the largest relative deviation from the mean over the known
// prices, floored at zero. Products without a price are excluded; fewer
// than two known prices score 1.0. The second return is the summed known
// prices.
func priceConsistency(pkg *models.WeldingPackage) (float64, float64) {
	var prices []float64
	total := 0.0
	for _, c := range pkg.Components() {
		if c.Price != nil {
			prices = append(prices, *c.Price)
			total += *c.Price
		}
	}
	for _, a := range pkg.Accessories {
		if a.Price != nil {
			prices = append(prices, *a.Price)
			total += *a.Price
		}
	}
	if len(prices) < 2 {
		return 1.0, total
	}

	mean := total / float64(len(prices))
	if mean == 0 {
		return 1.0, total
	}
	maxDev := 0.0
	for _, p := range prices {
		if d := math.Abs(p - mean); d > maxDev {
			maxDev = d
		}
	}
	return math.Max(0, 1-maxDev/mean), total
}

// productKeywords weight the product-line tokens an explicit query can
// name, strongest lines first.
var productKeywords = []struct {
	token  string
	weight float64
}{
	{"aristo", 0.45},
	{"warrior", 0.40},
	{"renegade", 0.40},
	{"robustfeed", 0.35},
	{"rebel", 0.35},
	{"rogue", 0.35},
	{"fabricator", 0.30},
	{"cool", 0.30},
}

// intentBonus rewards packages whose members are named in the query: per
// trinity member, the strongest product-line token appearing in both the
// query and the member's name counts once. The summed weights are capped
// at maxIntentBonus.
func intentBonus(pkg *models.WeldingPackage, intent *models.ProcessedIntent) float64 {
	q := strings.ToLower(intent.OriginalQuery)
	if q == "" {
		q = strings.ToLower(intent.TranslatedQuery)
	}
	if q == "" {
		return 0
	}

	bonus := 0.0
	for _, c := range pkg.Components() {
		name := strings.ToLower(c.Name)
		for _, kw := range productKeywords {
			if strings.Contains(q, kw.token) && strings.Contains(name, kw.token) {
				bonus += kw.weight
				break
			}
		}
	}
	return math.Min(maxIntentBonus, bonus)
}

// businessAdjustment applies the assembly-time business rules. Currently a
// preferred-manufacturer bonus on the power source.
func (e *Engine) businessAdjustment(pkg *models.WeldingPackage) float64 {
	if pkg.PowerSource == nil {
		return 0
	}
	for _, m := range e.cfg.PreferredManufacturers {
		if strings.EqualFold(pkg.PowerSource.Manufacturer, m) {
			return 0.1
		}
	}
	return 0
}
