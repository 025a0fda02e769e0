package recommend

import (
	"context"

	"github.com/beedev/sparky/pkg/models"
)

// fallbackPopular builds packages around the best-selling power sources
// when the primary strategy produced nothing.
func (e *Engine) fallbackPopular(ctx context.Context, intent *models.ProcessedIntent, recs *models.ScoredRecommendations) []models.WeldingPackage {
	popular, err := e.graph.PagerankPopular(ctx, models.CategoryPowerSource, 1, psCandidates)
	if err != nil {
		recordErr(recs, err)
		return nil
	}
	if len(popular) == 0 {
		return nil
	}

	set := &candidateSet{
		PowerSources: popular,
		Feeders:      e.connectedPool(ctx, models.CategoryFeeder, feederCandidates, recs),
		Coolers:      e.connectedPool(ctx, models.CategoryCooler, coolerCandidates, recs),
	}
	return e.assemble(ctx, intent, set, recs)
}

// connectedPool prefers well-connected products (compatibility degree) and
// falls back to plain sales ranking when the graph has no edges yet.
func (e *Engine) connectedPool(ctx context.Context, category models.Category, limit int, recs *models.ScoredRecommendations) []models.ScoredProduct {
	central, err := e.graph.Centrality(ctx, category, 1, limit)
	if err != nil {
		recordErr(recs, err)
	}
	if len(central) > 0 {
		return central
	}
	top, err := e.graph.TopByCategory(ctx, category, limit)
	if err != nil {
		recordErr(recs, err)
	}
	return top
}

// fallbackGolden serves the curated packages as a last resort before the
// empty response.
func (e *Engine) fallbackGolden(ctx context.Context, recs *models.ScoredRecommendations) []models.WeldingPackage {
	top, err := e.graph.TopByCategory(ctx, models.CategoryPowerSource, psCandidates)
	if err != nil {
		recordErr(recs, err)
		return nil
	}

	var packages []models.WeldingPackage
	for _, sp := range top {
		golden, err := e.graph.GoldenPackageFor(ctx, sp.Product.GIN)
		if err != nil {
			recordErr(recs, err)
			continue
		}
		if golden == nil {
			continue
		}
		if pkg, ok := packageFromGolden(golden); ok {
			packages = append(packages, pkg)
		}
	}
	return packages
}

// packageFromGolden splits a golden package's product list into the
// trinity slots plus accessories.
func packageFromGolden(golden *models.GoldenPackage) (models.WeldingPackage, bool) {
	var ps, feeder, cooler *models.Product
	var accessories []models.Product

	for i := range golden.Products {
		p := golden.Products[i]
		switch {
		case p.Category == models.CategoryPowerSource && ps == nil:
			ps = &golden.Products[i]
		case p.Category == models.CategoryFeeder && feeder == nil:
			feeder = &golden.Products[i]
		case p.Category == models.CategoryCooler && cooler == nil:
			cooler = &golden.Products[i]
		default:
			accessories = append(accessories, p)
		}
	}
	if ps == nil {
		return models.WeldingPackage{}, false
	}

	pkg := newPackage(ps, feeder, cooler)
	pkg.Accessories = accessories
	pkg.CompatibilityScore = compatGolden
	return pkg, true
}
