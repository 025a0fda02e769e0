package recommend

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// Compatibility bases by package origin. Stored trinities are proven
// combinations; compatibility edges are engineering data; top-seller
// fill-ins are a guess.
const (
	compatTrinity   = 1.0
	compatGolden    = 0.9
	compatEdges     = 0.8
	compatAssembled = 0.6
)

// assemble builds up to 3x2x2 packages: for each shortlisted power source,
// two compatible feeders and two compatible coolers, falling back to
// co-occurrence traversal and the candidate pools when no compatibility
// edges exist. Complete trinities are grown toward a full order for
// expert and hybrid users.
func (e *Engine) assemble(ctx context.Context, intent *models.ProcessedIntent, set *candidateSet, recs *models.ScoredRecommendations) []models.WeldingPackage {
	var packages []models.WeldingPackage

	psLimit := len(set.PowerSources)
	if psLimit > psCandidates {
		psLimit = psCandidates
	}

	for i := 0; i < psLimit; i++ {
		ps := set.PowerSources[i].Product

		feeders, feederBase := e.slotCandidates(ctx, ps.GIN, models.CategoryFeeder, feederCandidates, set.Feeders)
		coolers, coolerBase := e.slotCandidates(ctx, ps.GIN, models.CategoryCooler, coolerCandidates, set.Coolers)

		if len(feeders) == 0 && len(coolers) == 0 {
			pkg := newPackage(&ps, nil, nil)
			pkg.CompatibilityScore = compatAssembled
			packages = append(packages, pkg)
			continue
		}
		if len(feeders) == 0 {
			feeders = []models.Product{{}}
		}
		if len(coolers) == 0 {
			coolers = []models.Product{{}}
		}

		for _, f := range feeders {
			for _, c := range coolers {
				feeder, cooler := optional(f), optional(c)
				pkg := newPackage(&ps, feeder, cooler)
				pkg.CompatibilityScore = minBase(feederBase, coolerBase, feeder, cooler)
				if pkg.TrinityCompliance && expertFormation(intent) {
					t := models.Trinity{PowerSourceGIN: pkg.PowerSource.GIN, FeederGIN: pkg.Feeder.GIN, CoolerGIN: pkg.Cooler.GIN}
					e.expandExpertPackage(ctx, &pkg, t, recs)
				}
				packages = append(packages, pkg)
			}
		}
	}
	return packages
}

// expertFormation reports whether packages should be grown into complete
// orders with accessories.
func expertFormation(intent *models.ProcessedIntent) bool {
	return intent.Mode == models.ModeExpert ||
		intent.Mode == models.ModeHybrid ||
		intent.GuidedFlow == "package_formation"
}

// slotCandidates picks the compatible products for one slot: first
// DETERMINES/COMPATIBLE_WITH edges, then a CO_OCCURS walk from the power
// source topped up with category popularity, and last the prefetched pool.
func (e *Engine) slotCandidates(ctx context.Context, psGIN string, category models.Category, limit int, pool []models.ScoredProduct) ([]models.Product, float64) {
	compatible, err := e.graph.CompatibleByCategory(ctx, psGIN, category, limit)
	if err == nil && len(compatible) > 0 {
		return productsOf(compatible, limit), compatEdges
	}

	reachable, err := e.graph.ShortestPath(ctx, psGIN, category, 2)
	if err == nil && len(reachable) > 0 {
		out := productsOf(reachable, limit)
		if len(out) < limit {
			if popular, perr := e.graph.PagerankPopular(ctx, category, 1, limit); perr == nil {
				out = topUp(out, popular, limit)
			}
		}
		return out, compatAssembled
	}

	return productsOf(pool, limit), compatAssembled
}

func productsOf(pool []models.ScoredProduct, limit int) []models.Product {
	out := make([]models.Product, 0, limit)
	for _, sp := range pool {
		if len(out) == limit {
			break
		}
		out = append(out, sp.Product)
	}
	return out
}

func topUp(out []models.Product, extra []models.ScoredProduct, limit int) []models.Product {
	have := make(map[string]bool, len(out))
	for _, p := range out {
		have[p.GIN] = true
	}
	for _, sp := range extra {
		if len(out) == limit {
			break
		}
		if have[sp.Product.GIN] {
			continue
		}
		out = append(out, sp.Product)
		have[sp.Product.GIN] = true
	}
	return out
}

// newPackage builds a package with a deterministic ID derived from the
// member GINs.
func newPackage(ps, feeder, cooler *models.Product) models.WeldingPackage {
	pkg := models.WeldingPackage{
		PowerSource: ps,
		Feeder:      feeder,
		Cooler:      cooler,
	}
	pkg.PackageID = packageID(pkg.Components())
	pkg.TrinityCompliance = ps != nil && feeder != nil && cooler != nil
	return pkg
}

// packageFromTrinity materializes a stored trinity as a package.
func packageFromTrinity(st graph.ScoredTrinity, _ string) models.WeldingPackage {
	ps, f, c := st.PowerSource, st.Feeder, st.Cooler
	pkg := newPackage(&ps, &f, &c)
	pkg.CompatibilityScore = compatTrinity
	return pkg
}

// expandExpertPackage grows a trinity package toward a complete order:
// the accessories most co-ordered with the trinity, one per category, then
// golden-package backfill until the configured category target is met.
func (e *Engine) expandExpertPackage(ctx context.Context, pkg *models.WeldingPackage, t models.Trinity, recs *models.ScoredRecommendations) {
	covered := map[models.Category]bool{
		models.CategoryPowerSource: true,
		models.CategoryFeeder:      true,
		models.CategoryCooler:      true,
	}

	coOrdered, err := e.graph.CoOrderedWithTrinity(ctx, t, 12)
	if err != nil {
		recordErr(recs, err)
	}
	for _, p := range coOrdered {
		if p.Category == models.CategoryUnknown || covered[p.Category] {
			continue
		}
		pkg.Accessories = append(pkg.Accessories, p)
		covered[p.Category] = true
	}

	target := e.cfg.GoldenPackageTarget
	if target <= 0 {
		target = 7
	}
	if len(covered) >= target {
		return
	}

	golden, err := e.graph.GoldenPackageFor(ctx, t.PowerSourceGIN)
	if err != nil {
		recordErr(recs, err)
		return
	}
	if golden == nil {
		return
	}
	for _, p := range golden.Products {
		if len(covered) >= target {
			break
		}
		if p.Category == models.CategoryUnknown || covered[p.Category] {
			continue
		}
		pkg.Accessories = append(pkg.Accessories, p)
		covered[p.Category] = true
	}
}

func optional(p models.Product) *models.Product {
	if p.GIN == "" {
		return nil
	}
	cp := p
	return &cp
}

// minBase folds the per-slot compatibility bases; a missing slot does not
// drag the base down, compliance scoring already penalizes it.
func minBase(feederBase, coolerBase float64, feeder, cooler *models.Product) float64 {
	base := 0.0
	count := 0
	if feeder != nil {
		base += feederBase
		count++
	}
	if cooler != nil {
		base += coolerBase
		count++
	}
	if count == 0 {
		return compatAssembled
	}
	return base / float64(count)
}

func packageID(components []*models.Product) string {
	var gins []string
	for _, c := range components {
		gins = append(gins, c.GIN)
	}
	sum := sha1.Sum([]byte(strings.Join(gins, "|")))
	return "pkg-" + hex.EncodeToString(sum[:6])
}
