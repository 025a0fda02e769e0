package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/beedev/sparky/internal/catalog"
	"github.com/beedev/sparky/pkg/models"
)

// candidateSet holds the shortlisted products per trinity category.
type candidateSet struct {
	PowerSources []models.ScoredProduct
	Feeders      []models.ScoredProduct
	Coolers      []models.ScoredProduct
}

// Sizes of the per-category shortlists feeding 3x2x2 assembly.
const (
	psCandidates     = 3
	feederCandidates = 2
	coolerCandidates = 2
)

// gatherCandidates shortlists power sources, feeders and coolers for the
// intent. Power sources drive the search; feeders and coolers are filled
// per power source during assembly, so here they only serve as a fallback
// pool. When semantic is false only name and property search run.
func (e *Engine) gatherCandidates(ctx context.Context, intent *models.ProcessedIntent, semantic bool) (*candidateSet, error) {
	set := &candidateSet{}

	// Product-family tokens route to exact catalog search first.
	if token := familyToken(intent.TranslatedQuery); token != "" {
		ranked, err := e.catalog.Search(ctx, intent.TranslatedQuery, models.CategoryPowerSource, psCandidates)
		if err != nil {
			return nil, fmt.Errorf("catalog search: %w", err)
		}
		for _, r := range ranked {
			set.PowerSources = append(set.PowerSources, models.ScoredProduct{Product: r.Product, Score: r.Score})
		}
	}

	if len(set.PowerSources) == 0 && semantic {
		vector, err := e.embed.EmbedQuery(ctx, searchText(intent, models.CategoryPowerSource))
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		found, err := e.graph.HybridSearch(ctx, vector, psCandidates, models.CategoryPowerSource, 0.7, 0.3)
		if err != nil {
			return nil, fmt.Errorf("hybrid search: %w", err)
		}
		set.PowerSources = found
	}

	if len(set.PowerSources) == 0 {
		terms := propertyTerms(intent)
		if len(terms) > 0 {
			found, err := e.graph.PropertySearch(ctx, models.CategoryPowerSource, terms, psCandidates)
			if err != nil {
				return nil, fmt.Errorf("property search: %w", err)
			}
			set.PowerSources = found
		}
	}

	if len(set.PowerSources) == 0 {
		return set, nil
	}

	// Fallback pools, used when a power source has no compatibility edges.
	feeders, err := e.graph.TopByCategory(ctx, models.CategoryFeeder, feederCandidates)
	if err != nil {
		return nil, fmt.Errorf("top feeders: %w", err)
	}
	set.Feeders = feeders
	coolers, err := e.graph.TopByCategory(ctx, models.CategoryCooler, coolerCandidates)
	if err != nil {
		return nil, fmt.Errorf("top coolers: %w", err)
	}
	set.Coolers = coolers
	return set, nil
}

// familyToken returns the product-family token present in the query, if any.
func familyToken(query string) string {
	q := strings.ToLower(query)
	for _, f := range []string{"aristo", "warrior", "renegade", "rebel", "rogue", "fabricator"} {
		if strings.Contains(q, f) {
			return f
		}
	}
	return ""
}

// searchText builds the category-specific semantic query.
func searchText(intent *models.ProcessedIntent, category models.Category) string {
	var sb strings.Builder
	sb.WriteString(intent.TranslatedQuery)
	sb.WriteString(" ")
	sb.WriteString(strings.ToLower(string(category)))
	for _, p := range intent.Processes {
		sb.WriteString(" ")
		sb.WriteString(strings.ToLower(p))
	}
	if intent.Material != "" {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(intent.Material, "_", " "))
	}
	return sb.String()
}

// propertyTerms picks the literal search terms for the property fallback.
func propertyTerms(intent *models.ProcessedIntent) []string {
	var terms []string
	for _, p := range intent.Processes {
		terms = append(terms, strings.ToLower(p))
	}
	if intent.Material != "" {
		terms = append(terms, strings.ReplaceAll(intent.Material, "_", " "))
	}
	if len(terms) == 0 {
		terms = catalog.Tokenize(intent.TranslatedQuery)
	}
	return terms
}

// packagesFromMention resolves an explicit product mention into packages:
// stored trinities for the mentioned power source first, expert formation
// when the user asked for a package, bare compatibility rows otherwise.
func (e *Engine) packagesFromMention(ctx context.Context, intent *models.ProcessedIntent, recs *models.ScoredRecommendations) []models.WeldingPackage {
	token := firstToken(intent.MentionedProduct)
	if token == "" {
		return nil
	}

	trinities, err := e.graph.TrinitiesByPowerSourceName(ctx, token, psCandidates)
	if err != nil {
		recordErr(recs, err)
		return nil
	}

	var packages []models.WeldingPackage
	for _, st := range trinities {
		pkg := packageFromTrinity(st, "trinity")
		if expertFormation(intent) {
			e.expandExpertPackage(ctx, &pkg, st.Trinity, recs)
		}
		packages = append(packages, pkg)
	}
	if len(packages) > 0 {
		return packages
	}

	// No stored trinity: assemble from compatibility edges.
	ranked, err := e.catalog.Search(ctx, intent.MentionedProduct, models.CategoryPowerSource, psCandidates)
	if err != nil {
		recordErr(recs, err)
		return nil
	}
	set := &candidateSet{}
	for _, r := range ranked {
		set.PowerSources = append(set.PowerSources, models.ScoredProduct{Product: r.Product, Score: r.Score})
	}

	// Products bought together with the mentioned machine back the slots
	// when it has no compatibility edges.
	if len(set.PowerSources) > 0 {
		start := set.PowerSources[0].Product.GIN
		if feeders, err := e.graph.ShortestPath(ctx, start, models.CategoryFeeder, 2); err == nil {
			set.Feeders = feeders
		} else {
			recordErr(recs, err)
		}
		if coolers, err := e.graph.ShortestPath(ctx, start, models.CategoryCooler, 2); err == nil {
			set.Coolers = coolers
		} else {
			recordErr(recs, err)
		}
	}
	return e.assemble(ctx, intent, set, recs)
}

// trinitySemantic matches stored trinities against the query embedding.
func (e *Engine) trinitySemantic(ctx context.Context, intent *models.ProcessedIntent) ([]models.WeldingPackage, error) {
	vector, err := e.embed.EmbedQuery(ctx, searchText(intent, models.CategoryPowerSource))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	trinities, err := e.graph.TrinityVectorSearch(ctx, vector, psCandidates)
	if err != nil {
		return nil, fmt.Errorf("trinity vector search: %w", err)
	}

	var packages []models.WeldingPackage
	for _, st := range trinities {
		pkg := packageFromTrinity(st, "trinity")
		if accs, err := e.graph.TrinityAccessories(ctx, st.Trinity, 4); err == nil {
			pkg.Accessories = accs
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

func firstToken(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
