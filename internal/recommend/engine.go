// Package recommend implements the second pipeline agent: strategy
// routing, candidate gathering, trinity assembly and package scoring over
// the product graph.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/catalog"
	"github.com/beedev/sparky/internal/config"
	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// Graph is the slice of the graph store the engine depends on.
type Graph interface {
	VectorSearch(ctx context.Context, k int, vector []float32, category models.Category, minScore float64) ([]models.ScoredProduct, error)
	HybridSearch(ctx context.Context, vector []float32, k int, category models.Category, vectorWeight, salesWeight float64) ([]models.ScoredProduct, error)
	PropertySearch(ctx context.Context, category models.Category, terms []string, limit int) ([]models.ScoredProduct, error)
	TopByCategory(ctx context.Context, category models.Category, limit int) ([]models.ScoredProduct, error)
	PagerankPopular(ctx context.Context, category models.Category, minSales, limit int) ([]models.ScoredProduct, error)
	CompatibleByCategory(ctx context.Context, gin string, category models.Category, limit int) ([]models.ScoredProduct, error)
	ShortestPath(ctx context.Context, startGIN string, category models.Category, maxHops int) ([]models.ScoredProduct, error)
	Centrality(ctx context.Context, category models.Category, minConnections, limit int) ([]models.ScoredProduct, error)
	ShortlistByName(ctx context.Context, category models.Category, token string, limit int) ([]models.Product, error)

	TrinityVectorSearch(ctx context.Context, vector []float32, k int) ([]graph.ScoredTrinity, error)
	TrinitiesByPowerSourceName(ctx context.Context, nameToken string, limit int) ([]graph.ScoredTrinity, error)
	TrinityAccessories(ctx context.Context, t models.Trinity, limit int) ([]models.Product, error)
	CoOrderedWithTrinity(ctx context.Context, t models.Trinity, limit int) ([]models.Product, error)
	GoldenPackageFor(ctx context.Context, powerSourceGIN string) (*models.GoldenPackage, error)
}

// Embedder produces the query vector for semantic search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine is Agent 2.
type Engine struct {
	graph   Graph
	embed   Embedder
	catalog *catalog.Searcher
	cfg     config.EngineConfig
	log     zerolog.Logger
}

// NewEngine wires the recommendation engine. The catalog searcher shares
// the graph store's name shortlist.
func NewEngine(g Graph, embed Embedder, cfg config.EngineConfig, log zerolog.Logger) *Engine {
	return &Engine{
		graph:   g,
		embed:   embed,
		catalog: catalog.NewSearcher(g),
		cfg:     cfg,
		log:     log.With().Str("agent", "recommend").Logger(),
	}
}

// Recommend turns a processed intent into scored package recommendations.
// The engine is fail-open: graph errors push the run down the fallback
// chain and the worst case is an empty result with follow-up questions,
// never an error for a valid intent.
func (e *Engine) Recommend(ctx context.Context, intent *models.ProcessedIntent) (*models.ScoredRecommendations, error) {
	if intent == nil {
		return nil, fmt.Errorf("nil intent")
	}

	strategy := ChooseStrategy(intent)
	recs := &models.ScoredRecommendations{
		Metadata: models.SearchMetadata{
			Strategy: strategy,
			Weights: map[string]float64{
				"compliance":        weightCompliance,
				"compatibility":     weightCompatibility,
				"sales":             weightSales,
				"price_consistency": weightPrice,
			},
		},
	}

	// An intent flagged for clarification with no usable slot at all has
	// nothing to search on. Asking back beats guessing.
	if tooVague(intent) {
		recs.NeedsFollowUp = true
		recs.FollowUpQuestions = intent.ClarificationQuestions
		if len(recs.FollowUpQuestions) == 0 {
			recs.FollowUpQuestions = followUpQuestions(intent)
		}
		recs.Metadata.AlgorithmsUsed = []string{"clarification"}
		recs.ConfidenceDistribution = confidenceDistribution(nil)
		e.log.Info().Str("query", intent.TranslatedQuery).Msg("intent too vague, asking follow-ups")
		return recs, nil
	}

	packages, algorithms := e.runStrategy(ctx, strategy, intent, recs)

	// Fallback chain: popular trinities, then golden packages, then empty
	// with follow-ups.
	if len(packages) == 0 {
		packages = e.fallbackPopular(ctx, intent, recs)
		if len(packages) > 0 {
			algorithms = append(algorithms, "sales_fallback")
			recs.Metadata.Strategy = models.StrategySalesOnly
		}
	}
	if len(packages) == 0 {
		packages = e.fallbackGolden(ctx, recs)
		if len(packages) > 0 {
			algorithms = append(algorithms, "golden_fallback")
		}
	}
	if len(packages) == 0 {
		recs.NeedsFollowUp = true
		recs.FollowUpQuestions = followUpQuestions(intent)
		recs.Metadata.AlgorithmsUsed = algorithms
		return recs, nil
	}

	e.scorePackages(packages, intent)
	sortPackages(packages)
	if len(packages) > e.maxPackages() {
		packages = packages[:e.maxPackages()]
	}

	recs.Packages = packages
	recs.Metadata.AlgorithmsUsed = algorithms
	recs.TrinityFormationRate = trinityRate(packages)
	recs.ConfidenceDistribution = confidenceDistribution(packages)

	e.log.Info().
		Str("strategy", string(recs.Metadata.Strategy)).
		Int("packages", len(packages)).
		Float64("trinity_rate", recs.TrinityFormationRate).
		Strs("algorithms", algorithms).
		Msg("recommendations generated")
	return recs, nil
}

// runStrategy executes the primary path for the routed strategy.
func (e *Engine) runStrategy(ctx context.Context, strategy models.Strategy, intent *models.ProcessedIntent, recs *models.ScoredRecommendations) ([]models.WeldingPackage, []string) {
	var (
		packages   []models.WeldingPackage
		algorithms []string
	)

	switch strategy {
	case models.StrategyGuidedFlow:
		packages, algorithms = e.guidedFlow(ctx, intent, recs)
	case models.StrategyGraphFocused:
		packages, algorithms = e.graphFocused(ctx, intent, recs)
	default:
		packages, algorithms = e.hybrid(ctx, intent, recs)
	}
	return packages, algorithms
}

// graphFocused serves expert users: exact product resolution plus
// relationship traversal, no semantic broadening.
func (e *Engine) graphFocused(ctx context.Context, intent *models.ProcessedIntent, recs *models.ScoredRecommendations) ([]models.WeldingPackage, []string) {
	algorithms := []string{"graph_focused"}

	if intent.MentionedProduct != "" {
		if pkgs := e.packagesFromMention(ctx, intent, recs); len(pkgs) > 0 {
			return pkgs, append(algorithms, "product_mention")
		}
	}

	candidates, err := e.gatherCandidates(ctx, intent, false)
	if err != nil {
		recordErr(recs, err)
		return nil, algorithms
	}
	return e.assemble(ctx, intent, candidates, recs), append(algorithms, "relationship_assembly")
}

// hybrid blends semantic search with graph traversal. Trinity-first: when
// the query asks for a package, stored trinities are matched semantically
// before any per-category assembly.
func (e *Engine) hybrid(ctx context.Context, intent *models.ProcessedIntent, recs *models.ScoredRecommendations) ([]models.WeldingPackage, []string) {
	algorithms := []string{"hybrid"}

	if intent.MentionedProduct != "" {
		if pkgs := e.packagesFromMention(ctx, intent, recs); len(pkgs) > 0 {
			return pkgs, append(algorithms, "product_mention")
		}
	}

	if wantsPackage(intent) {
		pkgs, err := e.trinitySemantic(ctx, intent)
		if err != nil {
			recordErr(recs, err)
		} else if len(pkgs) > 0 {
			return pkgs, append(algorithms, "trinity_semantic")
		}
	}

	candidates, err := e.gatherCandidates(ctx, intent, true)
	if err != nil {
		recordErr(recs, err)
		return nil, algorithms
	}
	return e.assemble(ctx, intent, candidates, recs), append(algorithms, "semantic_assembly")
}

// guidedFlow serves the configured scenarios; package_formation behaves
// like the expert path, the rest fall back to hybrid with popular anchors.
func (e *Engine) guidedFlow(ctx context.Context, intent *models.ProcessedIntent, recs *models.ScoredRecommendations) ([]models.WeldingPackage, []string) {
	algorithms := []string{"guided_flow:" + intent.GuidedFlow}

	if intent.GuidedFlow == "package_formation" && intent.MentionedProduct != "" {
		if pkgs := e.packagesFromMention(ctx, intent, recs); len(pkgs) > 0 {
			return pkgs, append(algorithms, "package_formation")
		}
	}

	// Beginner scenarios anchor on proven sellers rather than semantics.
	pkgs := e.fallbackPopular(ctx, intent, recs)
	if len(pkgs) > 0 {
		return pkgs, append(algorithms, "popular_anchor")
	}
	return nil, algorithms
}

func (e *Engine) maxPackages() int {
	if e.cfg.MaxPackages > 0 {
		return e.cfg.MaxPackages
	}
	return 12
}

func recordErr(recs *models.ScoredRecommendations, err error) {
	recs.Errors = append(recs.Errors, err.Error())
}

// tooVague reports whether an intent flagged for clarification carries no
// slot worth searching on. A mentioned product, a guided flow or any
// extracted requirement is enough to attempt recommendations anyway.
func tooVague(intent *models.ProcessedIntent) bool {
	return intent.NeedsClarification &&
		intent.MentionedProduct == "" &&
		intent.GuidedFlow == "" &&
		len(intent.Processes) == 0 &&
		intent.Material == "" &&
		intent.Application == ""
}

// wantsPackage reports whether the query asks for a complete setup rather
// than a single product.
func wantsPackage(intent *models.ProcessedIntent) bool {
	q := strings.ToLower(intent.TranslatedQuery)
	for _, w := range []string{"package", "kit", "setup", "complete", "everything", "bundle", "system"} {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

func followUpQuestions(intent *models.ProcessedIntent) []string {
	qs := []string{"Could you tell me more about what you want to weld?"}
	if len(intent.Processes) == 0 {
		qs = append(qs, "Which welding process do you prefer (MIG, TIG, MMA)?")
	}
	if intent.Material == "" {
		qs = append(qs, "What material will you mostly work with?")
	}
	return qs
}

func trinityRate(packages []models.WeldingPackage) float64 {
	if len(packages) == 0 {
		return 0
	}
	complete := 0
	for i := range packages {
		if packages[i].TrinityCompliance {
			complete++
		}
	}
	return float64(complete) / float64(len(packages))
}

// confidenceDistribution buckets package scores into high (0.8 and up),
// medium (0.6 to 0.8) and low.
func confidenceDistribution(packages []models.WeldingPackage) map[string]int {
	dist := map[string]int{"high": 0, "medium": 0, "low": 0}
	for i := range packages {
		switch s := packages[i].Score; {
		case s >= 0.8:
			dist["high"]++
		case s >= 0.6:
			dist["medium"]++
		default:
			dist["low"]++
		}
	}
	return dist
}

// sortPackages orders by score, then combined sales, then total price
// ascending, then package ID. Fixed inputs always produce the same order.
func sortPackages(packages []models.WeldingPackage) {
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
