package recommend

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/config"
	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// fakeGraph serves canned rows per query kind.
type fakeGraph struct {
	hybrid       []models.ScoredProduct
	property     []models.ScoredProduct
	popular      []models.ScoredProduct
	topByCat     map[models.Category][]models.ScoredProduct
	compatible   map[models.Category][]models.ScoredProduct
	coOccurrence map[models.Category][]models.ScoredProduct
	central      map[models.Category][]models.ScoredProduct
	shortlist    []models.Product

	trinityVector []graph.ScoredTrinity
	trinityByName []graph.ScoredTrinity
	accessories   []models.Product
	coOrdered     []models.Product
	golden        map[string]*models.GoldenPackage

	trinityByNameCalls int
}

func (f *fakeGraph) VectorSearch(context.Context, int, []float32, models.Category, float64) ([]models.ScoredProduct, error) {
	return f.hybrid, nil
}
func (f *fakeGraph) HybridSearch(context.Context, []float32, int, models.Category, float64, float64) ([]models.ScoredProduct, error) {
	return f.hybrid, nil
}
func (f *fakeGraph) PropertySearch(context.Context, models.Category, []string, int) ([]models.ScoredProduct, error) {
	return f.property, nil
}
func (f *fakeGraph) TopByCategory(_ context.Context, c models.Category, _ int) ([]models.ScoredProduct, error) {
	return f.topByCat[c], nil
}
func (f *fakeGraph) PagerankPopular(context.Context, models.Category, int, int) ([]models.ScoredProduct, error) {
	return f.popular, nil
}
func (f *fakeGraph) CompatibleByCategory(_ context.Context, _ string, c models.Category, _ int) ([]models.ScoredProduct, error) {
	return f.compatible[c], nil
}
func (f *fakeGraph) ShortestPath(_ context.Context, _ string, c models.Category, _ int) ([]models.ScoredProduct, error) {
	return f.coOccurrence[c], nil
}
func (f *fakeGraph) Centrality(_ context.Context, c models.Category, _, _ int) ([]models.ScoredProduct, error) {
	return f.central[c], nil
}
func (f *fakeGraph) ShortlistByName(context.Context, models.Category, string, int) ([]models.Product, error) {
	return f.shortlist, nil
}
func (f *fakeGraph) TrinityVectorSearch(context.Context, []float32, int) ([]graph.ScoredTrinity, error) {
	return f.trinityVector, nil
}
func (f *fakeGraph) TrinitiesByPowerSourceName(context.Context, string, int) ([]graph.ScoredTrinity, error) {
	f.trinityByNameCalls++
	return f.trinityByName, nil
}
func (f *fakeGraph) TrinityAccessories(context.Context, models.Trinity, int) ([]models.Product, error) {
	return f.accessories, nil
}
func (f *fakeGraph) CoOrderedWithTrinity(context.Context, models.Trinity, int) ([]models.Product, error) {
	return f.coOrdered, nil
}
func (f *fakeGraph) GoldenPackageFor(_ context.Context, gin string) (*models.GoldenPackage, error) {
	return f.golden[gin], nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func price(v float64) *float64 { return &v }

func testProduct(gin, name string, cat models.Category, sales int64, p *float64) models.Product {
	return models.Product{GIN: gin, Name: name, Category: cat, Manufacturer: "ESAB", SalesFrequency: sales, Price: p, IsAvailable: true}
}

func testEngine(g Graph) *Engine {
	cfg := config.EngineConfig{
		ExpertMultiplier:       1.1,
		GoldenPackageTarget:    7,
		PreferredManufacturers: []string{"ESAB"},
		MaxPackages:            12,
	}
	return NewEngine(g, fakeEmbedder{}, cfg, zerolog.Nop())
}

func hybridIntent(query string) *models.ProcessedIntent {
	return &models.ProcessedIntent{
		OriginalQuery:   query,
		TranslatedQuery: query,
		Mode:            models.ModeHybrid,
		Confidence:      0.6,
	}
}

func TestChooseStrategy(t *testing.T) {
	tests := []struct {
		intent models.ProcessedIntent
		want   models.Strategy
	}{
		{models.ProcessedIntent{Mode: models.ModeExpert, Confidence: 0.8}, models.StrategyGraphFocused},
		{models.ProcessedIntent{Mode: models.ModeExpert, Confidence: 0.6}, models.StrategyHybrid},
		{models.ProcessedIntent{Mode: models.ModeGuided, Confidence: 0.9, GuidedFlow: "beginner_setup"}, models.StrategyGuidedFlow},
		{models.ProcessedIntent{Mode: models.ModeHybrid, Confidence: 0.5}, models.StrategyHybrid},
	}
	for _, tt := range tests {
		if got := ChooseStrategy(&tt.intent); got != tt.want {
			t.Errorf("ChooseStrategy(%s conf=%v flow=%q) = %v, want %v",
				tt.intent.Mode, tt.intent.Confidence, tt.intent.GuidedFlow, got, tt.want)
		}
	}
}

func TestRecommend_HybridAssembly(t *testing.T) {
	g := &fakeGraph{
		hybrid: []models.ScoredProduct{
			{Product: testProduct("ps1", "Warrior 500i CC/CV", models.CategoryPowerSource, 120, price(5000)), Score: 0.9},
		},
		compatible: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {
				{Product: testProduct("f1", "RobustFeed U6", models.CategoryFeeder, 80, price(2000))},
				{Product: testProduct("f2", "RobustFeed U82", models.CategoryFeeder, 40, price(2500))},
			},
			models.CategoryCooler: {
				{Product: testProduct("c1", "COOL 2", models.CategoryCooler, 60, price(900))},
				{Product: testProduct("c2", "COOL 35", models.CategoryCooler, 30, price(1100))},
			},
		},
	}
	e := testEngine(g)

	recs, err := e.Recommend(context.Background(), hybridIntent("I need a MIG welder for aluminum"))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) != 4 {
		t.Fatalf("packages = %d, want 4 (1 power source x 2 feeders x 2 coolers)", len(recs.Packages))
	}
	for _, pkg := range recs.Packages {
		if !pkg.TrinityCompliance {
			t.Errorf("package %s not trinity compliant", pkg.PackageID)
		}
		if pkg.ComplianceScore != 1.0 {
			t.Errorf("ComplianceScore = %v, want 1.0", pkg.ComplianceScore)
		}
		if pkg.CompatibilityScore != 0.8 {
			t.Errorf("CompatibilityScore = %v, want 0.8 (edge-derived)", pkg.CompatibilityScore)
		}
		if pkg.BusinessAdjustment != 0.1 {
			t.Errorf("BusinessAdjustment = %v, want 0.1 (preferred manufacturer)", pkg.BusinessAdjustment)
		}
	}
	if recs.TrinityFormationRate != 1.0 {
		t.Errorf("TrinityFormationRate = %v, want 1.0", recs.TrinityFormationRate)
	}
	if recs.Metadata.Strategy != models.StrategyHybrid {
		t.Errorf("Strategy = %v, want HYBRID", recs.Metadata.Strategy)
	}
	// Highest combined sales wins within equal scores.
	top := recs.Packages[0]
	if top.Feeder.GIN != "f1" || top.Cooler.GIN != "c1" {
		t.Errorf("top package = %s/%s, want f1/c1", top.Feeder.GIN, top.Cooler.GIN)
	}
}

func TestRecommend_TrinityFirstOnPackageQuery(t *testing.T) {
	ps := testProduct("ps1", "Aristo 500ix", models.CategoryPowerSource, 90, price(8000))
	f := testProduct("f1", "RobustFeed AVS", models.CategoryFeeder, 70, price(3000))
	c := testProduct("c1", "COOL 2", models.CategoryCooler, 50, price(900))
	g := &fakeGraph{
		trinityVector: []graph.ScoredTrinity{{
			Trinity:     models.Trinity{TrinityID: "t1", PowerSourceGIN: "ps1", FeederGIN: "f1", CoolerGIN: "c1", OrderCount: 40},
			PowerSource: ps, Feeder: f, Cooler: c, Score: 0.95,
		}},
		accessories: []models.Product{testProduct("a1", "PSF 305 Torch", models.CategoryTorch, 30, price(400))},
	}
	e := testEngine(g)

	recs, err := e.Recommend(context.Background(), hybridIntent("complete MIG welding package for my workshop"))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(recs.Packages))
	}
	pkg := recs.Packages[0]
	if pkg.CompatibilityScore != 1.0 {
		t.Errorf("CompatibilityScore = %v, want 1.0 (stored trinity)", pkg.CompatibilityScore)
	}
	if len(pkg.Accessories) != 1 || pkg.Accessories[0].GIN != "a1" {
		t.Errorf("Accessories = %+v, want the co-occurring torch", pkg.Accessories)
	}
	found := false
	for _, a := range recs.Metadata.AlgorithmsUsed {
		if a == "trinity_semantic" {
			found = true
		}
	}
	if !found {
		t.Errorf("AlgorithmsUsed = %v, want trinity_semantic", recs.Metadata.AlgorithmsUsed)
	}
}

func TestRecommend_ExpertMentionExpandsPackage(t *testing.T) {
	ps := testProduct("ps1", "Warrior 500i CC/CV", models.CategoryPowerSource, 120, price(5000))
	f := testProduct("f1", "RobustFeed U6", models.CategoryFeeder, 80, price(2000))
	c := testProduct("c1", "COOL 2", models.CategoryCooler, 60, price(900))
	g := &fakeGraph{
		trinityByName: []graph.ScoredTrinity{{
			Trinity:     models.Trinity{TrinityID: "t1", PowerSourceGIN: "ps1", FeederGIN: "f1", CoolerGIN: "c1", OrderCount: 55},
			PowerSource: ps, Feeder: f, Cooler: c, Score: 55,
		}},
		coOrdered: []models.Product{
			testProduct("a1", "PSF 305 Torch", models.CategoryTorch, 30, price(400)),
			testProduct("a2", "PSF 410w Torch", models.CategoryTorch, 20, price(500)),
			testProduct("a3", "Interconnector 10m", models.CategoryInterconnector, 25, price(300)),
		},
		golden: map[string]*models.GoldenPackage{
			"ps1": {PowerSourceGIN: "ps1", Name: "Warrior golden", Products: []models.Product{
				testProduct("a4", "Remote AT1", models.CategoryRemote, 10, price(250)),
				testProduct("a5", "Wear Parts Kit", models.CategoryConsumable, 15, price(100)),
			}},
		},
	}
	e := testEngine(g)

	intent := &models.ProcessedIntent{
		TranslatedQuery:  "form a package with warrior 500i",
		Mode:             models.ModeExpert,
		Confidence:       0.9,
		MentionedProduct: "warrior 500i",
		Application:      "product_inquiry",
	}
	recs, err := e.Recommend(context.Background(), intent)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if g.trinityByNameCalls == 0 {
		t.Fatal("expected trinity lookup by power source name")
	}
	if len(recs.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(recs.Packages))
	}
	pkg := recs.Packages[0]

	// One accessory per category: both torches collapse to the first.
	categories := map[models.Category]int{}
	for _, a := range pkg.Accessories {
		categories[a.Category]++
	}
	if categories[models.CategoryTorch] != 1 {
		t.Errorf("torch accessories = %d, want 1 (one per category)", categories[models.CategoryTorch])
	}
	if categories[models.CategoryRemote] != 1 || categories[models.CategoryConsumable] != 1 {
		t.Errorf("golden backfill missing: %v", categories)
	}
	// Trinity (3) + torch + interconnector + remote + consumable = 7 covered.
	if got := len(categories) + 3; got < 7 {
		t.Errorf("covered categories = %d, want >= 7", got)
	}
	if pkg.Score > 1.0 {
		t.Errorf("Score = %v, want capped at 1.0", pkg.Score)
	}
}

func TestRecommend_MentionAssemblesFromCoOccurrence(t *testing.T) {
	// No stored trinity and no compatibility edges: products bought
	// together with the mentioned machine back the feeder/cooler slots.
	g := &fakeGraph{
		shortlist: []models.Product{
			testProduct("ps1", "Rogue ES 180i", models.CategoryPowerSource, 40, price(1200)),
		},
		coOccurrence: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {{Product: testProduct("f1", "Feed 304", models.CategoryFeeder, 20, price(1500)), Score: 1.0}},
			models.CategoryCooler: {{Product: testProduct("c1", "COOL 2", models.CategoryCooler, 10, price(900)), Score: 0.5}},
		},
	}
	e := testEngine(g)

	intent := hybridIntent("is the rogue es 180i compatible with my feeder")
	intent.MentionedProduct = "rogue es 180i"
	intent.Application = "compatibility"

	recs, err := e.Recommend(context.Background(), intent)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) == 0 {
		t.Fatal("packages empty, want co-occurrence assembly")
	}
	pkg := recs.Packages[0]
	if pkg.Feeder == nil || pkg.Feeder.GIN != "f1" {
		t.Errorf("feeder = %+v, want f1 from the co-occurrence pool", pkg.Feeder)
	}
	if pkg.Cooler == nil || pkg.Cooler.GIN != "c1" {
		t.Errorf("cooler = %+v, want c1 from the co-occurrence pool", pkg.Cooler)
	}
	found := false
	for _, a := range recs.Metadata.AlgorithmsUsed {
		if a == "product_mention" {
			found = true
		}
	}
	if !found {
		t.Errorf("AlgorithmsUsed = %v, want product_mention", recs.Metadata.AlgorithmsUsed)
	}
}

func TestRecommend_PopularFallbackPrefersConnected(t *testing.T) {
	ps := testProduct("ps1", "Renegade ES300", models.CategoryPowerSource, 200, price(2000))
	g := &fakeGraph{
		popular: []models.ScoredProduct{{Product: ps, Score: 200}},
		central: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {{Product: testProduct("f1", "Feed 304", models.CategoryFeeder, 5, price(1500)), Score: 3}},
		},
		topByCat: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {{Product: testProduct("f9", "Feed 504", models.CategoryFeeder, 90, price(1800))}},
			models.CategoryCooler: {{Product: testProduct("c1", "COOL 2", models.CategoryCooler, 10, price(900))}},
		},
	}
	e := testEngine(g)

	recs, err := e.Recommend(context.Background(), hybridIntent("help"))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) == 0 {
		t.Fatal("packages empty, want popular fallback")
	}
	pkg := recs.Packages[0]
	// Centrality wins for the feeder pool; the cooler pool has no
	// connected entries and falls back to sales ranking.
	if pkg.Feeder == nil || pkg.Feeder.GIN != "f1" {
		t.Errorf("feeder = %+v, want the well-connected f1", pkg.Feeder)
	}
	if pkg.Cooler == nil || pkg.Cooler.GIN != "c1" {
		t.Errorf("cooler = %+v, want the sales-ranked c1", pkg.Cooler)
	}
}

func TestRecommend_FallbackToGolden(t *testing.T) {
	ps := testProduct("ps1", "Renegade ES300", models.CategoryPowerSource, 200, price(2000))
	g := &fakeGraph{
		topByCat: map[models.Category][]models.ScoredProduct{
			models.CategoryPowerSource: {{Product: ps, Score: 200}},
		},
		golden: map[string]*models.GoldenPackage{
			"ps1": {PowerSourceGIN: "ps1", Name: "Renegade starter", Products: []models.Product{
				ps,
				testProduct("f1", "Feed 304", models.CategoryFeeder, 90, price(1500)),
				testProduct("a1", "Return Cable", models.CategoryAccessory, 50, price(80)),
			}},
		},
	}
	e := testEngine(g)

	recs, err := e.Recommend(context.Background(), hybridIntent("help"))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) != 1 {
		t.Fatalf("packages = %d, want 1 golden package", len(recs.Packages))
	}
	pkg := recs.Packages[0]
	if pkg.PowerSource == nil || pkg.PowerSource.GIN != "ps1" {
		t.Fatalf("power source = %+v, want ps1", pkg.PowerSource)
	}
	if pkg.CompatibilityScore != 0.9 {
		t.Errorf("CompatibilityScore = %v, want 0.9 (golden)", pkg.CompatibilityScore)
	}
	if pkg.TrinityCompliance {
		t.Error("TrinityCompliance = true without a cooler")
	}
}

func TestRecommend_EmptyGraphNeedsFollowUp(t *testing.T) {
	e := testEngine(&fakeGraph{})

	recs, err := e.Recommend(context.Background(), hybridIntent("anything at all"))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) != 0 {
		t.Fatalf("packages = %d, want 0", len(recs.Packages))
	}
	if !recs.NeedsFollowUp || len(recs.FollowUpQuestions) == 0 {
		t.Error("empty result must set NeedsFollowUp with questions")
	}
}

func TestRecommend_VagueIntentAsksBack(t *testing.T) {
	// The graph has plenty to offer, but a clarification-flagged intent
	// with no usable slot must not guess its way to packages.
	g := &fakeGraph{
		hybrid: []models.ScoredProduct{
			{Product: testProduct("ps1", "Warrior 500i CC/CV", models.CategoryPowerSource, 120, price(5000)), Score: 0.9},
		},
		popular: []models.ScoredProduct{
			{Product: testProduct("ps2", "Renegade ES300", models.CategoryPowerSource, 200, price(2000)), Score: 200},
		},
	}
	e := testEngine(g)

	intent := hybridIntent("asdf qwerty")
	intent.Confidence = 0.2
	intent.NeedsClarification = true
	intent.ClarificationQuestions = []string{"Which welding process do you plan to use (MIG, TIG, MMA)?"}

	recs, err := e.Recommend(context.Background(), intent)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) != 0 {
		t.Fatalf("packages = %d, want 0 for a gibberish query", len(recs.Packages))
	}
	if !recs.NeedsFollowUp {
		t.Error("NeedsFollowUp = false, want true")
	}
	if len(recs.FollowUpQuestions) == 0 {
		t.Error("FollowUpQuestions empty, want the clarification questions")
	}

	// Any extracted slot lifts the gate even with clarification flagged.
	intent = hybridIntent("something for stainless maybe")
	intent.NeedsClarification = true
	intent.Material = "stainless_steel"
	recs, err = e.Recommend(context.Background(), intent)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) == 0 {
		t.Error("packages empty, want a search attempt when a slot is present")
	}
}

func TestRecommend_AssembledPackagesGainAccessories(t *testing.T) {
	g := &fakeGraph{
		hybrid: []models.ScoredProduct{
			{Product: testProduct("ps1", "Warrior 500i CC/CV", models.CategoryPowerSource, 120, price(5000)), Score: 0.9},
		},
		compatible: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {{Product: testProduct("f1", "RobustFeed U6", models.CategoryFeeder, 80, price(2000))}},
			models.CategoryCooler: {{Product: testProduct("c1", "COOL 2", models.CategoryCooler, 60, price(900))}},
		},
		coOrdered: []models.Product{
			testProduct("a1", "PSF 305 Torch", models.CategoryTorch, 30, price(400)),
			testProduct("a2", "PSF 410w Torch", models.CategoryTorch, 20, price(500)),
			testProduct("a3", "Interconnector 10m", models.CategoryInterconnector, 25, price(300)),
		},
		golden: map[string]*models.GoldenPackage{
			"ps1": {PowerSourceGIN: "ps1", Name: "Warrior golden", Products: []models.Product{
				testProduct("a4", "Remote AT1", models.CategoryRemote, 10, price(250)),
			}},
		},
	}
	e := testEngine(g)

	// HYBRID mode grows complete assembled trinities just like EXPERT.
	recs, err := e.Recommend(context.Background(), hybridIntent("I need a MIG welder for aluminum"))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(recs.Packages))
	}
	pkg := recs.Packages[0]
	if !pkg.TrinityCompliance {
		t.Fatal("package not trinity compliant")
	}
	categories := map[models.Category]int{}
	for _, a := range pkg.Accessories {
		categories[a.Category]++
	}
	if categories[models.CategoryTorch] != 1 {
		t.Errorf("torch accessories = %d, want 1 (one per category)", categories[models.CategoryTorch])
	}
	if categories[models.CategoryInterconnector] != 1 {
		t.Errorf("accessories = %v, want the co-ordered interconnector", categories)
	}
	if categories[models.CategoryRemote] != 1 {
		t.Errorf("accessories = %v, want golden backfill", categories)
	}
}

func TestRecommend_GraphFocusedWalksCoOccurrence(t *testing.T) {
	// No compatibility edges: slots come from a CO_OCCURS walk rooted at
	// the power source.
	g := &fakeGraph{
		property: []models.ScoredProduct{
			{Product: testProduct("ps1", "Warrior 500i CC/CV", models.CategoryPowerSource, 120, price(5000)), Score: 2},
		},
		coOccurrence: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {{Product: testProduct("f1", "RobustFeed U6", models.CategoryFeeder, 80, price(2000)), Score: 1.0}},
			models.CategoryCooler: {{Product: testProduct("c1", "COOL 2", models.CategoryCooler, 60, price(900)), Score: 0.5}},
		},
	}
	e := testEngine(g)

	intent := &models.ProcessedIntent{
		OriginalQuery:   "400 amp pulse setup for shipyard work",
		TranslatedQuery: "400 amp pulse setup for shipyard work",
		Mode:            models.ModeExpert,
		Confidence:      0.8,
		Processes:       []string{"MIG"},
	}
	recs, err := e.Recommend(context.Background(), intent)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if recs.Metadata.Strategy != models.StrategyGraphFocused {
		t.Fatalf("Strategy = %v, want GRAPH_FOCUSED", recs.Metadata.Strategy)
	}
	if len(recs.Packages) == 0 {
		t.Fatal("packages empty, want co-occurrence assembly")
	}
	pkg := recs.Packages[0]
	if pkg.Feeder == nil || pkg.Feeder.GIN != "f1" {
		t.Errorf("feeder = %+v, want f1 from the co-occurrence walk", pkg.Feeder)
	}
	if pkg.Cooler == nil || pkg.Cooler.GIN != "c1" {
		t.Errorf("cooler = %+v, want c1 from the co-occurrence walk", pkg.Cooler)
	}
	if pkg.CompatibilityScore != compatAssembled {
		t.Errorf("CompatibilityScore = %v, want %v for walked slots", pkg.CompatibilityScore, compatAssembled)
	}
}

func TestRecommend_DeterministicOrder(t *testing.T) {
	g := &fakeGraph{
		hybrid: []models.ScoredProduct{
			{Product: testProduct("ps1", "Warrior 400i", models.CategoryPowerSource, 50, price(4000)), Score: 0.8},
			{Product: testProduct("ps2", "Warrior 500i", models.CategoryPowerSource, 50, price(4000)), Score: 0.8},
		},
		compatible: map[models.Category][]models.ScoredProduct{
			models.CategoryFeeder: {{Product: testProduct("f1", "Feed", models.CategoryFeeder, 10, price(1000))}},
			models.CategoryCooler: {{Product: testProduct("c1", "Cool", models.CategoryCooler, 10, price(500))}},
		},
	}
	e := testEngine(g)
	intent := hybridIntent("mig welder")

	first, err := e.Recommend(context.Background(), intent)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Recommend(context.Background(), intent)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(again.Packages) != len(first.Packages) {
			t.Fatalf("run %d: package count changed", i)
		}
		for j := range again.Packages {
			if again.Packages[j].PackageID != first.Packages[j].PackageID {
				t.Fatalf("run %d: order changed at %d: %s vs %s",
					i, j, again.Packages[j].PackageID, first.Packages[j].PackageID)
			}
		}
	}
}

func TestPriceConsistency(t *testing.T) {
	ps := testProduct("ps1", "PS", models.CategoryPowerSource, 0, price(1000))
	noPricePS := testProduct("ps2", "PS", models.CategoryPowerSource, 0, nil)
	f := testProduct("f1", "F", models.CategoryFeeder, 0, price(1000))
	spread := testProduct("f2", "F", models.CategoryFeeder, 0, price(10000))

	pkg := newPackage(&noPricePS, nil, nil)
	if got, _ := priceConsistency(&pkg); got != 1.0 {
		t.Errorf("no known prices: consistency = %v, want 1.0", got)
	}

	pkg = newPackage(&ps, &f, nil)
	got, total := priceConsistency(&pkg)
	if got != 1.0 || total != 2000 {
		t.Errorf("equal prices: consistency = %v total = %v, want 1.0/2000", got, total)
	}

	// 1000 and 2000 average to 1500; the largest deviation is 500, so
	// consistency is 1 - 500/1500.
	wide := testProduct("f3", "F", models.CategoryFeeder, 0, price(2000))
	pkg = newPackage(&ps, &wide, nil)
	got, _ = priceConsistency(&pkg)
	if math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("uneven prices: consistency = %v, want 2/3", got)
	}

	pkg = newPackage(&ps, &spread, nil)
	got, _ = priceConsistency(&pkg)
	if got >= 1.0 {
		t.Errorf("spread prices: consistency = %v, want < 1.0", got)
	}
}

func TestIntentBonus_Capped(t *testing.T) {
	ps := testProduct("ps1", "Aristo 500ix", models.CategoryPowerSource, 0, nil)
	f := testProduct("f1", "RobustFeed U6", models.CategoryFeeder, 0, nil)
	c := testProduct("c1", "COOL 2", models.CategoryCooler, 0, nil)

	// Every member named in the query: summed keyword weights exceed the
	// cap and must clamp.
	pkg := newPackage(&ps, &f, &c)
	intent := &models.ProcessedIntent{OriginalQuery: "aristo 500ix with robustfeed and cool 2"}
	if got := intentBonus(&pkg, intent); got != maxIntentBonus {
		t.Errorf("intentBonus = %v, want capped at %v", got, maxIntentBonus)
	}

	// A member counts once even when its name carries several keywords.
	combo := testProduct("ps2", "Warrior Rogue Edition", models.CategoryPowerSource, 0, nil)
	pkg = newPackage(&combo, nil, nil)
	intent = &models.ProcessedIntent{OriginalQuery: "warrior or rogue, not sure"}
	if got := intentBonus(&pkg, intent); got != maxIntentBonus {
		t.Errorf("intentBonus = %v, want one hit capped at %v", got, maxIntentBonus)
	}

	// No keyword overlap between query and members.
	pkg = newPackage(&ps, nil, nil)
	intent = &models.ProcessedIntent{OriginalQuery: "a cheap welder for the garage"}
	if got := intentBonus(&pkg, intent); got != 0 {
		t.Errorf("intentBonus = %v, want 0 without a product mention", got)
	}
}

func TestConfidenceDistribution(t *testing.T) {
	packages := []models.WeldingPackage{
		{Score: 0.85}, {Score: 0.8}, {Score: 0.7}, {Score: 0.6}, {Score: 0.59},
	}
	dist := confidenceDistribution(packages)
	if dist["high"] != 2 || dist["medium"] != 2 || dist["low"] != 1 {
		t.Errorf("distribution = %v, want high=2 medium=2 low=1", dist)
	}
}
