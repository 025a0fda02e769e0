// Package models defines the shared domain types for the Sparky welding
// package recommender: the product graph entities, the per-request intent,
// the scored recommendation packages, and the composed response.
package models

import "time"

// ══════════════════════════════════════════════════════════════
// ── Product Graph ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Category is the product category enum. Stored as a string property on
// Product nodes; the canonical values below are the only ones the loader
// ever writes.
type Category string

const (
	CategoryPowerSource           Category = "PowerSource"
	CategoryFeeder                Category = "Feeder"
	CategoryCooler                Category = "Cooler"
	CategoryTorch                 Category = "Torch"
	CategoryConsumable            Category = "Consumable"
	CategoryAccessory             Category = "Accessory"
	CategoryPowerSourceAccessory  Category = "PowerSourceAccessory"
	CategoryFeederAccessory       Category = "FeederAccessory"
	CategoryConnectivityAccessory Category = "ConnectivityAccessory"
	CategoryInterconnector        Category = "Interconnector"
	CategoryRemote                Category = "Remote"
	CategoryUnknown               Category = "Unknown"
)

// TrinityCategories are the three categories that form a complete minimal
// welding setup.
var TrinityCategories = []Category{CategoryPowerSource, CategoryFeeder, CategoryCooler}

// ParseCategory maps a loose category string onto the enum, defaulting to
// Unknown rather than failing.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryPowerSource, CategoryFeeder, CategoryCooler, CategoryTorch,
		CategoryConsumable, CategoryAccessory, CategoryPowerSourceAccessory,
		CategoryFeederAccessory, CategoryConnectivityAccessory,
		CategoryInterconnector, CategoryRemote:
		return Category(s)
	}
	return CategoryUnknown
}

// Product is a node in the product graph. GIN is the stable external
// identifier and is unique across products.
type Product struct {
	GIN                string            `json:"gin"`
	Name               string            `json:"name"`
	Category           Category          `json:"category"`
	Subcategory        string            `json:"subcategory,omitempty"`
	Manufacturer       string            `json:"manufacturer,omitempty"`
	Description        string            `json:"description,omitempty"`
	Specifications     map[string]string `json:"specifications,omitempty"`
	Price              *float64          `json:"price,omitempty"`
	ImageURL           string            `json:"image_url,omitempty"`
	DatasheetURL       string            `json:"datasheet_url,omitempty"`
	CountriesAvailable []string          `json:"countries_available,omitempty"`
	IsAvailable        bool              `json:"is_available"`
	SalesFrequency     int64             `json:"sales_frequency"`
	Embedding          []float32         `json:"-"`
	EmbeddingText      string            `json:"-"`
	CreatedAt          time.Time         `json:"created_at,omitempty"`
	UpdatedAt          time.Time         `json:"updated_at,omitempty"`
}

// ScoredProduct pairs a product with a similarity or relevance score.
type ScoredProduct struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// Trinity is a co-ordered PowerSource+Feeder+Cooler triple observed in the
// sales history. TrinityID is a hash of the three member GINs.
type Trinity struct {
	TrinityID      string `json:"trinity_id"`
	PowerSourceGIN string `json:"power_source_gin"`
	FeederGIN      string `json:"feeder_gin"`
	CoolerGIN      string `json:"cooler_gin"`
	OrderCount     int64  `json:"order_count"`
}

// GoldenPackage is a curated fallback package keyed by a PowerSource.
type GoldenPackage struct {
	PowerSourceGIN string    `json:"power_source_gin"`
	Name           string    `json:"name"`
	Products       []Product `json:"products"`
}

// ══════════════════════════════════════════════════════════════
// ── Intent (Agent 1 output) ──────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ExpertiseMode is the auto-detected user profile.
type ExpertiseMode string

const (
	ModeExpert ExpertiseMode = "EXPERT"
	ModeGuided ExpertiseMode = "GUIDED"
	ModeHybrid ExpertiseMode = "HYBRID"
)

// UserContext carries caller-provided context into intent processing.
type UserContext struct {
	UserID            string   `json:"user_id,omitempty"`
	SessionID         string   `json:"session_id,omitempty"`
	PreferredLanguage string   `json:"preferred_language,omitempty"`
	ExpertiseHistory  []string `json:"expertise_history,omitempty"`
	PreviousQueries   []string `json:"previous_queries,omitempty"`
	IndustryContext   string   `json:"industry_context,omitempty"`
	Organization      string   `json:"organization,omitempty"`
	Role              string   `json:"role,omitempty"`
}

// ProcessedIntent is the structured output of the intent processor.
type ProcessedIntent struct {
	OriginalQuery      string        `json:"original_query"`
	TranslatedQuery    string        `json:"translated_query"`
	DetectedLanguage   string        `json:"detected_language"`
	LanguageConfidence float64       `json:"language_confidence"`
	Mode               ExpertiseMode `json:"expertise_mode"`

	Processes        []string `json:"processes,omitempty"`
	Material         string   `json:"material,omitempty"`
	PowerWatts       float64  `json:"power_watts,omitempty"`
	CurrentAmps      float64  `json:"current_amps,omitempty"`
	Voltage          float64  `json:"voltage,omitempty"`
	ThicknessMM      float64  `json:"thickness_mm,omitempty"`
	Environment      string   `json:"environment,omitempty"`
	Application      string   `json:"application,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	MentionedProduct string   `json:"mentioned_product,omitempty"`
	GuidedFlow       string   `json:"guided_flow,omitempty"`

	Confidence             float64  `json:"confidence"`
	Completeness           float64  `json:"completeness"`
	MissingParams          []string `json:"missing_params,omitempty"`
	NeedsClarification     bool     `json:"needs_clarification"`
	ClarificationQuestions []string `json:"clarification_questions,omitempty"`
	Errors                 []string `json:"errors,omitempty"`

	UserContext UserContext `json:"-"`
}

// ══════════════════════════════════════════════════════════════
// ── Recommendations (Agent 2 output) ─────────────────────────
// ══════════════════════════════════════════════════════════════

// Strategy names the closed set of recommendation strategies.
type Strategy string

const (
	StrategyGraphFocused Strategy = "GRAPH_FOCUSED"
	StrategyHybrid       Strategy = "HYBRID"
	StrategyGuidedFlow   Strategy = "GUIDED_FLOW"
	StrategySalesOnly    Strategy = "SALES_ONLY" // simple fallback variant
)

// WeldingPackage is one candidate multi-component package. PowerSource,
// Feeder and Cooler are nil when the slot could not be filled; compliance
// scoring handles the partial case.
type WeldingPackage struct {
	PackageID   string    `json:"package_id"`
	PowerSource *Product  `json:"power_source,omitempty"`
	Feeder      *Product  `json:"feeder,omitempty"`
	Cooler      *Product  `json:"cooler,omitempty"`
	Accessories []Product `json:"accessories,omitempty"`

	Score              float64 `json:"package_score"`
	TrinityCompliance  bool    `json:"trinity_compliance"`
	ComplianceScore    float64 `json:"compliance_score"`
	CompatibilityScore float64 `json:"compatibility_score"`
	SalesScore         float64 `json:"sales_score"`
	PriceConsistency   float64 `json:"price_consistency"`
	IntentBonus        float64 `json:"intent_bonus"`
	BusinessAdjustment float64 `json:"business_adjustment"`

	TotalPrice    float64 `json:"total_price"`
	CombinedSales int64   `json:"combined_sales"`
}

// Components returns the non-nil trinity members.
func (p *WeldingPackage) Components() []*Product {
	var out []*Product
	for _, c := range []*Product{p.PowerSource, p.Feeder, p.Cooler} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// SearchMetadata records how a recommendation run was executed.
type SearchMetadata struct {
	Strategy       Strategy           `json:"strategy"`
	AlgorithmsUsed []string           `json:"algorithms_used"`
	Weights        map[string]float64 `json:"weights"`
}

// ScoredRecommendations is the output of the recommendation engine.
type ScoredRecommendations struct {
	Packages               []WeldingPackage `json:"packages"`
	TrinityFormationRate   float64          `json:"trinity_formation_rate"`
	ConfidenceDistribution map[string]int   `json:"confidence_distribution"`
	Metadata               SearchMetadata   `json:"search_metadata"`
	NeedsFollowUp          bool             `json:"needs_follow_up"`
	FollowUpQuestions      []string         `json:"follow_up_questions,omitempty"`
	Errors                 []string         `json:"errors,omitempty"`
}

// ══════════════════════════════════════════════════════════════
// ── Response (Agent 3 output) ────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ExplanationLevel indicates which audience the response prose targets.
type ExplanationLevel string

const (
	ExplanationTechnical   ExplanationLevel = "TECHNICAL"
	ExplanationEducational ExplanationLevel = "EDUCATIONAL"
	ExplanationBalanced    ExplanationLevel = "BALANCED"
)

// PackageDescription is the user-facing writeup of one package.
type PackageDescription struct {
	PackageID  string   `json:"package_id"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Highlights []string `json:"highlights,omitempty"`
}

// Response is the final composed answer returned to the HTTP layer.
type Response struct {
	Title               string               `json:"title"`
	Summary             string               `json:"summary"`
	DetailedExplanation string               `json:"detailed_explanation,omitempty"`
	TechnicalNotes      []string             `json:"technical_notes,omitempty"`
	PackageDescriptions []PackageDescription `json:"package_descriptions,omitempty"`
	NextSteps           []string             `json:"next_steps,omitempty"`
	RelatedQuestions    []string             `json:"related_questions,omitempty"`
	ExplanationLevel    ExplanationLevel     `json:"explanation_level"`
	ResponseLanguage    string               `json:"response_language"`

	Packages             []WeldingPackage `json:"packages"`
	OverallConfidence    float64          `json:"overall_confidence"`
	SatisfactionScore    float64          `json:"satisfaction_score"`
	TrinityFormationRate float64          `json:"trinity_formation_rate"`
	NeedsFollowUp        bool             `json:"needs_follow_up"`
	FollowUpQuestions    []string         `json:"follow_up_questions,omitempty"`
}

// ══════════════════════════════════════════════════════════════
// ── Orchestration ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// PipelineState names the orchestrator states.
type PipelineState string

const (
	StateProcessingIntent  PipelineState = "PROCESSING_INTENT"
	StateGeneratingRecs    PipelineState = "GENERATING_RECOMMENDATIONS"
	StateComposingResponse PipelineState = "COMPOSING_RESPONSE"
	StateIntentFallback    PipelineState = "INTENT_FALLBACK"
	StateGraphFallback     PipelineState = "GRAPH_FALLBACK"
	StateErrorResponse     PipelineState = "ERROR_RESPONSE"
	StateDone              PipelineState = "DONE"
)

// StageTiming records one stage transition inside a trace.
type StageTiming struct {
	State      PipelineState `json:"state"`
	DurationMs int64         `json:"duration_ms"`
	Fallback   bool          `json:"fallback,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Trace is the per-request execution record.
type Trace struct {
	TraceID    string        `json:"trace_id"`
	SessionID  string        `json:"session_id,omitempty"`
	Query      string        `json:"query"`
	Stages     []StageTiming `json:"stages"`
	TotalMs    int64         `json:"total_ms"`
	Confidence float64       `json:"confidence"`
	Packages   int           `json:"packages"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ══════════════════════════════════════════════════════════════
// ── HTTP Contracts ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ChatRequest is the body of POST /api/v1/sparky/message.
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Language  string `json:"language,omitempty"`
}

// StepByStepBuilder hints the guided UI at the category order to walk.
type StepByStepBuilder struct {
	Steps       []string `json:"steps"`
	CurrentStep int      `json:"current_step"`
}

// ChatResponse is the body returned by POST /api/v1/sparky/message.
type ChatResponse struct {
	Response          string             `json:"response"`
	Requirements      *ProcessedIntent   `json:"requirements,omitempty"`
	Packages          []WeldingPackage   `json:"packages"`
	Confidence        float64            `json:"confidence"`
	ConversationID    string             `json:"conversation_id"`
	StepByStepBuilder *StepByStepBuilder `json:"step_by_step_builder,omitempty"`
}

// RecommendationRequest is the body of POST /api/v1/enterprise/recommendations.
type RecommendationRequest struct {
	Query               string      `json:"query"`
	SessionID           string      `json:"session_id,omitempty"`
	UserContext         UserContext `json:"user_context,omitempty"`
	MaxResults          int         `json:"max_results,omitempty"`
	IncludeExplanations bool        `json:"include_explanations"`
}

// RecommendationResponse is the full enterprise response envelope.
type RecommendationResponse struct {
	Response       Response        `json:"response"`
	Intent         ProcessedIntent `json:"intent"`
	Metadata       SearchMetadata  `json:"search_metadata"`
	TraceID        string          `json:"trace_id"`
	ProcessingTime int64           `json:"processing_time_ms"`
}

// Session is one multi-turn conversation.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id,omitempty"`
	Language  string     `json:"language,omitempty"`
	Turns     []ChatTurn `json:"turns,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ChatTurn is one user query and the summary of what was answered.
type ChatTurn struct {
	Query      string    `json:"query"`
	Mode       string    `json:"mode,omitempty"`
	Confidence float64   `json:"confidence"`
	Packages   int       `json:"packages"`
	At         time.Time `json:"at"`
}

// ══════════════════════════════════════════════════════════════
// ── Loader Contracts ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ProductRecord is one entry of enhanced_simplified_products.json.
type ProductRecord struct {
	GINNumber         string         `json:"gin_number"`
	ProductName       string         `json:"product_name"`
	ComponentCategory string         `json:"component_category"`
	Subcategory       string         `json:"subcategory,omitempty"`
	Description       string         `json:"description,omitempty"`
	Specifications    map[string]any `json:"specifications,omitempty"`
	Price             *float64       `json:"price,omitempty"`
	ImageURL          string         `json:"image_url,omitempty"`
	DatasheetURL      string         `json:"datasheet_url,omitempty"`
	Countries         []string       `json:"countries_available,omitempty"`
	IsAvailable       *bool          `json:"is_available,omitempty"`
}

// CompatibilityRule is one entry of compatibility_rules.json.
// RuleType is one of COMPATIBLE_WITH, DETERMINES, REQUIRES, EXCLUDES.
type CompatibilityRule struct {
	RuleID         string         `json:"rule_id"`
	RuleType       string         `json:"rule_type"`
	SourceGIN      string         `json:"source_gin"`
	TargetGIN      string         `json:"target_gin"`
	SourceCategory string         `json:"source_category,omitempty"`
	TargetCategory string         `json:"target_category,omitempty"`
	Confidence     float64        `json:"confidence"`
	Bidirectional  bool           `json:"bidirectional,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SalesRecord is one entry of sales_data.json.
type SalesRecord struct {
	OrderID     string `json:"order_id"`
	LineNo      int    `json:"line_no"`
	GIN         string `json:"gin"`
	Customer    string `json:"customer"`
	Facility    string `json:"facility,omitempty"`
	Warehouse   string `json:"warehouse,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// LoadReport summarizes one loader run. Missing references are collected,
// never fatal.
type LoadReport struct {
	Source      string    `json:"source"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Skipped     int       `json:"skipped"`
	MissingRefs []string  `json:"missing_refs,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
