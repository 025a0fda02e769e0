package loader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// fakeWriter captures writes and answers queries through queryFn.
type fakeWriter struct {
	queryFn func(stmt string, params map[string]any) []map[string]any
	batches [][]graph.BatchStatement
	writes  []graph.BatchStatement
}

func (f *fakeWriter) ExecuteQuery(_ context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	if f.queryFn == nil {
		return nil, nil
	}
	return f.queryFn(stmt, params), nil
}

func (f *fakeWriter) ExecuteWrite(_ context.Context, stmt string, params map[string]any) error {
	f.writes = append(f.writes, graph.BatchStatement{Stmt: stmt, Params: params})
	return nil
}

func (f *fakeWriter) ExecuteBatchWrite(_ context.Context, batch []graph.BatchStatement) error {
	cp := make([]graph.BatchStatement, len(batch))
	copy(cp, batch)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeWriter) allStatements() []graph.BatchStatement {
	var out []graph.BatchStatement
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func writeJSON(t *testing.T, name string, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newTestLoader(w GraphWriter) *Loader {
	return New(w, nil, zerolog.Nop())
}

func TestLoadProducts_DuplicatesAndValidation(t *testing.T) {
	price := 5000.0
	path := writeJSON(t, "products.json", []models.ProductRecord{
		{GINNumber: "g1", ProductName: "Warrior 500i", ComponentCategory: "PowerSource", Price: &price},
		{GINNumber: "g2", ProductName: "RobustFeed U6", ComponentCategory: "Feeder"},
		{GINNumber: "g1", ProductName: "Warrior 500i again", ComponentCategory: "PowerSource"},
		{GINNumber: "", ProductName: "Nameless", ComponentCategory: "Cooler"},
		{GINNumber: "g3", ProductName: "Mystery", ComponentCategory: "Spaceship"},
	})

	w := &fakeWriter{}
	report, err := newTestLoader(w).LoadProducts(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadProducts() error = %v", err)
	}
	if report.Created != 2 {
		t.Errorf("Created = %d, want 2", report.Created)
	}
	if report.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3 (duplicate, missing gin, bad category)", report.Skipped)
	}
	if len(report.Errors) != 3 {
		t.Errorf("Errors = %v, want 3 entries", report.Errors)
	}

	stmts := w.allStatements()
	if len(stmts) != 2 {
		t.Fatalf("statements = %d, want 2 MERGEs", len(stmts))
	}
	if !strings.Contains(stmts[0].Stmt, "MERGE (p:Product {gin: $gin})") {
		t.Errorf("statement = %q, want MERGE by gin", stmts[0].Stmt)
	}
}

func TestValidateRule_ConfidenceClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.8, 0.8},
		{0.0, 0.0},
		{1.0, 1.0},
		{1.5, 0.95},
		{-0.2, 0.95},
	}
	for _, tt := range tests {
		_, got, err := validateRule(models.CompatibilityRule{
			RuleType: "COMPATIBLE_WITH", SourceGIN: "a", TargetGIN: "b", Confidence: tt.in,
		})
		if err != nil {
			t.Fatalf("validateRule(conf=%v) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("confidence %v clamped to %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, _, err := validateRule(models.CompatibilityRule{RuleType: "FRIENDS_WITH", SourceGIN: "a", TargetGIN: "b"}); err == nil {
		t.Error("unknown rule type accepted")
	}
	if _, _, err := validateRule(models.CompatibilityRule{RuleType: "DETERMINES", SourceGIN: "a", TargetGIN: "a"}); err == nil {
		t.Error("self reference accepted")
	}
}

func TestLoadCompatibility_MissingRefs(t *testing.T) {
	path := writeJSON(t, "rules.json", []models.CompatibilityRule{
		{RuleID: "r1", RuleType: "COMPATIBLE_WITH", SourceGIN: "g1", TargetGIN: "g2", Confidence: 0.9},
		{RuleID: "r2", RuleType: "DETERMINES", SourceGIN: "g1", TargetGIN: "ghost", Confidence: 0.9},
	})

	w := &fakeWriter{queryFn: func(stmt string, params map[string]any) []map[string]any {
		// Only g1 and g2 exist.
		return []map[string]any{{"gin": "g1"}, {"gin": "g2"}}
	}}
	report, err := newTestLoader(w).LoadCompatibility(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadCompatibility() error = %v", err)
	}
	if report.Created != 1 || report.Skipped != 1 {
		t.Errorf("report = created %d skipped %d, want 1/1", report.Created, report.Skipped)
	}
	if len(report.MissingRefs) != 1 || report.MissingRefs[0] != "ghost" {
		t.Errorf("MissingRefs = %v, want [ghost]", report.MissingRefs)
	}

	// Delete-then-create: the clear statement precedes the edge create.
	stmts := w.allStatements()
	if len(stmts) != 2 {
		t.Fatalf("statements = %d, want clear + create", len(stmts))
	}
	if !strings.Contains(stmts[0].Stmt, "DELETE r") {
		t.Errorf("first statement = %q, want edge clear", stmts[0].Stmt)
	}
	if !strings.Contains(stmts[1].Stmt, "CREATE (s)-[:COMPATIBLE_WITH") {
		t.Errorf("second statement = %q, want edge create", stmts[1].Stmt)
	}
}

func TestCoOccurrenceStatements_PairCount(t *testing.T) {
	stmts := coOccurrenceStatements("o1", []string{"a", "b", "c"}, "2026-08-24")
	if len(stmts) != 3 {
		t.Fatalf("pairs = %d, want 3 for 3 products", len(stmts))
	}
	if stmts[0].Params["a"] != "a" || stmts[0].Params["b"] != "b" {
		t.Errorf("first pair = %v/%v, want a/b (sorted)", stmts[0].Params["a"], stmts[0].Params["b"])
	}
	for _, attr := range []string{"frequency", "orders_count", "confidence_score", "last_occurrence_date", "sample_orders"} {
		if !strings.Contains(stmts[0].Stmt, attr) {
			t.Errorf("edge statement missing %s attribute", attr)
		}
	}
	if stmts[0].Params["order"] != "o1" || stmts[0].Params["date"] != "2026-08-24" {
		t.Errorf("edge params = %v/%v, want order o1 and date 2026-08-24", stmts[0].Params["order"], stmts[0].Params["date"])
	}
}

func orderLines(orderID string, gins ...string) []models.SalesRecord {
	lines := make([]models.SalesRecord, 0, len(gins))
	for i, gin := range gins {
		lines = append(lines, models.SalesRecord{OrderID: orderID, LineNo: i + 1, GIN: gin})
	}
	return lines
}

func TestTrinityStatements(t *testing.T) {
	l := newTestLoader(&fakeWriter{})
	meta := map[string]productMeta{
		"ps1": {Category: models.CategoryPowerSource, Name: "Warrior 500i"},
		"f1":  {Category: models.CategoryFeeder, Name: "RobustFeed"},
		"c1":  {Category: models.CategoryCooler, Name: "COOL 2"},
		"acc": {Category: models.CategoryTorch, Name: "Torch"},
	}

	stmts, synthesized := l.trinityStatements("o1", orderLines("o1", "acc", "c1", "f1", "ps1"), meta)
	if len(stmts) != 4 || synthesized != 0 {
		t.Fatalf("stmts = %d synthesized = %d, want 4 (trinity + 3 member edges) / 0", len(stmts), synthesized)
	}
	if !strings.Contains(stmts[0].Stmt, "MERGE (tr:Trinity") {
		t.Errorf("statement = %q, want Trinity merge", stmts[0].Stmt)
	}

	// One FORMS_TRINITY edge per member, from the member's transaction
	// line, tagged with the component type.
	types := map[string]int{}
	for _, s := range stmts[1:] {
		if !strings.Contains(s.Stmt, "FORMS_TRINITY") {
			t.Fatalf("statement = %q, want FORMS_TRINITY edge", s.Stmt)
		}
		if !strings.Contains(s.Stmt, "line_no: $line") {
			t.Errorf("statement = %q, want transaction match by line_no", s.Stmt)
		}
		ct, _ := s.Params["type"].(string)
		types[ct]++
		if s.Params["id"] != stmts[0].Params["id"] {
			t.Errorf("member edge trinity id = %v, want %v", s.Params["id"], stmts[0].Params["id"])
		}
	}
	for _, ct := range []string{"power_source", "feeder", "cooler"} {
		if types[ct] != 1 {
			t.Errorf("component_type %q edges = %d, want 1", ct, types[ct])
		}
	}

	// Same members, same trinity id on re-run.
	again, _ := l.trinityStatements("o2", orderLines("o2", "c1", "f1", "ps1"), meta)
	if stmts[0].Params["id"] != again[0].Params["id"] {
		t.Error("trinity id not stable across runs")
	}
}

func TestTrinityStatements_AllInOneSynthesis(t *testing.T) {
	l := newTestLoader(&fakeWriter{})
	meta := map[string]productMeta{
		"ps1": {Category: models.CategoryPowerSource, Subcategory: "All-in-one", Name: "Renegade VOLT"},
	}

	stmts, synthesized := l.trinityStatements("o1", orderLines("o1", "ps1"), meta)
	if synthesized != 2 {
		t.Fatalf("synthesized = %d, want feeder and cooler placeholders", synthesized)
	}
	if len(stmts) != 6 {
		t.Fatalf("statements = %d, want 2 placeholders + trinity + 3 member edges", len(stmts))
	}
	trinity := stmts[2]
	if trinity.Params["feeder"] != "ps1-INT-F" || trinity.Params["cooler"] != "ps1-INT-C" {
		t.Errorf("placeholder gins = %v/%v", trinity.Params["feeder"], trinity.Params["cooler"])
	}
	// Placeholder members borrow the power source's transaction line.
	for _, s := range stmts[3:] {
		if s.Params["line"] != 1 {
			t.Errorf("member edge line = %v, want 1", s.Params["line"])
		}
	}
}

func TestTrinityStatements_NoPowerSource(t *testing.T) {
	l := newTestLoader(&fakeWriter{})
	meta := map[string]productMeta{
		"f1": {Category: models.CategoryFeeder},
		"c1": {Category: models.CategoryCooler},
	}
	if stmts, _ := l.trinityStatements("o1", orderLines("o1", "c1", "f1"), meta); len(stmts) != 0 {
		t.Errorf("statements = %d, want 0 without a power source", len(stmts))
	}
}

func TestLoadSales_EndToEnd(t *testing.T) {
	// Sales exports wrap the records in an object envelope.
	path := writeJSON(t, "sales.json", map[string]any{
		"sales_records": []models.SalesRecord{
			{OrderID: "o1", LineNo: 1, GIN: "ps1", Customer: "Acme", Facility: "Gothenburg"},
			{OrderID: "o1", LineNo: 2, GIN: "f1", Customer: "Acme"},
			{OrderID: "o1", LineNo: 3, GIN: "c1", Customer: "Acme"},
			{OrderID: "o2", LineNo: 1, GIN: "ghost", Customer: "Acme"},
		},
	})

	w := &fakeWriter{queryFn: func(stmt string, params map[string]any) []map[string]any {
		return []map[string]any{
			{"gin": "ps1", "category": "PowerSource", "subcategory": "", "name": "Warrior"},
			{"gin": "f1", "category": "Feeder", "subcategory": "", "name": "Feed"},
			{"gin": "c1", "category": "Cooler", "subcategory": "", "name": "Cool"},
		}
	}}
	report, err := newTestLoader(w).LoadSales(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadSales() error = %v", err)
	}
	if report.Created != 1 {
		t.Errorf("orders loaded = %d, want 1 (ghost order dropped)", report.Created)
	}
	if len(report.MissingRefs) != 1 || report.MissingRefs[0] != "ghost" {
		t.Errorf("MissingRefs = %v, want [ghost]", report.MissingRefs)
	}

	var trinities, made, formed int
	for _, s := range w.allStatements() {
		switch {
		case strings.Contains(s.Stmt, "MERGE (tr:Trinity"):
			trinities++
		case strings.Contains(s.Stmt, "[:MADE]"):
			made++
		case strings.Contains(s.Stmt, "FORMS_TRINITY"):
			formed++
		}
		if strings.Contains(s.Stmt, "MERGE (t:Transaction") && !strings.Contains(s.Stmt, "line_no: $line") {
			t.Errorf("transaction merge = %q, want order_id + line_no key", s.Stmt)
		}
	}
	if trinities != 1 {
		t.Errorf("trinity merges = %d, want 1", trinities)
	}
	if made != 3 {
		t.Errorf("customer MADE edges = %d, want one per order line", made)
	}
	if formed != 3 {
		t.Errorf("FORMS_TRINITY edges = %d, want one per trinity member", formed)
	}
}

func TestLoadCompatibility_ObjectEnvelope(t *testing.T) {
	path := writeJSON(t, "rules.json", map[string]any{
		"compatibility_rules": []models.CompatibilityRule{
			{RuleID: "r1", RuleType: "COMPATIBLE_WITH", SourceGIN: "g1", TargetGIN: "g2", Confidence: 0.9},
		},
	})

	w := &fakeWriter{queryFn: func(stmt string, params map[string]any) []map[string]any {
		return []map[string]any{{"gin": "g1"}, {"gin": "g2"}}
	}}
	report, err := newTestLoader(w).LoadCompatibility(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadCompatibility() error = %v", err)
	}
	if report.Created != 1 {
		t.Errorf("Created = %d, want 1 from the enveloped array", report.Created)
	}
}

func TestLoadGolden_MissingPowerSource(t *testing.T) {
	path := writeJSON(t, "golden.json", []goldenRecord{
		{Name: "Starter", PowerSourceGIN: "ps1", ProductGINs: []string{"ps1", "f1", "ghost"}},
		{Name: "Orphan", PowerSourceGIN: "nope", ProductGINs: []string{"f1"}},
	})

	w := &fakeWriter{queryFn: func(stmt string, params map[string]any) []map[string]any {
		return []map[string]any{{"gin": "ps1"}, {"gin": "f1"}}
	}}
	report, err := newTestLoader(w).LoadGoldenPackages(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadGoldenPackages() error = %v", err)
	}
	if report.Created != 1 || report.Skipped != 1 {
		t.Errorf("report = created %d skipped %d, want 1/1", report.Created, report.Skipped)
	}
	// ghost product and the orphan package's power source both missing.
	if len(report.MissingRefs) != 2 {
		t.Errorf("MissingRefs = %v, want 2 entries", report.MissingRefs)
	}
}
