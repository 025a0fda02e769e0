package catalog

import (
	"context"
	"testing"

	"github.com/beedev/sparky/pkg/models"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Warrior 400i", []string{"warrior", "400i"}},
		{"aristo 500 ix", []string{"aristo", "500", "ix"}},
		{"x y Renegade", []string{"renegade"}},
		{"5 a", []string{"5"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func product(gin, name string, sales int64) models.Product {
	return models.Product{GIN: gin, Name: name, Category: models.CategoryPowerSource, SalesFrequency: sales}
}

func TestRank_ConcatenatedBeatsSpaced(t *testing.T) {
	products := []models.Product{
		product("g1", "Warrior 400 i CC", 10),
		product("g2", "Warrior 400i CC/CV", 5),
		product("g3", "Warrior Edge", 99),
	}
	ranked := Rank(products, []string{"warrior", "400", "i"})

	if len(ranked) != 2 {
		t.Fatalf("Rank() returned %d products, want 2 (non-matching dropped)", len(ranked))
	}
	if ranked[0].Product.GIN != "g2" || ranked[0].Score != 1.0 {
		t.Errorf("top = %s score %v, want g2 at 1.0 (concatenated match)", ranked[0].Product.GIN, ranked[0].Score)
	}
	if ranked[1].Product.GIN != "g1" || ranked[1].Score != 0.9 {
		t.Errorf("second = %s score %v, want g1 at 0.9 (spaced match)", ranked[1].Product.GIN, ranked[1].Score)
	}
}

func TestRank_AllTokensPresent(t *testing.T) {
	products := []models.Product{
		product("g1", "Aristo ix 500 pulse", 3),
	}
	ranked := Rank(products, []string{"aristo", "500", "ix"})
	if len(ranked) != 1 || ranked[0].Score != 0.8 {
		t.Fatalf("Rank() = %+v, want single 0.8 match", ranked)
	}
}

func TestRank_TiesBreakOnSales(t *testing.T) {
	products := []models.Product{
		product("g1", "Renegade 300", 2),
		product("g2", "Renegade 300 Pro", 50),
	}
	ranked := Rank(products, []string{"renegade", "300"})
	if ranked[0].Product.GIN != "g2" {
		t.Errorf("top = %s, want g2 (higher sales)", ranked[0].Product.GIN)
	}
}

// fakeShortlister serves a fixed shortlist regardless of token.
type fakeShortlister struct {
	products []models.Product
	lastTok  string
	lastLim  int
}

func (f *fakeShortlister) ShortlistByName(_ context.Context, _ models.Category, token string, limit int) ([]models.Product, error) {
	f.lastTok = token
	f.lastLim = limit
	return f.products, nil
}

func TestSearch_TwoStage(t *testing.T) {
	fake := &fakeShortlister{products: []models.Product{
		product("g1", "Warrior 400i CC/CV", 20),
		product("g2", "Warrior 500i CC/CV", 30),
		product("g3", "Warrior Edge 30", 40),
	}}
	s := NewSearcher(fake)

	got, err := s.Search(context.Background(), "Warrior 400i", models.CategoryPowerSource, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if fake.lastTok != "warrior" {
		t.Errorf("shortlist token = %q, want %q", fake.lastTok, "warrior")
	}
	if fake.lastLim != 10 {
		t.Errorf("shortlist limit = %d, want 10 (2x requested)", fake.lastLim)
	}
	if len(got) != 1 || got[0].Product.GIN != "g1" {
		t.Fatalf("Search() = %+v, want only g1", got)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := NewSearcher(&fakeShortlister{})
	got, err := s.Search(context.Background(), "  ", models.CategoryPowerSource, 5)
	if err != nil || got != nil {
		t.Fatalf("Search(empty) = (%v, %v), want (nil, nil)", got, err)
	}
}
