// Package catalog implements the two-stage fuzzy product-name lookup used
// when a query mentions a specific product ("warrior 400i wire feeder").
// Stage one shortlists by the first name token straight from the graph;
// stage two scores the shortlist against the remaining tokens.
package catalog

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/beedev/sparky/pkg/models"
)

// Shortlister is the graph-side half of the search: products of a category
// whose lowercased name contains a token, sales-frequency first.
type Shortlister interface {
	ShortlistByName(ctx context.Context, category models.Category, token string, limit int) ([]models.Product, error)
}

// Searcher performs fuzzy product lookup within a category.
type Searcher struct {
	store Shortlister
}

// NewSearcher creates a product searcher.
func NewSearcher(store Shortlister) *Searcher {
	return &Searcher{store: store}
}

// Search looks up products matching the free-form name within a category.
// Returns at most limit products, best match first.
func (s *Searcher) Search(ctx context.Context, name string, category models.Category, limit int) ([]models.ScoredProduct, error) {
	tokens := Tokenize(name)
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	shortlist, err := s.store.ShortlistByName(ctx, category, tokens[0], limit*2)
	if err != nil {
		return nil, err
	}
	if len(shortlist) == 0 {
		return nil, nil
	}

	ranked := Rank(shortlist, tokens)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	log.Debug().
		Str("name", name).
		Str("category", string(category)).
		Int("shortlist", len(shortlist)).
		Int("matches", len(ranked)).
		Msg("Product search")
	return ranked, nil
}

// Tokenize splits a product name query into matchable tokens. Tokens
// shorter than two characters are discarded unless they are digits.
func Tokenize(name string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok == "" {
			continue
		}
		if len(tok) < 2 && !isDigits(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Rank scores shortlist entries against the tokens after the first.
// Match quality, best first: concatenated remainder ("400i") 1.0, spaced
// remainder ("400 i") 0.9, all tokens individually present 0.8, partial
// 2-token concatenations 0.6-0.8 proportionally; anything else drops.
// Ties break on sales frequency.
func Rank(products []models.Product, tokens []string) []models.ScoredProduct {
	rest := tokens[1:]
	var out []models.ScoredProduct

	for _, p := range products {
		name := strings.ToLower(p.Name)
		score, ok := matchScore(name, rest)
		if !ok {
			continue
		}
		out = append(out, models.ScoredProduct{Product: p, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Product.SalesFrequency != out[j].Product.SalesFrequency {
			return out[i].Product.SalesFrequency > out[j].Product.SalesFrequency
		}
		return out[i].Product.GIN < out[j].Product.GIN
	})
	return out
}

func matchScore(name string, rest []string) (float64, bool) {
	if len(rest) == 0 {
		return 1.0, true
	}

	if strings.Contains(name, strings.Join(rest, "")) {
		return 1.0, true
	}
	if strings.Contains(name, strings.Join(rest, " ")) {
		return 0.9, true
	}

	all := true
	for _, tok := range rest {
		if !strings.Contains(name, tok) {
			all = false
			break
		}
	}
	if all {
		return 0.8, true
	}

	// Partial: pairwise concatenations of adjacent tokens.
	if len(rest) >= 2 {
		pairs := len(rest) - 1
		hits := 0
		for i := 0; i < pairs; i++ {
			if strings.Contains(name, rest[i]+rest[i+1]) {
				hits++
			}
		}
		if hits > 0 {
			return 0.6 + 0.2*float64(hits)/float64(pairs), true
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
