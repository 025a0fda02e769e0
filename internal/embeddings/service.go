package embeddings

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/beedev/sparky/internal/vocabulary"
	"github.com/beedev/sparky/pkg/models"
)

const maxSpecValueLen = 500

// Service builds enriched text for products and queries and embeds it
// through the configured driver. Loaded once at startup, read-only after.
type Service struct {
	driver Driver
	vocab  *vocabulary.Vocabulary
}

// NewService creates the embedding service.
func NewService(driver Driver, vocab *vocabulary.Vocabulary) *Service {
	return &Service{driver: driver, vocab: vocab}
}

// Dimensions returns the driver's embedding dimensionality.
func (s *Service) Dimensions() int { return s.driver.Dimensions() }

// HealthCheck pings the underlying driver.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.driver.HealthCheck(ctx)
}

// EmbedProduct builds the comprehensive textual representation of a product,
// enhances it with the domain vocabulary, and embeds it. Returns the vector
// and the enriched text that produced it (persisted as embedding_text).
func (s *Service) EmbedProduct(ctx context.Context, p *models.Product) ([]float32, string, error) {
	text := s.vocab.Enhance(s.ProductText(p))
	vectors, err := s.driver.Embed(ctx, []string{text})
	if err != nil {
		return nil, "", fmt.Errorf("embed product %s: %w", p.GIN, err)
	}
	if len(vectors) == 0 {
		return nil, "", fmt.Errorf("embed product %s: %w: empty result", p.GIN, ErrEmbedding)
	}
	return vectors[0], text, nil
}

// EmbedQuery cleans and enhances a query string, then embeds it.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	text := s.vocab.Enhance(cleanWhitespace(query))
	vectors, err := s.driver.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: %w: empty result", ErrEmbedding)
	}
	return vectors[0], nil
}

// ProductText assembles the raw (pre-enhancement) embedding text: name
// tokens, category, flattened specifications, and cleaned description.
func (s *Service) ProductText(p *models.Product) string {
	var parts []string

	for _, tok := range strings.Fields(p.Name) {
		if len(tok) < 2 || isNumeric(tok) {
			continue
		}
		parts = append(parts, tok)
	}
	if p.Category != "" && p.Category != models.CategoryUnknown {
		parts = append(parts, string(p.Category))
	}
	if p.Subcategory != "" {
		parts = append(parts, p.Subcategory)
	}

	// Specifications flattened one level, deterministic order.
	keys := make([]string, 0, len(p.Specifications))
	for k := range p.Specifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := truncate(normalizeUnits(stripHTML(p.Specifications[k])), maxSpecValueLen)
		if v == "" {
			continue
		}
		parts = append(parts, k+": "+v)
	}

	if desc := cleanWhitespace(stripHTML(p.Description)); desc != "" {
		parts = append(parts, desc)
	}

	text := strings.Join(parts, ". ")
	if text == "" {
		log.Debug().Str("gin", p.GIN).Msg("Product produced empty embedding text")
	}
	return text
}

// ── Text Cleaning ───────────────────────────────────────────

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	unitSpaceRe  = regexp.MustCompile(`(\d)\s+(amp|amps|a|v|volt|volts|w|watt|watts|mm|cm|m|kg|hz)\b`)
)

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ", "&quot;", `"`).Replace(s)
	return s
}

func cleanWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// normalizeUnits joins a number and its unit ("400 A" -> "400A") so spec
// values tokenize consistently with product names like "Warrior 400i".
func normalizeUnits(s string) string {
	return cleanWhitespace(unitSpaceRe.ReplaceAllString(strings.ToLower(s), "$1$2"))
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
