package intent

import (
	"regexp"
	"strings"
)

// ProductMatch is the result of the deterministic product-mention scan.
type ProductMatch struct {
	Mentioned   string  // normalized product mention, e.g. "aristo 500ix"
	Application string  // "compatibility" or "product_inquiry"
	Confidence  float64
}

// productFamilies are the known ESAB power-source families. A family-name
// hit short-circuits semantic search in favor of exact catalog lookup.
var productFamilies = []string{"aristo", "warrior", "renegade", "rebel", "rogue", "fabricator"}

var modelTokenRe = regexp.MustCompile(`\b(\d{3,4})\s*(i[xc]?|cc/cv|cc|cv|mv|pro|edge)?\b`)

var compatibilityWords = []string{"compatible", "compatibility", "works with", "fit with", "goes with", "pair with", "match with"}

// equipmentTokens name companion equipment. A named power source next to
// one of these reads as a compatibility request even without explicit
// compatibility phrasing.
var equipmentTokens = []string{"feeder", "wire feeder", "cooler", "cooling unit", "torch", "regulator", "remote", "interconnector"}

// MatchProduct scans for explicit product mentions before any LLM call.
// Family name plus a model token is a high-confidence mention; the
// surrounding phrasing decides whether the user wants compatibility
// lookup or a product inquiry.
func MatchProduct(query string) (ProductMatch, bool) {
	q := strings.ToLower(query)

	family := ""
	for _, f := range productFamilies {
		if containsWord(q, f) {
			family = f
			break
		}
	}
	if family == "" {
		return ProductMatch{}, false
	}

	mention := family
	// Look for a model token after the family name.
	rest := q[strings.Index(q, family)+len(family):]
	if m := modelTokenRe.FindStringSubmatch(rest); m != nil {
		mention = family + " " + strings.TrimSpace(strings.ReplaceAll(m[0], " ", ""))
	}

	match := ProductMatch{Mentioned: mention, Application: "product_inquiry", Confidence: 0.7}
	if containsAny(q, compatibilityWords) || containsAny(q, equipmentTokens) {
		match.Application = "compatibility"
		match.Confidence = 0.9
	}
	return match, true
}

func containsAny(q string, words []string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
